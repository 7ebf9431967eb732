package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/ledger-sieve/internal/cli"
	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/Veraticus/ledger-sieve/internal/model"
	"github.com/Veraticus/ledger-sieve/internal/pipeline"
	"github.com/spf13/cobra"
)

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict FILE",
		Short: "Classify a ledger file from the terminal",
		Long: `Run one file through the same pipeline the web interface uses.

Column positions are zero-based. The file is stored in the uploads
directory with FileData, Predictions and Credit columns added, the
matching rows replace the filtered output, and the run is recorded in
the history database.`,
		Args: cobra.ExactArgs(1),
		RunE: runPredict,
	}

	cmd.Flags().Int("description", 0, "zero-based position of the description column")
	cmd.Flags().Int("ref-no", 1, "zero-based position of the reference number column")
	cmd.Flags().Int("credit", 2, "zero-based position of the credit column")
	cmd.Flags().StringP("out", "o", "", "also copy the filtered workbook to this path")
	cmd.Flags().Int("rows", 20, "maximum matched rows to print (0 for all)")
	cmd.Flags().Bool("quiet", false, "hide the progress bar")

	return cmd
}

func runPredict(cmd *cobra.Command, args []string) error {
	path := args[0]
	descCol, _ := cmd.Flags().GetInt("description")
	refCol, _ := cmd.Flags().GetInt("ref-no")
	creditCol, _ := cmd.Flags().GetInt("credit")
	outPath, _ := cmd.Flags().GetString("out")
	maxRows, _ := cmd.Flags().GetInt("rows")
	quiet, _ := cmd.Flags().GetBool("quiet")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(runCtx, "No output was replaced. Rerun with: sieve predict "+path)

	var opts []pipeline.Option
	var progress *cli.StepProgress
	if !quiet {
		progress = cli.NewStepProgress(cmd.ErrOrStderr(), len(pipeline.Steps))
		opts = append(opts, pipeline.WithObserver(progress))
	}

	a, err := newApp(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	fileName := filepath.Base(path)
	result, err := a.pipeline.Run(ctx, pipeline.Request{
		FileName:  fileName,
		FileBytes: data,
		Columns: model.ColumnSelection{
			Description: descCol,
			RefNo:       refCol,
			Credit:      creditCol,
		},
	})
	if err != nil {
		if progress != nil {
			progress.Abort()
		}
		if verr, ok := common.IsValidation(err); ok {
			fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatError(verr.UserMessage))
		}
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), cli.RenderResult(fileName, result, maxRows))

	if outPath != "" {
		filtered, err := a.pipeline.FetchFilteredOutput(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, filtered, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Filtered rows written to "+outPath))
	}

	slog.Debug("Predict finished", "run_id", result.RunID)
	return nil
}
