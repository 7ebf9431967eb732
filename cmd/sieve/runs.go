package main

import (
	"fmt"

	"github.com/Veraticus/ledger-sieve/internal/cli"
	"github.com/Veraticus/ledger-sieve/internal/model"
	"github.com/Veraticus/ledger-sieve/internal/storage"
	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent classification runs",
		RunE:  runRuns,
	}

	cmd.Flags().Int("limit", storage.DefaultRunLimit, "maximum number of runs to show")

	return cmd
}

func runRuns(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openRunStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle("Recent runs"))
	ptrs := make([]*model.Run, len(runs))
	for i := range runs {
		ptrs[i] = &runs[i]
	}
	fmt.Fprint(cmd.OutOrStdout(), cli.RenderRuns(ptrs))
	return nil
}
