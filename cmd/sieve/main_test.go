package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/Veraticus/ledger-sieve/internal/model"
	"github.com/Veraticus/ledger-sieve/internal/spreadsheet"
	"github.com/Veraticus/ledger-sieve/internal/testutil"
	"github.com/Veraticus/ledger-sieve/internal/testutil/ledgers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	dir        string
	configPath string
	outputDir  string
	uploadsDir string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	vecPath, clfPath := testutil.WriteToyArtifacts(t, dir)

	env := cliEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		outputDir:  filepath.Join(dir, "FilteredOutput"),
		uploadsDir: filepath.Join(dir, "Uploads"),
	}
	yaml := fmt.Sprintf(`storage:
  uploads_dir: %q
  output_dir: %q
database:
  path: %q
model:
  vectorizer_path: %q
  classifier_path: %q
logging:
  level: error
`, env.uploadsDir, env.outputDir, filepath.Join(dir, "sieve.db"), vecPath, clfPath)
	require.NoError(t, os.WriteFile(env.configPath, []byte(yaml), 0600))
	return env
}

// run executes the root command and returns stdout and stderr.
func (e cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (e cliEnv) predict(t *testing.T, file, out string, cols model.ColumnSelection) (string, string, error) {
	t.Helper()
	return e.run(t, "predict", file,
		"--quiet",
		"--rows", "0",
		"--description", strconv.Itoa(cols.Description),
		"--ref-no", strconv.Itoa(cols.RefNo),
		"--credit", strconv.Itoa(cols.Credit),
		"--out="+out,
	)
}

func TestCLI(t *testing.T) {
	env := newCLIEnv(t)

	ledger := filepath.Join(env.dir, "ledger.xlsx")
	require.NoError(t, os.WriteFile(ledger, ledgers.NewBuilder(t).WithFixture(ledgers.FixtureMixed).XLSX(), 0600))

	t.Run("predict classifies and copies the filtered workbook", func(t *testing.T) {
		out := filepath.Join(env.dir, "copy.xlsx")
		stdout, _, err := env.predict(t, ledger, out, ledgers.DefaultSelection)
		require.NoError(t, err)

		assert.Contains(t, stdout, "Rows matched: 2")
		assert.Contains(t, stdout, "Total credit: 15.50")
		assert.Contains(t, stdout, "Filtered rows written to")

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		filtered, err := spreadsheet.NewRegistry().Decode("copy.xlsx", data)
		require.NoError(t, err)
		assert.Equal(t, 2, filtered.Len())

		assert.FileExists(t, filepath.Join(env.outputDir, "filtered_data.xlsx"))
		assert.FileExists(t, filepath.Join(env.uploadsDir, "ledger.xlsx"))
	})

	t.Run("runs lists the recorded run", func(t *testing.T) {
		stdout, _, err := env.run(t, "runs", "--limit", "5")
		require.NoError(t, err)
		assert.Contains(t, stdout, "ledger.xlsx")
		assert.Contains(t, stdout, "15.50")
	})

	t.Run("runs rejects a non-positive limit", func(t *testing.T) {
		_, _, err := env.run(t, "runs", "--limit", "0")
		assert.Error(t, err)
	})

	t.Run("predict reports validation problems", func(t *testing.T) {
		cols := ledgers.DefaultSelection
		cols.Credit = 9
		_, stderr, err := env.predict(t, ledger, "", cols)

		var validation *common.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.ErrorIs(t, err, common.ErrColumnOutOfRange)
		assert.Contains(t, stderr, "out of range")
	})

	t.Run("predict fails on a missing file", func(t *testing.T) {
		_, _, err := env.predict(t, filepath.Join(env.dir, "nope.xlsx"), "", ledgers.DefaultSelection)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("migrate reports status", func(t *testing.T) {
		_, _, err := env.run(t, "migrate", "--status=true")
		assert.NoError(t, err)
		_, _, err = env.run(t, "migrate", "--status=false")
		assert.NoError(t, err)
	})
}
