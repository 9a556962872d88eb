package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panda-miner/internal/formatter"
	"github.com/panda-miner/internal/testutil"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/pprof"
	"github.com/panda-miner/pkg/writer"
)

// execute runs the root command with args and returns what it logged.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Flag variables outlive a single Execute.
	verbose, logFormat = false, "text"
	pprofEnabled, pprofDir, pprofProfiles, pprofCPURate = false, "./pprof", "cpu,heap", 0
	profile, maxK, costModel, timeoutSecs = "", 0, "", 0
	inputFormat, strictParse, maxRowsInput = "", false, 0
	rowNoise, colNoise, outputPath, view, topN = 0, 0, "", formatter.ViewPatterns, formatter.DefaultTopN
	sweepOutput, sweepWorkers = "", 2

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestMineCommand(t *testing.T) {
	input := testutil.WriteFile(t, "groceries.dat", testutil.Groceries)
	output := filepath.Join(t.TempDir(), "out", "groceries.json.zst")

	logs, err := execute(t, "mine", input, "--profile", "quick", "-o", output, "--top", "1")
	require.NoError(t, err)
	assert.Contains(t, logs, "Mining Results")
	assert.Contains(t, logs, "Result written to")

	result, err := writer.ReadFile[*model.MiningResult](output)
	require.NoError(t, err)
	assert.Equal(t, "groceries.dat", result.Dataset.Name)
	assert.Equal(t, 6, result.Dataset.Transactions)
	assert.NotEmpty(t, result.Patterns)
	assert.Equal(t, 10, result.Params.MaxK)
	assert.Less(t, result.FinalCost, result.InitialCost)
}

func TestMineCommand_Errors(t *testing.T) {
	input := testutil.WriteFile(t, "groceries.dat", testutil.Groceries)

	t.Run("MissingDataset", func(t *testing.T) {
		_, err := execute(t, "mine", filepath.Join(t.TempDir(), "missing.dat"))
		assert.ErrorContains(t, err, "NOT_FOUND")
	})

	t.Run("InvalidView", func(t *testing.T) {
		_, err := execute(t, "mine", input, "--view", "graph")
		assert.ErrorContains(t, err, "invalid view")
	})

	t.Run("InvalidNoise", func(t *testing.T) {
		_, err := execute(t, "mine", input, "--row-noise", "1.5")
		assert.ErrorContains(t, err, "INVALID_INPUT")
	})

	t.Run("NoArgs", func(t *testing.T) {
		_, err := execute(t, "mine")
		assert.Error(t, err)
	})
}

func TestMineCommand_EmptyDataset(t *testing.T) {
	input := testutil.WriteFile(t, "empty.dat", "# nothing here\n\n")

	logs, err := execute(t, "mine", input)
	require.NoError(t, err)
	assert.Contains(t, logs, "Nothing to mine")
}

func TestMineCommand_Pprof(t *testing.T) {
	input := testutil.WriteFile(t, "groceries.dat", testutil.Groceries)
	dir := filepath.Join(t.TempDir(), "profiles")

	logs, err := execute(t, "mine", input, "--view", "summary",
		"--pprof", "--pprof-dir", dir, "--pprof-profiles", "heap,goroutine")
	require.NoError(t, err)
	assert.Contains(t, logs, "pprof data saved to")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Nil(t, pprofSession)
}

func TestSweepCommand(t *testing.T) {
	input := testutil.WriteFile(t, "groceries.dat", testutil.Groceries)
	output := filepath.Join(t.TempDir(), "sweep.json")

	logs, err := execute(t, "sweep", input, "--row-noise", "0,0.2", "--col-noise", "0", "--max-k", "3", "-o", output)
	require.NoError(t, err)
	assert.Contains(t, logs, "Parameter Sweep")

	result, err := writer.ReadFile[*model.SweepResult](output)
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	best, ok := result.Best()
	require.True(t, ok)
	assert.Equal(t, result.Entries[0], best)
}

func TestBuildPprofConfig(t *testing.T) {
	pprofDir, pprofProfiles, pprofCPURate = "/tmp/panda-pprof", "cpu,allocs", 250
	cfg, err := buildPprofConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/panda-pprof", cfg.OutputDir)
	assert.Equal(t, []pprof.ProfileType{pprof.ProfileCPU, pprof.ProfileAllocs}, cfg.Profiles)
	assert.Equal(t, 250, cfg.CPURate)

	pprofProfiles = "cpu,threads"
	_, err = buildPprofConfig()
	assert.Error(t, err)

	pprofProfiles, pprofDir = "cpu", ""
	_, err = buildPprofConfig()
	assert.Error(t, err)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger())
	assert.NotEmpty(t, BinName())
}
