package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mgkmeans"
)

// executeCommand runs a cobra command with args and returns captured output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRunCommand(t *testing.T) {
	out, err := executeCommand(t, "run",
		"--workers", "3",
		"--rows", "300",
		"--cols", "2",
		"--clusters", "3",
		"--parts", "5",
		"--std", "0.3",
		"--delayed",
		"--compression", "lz4",
		"--log-level", "error",
		"--timeout", "30s",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "workers: 3  shards: 5  rows: 300  layout: array")
	assert.Contains(t, out, "centroids (3x2):")
	assert.Contains(t, out, "adjusted rand index:")
	assert.Contains(t, out, "score: -")
}

func TestRunCommand_InvalidFlags(t *testing.T) {
	_, err := executeCommand(t, "run", "--workers", "0", "--log-level", "error")
	assert.Error(t, err)

	_, err = executeCommand(t, "run", "--compression", "brotli", "--log-level", "error")
	assert.Error(t, err)

	_, err = executeCommand(t, "run", "--init", "bogus", "--log-level", "error")
	assert.ErrorIs(t, err, mgkmeans.ErrInvalidParams)

	_, err = executeCommand(t, "run", "extra-arg")
	assert.Error(t, err)
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	addFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New(), newFlags(t), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, 5, p.ClusterCount)
	assert.Equal(t, mgkmeans.InitScalableKMeansPP, p.Init)
}

func TestLoadConfig_Precedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
workers: 6
rows: 500
clusters: 4
max_iterations: 50
timeout: 5s
init: random
`), 0o600))

	t.Setenv("MGKMEANS_ROWS", "700")
	t.Setenv("MGKMEANS_MAX_ITERATIONS", "20")

	cfg, err := loadConfig(viper.New(), newFlags(t, "--clusters", "2"), file)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Workers)        // file
	assert.Equal(t, 700, cfg.Rows)         // env over file
	assert.Equal(t, 20, cfg.MaxIterations) // env over file
	assert.Equal(t, 2, cfg.Clusters)       // flag over file
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "random", cfg.Init)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadConfig(viper.New(), newFlags(t), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadConfig(viper.New(), newFlags(t, "--log-format", "xml", "--rows", "0"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows")
	assert.Contains(t, err.Error(), "log format")
}

func TestSimulate_StoreRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.Rows = 200
	cfg.Cols = 3
	cfg.Clusters = 2
	cfg.Parts = 4
	cfg.Compression = "zstd"
	cfg.Store = t.TempDir()
	cfg.LogLevel = "error"

	report, err := simulate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Shards)
	assert.Equal(t, 200, report.Rows)
	assert.Equal(t, int64(1), report.Stats.FitCount)
	assert.Less(t, report.Stats.MaxDivergence, 1e-5)

	_, err = os.Stat(filepath.Join(cfg.Store, "kmeanssim", "manifest.json"))
	assert.NoError(t, err)

	var buf bytes.Buffer
	report.print(&buf)
	assert.Contains(t, buf.String(), "centroids (2x3):")
}
