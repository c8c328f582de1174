package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "flight_price_data.xlsx", cfg.Data.TrainPath)
	assert.Equal(t, "Test_set.xlsx", cfg.Data.TestPath)
	assert.Equal(t, 0.2, cfg.Model.TestSize)
	assert.Equal(t, int64(42), cfg.Model.Seed)
	assert.Equal(t, "baseline", cfg.Model.Persist)
	assert.True(t, cfg.Search.Enabled)
	assert.Equal(t, 10, cfg.Search.NIter)
	assert.Equal(t, 5, cfg.Search.Folds)
	assert.Len(t, cfg.Search.NEstimators, 12)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data:
  train_path: data/train.csv
  sheet: Sheet2
  test_sheet: Scoring
model:
  persist: tuned
  test_size: 0.25
  n_jobs: 2
search:
  n_iter: 3
  folds: 3
  max_depth: [4, 8]
fetch:
  timeout: 5s
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "data/train.csv", cfg.Data.TrainPath)
	assert.Equal(t, "Test_set.xlsx", cfg.Data.TestPath, "unset keys keep their defaults")
	assert.Equal(t, "Sheet2", cfg.Data.Sheet)
	assert.Equal(t, "Scoring", cfg.Data.TestSheet)
	assert.Equal(t, "tuned", cfg.Model.Persist)
	assert.Equal(t, 0.25, cfg.Model.TestSize)
	assert.Equal(t, 2, cfg.Model.NJobs)
	assert.Equal(t, []int{4, 8}, cfg.Search.MaxDepth)
	assert.Equal(t, []string{"auto", "sqrt"}, cfg.Search.MaxFeatures)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FAREPRICE_TRAIN_PATH", "env_train.xlsx")
	t.Setenv("FAREPRICE_DB_ENABLED", "true")
	t.Setenv("FAREPRICE_DB_PASSWORD", "s3cret")
	t.Setenv("FAREPRICE_N_JOBS", "4")
	t.Setenv("FAREPRICE_TEST_SHEET", "Scoring")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env_train.xlsx", cfg.Data.TrainPath)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, 4, cfg.Model.NJobs)
	assert.Equal(t, "Scoring", cfg.Data.TestSheet)

	t.Setenv("FAREPRICE_N_JOBS", "many")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
	}{
		{"test size", "model:\n  test_size: 1.5\n"},
		{"persist", "model:\n  persist: latest\n"},
		{"tuned without search", "model:\n  persist: tuned\nsearch:\n  enabled: false\n"},
		{"folds", "search:\n  folds: 1\n"},
		{"unknown category", "features:\n  unknown_category: guess\n"},
		{"log level", "log:\n  level: trace\n"},
		{"timeout", "fetch:\n  timeout: soon\n"},
		{"yaml", "model: [\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "3307", User: "fare", Password: "pw", DBName: "runs"}
	assert.Equal(t, "fare:pw@tcp(db:3307)/runs?parseTime=true", d.DSN())
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load("config.example.yaml")
	require.NoError(t, err)
	def := Default()
	assert.Equal(t, def.Search, cfg.Search)
	assert.Equal(t, def.Model.Seed, cfg.Model.Seed)
	assert.Equal(t, "baseline", cfg.Model.Persist)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
}
