// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/vnns/internal/config"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
	"github.com/sigil-dev/vnns/pkg/types"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "samples.json", cfg.Input.SamplesPath)
	assert.Equal(t, "query.json", cfg.Input.QueryPath)
	assert.Equal(t, 4, cfg.Tournament.BatchSize)
	assert.Equal(t, 0, cfg.Tournament.Concurrency)
	assert.Equal(t, types.MetricEuclidean, cfg.MetricValue())
	assert.Equal(t, "vnns-nearest", cfg.Program.Name)
	assert.Equal(t, "v1", cfg.Program.Version)
	assert.Equal(t, "dev", cfg.Engine.Backend)
	assert.Equal(t, ".", cfg.Artifacts.Dir)
	assert.Equal(t, []string{"file"}, cfg.Artifacts.Sinks)
	assert.True(t, cfg.Artifacts.Manifest)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "vnns.yaml")

	content := `
tournament:
  batch_size: 8
metric: cosine
engine:
  dev:
    latency: 250ms
artifacts:
  sinks: [file, sqlite]
  ledger_path: /tmp/ledger.db
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Tournament.BatchSize)
	assert.Equal(t, types.MetricCosine, cfg.MetricValue())
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.Dev.Latency)
	assert.Equal(t, []string{"file", "sqlite"}, cfg.Artifacts.Sinks)
	assert.Equal(t, "/tmp/ledger.db", cfg.Artifacts.LedgerPath)
	assert.Equal(t, "samples.json", cfg.Input.SamplesPath)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("VNNS_TOURNAMENT_BATCH_SIZE", "16")
	t.Setenv("VNNS_INPUT_QUERY_PATH", "q.json")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Tournament.BatchSize)
	assert.Equal(t, "q.json", cfg.Input.QueryPath)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, vnnserr.HasCode(err, vnnserr.CodeConfigLoadReadFailure))
	assert.Equal(t, vnnserr.ExitUsage, vnnserr.ExitCode(err))
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "vnns.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("metric: manhattan\n"), 0o644))

	_, err := config.Load(cfgPath)
	require.Error(t, err)
	assert.True(t, vnnserr.IsConfigError(err))
	assert.Contains(t, err.Error(), "metric")
}

func TestFromViper_FlagLikeOverrides(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("tournament.batch_size", 2)
	v.Set("artifacts.dir", "out")

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Tournament.BatchSize)
	assert.Equal(t, "out", cfg.Artifacts.Dir)
}

// validConfig returns a minimal config that passes all validation.
func validConfig() *config.Config {
	return &config.Config{
		Input: config.InputConfig{
			SamplesPath: "samples.json",
			QueryPath:   "query.json",
		},
		Tournament: config.TournamentConfig{BatchSize: 4},
		Metric:     "euclidean",
		Program: config.ProgramConfig{
			Name:    "vnns-nearest",
			Version: "v1",
		},
		Engine: config.EngineConfig{Backend: "dev"},
		Artifacts: config.ArtifactsConfig{
			Dir:   ".",
			Sinks: []string{"file"},
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.Empty(t, validConfig().Validate(), "valid config should produce no validation errors")
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
		key    string
	}{
		{"empty samples path", func(c *config.Config) { c.Input.SamplesPath = " " }, "input.samples_path"},
		{"empty query path", func(c *config.Config) { c.Input.QueryPath = "" }, "input.query_path"},
		{"negative batch size", func(c *config.Config) { c.Tournament.BatchSize = -1 }, "tournament.batch_size"},
		{"negative concurrency", func(c *config.Config) { c.Tournament.Concurrency = -3 }, "tournament.concurrency"},
		{"empty program name", func(c *config.Config) { c.Program.Name = "" }, "program.name"},
		{"empty program version", func(c *config.Config) { c.Program.Version = "" }, "program.version"},
		{"unknown metric", func(c *config.Config) { c.Metric = "hamming" }, "metric"},
		{"unknown backend", func(c *config.Config) { c.Engine.Backend = "risc0" }, "engine.backend"},
		{"negative latency", func(c *config.Config) { c.Engine.Dev.Latency = -time.Second }, "engine.dev.latency"},
		{"empty dir", func(c *config.Config) { c.Artifacts.Dir = "" }, "artifacts.dir"},
		{"no sinks", func(c *config.Config) { c.Artifacts.Sinks = nil }, "artifacts.sinks"},
		{"unknown sink", func(c *config.Config) { c.Artifacts.Sinks = []string{"s3"} }, "artifacts.sinks[0]"},
		{"duplicate sink", func(c *config.Config) { c.Artifacts.Sinks = []string{"file", "file"} }, "artifacts.sinks[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].Error(), tt.key)
			assert.True(t, vnnserr.IsConfigError(errs[0]))
		})
	}
}

func TestValidate_SmallBatchSizeIsDeferred(t *testing.T) {
	// Whether 0 or 1 is acceptable depends on the sample count.
	for _, n := range []int{0, 1} {
		cfg := validConfig()
		cfg.Tournament.BatchSize = n
		assert.Empty(t, cfg.Validate())
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Metric = "nope"
	cfg.Engine.Backend = ""
	cfg.Artifacts.Dir = ""

	assert.Len(t, cfg.Validate(), 3)
}

func TestDefaultConfigYAML_MatchesDefaults(t *testing.T) {
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(config.DefaultConfigYAML, &raw))
	assert.Contains(t, raw, "tournament")

	path := filepath.Join(t.TempDir(), "vnns.yaml")
	require.NoError(t, os.WriteFile(path, config.DefaultConfigYAML, 0o644))
	fromFile, err := config.Load(path)
	require.NoError(t, err)
	defaults, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, defaults, fromFile)
}

func TestWriteDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path, err := config.WriteDefault(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, config.FileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfigYAML, data)

	_, err = config.WriteDefault(dir)
	require.Error(t, err)
	assert.True(t, vnnserr.IsConflict(err))
}

func TestSearchPaths_StartsWithWorkingDirectory(t *testing.T) {
	paths := config.SearchPaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, ".", paths[0])
}
