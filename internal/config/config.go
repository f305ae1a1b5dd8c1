// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
	"github.com/sigil-dev/vnns/pkg/types"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VNNS"

// Config is the top-level vnns configuration.
type Config struct {
	Input      InputConfig      `mapstructure:"input"`
	Tournament TournamentConfig `mapstructure:"tournament"`
	Metric     string           `mapstructure:"metric"`
	Program    ProgramConfig    `mapstructure:"program"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Artifacts  ArtifactsConfig  `mapstructure:"artifacts"`
}

// InputConfig locates the sample set and the query.
type InputConfig struct {
	SamplesPath string `mapstructure:"samples_path"`
	QueryPath   string `mapstructure:"query_path"`
}

// TournamentConfig controls chunking and parallelism.
type TournamentConfig struct {
	BatchSize   int `mapstructure:"batch_size"`
	Concurrency int `mapstructure:"concurrency"`
}

// ProgramConfig names the guest program proofs attest to.
type ProgramConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// EngineConfig selects the proving backend.
type EngineConfig struct {
	Backend string          `mapstructure:"backend"`
	Dev     DevEngineConfig `mapstructure:"dev"`
}

// DevEngineConfig tunes the in-process backend.
type DevEngineConfig struct {
	Latency time.Duration `mapstructure:"latency"`
}

// ArtifactsConfig controls where proofs are written.
type ArtifactsConfig struct {
	Dir        string   `mapstructure:"dir"`
	Sinks      []string `mapstructure:"sinks"`
	LedgerPath string   `mapstructure:"ledger_path"`
	Manifest   bool     `mapstructure:"manifest"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input.samples_path", "samples.json")
	v.SetDefault("input.query_path", "query.json")
	v.SetDefault("tournament.batch_size", 4)
	v.SetDefault("tournament.concurrency", 0)
	v.SetDefault("metric", string(types.MetricEuclidean))
	v.SetDefault("program.name", "vnns-nearest")
	v.SetDefault("program.version", "v1")
	v.SetDefault("engine.backend", "dev")
	v.SetDefault("engine.dev.latency", "0s")
	v.SetDefault("artifacts.dir", ".")
	v.SetDefault("artifacts.sinks", []string{"file"})
	v.SetDefault("artifacts.ledger_path", "")
	v.SetDefault("artifacts.manifest", true)
}

// SetupEnv enables VNNS_* environment overrides on v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix VNNS_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, vnnserr.Errorf(vnnserr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, vnnserr.Errorf(vnnserr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one. Whether the batch size can reduce
// a particular sample set is checked when the run starts.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateInput()...)
	errs = append(errs, c.validateTournament()...)
	errs = append(errs, c.validateProgram()...)
	errs = append(errs, c.validateEngine()...)
	errs = append(errs, c.validateArtifacts()...)

	return errs
}

// MetricValue returns the configured metric. Validate guarantees it parses.
func (c *Config) MetricValue() types.Metric {
	m, _ := types.ParseMetric(c.Metric)
	return m
}

func (c *Config) validateInput() []error {
	var errs []error

	if strings.TrimSpace(c.Input.SamplesPath) == "" {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue,
			"config: input.samples_path must not be empty"))
	}
	if strings.TrimSpace(c.Input.QueryPath) == "" {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue,
			"config: input.query_path must not be empty"))
	}

	return errs
}

func (c *Config) validateTournament() []error {
	var errs []error

	if c.Tournament.BatchSize < 0 {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue,
			"config: tournament.batch_size must not be negative, got %d",
			c.Tournament.BatchSize,
		))
	}
	if c.Tournament.Concurrency < 0 {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue,
			"config: tournament.concurrency must not be negative, got %d",
			c.Tournament.Concurrency,
		))
	}

	return errs
}

func (c *Config) validateProgram() []error {
	var errs []error

	if strings.TrimSpace(c.Program.Name) == "" {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue,
			"config: program.name must not be empty"))
	}
	if strings.TrimSpace(c.Program.Version) == "" {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue,
			"config: program.version must not be empty"))
	}
	if _, err := types.ParseMetric(c.Metric); err != nil {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue,
			"config: metric must be one of [euclidean, cosine], got %q", c.Metric))
	}

	return errs
}

func (c *Config) validateEngine() []error {
	var errs []error

	validBackends := map[string]bool{"dev": true}
	if !validBackends[c.Engine.Backend] {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeConfigBackendUnsupported,
			"config: engine.backend must be one of [dev], got %q",
			c.Engine.Backend,
		))
	}
	if c.Engine.Dev.Latency < 0 {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue,
			"config: engine.dev.latency must not be negative, got %s",
			c.Engine.Dev.Latency,
		))
	}

	return errs
}

func (c *Config) validateArtifacts() []error {
	var errs []error

	if strings.TrimSpace(c.Artifacts.Dir) == "" {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue,
			"config: artifacts.dir must not be empty"))
	}

	validSinks := map[string]bool{"file": true, "sqlite": true}
	if len(c.Artifacts.Sinks) == 0 {
		errs = append(errs, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue,
			"config: artifacts.sinks must name at least one sink"))
	}
	seen := map[string]bool{}
	for i, s := range c.Artifacts.Sinks {
		if !validSinks[s] {
			errs = append(errs, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue,
				"config: artifacts.sinks[%d] must be one of [file, sqlite], got %q", i, s))
			continue
		}
		if seen[s] {
			errs = append(errs, vnnserr.Errorf(vnnserr.CodeConfigValidateInvalidValue,
				"config: artifacts.sinks[%d] %q is listed twice", i, s))
		}
		seen[s] = true
	}

	return errs
}
