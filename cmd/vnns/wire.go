// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"path/filepath"

	"github.com/sigil-dev/vnns/internal/artifact"
	_ "github.com/sigil-dev/vnns/internal/artifact/sqlite" // registers the sqlite sink
	"github.com/sigil-dev/vnns/internal/config"
	"github.com/sigil-dev/vnns/internal/zkvm"
)

// defaultLedgerName is the ledger file used when artifacts.ledger_path is
// unset.
const defaultLedgerName = "vnns-ledger.db"

// engineSet bundles the program identity with the engine that runs it.
type engineSet struct {
	program zkvm.ProgramID
	engine  zkvm.Engine
}

// wireEngine builds the program identity and proving engine from cfg.
func wireEngine(cfg *config.Config) (*engineSet, error) {
	program, err := zkvm.NewProgramID(cfg.Program.Name, cfg.Program.Version, cfg.MetricValue())
	if err != nil {
		return nil, err
	}
	guests, err := zkvm.DefaultGuests(program)
	if err != nil {
		return nil, err
	}
	engine, err := zkvm.NewEngine(cfg.Engine.Backend, guests, zkvm.Options{Latency: cfg.Engine.Dev.Latency})
	if err != nil {
		return nil, err
	}
	return &engineSet{program: program, engine: engine}, nil
}

// wireSinks opens every configured artifact sink for runID.
func wireSinks(cfg *config.Config, runID string) (*artifact.MultiSink, error) {
	return artifact.NewSinks(cfg.Artifacts.Sinks, artifact.SinkConfig{
		Dir:        cfg.Artifacts.Dir,
		LedgerPath: ledgerPath(cfg, cfg.Artifacts.Dir),
		RunID:      runID,
	})
}

// ledgerPath returns the configured ledger file, or the default one inside
// dir.
func ledgerPath(cfg *config.Config, dir string) string {
	if cfg.Artifacts.LedgerPath != "" {
		return cfg.Artifacts.LedgerPath
	}
	return filepath.Join(dir, defaultLedgerName)
}
