// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/sigil-dev/vnns/internal/artifact"
	"github.com/sigil-dev/vnns/internal/config"
	"github.com/sigil-dev/vnns/internal/vector"
	"github.com/sigil-dev/vnns/internal/zkvm"
)

func newDoctorCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the configuration, the proving engine, the artifact sinks and free space in the output directory.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, v)
		},
	}
}

func runDoctor(cmd *cobra.Command, v *viper.Viper) error {
	w := cmd.OutOrStdout()
	cfg, cfgErr := config.FromViper(v)

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(v, cfgErr) }},
		{"Program", func() string { return checkProgram(cfg) }},
		{"Engine", func() string { return checkEngine(cmd.Context(), cfg) }},
		{"Sinks", func() string { return checkSinks(cfg) }},
		{"Disk Space", func() string { return checkDiskSpace(cfg) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return cfgErr
}

func checkBinary() string {
	return fmt.Sprintf("vnns %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(v *viper.Viper, err error) string {
	if err != nil {
		return fmt.Sprintf("invalid: %s", err)
	}
	if cfgFile := v.ConfigFileUsed(); cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

func checkProgram(cfg *config.Config) string {
	if cfg == nil {
		return "skipped"
	}
	program, err := zkvm.NewProgramID(cfg.Program.Name, cfg.Program.Version, cfg.MetricValue())
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s (image id %s)", program, program.ImageID())
}

// checkEngine proves and verifies a two-sample search on the configured
// backend.
func checkEngine(ctx context.Context, cfg *config.Config) string {
	if cfg == nil {
		return "skipped"
	}
	es, err := wireEngine(cfg)
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}

	start := time.Now()
	receipt, err := es.engine.Prove(ctx, es.program, zkvm.Input{
		Samples: vector.SampleSet{{0, 0}, {1, 1}},
		Query:   vector.Vector{1, 1},
	})
	if err != nil {
		return fmt.Sprintf("%s: prove failed: %s", es.engine.Name(), err)
	}
	if err := es.engine.Verify(receipt, es.program); err != nil {
		return fmt.Sprintf("%s: verify failed: %s", es.engine.Name(), err)
	}
	return fmt.Sprintf("%s ok (prove and verify in %s; backends: %s)",
		es.engine.Name(), time.Since(start).Round(time.Microsecond), strings.Join(zkvm.Backends(), ", "))
}

func checkSinks(cfg *config.Config) string {
	registered := strings.Join(artifact.Sinks(), ", ")
	if cfg == nil {
		return "registered: " + registered
	}
	return fmt.Sprintf("%s (registered: %s)", strings.Join(cfg.Artifacts.Sinks, ", "), registered)
}

func checkDiskSpace(cfg *config.Config) string {
	path := "."
	if cfg != nil {
		path = cfg.Artifacts.Dir
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Fall back to the working directory if the output dir doesn't exist yet.
		path = "."
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available in " + path
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
