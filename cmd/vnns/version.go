// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/vnns/internal/zkvm"
	"github.com/sigil-dev/vnns/pkg/types"
)

// Build-time variables set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build and the bundled guest's image IDs",
		Long: "Print the vnns build, the proving backends compiled in, and the image ID of the\n" +
			"bundled nearest-neighbour guest for every metric. Verifiers pin proofs to these IDs.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if short, _ := cmd.Flags().GetBool("short"); short {
				return writeLine(out, version)
			}

			lines := []string{
				fmt.Sprintf("vnns %s (commit: %s, built: %s, %s)", version, commit, date, runtime.Version()),
				"backends: " + strings.Join(zkvm.Backends(), ", "),
			}
			for _, m := range []types.Metric{types.MetricEuclidean, types.MetricCosine} {
				program := zkvm.ProgramID{Name: zkvm.DefaultProgramName, Version: zkvm.DefaultProgramVersion, Metric: m}
				lines = append(lines, fmt.Sprintf("%s  %s", program, program.ImageID()))
			}
			return writeLines(out, lines)
		},
	}
	cmd.Flags().Bool("short", false, "print only the version number")
	return cmd
}
