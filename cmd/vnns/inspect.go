// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/vnns/internal/artifact"
	ledgerdb "github.com/sigil-dev/vnns/internal/artifact/sqlite"
	"github.com/sigil-dev/vnns/internal/commitment"
	"github.com/sigil-dev/vnns/internal/config"
	"github.com/sigil-dev/vnns/internal/vector"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

func newInspectCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [dir]",
		Short: "Show a proving run's manifest and ledger",
		Long: "Read manifest.yaml from dir (default: the configured artifact directory), list the\n" +
			"run's artifacts, and cross-check them against the SQLite ledger when one exists.\n" +
			"With --rank-query, round winners stored in the ledger are listed nearest first.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			dir := cfg.Artifacts.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			ledger, _ := cmd.Flags().GetString("ledger")
			if ledger == "" {
				ledger = ledgerPath(cfg, dir)
			}
			rankQuery, _ := cmd.Flags().GetString("rank-query")
			return inspect(cmd.Context(), cmd.OutOrStdout(), dir, ledger, rankQuery)
		},
	}
	cmd.Flags().String("ledger", "", "ledger database to cross-check (default: <dir>/"+defaultLedgerName+")")
	cmd.Flags().String("rank-query", "", "query JSON file to rank the ledger's round winners against")
	return cmd
}

func inspect(ctx context.Context, out io.Writer, dir, ledgerFile, rankQuery string) error {
	m, err := artifact.LoadManifest(filepath.Join(dir, artifact.ManifestFileName))
	if err != nil {
		return err
	}

	lines := []string{
		fmt.Sprintf("Run:        %s (%s)", m.RunID, m.CreatedAt.Format("2006-01-02 15:04:05Z07:00")),
		fmt.Sprintf("Program:    %s@%s/%s (image id %s)", m.Program.Name, m.Program.Version, m.Program.Metric, m.Program.ImageID),
		fmt.Sprintf("Engine:     %s", m.Engine),
		fmt.Sprintf("Samples:    %d (batch size %d, %d rounds)", m.Samples, m.BatchSize, m.Rounds),
		fmt.Sprintf("Closest:    index %d (final winner %d, output %s)", m.GlobalIndex, m.Winner, m.Commitments.Output),
	}
	for _, r := range m.Artifacts {
		kind := fmt.Sprintf("round %d chunk %d", r.Round, r.Chunk)
		if r.Final {
			kind = fmt.Sprintf("round %d final", r.Round)
		}
		lines = append(lines, fmt.Sprintf("  #%d %s: %s", r.Index, kind, r.Location))
	}
	if err := writeLines(out, lines); err != nil {
		return err
	}

	if _, err := os.Stat(ledgerFile); err != nil {
		if rankQuery != "" {
			return vnnserr.Wrap(err, vnnserr.CodeArtifactReadFailure, "ranking winners needs a ledger",
				vnnserr.FieldPath(ledgerFile))
		}
		return writeLine(out, "Ledger:     none")
	}

	l, err := ledgerdb.Open(ledgerFile, m.RunID)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	rows, err := l.Artifacts(ctx, m.RunID)
	if err != nil {
		return err
	}
	if err := checkLedger(m, rows); err != nil {
		return vnnserr.With(err, vnnserr.FieldPath(ledgerFile))
	}
	if err := writeLine(out, fmt.Sprintf("Ledger:     %d artifacts match the manifest", len(rows))); err != nil {
		return err
	}

	if rankQuery == "" {
		return nil
	}
	query, err := vector.LoadQuery(rankQuery)
	if err != nil {
		return err
	}
	if got := commitment.OfVector(query).String(); got != m.Commitments.Query {
		return vnnserr.New(vnnserr.CodeVerificationResultMismatch,
			"query does not match the run's query commitment", vnnserr.FieldPath(rankQuery))
	}
	winners, err := l.Winners(ctx, m.RunID, query)
	if err != nil {
		return err
	}
	lines = lines[:0]
	lines = append(lines, "Round winners by L2 distance:")
	for _, w := range winners {
		lines = append(lines, fmt.Sprintf("  round %d position %d: %v (%.4f)", w.Round, w.Position, []float32(w.Vector), w.Distance))
	}
	return writeLines(out, lines)
}

// checkLedger reports whether the ledger holds exactly the manifest's
// artifacts, in order.
func checkLedger(m *artifact.Manifest, rows []ledgerdb.Row) error {
	if len(rows) != len(m.Artifacts) {
		return vnnserr.Errorf(vnnserr.CodeVerificationResultMismatch,
			"ledger holds %d artifacts for run %s, manifest lists %d", len(rows), m.RunID, len(m.Artifacts))
	}
	for i, r := range rows {
		rec := m.Artifacts[i]
		if r.Seq != rec.Index || r.Round != rec.Round || r.Chunk != rec.Chunk || r.Final != rec.Final {
			return vnnserr.Errorf(vnnserr.CodeVerificationResultMismatch,
				"ledger artifact %d (round %d chunk %d) disagrees with manifest entry #%d", r.Seq, r.Round, r.Chunk, rec.Index)
		}
		if r.Artifact.ImageID != m.Program.ImageID {
			return vnnserr.Errorf(vnnserr.CodeVerificationImageMismatch,
				"ledger artifact %d has image id %s, manifest expects %s", r.Seq, r.Artifact.ImageID, m.Program.ImageID)
		}
	}
	return nil
}

func writeLines(out io.Writer, lines []string) error {
	for _, line := range lines {
		if err := writeLine(out, line); err != nil {
			return err
		}
	}
	return nil
}
