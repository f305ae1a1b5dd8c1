// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sigil-dev/vnns/internal/artifact"
	"github.com/sigil-dev/vnns/internal/config"
	"github.com/sigil-dev/vnns/internal/prover"
	"github.com/sigil-dev/vnns/internal/tournament"
	"github.com/sigil-dev/vnns/internal/vector"
	"github.com/sigil-dev/vnns/internal/zkvm"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
	"github.com/sigil-dev/vnns/pkg/types"
)

// run loads the inputs and dispatches on mode.
func run(ctx context.Context, out io.Writer, cfg *config.Config, mode types.RunMode) error {
	es, err := wireEngine(cfg)
	if err != nil {
		return err
	}

	samples, query, err := vector.Load(cfg.Input.SamplesPath, cfg.Input.QueryPath)
	if err != nil {
		return err
	}
	slog.Debug("inputs loaded",
		"samples", len(samples),
		"dim", samples.Dim(),
		"program", es.program.String(),
		"image_id", es.program.ImageID().String(),
	)

	switch mode {
	case types.RunModeExecute:
		return runExecute(ctx, out, es, samples, query)
	case types.RunModeProve:
		return runProve(ctx, out, cfg, es, samples, query)
	default:
		return vnnserr.Errorf(vnnserr.CodeConfigModeInvalid, "unknown run mode %q", mode)
	}
}

// runExecute runs the guest once over the whole sample set without proving
// and checks its answer against a direct computation.
func runExecute(ctx context.Context, out io.Writer, es *engineSet, samples vector.SampleSet, query vector.Vector) error {
	session, err := es.engine.Execute(ctx, es.program, zkvm.Input{Samples: samples, Query: query})
	if err != nil {
		return vnnserr.Wrap(err, vnnserr.CodeProvingEngineFailure, "executing program",
			vnnserr.FieldBackend(es.engine.Name()))
	}
	journal, err := session.DecodedJournal()
	if err != nil {
		return vnnserr.Wrap(err, vnnserr.CodeProvingJournalInvalid, "decoding journal")
	}
	if err := prover.CheckJournal(journal, samples, query); err != nil {
		return err
	}

	if err := printJournal(out, journal); err != nil {
		return err
	}

	distance, err := vector.Distance(es.program.Metric)
	if err != nil {
		return err
	}
	want, err := vector.Nearest(samples, query, distance)
	if err != nil {
		return err
	}
	if int(journal.WinnerIndex) != want {
		return vnnserr.Errorf(vnnserr.CodeVerificationResultMismatch,
			"program reported index %d, direct computation found %d", journal.WinnerIndex, want)
	}

	return writeLine(out, "Values are correct!")
}

// runProve runs the tournament, persisting each round's artifacts as the
// round completes, and writes the run manifest once the final receipt has
// verified.
func runProve(ctx context.Context, out io.Writer, cfg *config.Config, es *engineSet, samples vector.SampleSet, query vector.Vector) error {
	if err := tournament.ValidateBatchSize(cfg.Tournament.BatchSize, len(samples)); err != nil {
		return err
	}

	runID := artifact.NewRunID()
	sinks, err := wireSinks(cfg, runID)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			slog.Warn("closing artifact sinks", "error", err)
		}
	}()

	rec := artifact.NewRecorder(sinks, es.program)
	rec.OnPersist = func(r artifact.Record) {
		_, _ = fmt.Fprintf(out, "Saved proof %d to %s\n", r.Index, r.Location)
	}

	ctrl := tournament.New(prover.New(es.engine, es.program),
		tournament.WithBatchSize(cfg.Tournament.BatchSize),
		tournament.WithConcurrency(cfg.Tournament.Concurrency),
		tournament.WithLogger(slog.Default().With("run_id", runID)),
		tournament.WithRoundHook(progressHook(out)),
		tournament.WithRoundHook(rec.Hook),
	)

	slog.Info("proving",
		"run_id", runID,
		"samples", len(samples),
		"batch_size", ctrl.BatchSize(),
		"expected_rounds", tournament.ExpectedRounds(len(samples), ctrl.BatchSize()),
	)
	res, err := ctrl.Run(ctx, samples, query)
	if err != nil {
		return err
	}

	if cfg.Artifacts.Manifest {
		m := artifact.BuildManifest(artifact.RunInfo{
			RunID:     runID,
			Program:   es.program,
			Engine:    es.engine.Name(),
			BatchSize: ctrl.BatchSize(),
			Samples:   len(samples),
		}, res, rec.Records())
		path, err := artifact.WriteManifest(cfg.Artifacts.Dir, m)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "Wrote manifest to %s\n", path); err != nil {
			return vnnserr.Wrap(err, vnnserr.CodeCLIOutputFailure, "writing output")
		}
	}

	if _, err := fmt.Fprintf(out, "Closest sample: index %d\n", res.GlobalIndex); err != nil {
		return vnnserr.Wrap(err, vnnserr.CodeCLIOutputFailure, "writing output")
	}
	return writeLine(out, "Successfully generated all proofs!")
}

// progressHook prints each chunk's journal as its round completes.
func progressHook(out io.Writer) tournament.RoundHook {
	return func(_ context.Context, r tournament.Round) error {
		for _, e := range r.Entries {
			var header string
			if e.Final {
				header = "Proved final samples."
			} else {
				header = fmt.Sprintf("Proved round %d chunk %d.", e.Round, e.Chunk)
			}
			if err := writeLine(out, header); err != nil {
				return err
			}
			if err := printJournal(out, e.Journal); err != nil {
				return err
			}
		}
		return nil
	}
}

func printJournal(out io.Writer, j zkvm.Journal) error {
	_, err := fmt.Fprintf(out,
		"Closest index: %d\nQuery Commitment: %s\nSamples Commitment: %s\nOutput Commitment: %s\n",
		j.WinnerIndex, j.QueryCommitment.Hex(), j.SamplesCommitment.Hex(), j.OutputCommitment.Hex())
	if err != nil {
		return vnnserr.Wrap(err, vnnserr.CodeCLIOutputFailure, "writing output")
	}
	return nil
}

func writeLine(out io.Writer, s string) error {
	if _, err := fmt.Fprintln(out, s); err != nil {
		return vnnserr.Wrap(err, vnnserr.CodeCLIOutputFailure, "writing output")
	}
	return nil
}
