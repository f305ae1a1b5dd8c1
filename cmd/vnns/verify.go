// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/vnns/internal/artifact"
	"github.com/sigil-dev/vnns/internal/commitment"
	"github.com/sigil-dev/vnns/internal/config"
	"github.com/sigil-dev/vnns/internal/vector"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <artifact.json>...",
		Short: "Verify proof artifacts against the configured program",
		Long: "Verify decodes each proof artifact, checks that its fields agree with the embedded\n" +
			"receipt and verifies the receipt for the configured program. With --check-query or\n" +
			"--check-samples the journal must also commit to those inputs.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			es, err := wireEngine(cfg)
			if err != nil {
				return err
			}

			var wantQuery, wantSamples *commitment.Commitment
			if p, _ := cmd.Flags().GetString("check-query"); p != "" {
				q, err := vector.LoadQuery(p)
				if err != nil {
					return err
				}
				c := commitment.OfVector(q)
				wantQuery = &c
			}
			if p, _ := cmd.Flags().GetString("check-samples"); p != "" {
				s, err := vector.LoadSamples(p)
				if err != nil {
					return err
				}
				c := commitment.OfSampleSet(s)
				wantSamples = &c
			}

			out := cmd.OutOrStdout()
			for _, path := range args {
				art, err := artifact.Load(path)
				if err != nil {
					return err
				}
				receipt, err := artifact.Deserialize(art)
				if err != nil {
					return vnnserr.With(err, vnnserr.FieldPath(path))
				}
				if err := es.engine.Verify(receipt, es.program); err != nil {
					return vnnserr.With(err, vnnserr.FieldPath(path))
				}
				journal, err := receipt.DecodedJournal()
				if err != nil {
					return vnnserr.Wrap(err, vnnserr.CodeVerificationJournalMismatch, "decoding journal",
						vnnserr.FieldPath(path))
				}
				if wantQuery != nil && !journal.QueryCommitment.Equal(*wantQuery) {
					return vnnserr.New(vnnserr.CodeVerificationResultMismatch,
						"journal does not commit to the given query", vnnserr.FieldPath(path))
				}
				if wantSamples != nil && !journal.SamplesCommitment.Equal(*wantSamples) {
					return vnnserr.New(vnnserr.CodeVerificationResultMismatch,
						"journal does not commit to the given samples", vnnserr.FieldPath(path))
				}

				if _, err := fmt.Fprintf(out, "%s: OK (closest index %d, output %s)\n",
					path, journal.WinnerIndex, journal.OutputCommitment); err != nil {
					return vnnserr.Wrap(err, vnnserr.CodeCLIOutputFailure, "writing output")
				}
			}
			return nil
		},
	}

	cmd.Flags().String("check-query", "", "query JSON file the journals must commit to")
	cmd.Flags().String("check-samples", "", "samples JSON file the journals must commit to")

	return cmd
}
