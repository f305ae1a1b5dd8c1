// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/vnns/internal/config"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a commented default vnns.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path, err := config.WriteDefault(dir)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path); err != nil {
				return vnnserr.Wrap(err, vnnserr.CodeCLIOutputFailure, "writing output")
			}
			return nil
		},
	}
}
