// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package types

import (
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// RunMode selects what a vnns invocation does with its inputs.
type RunMode string

const (
	// RunModeExecute runs the guest once over every sample without proving.
	RunModeExecute RunMode = "execute"
	// RunModeProve runs the full proving tournament.
	RunModeProve RunMode = "prove"
)

// Valid reports whether m is a known run mode.
func (m RunMode) Valid() bool {
	switch m {
	case RunModeExecute, RunModeProve:
		return true
	default:
		return false
	}
}

// ResolveRunMode turns the two mutually exclusive CLI switches into a
// RunMode. Exactly one of execute and prove must be set.
func ResolveRunMode(execute, prove bool) (RunMode, error) {
	switch {
	case execute && prove:
		return "", vnnserr.New(vnnserr.CodeConfigModeInvalid, "only one of --execute or --prove may be set")
	case execute:
		return RunModeExecute, nil
	case prove:
		return RunModeProve, nil
	default:
		return "", vnnserr.New(vnnserr.CodeConfigModeInvalid, "you must specify either --execute or --prove")
	}
}
