// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package zkvmtest provides a scriptable engine for tests. It executes the
// real guests through the dev backend and lets a test inject failures,
// delays and tampered receipts without any proving cost.
package zkvmtest

import (
	"context"
	"sync"
	"time"

	"github.com/sigil-dev/vnns/internal/zkvm"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// Compile-time interface check.
var _ zkvm.Engine = (*Engine)(nil)

// Engine is a zkvm.Engine test double. Hooks must be set before the engine
// is shared between goroutines.
type Engine struct {
	// FailOn returns a non-nil error to make the Prove call fail.
	FailOn func(in zkvm.Input) error

	// Delay returns how long a Prove call should take.
	Delay func(in zkvm.Input) time.Duration

	// Tamper mutates a receipt before it is returned.
	Tamper func(in zkvm.Input, r *zkvm.Receipt)

	// VerifyErr, when set, is returned by every Verify call.
	VerifyErr error

	inner *zkvm.DevEngine

	mu       sync.Mutex
	proved   []zkvm.Input
	verified int
}

// New returns a fake engine that runs the default guest for program.
func New(program zkvm.ProgramID) (*Engine, error) {
	guests, err := zkvm.DefaultGuests(program)
	if err != nil {
		return nil, err
	}
	return &Engine{inner: zkvm.NewDevEngine(guests, zkvm.Options{})}, nil
}

// Name returns "fake".
func (e *Engine) Name() string {
	return "fake"
}

// Execute delegates to the dev backend.
func (e *Engine) Execute(ctx context.Context, program zkvm.ProgramID, in zkvm.Input) (*zkvm.Session, error) {
	return e.inner.Execute(ctx, program, in)
}

// Prove records the call, applies the hooks and delegates to the dev backend.
func (e *Engine) Prove(ctx context.Context, program zkvm.ProgramID, in zkvm.Input) (*zkvm.Receipt, error) {
	e.mu.Lock()
	e.proved = append(e.proved, in)
	e.mu.Unlock()

	if e.Delay != nil {
		if d := e.Delay(in); d > 0 {
			select {
			case <-ctx.Done():
				return nil, vnnserr.Wrap(ctx.Err(), vnnserr.CodeProvingEngineFailure, "fake proving cancelled")
			case <-time.After(d):
			}
		}
	}
	if e.FailOn != nil {
		if err := e.FailOn(in); err != nil {
			return nil, err
		}
	}

	r, err := e.inner.Prove(ctx, program, in)
	if err != nil {
		return nil, err
	}
	if e.Tamper != nil {
		e.Tamper(in, r)
	}
	return r, nil
}

// Verify delegates to the dev backend unless VerifyErr is set.
func (e *Engine) Verify(receipt *zkvm.Receipt, program zkvm.ProgramID) error {
	e.mu.Lock()
	e.verified++
	e.mu.Unlock()

	if e.VerifyErr != nil {
		return e.VerifyErr
	}
	return e.inner.Verify(receipt, program)
}

// ProveCalls returns the inputs of every Prove call so far.
func (e *Engine) ProveCalls() []zkvm.Input {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]zkvm.Input, len(e.proved))
	copy(out, e.proved)
	return out
}

// VerifyCalls returns how many times Verify ran.
func (e *Engine) VerifyCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.verified
}
