// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package zkvm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"time"

	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// DevBackendName is the registry name of the in-process backend.
const DevBackendName = "dev"

// devSealPrefix tags seals produced by the dev backend.
var devSealPrefix = []byte("dev-seal:")

func init() {
	RegisterBackend(DevBackendName, func(guests *GuestRegistry, opts Options) (Engine, error) {
		return NewDevEngine(guests, opts), nil
	})
}

// Compile-time interface check.
var _ Engine = (*DevEngine)(nil)

// DevEngine executes guests in-process and seals the journal with a SHA-256
// binding to the image ID. The seal detects any change to the journal,
// image ID or seal bytes but proves nothing about the execution itself; it
// is the development stand-in for a real proving backend.
type DevEngine struct {
	guests  *GuestRegistry
	latency time.Duration
}

// NewDevEngine creates a dev backend over the given guests.
func NewDevEngine(guests *GuestRegistry, opts Options) *DevEngine {
	return &DevEngine{guests: guests, latency: opts.Latency}
}

// Name returns the backend name.
func (e *DevEngine) Name() string {
	return DevBackendName
}

// Execute runs the guest once and returns its journal.
func (e *DevEngine) Execute(ctx context.Context, program ProgramID, in Input) (*Session, error) {
	journal, err := e.run(ctx, program, in)
	if err != nil {
		return nil, err
	}
	return &Session{ImageID: program.ImageID(), Journal: journal}, nil
}

// Prove runs the guest and seals its journal.
func (e *DevEngine) Prove(ctx context.Context, program ProgramID, in Input) (*Receipt, error) {
	if e.latency > 0 {
		timer := time.NewTimer(e.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, vnnserr.Wrap(ctx.Err(), vnnserr.CodeProvingEngineFailure, "proving cancelled")
		case <-timer.C:
		}
	}

	journal, err := e.run(ctx, program, in)
	if err != nil {
		return nil, err
	}
	id := program.ImageID()
	return &Receipt{
		ImageID: id,
		Seal:    devSeal(id, journal),
		Journal: journal,
	}, nil
}

// Verify recomputes the seal binding for the expected program.
func (e *DevEngine) Verify(receipt *Receipt, program ProgramID) error {
	if receipt == nil {
		return vnnserr.Wrap(ErrNilReceipt, vnnserr.CodeVerificationSealInvalid, "verifying receipt")
	}
	want := program.ImageID()
	if receipt.ImageID != want {
		return vnnserr.Errorf(vnnserr.CodeVerificationImageMismatch,
			"receipt image id %s does not match program %s (%s)", receipt.ImageID, program, want)
	}
	if _, err := DecodeJournal(receipt.Journal); err != nil {
		return vnnserr.Wrap(err, vnnserr.CodeVerificationJournalMismatch, "receipt journal is malformed")
	}
	expected := devSeal(want, receipt.Journal)
	if len(receipt.Seal) != len(expected) || subtle.ConstantTimeCompare(receipt.Seal, expected) != 1 {
		return vnnserr.New(vnnserr.CodeVerificationSealInvalid,
			"seal does not attest to this journal", vnnserr.FieldProgram(program.String()))
	}
	return nil
}

func (e *DevEngine) run(ctx context.Context, program ProgramID, in Input) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeProvingEngineFailure, "execution cancelled")
	}
	guest, err := e.guests.Lookup(program.ImageID())
	if err != nil {
		if errors.Is(err, ErrUnknownProgram) {
			return nil, vnnserr.Wrap(err, vnnserr.CodeProvingProgramNotFound,
				"no guest registered for program", vnnserr.FieldProgram(program.String()))
		}
		return nil, vnnserr.Wrap(err, vnnserr.CodeProvingEngineFailure, "resolving guest")
	}
	journal, err := guest(in)
	if err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeProvingEngineFailure,
			"guest execution failed", vnnserr.FieldProgram(program.String()))
	}
	return journal.Encode(), nil
}

func devSeal(id ImageID, journal []byte) []byte {
	jh := sha256.Sum256(journal)
	binding := sha256.Sum256(append(id[:], jh[:]...))
	return append(bytes.Clone(devSealPrefix), binding[:]...)
}
