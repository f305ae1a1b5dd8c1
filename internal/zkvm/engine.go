// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package zkvm

import (
	"context"
	"slices"
	"sync"
	"time"

	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// Engine is the narrow capability vnns needs from a verifiable execution
// backend. Prove is expensive (seconds to minutes per call on a real
// backend) and may be called concurrently.
type Engine interface {
	// Name returns the backend name.
	Name() string

	// Execute runs the program without producing a proof.
	Execute(ctx context.Context, program ProgramID, in Input) (*Session, error)

	// Prove runs the program and returns a receipt attesting to it.
	Prove(ctx context.Context, program ProgramID, in Input) (*Receipt, error)

	// Verify checks that the receipt attests to an execution of program
	// consistent with the receipt's own journal.
	Verify(receipt *Receipt, program ProgramID) error
}

// Options configures a backend at construction.
type Options struct {
	// Latency is an artificial delay added to every Prove call. Only the
	// dev backend honours it.
	Latency time.Duration
}

// Factory creates an engine that executes the registered guests.
type Factory func(guests *GuestRegistry, opts Options) (Engine, error)

var (
	backends   = map[string]Factory{}
	backendsMu sync.RWMutex
)

// RegisterBackend registers a named engine backend. Backend files call this
// from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = f
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewEngine creates the named backend.
func NewEngine(name string, guests *GuestRegistry, opts Options) (Engine, error) {
	backendsMu.RLock()
	f, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, vnnserr.New(vnnserr.CodeConfigBackendUnsupported,
			"unsupported engine backend", vnnserr.FieldBackend(name))
	}
	if guests == nil {
		return nil, vnnserr.New(vnnserr.CodeConfigValidateInvalidValue,
			"engine requires a guest registry", vnnserr.FieldBackend(name))
	}
	return f(guests, opts)
}
