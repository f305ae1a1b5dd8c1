// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package zkvm

import (
	"errors"
	"sync"

	"github.com/sigil-dev/vnns/internal/commitment"
	"github.com/sigil-dev/vnns/internal/vector"
)

// Guest errors.
var (
	ErrUnknownProgram = errors.New("zkvm: unknown program")
)

// Input is the structured input pair handed to the guest: one chunk of
// samples and the query.
type Input struct {
	Samples vector.SampleSet
	Query   vector.Vector
}

// Guest is the program body a backend executes. It must evaluate the
// nearest-neighbour function once and emit the journal fields in their
// fixed order.
type Guest func(in Input) (Journal, error)

// NearestNeighbourGuest returns the bundled guest for a distance function.
func NearestNeighbourGuest(distance vector.DistanceFunc) Guest {
	return func(in Input) (Journal, error) {
		idx, err := vector.Nearest(in.Samples, in.Query, distance)
		if err != nil {
			return Journal{}, err
		}
		return Journal{
			WinnerIndex:       uint32(idx),
			QueryCommitment:   commitment.OfVector(in.Query),
			SamplesCommitment: commitment.OfSampleSet(in.Samples),
			OutputCommitment:  commitment.OfVector(in.Samples[idx]),
		}, nil
	}
}

// GuestRegistry maps image IDs to executable guests. It is goroutine-safe.
type GuestRegistry struct {
	mu     sync.RWMutex
	guests map[ImageID]Guest
}

// NewGuestRegistry returns an empty registry.
func NewGuestRegistry() *GuestRegistry {
	return &GuestRegistry{guests: make(map[ImageID]Guest)}
}

// Register binds a guest to a program identity, replacing any previous one.
func (r *GuestRegistry) Register(program ProgramID, g Guest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guests[program.ImageID()] = g
}

// Lookup returns the guest registered for an image ID.
func (r *GuestRegistry) Lookup(id ImageID) (Guest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.guests[id]
	if !ok {
		return nil, ErrUnknownProgram
	}
	return g, nil
}

// DefaultGuests registers the nearest-neighbour guest for program.
func DefaultGuests(program ProgramID) (*GuestRegistry, error) {
	if err := program.Validate(); err != nil {
		return nil, err
	}
	distance, err := vector.Distance(program.Metric)
	if err != nil {
		return nil, err
	}
	reg := NewGuestRegistry()
	reg.Register(program, NearestNeighbourGuest(distance))
	return reg, nil
}
