// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package artifact

import (
	"context"
	"sync"

	"github.com/sigil-dev/vnns/internal/tournament"
	"github.com/sigil-dev/vnns/internal/zkvm"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// Record is one persisted artifact.
type Record struct {
	Index    int    `yaml:"index"`
	Round    int    `yaml:"round"`
	Chunk    int    `yaml:"chunk"`
	Final    bool   `yaml:"final,omitempty"`
	Location string `yaml:"location"`
}

// Recorder serializes the receipts of each completed tournament round and
// hands them to a sink. Its Hook method is a tournament.RoundHook.
type Recorder struct {
	sink    Sink
	program zkvm.ProgramID

	// OnPersist, if set, is called after each artifact is stored.
	OnPersist func(r Record)

	mu      sync.Mutex
	records []Record
}

// NewRecorder returns a Recorder persisting artifacts for program to sink.
func NewRecorder(sink Sink, program zkvm.ProgramID) *Recorder {
	return &Recorder{sink: sink, program: program}
}

// Hook persists every entry of r in chunk order.
func (rec *Recorder) Hook(ctx context.Context, r tournament.Round) error {
	for i, e := range r.Entries {
		art, err := Serialize(e.Receipt, rec.program)
		if err != nil {
			return vnnserr.With(err, vnnserr.FieldRound(e.Round), vnnserr.FieldChunk(e.Chunk))
		}

		meta := Meta{Round: e.Round, Chunk: e.Chunk, Final: e.Final, Winner: e.Winner}
		if i < len(r.Winners) {
			meta.Candidate = r.Winners[i]
		}
		loc, err := rec.sink.Persist(ctx, e.Seq, art, meta)
		if err != nil {
			return vnnserr.With(err, vnnserr.FieldRound(e.Round), vnnserr.FieldChunk(e.Chunk))
		}

		record := Record{Index: e.Seq, Round: e.Round, Chunk: e.Chunk, Final: e.Final, Location: loc}
		rec.mu.Lock()
		rec.records = append(rec.records, record)
		rec.mu.Unlock()
		if rec.OnPersist != nil {
			rec.OnPersist(record)
		}
	}
	return nil
}

// Records returns what has been persisted so far.
func (rec *Recorder) Records() []Record {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]Record, len(rec.records))
	copy(out, rec.records)
	return out
}
