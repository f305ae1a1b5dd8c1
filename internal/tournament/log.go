// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package tournament

import (
	"sync"

	"github.com/sigil-dev/vnns/internal/zkvm"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// Entry is one receipt in the run's log.
type Entry struct {
	// Seq is the position in the log, starting at zero. Artifacts are
	// numbered by it.
	Seq int

	// Round is the 1-based proving round.
	Round int

	// Chunk is the 0-based chunk position within the round.
	Chunk int

	// Final marks the receipt of the last round.
	Final bool

	// Winner is the chunk-local index committed by the journal.
	Winner uint32

	Journal zkvm.Journal
	Receipt *zkvm.Receipt
}

// Log is an append-only receipt log keyed by (round, chunk). Entries must
// arrive in chunk order within a round and rounds must follow each other
// without gaps. Nothing may follow a final entry.
type Log struct {
	mu      sync.Mutex
	entries []Entry
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds e at the end of the log and returns it with Seq assigned.
func (l *Log) Append(e Entry) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkNext(e); err != nil {
		return Entry{}, err
	}
	e.Seq = len(l.entries)
	l.entries = append(l.entries, e)
	return e, nil
}

func (l *Log) checkNext(e Entry) error {
	if e.Receipt == nil {
		return vnnserr.New(vnnserr.CodeProvingLogAppendConflict, "log entry has no receipt",
			vnnserr.FieldRound(e.Round), vnnserr.FieldChunk(e.Chunk))
	}

	if len(l.entries) == 0 {
		if e.Round != 1 || e.Chunk != 0 {
			return vnnserr.New(vnnserr.CodeProvingLogAppendConflict, "log must start at round 1 chunk 0",
				vnnserr.FieldRound(e.Round), vnnserr.FieldChunk(e.Chunk))
		}
		return nil
	}

	last := l.entries[len(l.entries)-1]
	switch {
	case last.Final:
		return vnnserr.New(vnnserr.CodeProvingLogAppendConflict, "log is closed by a final entry",
			vnnserr.FieldRound(e.Round), vnnserr.FieldChunk(e.Chunk))
	case e.Round == last.Round && e.Chunk == last.Chunk+1:
		return nil
	case e.Round == last.Round+1 && e.Chunk == 0:
		return nil
	default:
		return vnnserr.New(vnnserr.CodeProvingLogAppendConflict, "log entry out of order",
			vnnserr.FieldRound(e.Round), vnnserr.FieldChunk(e.Chunk),
			vnnserr.Field("last_round", last.Round), vnnserr.Field("last_chunk", last.Chunk))
	}
}

// Entries returns a copy of the log.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
