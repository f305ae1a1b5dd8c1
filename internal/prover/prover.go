// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package prover proves one chunk of candidates against the query and
// decodes the resulting journal.
package prover

import (
	"context"

	"github.com/sigil-dev/vnns/internal/commitment"
	"github.com/sigil-dev/vnns/internal/vector"
	"github.com/sigil-dev/vnns/internal/zkvm"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// ChunkResult is the decoded outcome of proving one chunk.
type ChunkResult struct {
	// Winner is the index of the best sample, relative to the chunk.
	Winner uint32

	// Journal is the decoded public output.
	Journal zkvm.Journal

	// Receipt is the full receipt returned by the engine.
	Receipt *zkvm.Receipt
}

// Prover proves chunks against a fixed program identity.
type Prover struct {
	engine  zkvm.Engine
	program zkvm.ProgramID
}

// New creates a Prover bound to engine and program.
func New(engine zkvm.Engine, program zkvm.ProgramID) *Prover {
	return &Prover{engine: engine, program: program}
}

// Engine returns the engine the prover delegates to.
func (p *Prover) Engine() zkvm.Engine {
	return p.engine
}

// Program returns the program identity proofs are produced for.
func (p *Prover) Program() zkvm.ProgramID {
	return p.program
}

// ProveChunk runs one proving call over chunk and query. Engine failures and
// journals that break the protocol are returned as proving errors; nothing
// is retried.
func (p *Prover) ProveChunk(ctx context.Context, chunk vector.SampleSet, query vector.Vector) (*ChunkResult, error) {
	receipt, err := p.engine.Prove(ctx, p.program, zkvm.Input{Samples: chunk, Query: query})
	if err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeProvingEngineFailure, "proving chunk",
			vnnserr.FieldBackend(p.engine.Name()), vnnserr.Field("chunk_size", len(chunk)))
	}
	if receipt == nil {
		return nil, vnnserr.New(vnnserr.CodeProvingEngineFailure, "engine returned no receipt",
			vnnserr.FieldBackend(p.engine.Name()))
	}

	journal, err := receipt.DecodedJournal()
	if err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeProvingJournalInvalid, "decoding chunk journal")
	}
	if err := CheckJournal(journal, chunk, query); err != nil {
		return nil, err
	}

	return &ChunkResult{
		Winner:  journal.WinnerIndex,
		Journal: journal,
		Receipt: receipt,
	}, nil
}

// CheckJournal confirms that a journal's commitments bind to chunk and
// query and that its winner index lies inside the chunk.
func CheckJournal(j zkvm.Journal, chunk vector.SampleSet, query vector.Vector) error {
	if int(j.WinnerIndex) >= len(chunk) {
		return vnnserr.Errorf(vnnserr.CodeProvingWinnerOutOfRange,
			"winner index %d outside chunk of %d samples", j.WinnerIndex, len(chunk))
	}
	if !j.QueryCommitment.Equal(commitment.OfVector(query)) {
		return vnnserr.New(vnnserr.CodeProvingCommitmentMismatch, "journal query commitment does not match the query")
	}
	if !j.SamplesCommitment.Equal(commitment.OfSampleSet(chunk)) {
		return vnnserr.New(vnnserr.CodeProvingCommitmentMismatch, "journal samples commitment does not match the chunk")
	}
	if !j.OutputCommitment.Equal(commitment.OfVector(chunk[j.WinnerIndex])) {
		return vnnserr.New(vnnserr.CodeProvingCommitmentMismatch, "journal output commitment does not match the winning sample")
	}
	return nil
}
