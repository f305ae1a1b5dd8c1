// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package tournament reduces a sample set to a single proven nearest
// neighbour by proving chunks round after round until one chunk remains.
package tournament

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/sigil-dev/vnns/internal/prover"
	"github.com/sigil-dev/vnns/internal/vector"
	"github.com/sigil-dev/vnns/internal/zkvm"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// DefaultBatchSize is the chunk size used when none is configured.
const DefaultBatchSize = 4

// ChunkProver proves one chunk. *prover.Prover satisfies it.
type ChunkProver interface {
	ProveChunk(ctx context.Context, chunk vector.SampleSet, query vector.Vector) (*prover.ChunkResult, error)
	Engine() zkvm.Engine
	Program() zkvm.ProgramID
}

var _ ChunkProver = (*prover.Prover)(nil)

// Round describes one completed proving round.
type Round struct {
	// Number is 1-based.
	Number int

	// Final is set for the last round, whose receipt has been verified.
	Final bool

	// Entries holds the round's log entries in chunk order.
	Entries []Entry

	// Winners are the chunk winners in chunk order. They are the candidates
	// of the next round.
	Winners vector.SampleSet

	// Positions maps each winner back to its index in the input sample set.
	Positions []int
}

// RoundHook is called once per completed round, in round order. A non-nil
// error aborts the run.
type RoundHook func(ctx context.Context, r Round) error

// Result is the outcome of a successful run.
type Result struct {
	Rounds  []Round
	Entries []Entry

	// Winner is the index committed by the final journal, relative to the
	// final round's candidates.
	Winner uint32

	// WinnerVector is the sample the final journal's output commitment binds.
	WinnerVector vector.Vector

	// GlobalIndex is the winner's index in the input sample set.
	GlobalIndex int
}

// Final returns the verified final entry.
func (r *Result) Final() Entry {
	return r.Entries[len(r.Entries)-1]
}

// Option configures a Controller.
type Option func(*Controller)

// WithBatchSize sets the chunk size.
func WithBatchSize(n int) Option {
	return func(c *Controller) {
		c.batchSize = n
	}
}

// WithConcurrency bounds how many chunks of a round are proved at once.
// Zero or a negative value proves every chunk of a round concurrently.
func WithConcurrency(n int) Option {
	return func(c *Controller) {
		c.concurrency = n
	}
}

// WithRoundHook registers fn to observe completed rounds.
func WithRoundHook(fn RoundHook) Option {
	return func(c *Controller) {
		c.hooks = append(c.hooks, fn)
	}
}

// WithLogger sets the logger used for progress messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller drives the tournament.
type Controller struct {
	prover      ChunkProver
	batchSize   int
	concurrency int
	hooks       []RoundHook
	logger      *slog.Logger
}

// New creates a Controller proving through p.
func New(p ChunkProver, opts ...Option) *Controller {
	c := &Controller{
		prover:    p,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BatchSize returns the configured chunk size.
func (c *Controller) BatchSize() int {
	return c.batchSize
}

// Run proves the nearest neighbour of query among samples. Each
// intermediate round proves its chunks concurrently and waits for all of
// them before the next round starts. The first failing chunk cancels its
// siblings and fails the run; completed rounds have already been handed to
// the round hooks. The final receipt is verified before it is logged.
func (c *Controller) Run(ctx context.Context, samples vector.SampleSet, query vector.Vector) (*Result, error) {
	if err := ValidateBatchSize(c.batchSize, len(samples)); err != nil {
		return nil, err
	}
	if err := vector.Validate(samples, query); err != nil {
		return nil, err
	}

	log := NewLog()
	result := &Result{}

	current := samples
	positions := make([]int, len(samples))
	for i := range positions {
		positions[i] = i
	}

	roundNum := 0
	for len(current) > max(c.batchSize, 1) {
		roundNum++
		round, err := c.runRound(ctx, log, roundNum, current, positions, query)
		if err != nil {
			return nil, err
		}
		if err := c.notify(ctx, round); err != nil {
			return nil, err
		}
		result.Rounds = append(result.Rounds, round)
		current, positions = round.Winners, round.Positions
	}

	roundNum++
	final, err := c.runFinal(ctx, log, roundNum, current, positions, query)
	if err != nil {
		return nil, err
	}
	if err := c.notify(ctx, final); err != nil {
		return nil, err
	}
	result.Rounds = append(result.Rounds, final)

	last := final.Entries[0]
	result.Entries = log.Entries()
	result.Winner = last.Winner
	result.WinnerVector = final.Winners[0].Clone()
	result.GlobalIndex = final.Positions[0]

	c.logger.Info("tournament complete",
		"rounds", roundNum,
		"receipts", log.Len(),
		"winner", result.Winner,
		"global_index", result.GlobalIndex,
	)
	return result, nil
}

func (c *Controller) runRound(ctx context.Context, log *Log, num int, current vector.SampleSet, positions []int, query vector.Vector) (Round, error) {
	chunks := Partition(current, c.batchSize)
	c.logger.Info("proving round", "round", num, "candidates", len(current), "chunks", len(chunks))

	results := make([]*prover.ChunkResult, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for i, chunk := range chunks {
		g.Go(func() error {
			res, err := c.proveChunk(gctx, num, i, chunk, query)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Round{}, err
	}

	round := Round{
		Number:    num,
		Entries:   make([]Entry, 0, len(chunks)),
		Winners:   make(vector.SampleSet, 0, len(chunks)),
		Positions: make([]int, 0, len(chunks)),
	}
	offset := 0
	for i, res := range results {
		w := int(res.Winner)
		entry, err := log.Append(Entry{
			Round:   num,
			Chunk:   i,
			Winner:  res.Winner,
			Journal: res.Journal,
			Receipt: res.Receipt,
		})
		if err != nil {
			return Round{}, err
		}
		round.Entries = append(round.Entries, entry)
		round.Winners = append(round.Winners, chunks[i][w])
		round.Positions = append(round.Positions, positions[offset+w])
		offset += len(chunks[i])
	}
	return round, nil
}

func (c *Controller) runFinal(ctx context.Context, log *Log, num int, current vector.SampleSet, positions []int, query vector.Vector) (Round, error) {
	c.logger.Info("proving final round", "round", num, "candidates", len(current))

	res, err := c.proveChunk(ctx, num, 0, current, query)
	if err != nil {
		return Round{}, err
	}

	engine, program := c.prover.Engine(), c.prover.Program()
	if err := engine.Verify(res.Receipt, program); err != nil {
		return Round{}, vnnserr.Wrap(err, vnnserr.CodeVerificationSealInvalid, "verifying final receipt",
			vnnserr.FieldRound(num), vnnserr.FieldProgram(program.String()), vnnserr.FieldBackend(engine.Name()))
	}

	entry, err := log.Append(Entry{
		Round:   num,
		Chunk:   0,
		Final:   true,
		Winner:  res.Winner,
		Journal: res.Journal,
		Receipt: res.Receipt,
	})
	if err != nil {
		return Round{}, err
	}

	w := int(res.Winner)
	return Round{
		Number:    num,
		Final:     true,
		Entries:   []Entry{entry},
		Winners:   vector.SampleSet{current[w]},
		Positions: []int{positions[w]},
	}, nil
}

// proveChunk proves one chunk and converts a panic in the engine into a
// proving error.
func (c *Controller) proveChunk(ctx context.Context, round, chunk int, samples vector.SampleSet, query vector.Vector) (res *prover.ChunkResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic while proving chunk",
				"round", round, "chunk", chunk, "panic", r, "stack", string(debug.Stack()))
			res = nil
			err = vnnserr.New(vnnserr.CodeProvingEngineFailure, fmt.Sprintf("panic while proving: %v", r),
				vnnserr.FieldRound(round), vnnserr.FieldChunk(chunk))
		}
	}()

	c.logger.Debug("proving chunk", "round", round, "chunk", chunk, "size", len(samples))
	res, err = c.prover.ProveChunk(ctx, samples, query)
	if err != nil {
		return nil, vnnserr.With(err, vnnserr.FieldRound(round), vnnserr.FieldChunk(chunk))
	}
	c.logger.Debug("chunk proved", "round", round, "chunk", chunk, "winner", res.Winner)
	return res, nil
}

func (c *Controller) notify(ctx context.Context, r Round) error {
	for _, hook := range c.hooks {
		if err := hook(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
