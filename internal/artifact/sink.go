// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/sigil-dev/vnns/internal/vector"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// FileSinkName is the registered name of the filesystem sink.
const FileSinkName = "file"

// Meta describes where an artifact sits in its run.
type Meta struct {
	Round  int
	Chunk  int
	Final  bool
	Winner uint32

	// Candidate is the sample the receipt's output commitment binds.
	Candidate vector.Vector
}

// Sink persists artifacts. Persist returns a location that identifies the
// stored artifact to a reader.
type Sink interface {
	Name() string
	Persist(ctx context.Context, index int, art *ProofArtifact, meta Meta) (string, error)
	Close() error
}

// SinkConfig carries everything a sink factory may need.
type SinkConfig struct {
	// Dir is the output directory for file-based sinks.
	Dir string

	// LedgerPath is the database file used by ledger sinks.
	LedgerPath string

	// RunID groups the artifacts of one run.
	RunID string
}

// SinkFactory creates a sink.
type SinkFactory func(cfg SinkConfig) (Sink, error)

var (
	sinkFactories = map[string]SinkFactory{}
	sinksMu       sync.RWMutex
)

// RegisterSink registers a named sink backend. Backend packages call this
// from init(). This function is goroutine-safe.
func RegisterSink(name string, f SinkFactory) {
	sinksMu.Lock()
	defer sinksMu.Unlock()
	sinkFactories[name] = f
}

// Sinks lists the registered sink names in sorted order.
func Sinks() []string {
	sinksMu.RLock()
	defer sinksMu.RUnlock()
	names := make([]string, 0, len(sinkFactories))
	for name := range sinkFactories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewSink creates the named sink.
func NewSink(name string, cfg SinkConfig) (Sink, error) {
	sinksMu.RLock()
	f, ok := sinkFactories[name]
	sinksMu.RUnlock()
	if !ok {
		return nil, vnnserr.New(vnnserr.CodeArtifactSinkUnsupported, "unsupported artifact sink",
			vnnserr.Field("sink", name))
	}
	return f(cfg)
}

// NewSinks creates every named sink and fans them out behind one Sink.
// Sinks already opened are closed when a later one fails.
func NewSinks(names []string, cfg SinkConfig) (*MultiSink, error) {
	var sinks []Sink
	for _, name := range names {
		s, err := NewSink(name, cfg)
		if err != nil {
			for _, opened := range sinks {
				_ = opened.Close()
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return NewMultiSink(sinks...), nil
}

func init() {
	RegisterSink(FileSinkName, func(cfg SinkConfig) (Sink, error) {
		return NewFileSink(cfg.Dir)
	})
}

// Compile-time interface checks.
var (
	_ Sink = (*FileSink)(nil)
	_ Sink = (*MultiSink)(nil)
)

// FileSink writes proof_output_{index}.json files into a directory. It
// never overwrites an existing file.
type FileSink struct {
	dir string
}

// NewFileSink creates the output directory if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactPersistFailure, "creating output directory",
			vnnserr.FieldPath(dir))
	}
	return &FileSink{dir: dir}, nil
}

// FileName returns the artifact file name for index.
func FileName(index int) string {
	return fmt.Sprintf("proof_output_%d.json", index)
}

func (s *FileSink) Name() string {
	return FileSinkName
}

// Dir returns the output directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// Persist writes art to its own file.
func (s *FileSink) Persist(_ context.Context, index int, art *ProofArtifact, _ Meta) (string, error) {
	data, err := Marshal(art)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, FileName(index))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", vnnserr.Wrap(err, vnnserr.CodeArtifactPersistConflict, "artifact already exists",
				vnnserr.FieldPath(path))
		}
		return "", vnnserr.Wrap(err, vnnserr.CodeArtifactPersistFailure, "creating artifact", vnnserr.FieldPath(path))
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", vnnserr.Wrap(err, vnnserr.CodeArtifactPersistFailure, "writing artifact", vnnserr.FieldPath(path))
	}
	if err := f.Close(); err != nil {
		return "", vnnserr.Wrap(err, vnnserr.CodeArtifactPersistFailure, "closing artifact", vnnserr.FieldPath(path))
	}
	return path, nil
}

func (s *FileSink) Close() error {
	return nil
}

// MultiSink persists each artifact to every wrapped sink in order and
// reports the first sink's location.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink wraps sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Name() string {
	return "multi"
}

// Persist stops at the first failing sink.
func (m *MultiSink) Persist(ctx context.Context, index int, art *ProofArtifact, meta Meta) (string, error) {
	var primary string
	for i, s := range m.sinks {
		loc, err := s.Persist(ctx, index, art, meta)
		if err != nil {
			return "", vnnserr.With(err, vnnserr.Field("sink", s.Name()))
		}
		if i == 0 {
			primary = loc
		} else {
			slog.Debug("artifact persisted", "sink", s.Name(), "index", index, "location", loc)
		}
	}
	return primary, nil
}

// Close closes every wrapped sink and joins their errors.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
