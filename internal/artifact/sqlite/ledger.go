// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package sqlite records proof artifacts and each round's winning samples
// in a SQLite ledger.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/vnns/internal/artifact"
	"github.com/sigil-dev/vnns/internal/vector"
	vnnserr "github.com/sigil-dev/vnns/pkg/errors"
)

// SinkName is the registered name of the ledger sink.
const SinkName = "sqlite"

func init() {
	sqlite_vec.Auto()
	artifact.RegisterSink(SinkName, func(cfg artifact.SinkConfig) (artifact.Sink, error) {
		return Open(cfg.LedgerPath, cfg.RunID)
	})
}

// Compile-time interface check.
var _ artifact.Sink = (*Ledger)(nil)

// Ledger is an artifact sink backed by SQLite. One database may hold many
// runs; rows are keyed by run id.
type Ledger struct {
	db    *sql.DB
	runID string
}

// Row is one stored artifact.
type Row struct {
	RunID     string
	Seq       int
	Round     int
	Chunk     int
	Final     bool
	Winner    uint32
	Artifact  artifact.ProofArtifact
	CreatedAt time.Time
}

// Winner is one stored round winner.
type Winner struct {
	Round    int
	Position int
	Vector   vector.Vector
	Distance float64
}

// Open opens (or creates) the ledger at dbPath for runID.
func Open(dbPath, runID string) (*Ledger, error) {
	if dbPath == "" {
		return nil, vnnserr.New(vnnserr.CodeConfigValidateInvalidValue, "ledger path must not be empty")
	}
	if runID == "" {
		return nil, vnnserr.New(vnnserr.CodeConfigValidateInvalidValue, "ledger requires a run id")
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactLedgerDatabase, "opening ledger", vnnserr.FieldPath(dbPath))
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactLedgerDatabase, "pinging ledger", vnnserr.FieldPath(dbPath))
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactLedgerDatabase, "migrating ledger", vnnserr.FieldPath(dbPath))
	}
	return &Ledger{db: db, runID: runID}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS artifacts (
	run_id     TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	round      INTEGER NOT NULL,
	chunk      INTEGER NOT NULL,
	final      INTEGER NOT NULL DEFAULT 0,
	winner     INTEGER NOT NULL,
	image_id   TEXT NOT NULL,
	journal    TEXT NOT NULL,
	proof      TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_artifacts_round ON artifacts(run_id, round, chunk);

CREATE TABLE IF NOT EXISTS round_winners (
	run_id    TEXT NOT NULL,
	round     INTEGER NOT NULL,
	position  INTEGER NOT NULL,
	embedding BLOB NOT NULL,
	PRIMARY KEY (run_id, round, position)
);
`
	_, err := db.Exec(ddl)
	return err
}

// Name returns "sqlite".
func (l *Ledger) Name() string {
	return SinkName
}

// RunID returns the run this ledger writes to.
func (l *Ledger) RunID() string {
	return l.runID
}

// Persist stores art and, when meta carries it, the winning sample. A row
// that already exists for this run is a conflict; nothing is replaced.
func (l *Ledger) Persist(ctx context.Context, index int, art *artifact.ProofArtifact, meta artifact.Meta) (string, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", vnnserr.Wrap(err, vnnserr.CodeArtifactLedgerDatabase, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	const insertArtifact = `INSERT INTO artifacts (run_id, seq, round, chunk, final, winner, image_id, journal, proof, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, insertArtifact,
		l.runID,
		index,
		meta.Round,
		meta.Chunk,
		meta.Final,
		meta.Winner,
		art.ImageID,
		art.PubInputs,
		art.Proof,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", insertErr(err, "inserting artifact", index)
	}

	if len(meta.Candidate) > 0 {
		blob, err := sqlite_vec.SerializeFloat32(meta.Candidate)
		if err != nil {
			return "", vnnserr.Wrap(err, vnnserr.CodeArtifactEncodeFailure, "serializing winner")
		}
		const insertWinner = `INSERT INTO round_winners (run_id, round, position, embedding) VALUES (?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, insertWinner, l.runID, meta.Round, meta.Chunk, blob); err != nil {
			return "", insertErr(err, "inserting round winner", index)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", vnnserr.Wrap(err, vnnserr.CodeArtifactLedgerDatabase, "committing artifact")
	}
	return location(l.runID, index), nil
}

// Artifacts returns the stored artifacts of runID in sequence order.
func (l *Ledger) Artifacts(ctx context.Context, runID string) ([]Row, error) {
	const q = `SELECT run_id, seq, round, chunk, final, winner, image_id, journal, proof, created_at
FROM artifacts WHERE run_id = ? ORDER BY seq`

	rows, err := l.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactLedgerDatabase, "querying artifacts")
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	for rows.Next() {
		var r Row
		var createdAt string
		if err := rows.Scan(
			&r.RunID,
			&r.Seq,
			&r.Round,
			&r.Chunk,
			&r.Final,
			&r.Winner,
			&r.Artifact.ImageID,
			&r.Artifact.PubInputs,
			&r.Artifact.Proof,
			&createdAt,
		); err != nil {
			return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactLedgerDatabase, "scanning artifact")
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactLedgerDatabase, "iterating artifacts")
	}
	return out, nil
}

// Winners returns the stored winners of runID ordered by their L2 distance
// to query, nearest first. Ties keep round and position order.
func (l *Ledger) Winners(ctx context.Context, runID string, query vector.Vector) ([]Winner, error) {
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactEncodeFailure, "serializing query")
	}

	const q = `SELECT round, position, vec_to_json(embedding), vec_distance_l2(embedding, ?)
FROM round_winners
WHERE run_id = ? AND vec_length(embedding) = ?
ORDER BY 4, round, position`

	rows, err := l.db.QueryContext(ctx, q, blob, runID, len(query))
	if err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactLedgerDatabase, "querying round winners")
	}
	defer func() { _ = rows.Close() }()

	var out []Winner
	for rows.Next() {
		var w Winner
		var raw string
		if err := rows.Scan(&w.Round, &w.Position, &raw, &w.Distance); err != nil {
			return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactLedgerDatabase, "scanning round winner")
		}
		if err := json.Unmarshal([]byte(raw), &w.Vector); err != nil {
			return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactDecodeInvalidFormat, "decoding round winner")
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, vnnserr.Wrap(err, vnnserr.CodeArtifactLedgerDatabase, "iterating round winners")
	}
	return out, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func location(runID string, index int) string {
	return SinkName + "://" + runID + "/" + artifact.FileName(index)
}

func insertErr(err error, msg string, index int) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return vnnserr.Wrap(err, vnnserr.CodeArtifactPersistConflict, msg, vnnserr.Field("seq", index))
	}
	return vnnserr.Wrap(err, vnnserr.CodeArtifactLedgerDatabase, msg, vnnserr.Field("seq", index))
}
