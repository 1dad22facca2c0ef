package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/pierrec/lz4/v4"
)

type RunStore struct {
	DB *sql.DB
}

func NewRunStore(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// database/sql pools connections; sqlite serializes writers anyway.
	db.SetMaxOpenConns(1)

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			title TEXT,
			phase TEXT,
			state BLOB,
			raw_size INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS runs_owner ON runs (owner, updated_at);`,
		`CREATE TABLE IF NOT EXISTS usage_counts (
			owner TEXT PRIMARY KEY,
			runs INTEGER NOT NULL DEFAULT 0,
			last_run DATETIME
		);`,
	}
	for _, q := range queries {
		_, err = db.Exec(q)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return &RunStore{DB: db}, nil
}

func (s *RunStore) Close() error {
	return s.DB.Close()
}

// SaveRun inserts or replaces a run. The state blob is lz4 compressed.
func (s *RunStore) SaveRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	data, rawSize := compress(run.State)
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	query := `INSERT INTO runs (id, owner, title, phase, state, raw_size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			phase = excluded.phase,
			state = excluded.state,
			raw_size = excluded.raw_size,
			updated_at = excluded.updated_at`
	_, err := s.DB.ExecContext(ctx, query, run.ID, run.Owner, run.Title, run.Phase, data, rawSize, run.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *RunStore) LoadRun(ctx context.Context, id string) (Run, error) {
	query := `SELECT id, owner, title, phase, state, raw_size, created_at, updated_at FROM runs WHERE id = ?`
	var run Run
	var data []byte
	var rawSize int
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&run.ID, &run.Owner, &run.Title, &run.Phase, &data, &rawSize, &run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("load run %s: %w", id, err)
	}
	run.State, err = decompress(data, rawSize)
	if err != nil {
		return Run{}, fmt.Errorf("load run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recently updated runs, without state. An empty
// owner lists every owner's runs.
func (s *RunStore) ListRuns(ctx context.Context, owner string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, owner, title, phase, created_at, updated_at FROM runs
		WHERE (? = '' OR owner = ?)
		ORDER BY updated_at DESC LIMIT ?`
	rows, err := s.DB.QueryContext(ctx, query, owner, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Owner, &r.Title, &r.Phase, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// IncrementUsage counts one more run for owner and returns the new total.
func (s *RunStore) IncrementUsage(ctx context.Context, owner string) (int, error) {
	query := `INSERT INTO usage_counts (owner, runs, last_run) VALUES (?, 1, datetime('now'))
		ON CONFLICT(owner) DO UPDATE SET runs = runs + 1, last_run = datetime('now')`
	if _, err := s.DB.ExecContext(ctx, query, owner); err != nil {
		return 0, fmt.Errorf("increment usage for %s: %w", owner, err)
	}
	return s.RunCount(ctx, owner)
}

func (s *RunStore) RunCount(ctx context.Context, owner string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT runs FROM usage_counts WHERE owner = ?`, owner).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// compress returns the lz4 block and the raw size, or the input and zero
// when it does not compress.
func compress(data []byte) ([]byte, int) {
	if len(data) == 0 {
		return data, 0
	}
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil || n == 0 || n >= len(data) {
		return data, 0
	}
	return buf[:n], len(data)
}

func decompress(data []byte, rawSize int) ([]byte, error) {
	if rawSize == 0 {
		return data, nil
	}
	out := make([]byte, rawSize)
	n, err := lz4.UncompressBlock(data, out)
	if err != nil {
		return nil, fmt.Errorf("decompress state: %w", err)
	}
	return out[:n], nil
}
