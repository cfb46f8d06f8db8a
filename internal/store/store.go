// Package store persists merge runs and their rows in PostgreSQL.
//
// A run is written in one transaction: the merge_runs row first, then every
// merged row through COPY. Either both land or neither does.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvmerge/internal/config"
	"github.com/JonMunkholm/csvmerge/internal/merge"
)

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("merge run not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS merge_runs (
	id               UUID PRIMARY KEY,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	inputs           TEXT[] NOT NULL,
	columns          TEXT[] NOT NULL,
	rows_written     INTEGER NOT NULL,
	field_mismatches INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS merged_rows (
	run_id  UUID NOT NULL REFERENCES merge_runs(id) ON DELETE CASCADE,
	row_num INTEGER NOT NULL,
	source  TEXT NOT NULL,
	data    JSONB NOT NULL,
	PRIMARY KEY (run_id, row_num)
);
`

// Run is one stored merge.
type Run struct {
	ID              uuid.UUID `json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	Inputs          []string  `json:"inputs"`
	Columns         []string  `json:"columns"`
	RowsWritten     int       `json:"rowsWritten"`
	FieldMismatches int       `json:"fieldMismatches"`
}

// RunFromReport builds the run record for a finished merge.
func RunFromReport(rep *merge.Report) (Run, error) {
	id, err := uuid.Parse(rep.ID)
	if err != nil {
		return Run{}, fmt.Errorf("invalid merge id %q: %w", rep.ID, err)
	}
	inputs := make([]string, len(rep.Inputs))
	for i, in := range rep.Inputs {
		inputs[i] = in.Name
	}
	return Run{
		ID:              id,
		Inputs:          inputs,
		Columns:         append([]string(nil), rep.Columns...),
		RowsWritten:     rep.RowsWritten,
		FieldMismatches: rep.FieldMismatches,
	}, nil
}

// Store wraps a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects using the database config and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(pool), nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun stores run and copies rows in a single transaction. It returns the
// number of rows copied.
func (s *Store) SaveRun(ctx context.Context, run Run, rows pgx.CopyFromSource) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	_, err = tx.Exec(ctx, `
		INSERT INTO merge_runs (id, inputs, columns, rows_written, field_mismatches)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Inputs, run.Columns, run.RowsWritten, run.FieldMismatches,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert merge run: %w", err)
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"merged_rows"},
		[]string{"run_id", "row_num", "source", "data"},
		rows,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy merged rows: %w", err)
	}
	if n != int64(run.RowsWritten) {
		return 0, fmt.Errorf("copied %d rows, report says %d", n, run.RowsWritten)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return n, nil
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	run := &Run{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, created_at, inputs, columns, rows_written, field_mismatches
		FROM merge_runs WHERE id = $1`, id,
	).Scan(&run.ID, &run.CreatedAt, &run.Inputs, &run.Columns, &run.RowsWritten, &run.FieldMismatches)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load merge run: %w", err)
	}
	return run, nil
}
