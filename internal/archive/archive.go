// Package archive persists batch runs to SQLite so past extractions and
// timelines can be inspected without re-running the solver. Archiving is
// optional; the pipeline's files of record stay the NDJSON outputs.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/warp-metrics/curvetrace/internal/models"
)

// Run kinds stored in the archive.
const (
	RunKindExtract  = "extract"
	RunKindTimeline = "timeline"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	input_path  TEXT NOT NULL,
	output_path TEXT NOT NULL,
	records     INTEGER NOT NULL,
	failures    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS diagnostics (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	idx        INTEGER NOT NULL,
	parameters TEXT NOT NULL,
	max_r      REAL NOT NULL,
	peak_r2    REAL NOT NULL,
	violations TEXT NOT NULL,
	PRIMARY KEY (run_id, idx)
);

CREATE TABLE IF NOT EXISTS events (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	idx       INTEGER NOT NULL,
	kind      TEXT NOT NULL,
	time      REAL NOT NULL,
	params    TEXT NOT NULL,
	magnitude REAL NOT NULL,
	PRIMARY KEY (run_id, idx)
);

CREATE TABLE IF NOT EXISTS extraction_failures (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	idx        INTEGER NOT NULL,
	parameters TEXT NOT NULL,
	kind       TEXT NOT NULL,
	message    TEXT NOT NULL,
	PRIMARY KEY (run_id, idx)
);
`

// Archive is a SQLite-backed run archive.
type Archive struct {
	db   *sql.DB
	path string
}

// Run summarizes one archived batch run.
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	CreatedAt  time.Time `json:"created_at"`
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path"`
	Records    int       `json:"records"`
	Failures   int       `json:"failures"`
}

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing archive schema: %w", err)
	}

	return &Archive{db: db, path: path}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// RecordExtraction archives one extraction batch and returns its run ID.
func (a *Archive) RecordExtraction(ctx context.Context, inputPath, outputPath string, diagnostics []models.DiagnosticRecord, failures []models.ExtractionFailure) (string, error) {
	runID := uuid.NewString()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting archive transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, created_at, input_path, output_path, records, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, RunKindExtract, time.Now().UTC().Format(time.RFC3339), inputPath, outputPath,
		len(diagnostics)+len(failures), len(failures)); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for i, d := range diagnostics {
		params, _ := json.Marshal(d.Parameters)
		violations, _ := json.Marshal(d.Violations)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO diagnostics (run_id, idx, parameters, max_r, peak_r2, violations)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, i, string(params), d.MaxR, d.PeakR2, string(violations)); err != nil {
			return "", fmt.Errorf("inserting diagnostic %d: %w", i, err)
		}
	}

	for i, f := range failures {
		params, _ := json.Marshal(f.Parameters)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO extraction_failures (run_id, idx, parameters, kind, message)
			VALUES (?, ?, ?, ?, ?)
		`, runID, i, string(params), string(f.Kind), f.Message); err != nil {
			return "", fmt.Errorf("inserting failure %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing archive transaction: %w", err)
	}

	return runID, nil
}

// RecordTimeline archives one assembled timeline and returns its run ID.
func (a *Archive) RecordTimeline(ctx context.Context, inputPath, outputPath string, tl models.Timeline) (string, error) {
	runID := uuid.NewString()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting archive transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, created_at, input_path, output_path, records, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, RunKindTimeline, time.Now().UTC().Format(time.RFC3339), inputPath, outputPath,
		len(tl), 0); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for i, ev := range tl {
		params, _ := json.Marshal(ev.Params)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (run_id, idx, kind, time, params, magnitude)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, i, string(ev.Kind), ev.Time, string(params), ev.Magnitude); err != nil {
			return "", fmt.Errorf("inserting event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing archive transaction: %w", err)
	}

	return runID, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns
// all runs.
func (a *Archive) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, kind, created_at, input_path, output_path, records, failures
		FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Kind, &createdAt, &r.InputPath, &r.OutputPath, &r.Records, &r.Failures); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			r.CreatedAt = ts
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}
