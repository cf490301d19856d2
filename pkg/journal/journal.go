// Package journal keeps a local sqlite record of installer runs so an
// operator can see what a previous attempt did and where it stopped.
// A nil *Journal is valid and records nothing.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"pdsinstall/pkg/model"
)

const schema = `CREATE TABLE IF NOT EXISTS steps(run_id TEXT, step TEXT, status TEXT, detail TEXT, ts INTEGER);
CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id);`

// Journal appends step records for one run.
type Journal struct {
	db    *sql.DB
	runID string
}

// Open creates the database file and schema if needed and starts a new run.
func Open(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("journal mkdir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &Journal{db: db, runID: uuid.NewString()}, nil
}

// RunID identifies the current run.
func (j *Journal) RunID() string {
	if j == nil {
		return ""
	}
	return j.runID
}

// Record appends a step. Write errors are returned for logging only.
func (j *Journal) Record(ctx context.Context, step, status, detail string) error {
	if j == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := j.db.ExecContext(ctx, `INSERT INTO steps(run_id, step, status, detail, ts) VALUES(?,?,?,?,?)`,
		j.runID, step, status, detail, time.Now().UnixNano())
	return err
}

// Recent returns up to limit records across all runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]model.StepRecord, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, step, status, detail, ts FROM steps ORDER BY ts DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.StepRecord
	for rows.Next() {
		var (
			r  model.StepRecord
			ts int64
		)
		if err := rows.Scan(&r.RunID, &r.Name, &r.Status, &r.Detail, &ts); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(0, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
