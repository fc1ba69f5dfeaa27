package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one build invocation.
type Run struct {
	Seq           int64
	ID            string
	RecipeHash    string
	EngineVersion string
	KeyVersion    string
	WorkDir       string
	Status        string
	Nodes         int
	Failed        int
	Skipped       int
	Cached        int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// BeginRun records the start of a run. Idempotent on run ID.
func (s *Store) BeginRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return fmt.Errorf("begin run: empty run ID")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, recipe_hash, engine_version, key_version, work_dir, status, nodes, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, r.ID, r.RecipeHash, r.EngineVersion, r.KeyVersion, r.WorkDir, RunRunning, r.Nodes, timeText(r.StartedAt))
	if err != nil {
		return fmt.Errorf("begin run %s: %w", r.ID, err)
	}
	return nil
}

// FinishRun records the final status and counters of a run.
func (s *Store) FinishRun(ctx context.Context, r Run) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, failed = ?, skipped = ?, cached = ?, finished_at = ?
		WHERE id = ?
	`, r.Status, r.Failed, r.Skipped, r.Cached, timeText(r.FinishedAt), r.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", r.ID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `seq, id, recipe_hash, engine_version, key_version, work_dir,
	status, nodes, failed, skipped, cached, started_at, COALESCE(finished_at, '')`

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
// A limit of zero or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                 Run
		started, finished string
	)
	if err := row.Scan(&r.Seq, &r.ID, &r.RecipeHash, &r.EngineVersion, &r.KeyVersion, &r.WorkDir,
		&r.Status, &r.Nodes, &r.Failed, &r.Skipped, &r.Cached, &started, &finished); err != nil {
		return Run{}, err
	}
	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	return r, nil
}
