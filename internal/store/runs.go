package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is the bookkeeping record of one correction pass.
type Run struct {
	RunID       string  `json:"run_id"`
	Strategy    string  `json:"strategy"`
	Threshold   float64 `json:"threshold"`
	Skip        bool    `json:"skip"`
	IsMC        bool    `json:"is_mc"`
	InputTable  string  `json:"input_table"`
	OutputTable string  `json:"output_table"`
	Suffix      string  `json:"suffix,omitempty"`
	Status      string  `json:"status"`
	Error       string  `json:"error,omitempty"`
	RowsIn      int     `json:"rows_in"`
	RowsOut     int     `json:"rows_out"`
	RowsDropped int     `json:"rows_dropped"`
	StartedAt   int64   `json:"started_at"`
	FinishedAt  int64   `json:"finished_at,omitempty"`
}

// Duration returns the run wall time, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == 0 {
		return 0
	}
	return time.Duration(r.FinishedAt - r.StartedAt)
}

// RecordRun inserts a running run. RunID and StartedAt are filled in when
// empty.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().UnixNano()
	}
	run.Status = StatusRunning

	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO correction_runs (
				run_id, strategy, threshold, skip, is_mc,
				input_table, output_table, suffix, status, started_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Strategy, run.Threshold, run.Skip, run.IsMC,
			run.InputTable, run.OutputTable, run.Suffix, run.Status, run.StartedAt,
		)
		return err
	})
}

// FinishRun stores the counts of a run and marks it complete, or failed
// when runErr is not nil.
func (s *Store) FinishRun(ctx context.Context, run *Run, runErr error) error {
	run.FinishedAt = time.Now().UnixNano()
	run.Status = StatusComplete
	var errText interface{}
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
		errText = run.Error
	}

	return retryOnBusy(func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE correction_runs
			SET status = ?, error = ?, rows_in = ?, rows_out = ?, rows_dropped = ?, finished_at = ?
			WHERE run_id = ?`,
			run.Status, errText, run.RowsIn, run.RowsOut, run.RowsDropped, run.FinishedAt, run.RunID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, run.RunID)
		}
		return nil
	})
}

const runColumns = `run_id, strategy, threshold, skip, is_mc, input_table, output_table,
	suffix, status, error, rows_in, rows_out, rows_dropped, started_at, finished_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r        Run
		errText  sql.NullString
		finished sql.NullInt64
	)
	if err := sc.Scan(&r.RunID, &r.Strategy, &r.Threshold, &r.Skip, &r.IsMC,
		&r.InputTable, &r.OutputTable, &r.Suffix, &r.Status, &errText,
		&r.RowsIn, &r.RowsOut, &r.RowsDropped, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	r.Error = errText.String
	r.FinishedAt = finished.Int64
	return &r, nil
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM correction_runs WHERE run_id = ?", runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	q := "SELECT " + runColumns + " FROM correction_runs ORDER BY started_at DESC"
	var args []interface{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
