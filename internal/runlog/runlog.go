// Package runlog records each ETL run in public.etl_run_log.
package runlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sells-group/appraisal-etl/internal/db"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// DefaultListLimit is used by List when limit is not positive.
const DefaultListLimit = 20

// Entry represents a row in public.etl_run_log.
type Entry struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	Status      string         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	RowsLoaded  int64          `json:"rows_loaded"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Summary is the outcome passed to Complete.
type Summary struct {
	RowsLoaded int64          `json:"rows_loaded"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Log provides read/write access to public.etl_run_log.
type Log struct {
	pool db.Pool
}

// New creates a Log backed by pool.
func New(pool db.Pool) *Log {
	return &Log{pool: pool}
}

// Start records the beginning of a run and returns its generated ID.
func (l *Log) Start(ctx context.Context, source string) (string, error) {
	id := uuid.NewString()
	_, err := l.pool.Exec(ctx,
		`INSERT INTO public.etl_run_log (id, source, status, started_at)
		 VALUES ($1, $2, $3, now())`,
		id, source, StatusRunning,
	)
	if err != nil {
		return "", eris.Wrapf(err, "runlog: start run for %s", source)
	}
	return id, nil
}

// Complete marks a run as finished.
func (l *Log) Complete(ctx context.Context, id string, s *Summary) error {
	var metaJSON []byte
	var rows int64
	if s != nil {
		rows = s.RowsLoaded
		if s.Metadata != nil {
			var err error
			metaJSON, err = json.Marshal(s.Metadata)
			if err != nil {
				return eris.Wrap(err, "runlog: marshal metadata")
			}
		}
	}

	_, err := l.pool.Exec(ctx,
		`UPDATE public.etl_run_log
		 SET status = $1, completed_at = now(), rows_loaded = $2, metadata = $3
		 WHERE id = $4`,
		StatusComplete, rows, metaJSON, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", id)
	}
	return nil
}

// Fail marks a run as failed with an error message.
func (l *Log) Fail(ctx context.Context, id, msg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE public.etl_run_log
		 SET status = $1, completed_at = now(), error = $2
		 WHERE id = $3`,
		StatusFailed, msg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", id)
	}
	return nil
}

// List returns up to limit runs, most recent first.
func (l *Log) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id::text, source, status, started_at, completed_at, rows_loaded, error, metadata
		 FROM public.etl_run_log ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errStr *string
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.Source, &e.Status, &e.StartedAt, &e.CompletedAt, &e.RowsLoaded, &errStr, &metaJSON); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		if metaJSON != nil {
			_ = json.Unmarshal(metaJSON, &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
