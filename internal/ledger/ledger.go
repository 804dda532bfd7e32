// Package ledger records harvest runs and their per-portal tallies in a
// local SQLite database.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Status is the lifecycle state of a run.
type Status string

// Run statuses.
const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Run is one recorded harvest.
type Run struct {
	ID          string
	ActionDate  string
	Status      Status
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
	Portals     []PortalRecord
}

// PortalRecord is one portal's outcome within a run.
type PortalRecord struct {
	Portal  string
	Total   int
	Added   int
	Removed int
	Error   string
}

// Ledger stores run history.
type Ledger interface {
	Start(ctx context.Context, actionDate string) (string, error)
	RecordPortal(ctx context.Context, runID string, rec PortalRecord) error
	Complete(ctx context.Context, runID string) error
	Fail(ctx context.Context, runID string, cause error) error
	Recent(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// SQLiteLedger implements Ledger using modernc.org/sqlite.
type SQLiteLedger struct {
	db *sql.DB
}

// Open opens the ledger database at path, configures WAL mode and creates
// the tables.
func Open(ctx context.Context, path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open")
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "ledger: exec %s", pragma)
		}
	}
	l := &SQLiteLedger{db: db}
	if err := l.migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return l, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	action_date  TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	error        TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS portal_status (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	portal  TEXT NOT NULL,
	total   INTEGER NOT NULL,
	added   INTEGER NOT NULL,
	removed INTEGER NOT NULL,
	error   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, portal)
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (l *SQLiteLedger) migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, schema)
	return eris.Wrap(err, "ledger: migrate")
}

// Close closes the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Start inserts a running run and returns its id.
func (l *SQLiteLedger) Start(ctx context.Context, actionDate string) (string, error) {
	id := uuid.New().String()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, action_date, status, started_at) VALUES (?, ?, ?, ?)`,
		id, actionDate, string(StatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "ledger: insert run")
	}
	return id, nil
}

// RecordPortal stores a portal's tally, replacing any earlier record for
// the same portal in the run.
func (l *SQLiteLedger) RecordPortal(ctx context.Context, runID string, rec PortalRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO portal_status (run_id, portal, total, added, removed, error)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, portal) DO UPDATE SET
		   total = excluded.total, added = excluded.added,
		   removed = excluded.removed, error = excluded.error`,
		runID, rec.Portal, rec.Total, rec.Added, rec.Removed, rec.Error,
	)
	return eris.Wrapf(err, "ledger: record portal %s", rec.Portal)
}

// Complete marks a run complete.
func (l *SQLiteLedger) Complete(ctx context.Context, runID string) error {
	return l.finish(ctx, runID, StatusComplete, "")
}

// Fail marks a run failed with cause's message.
func (l *SQLiteLedger) Fail(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return l.finish(ctx, runID, StatusFailed, msg)
}

func (l *SQLiteLedger) finish(ctx context.Context, runID string, status Status, msg string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "ledger: rows affected")
	}
	if n == 0 {
		return eris.Errorf("ledger: run not found: %s", runID)
	}
	return nil
}

// Recent returns up to limit runs, newest first, with their portal records.
func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, action_date, status, error, started_at, completed_at
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: query runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var completed sql.NullTime
		if err := rows.Scan(&r.ID, &r.ActionDate, &status, &r.Error, &r.StartedAt, &completed); err != nil {
			return nil, eris.Wrap(err, "ledger: scan run")
		}
		r.Status = Status(status)
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "ledger: iterate runs")
	}

	for i := range runs {
		recs, err := l.portals(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Portals = recs
	}
	return runs, nil
}

func (l *SQLiteLedger) portals(ctx context.Context, runID string) ([]PortalRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT portal, total, added, removed, error FROM portal_status
		 WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: query portals for %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []PortalRecord
	for rows.Next() {
		var p PortalRecord
		if err := rows.Scan(&p.Portal, &p.Total, &p.Added, &p.Removed, &p.Error); err != nil {
			return nil, eris.Wrap(err, "ledger: scan portal")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "ledger: iterate portals")
}

// Nop is a Ledger that records nothing.
type Nop struct{}

func (Nop) Start(context.Context, string) (string, error) { return "", nil }
func (Nop) RecordPortal(context.Context, string, PortalRecord) error { return nil }
func (Nop) Complete(context.Context, string) error { return nil }
func (Nop) Fail(context.Context, string, error) error { return nil }
func (Nop) Recent(context.Context, int) ([]Run, error) { return nil, nil }
func (Nop) Close() error { return nil }
