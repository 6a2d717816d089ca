package smokerun

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // SQLite driver
)

// pragmas are part of the DSN, so every pooled connection gets them.
const pragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

const schema = `
CREATE TABLE IF NOT EXISTS smoke_runs (
	id         TEXT PRIMARY KEY,
	scenario   TEXT NOT NULL,
	target     TEXT NOT NULL,
	endpoint   TEXT NOT NULL,
	started_at TEXT NOT NULL,
	elapsed_ns INTEGER NOT NULL,
	status     TEXT NOT NULL,
	failure    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS smoke_runs_started_at ON smoke_runs (started_at);
`

// SQLiteRepo keeps runs in a local SQLite database.
type SQLiteRepo struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(path); dir != "" {
		err := os.MkdirAll(dir, 0o755)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create database directory")
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?"+pragmas)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}

	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) Create(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO smoke_runs (id, scenario, target, endpoint, started_at, elapsed_ns, status, failure)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, run.Target, run.Endpoint,
		formatTime(run.StartedAt), int64(run.Elapsed), string(run.Status), run.Failure,
	)
	if err != nil {
		return errors.Wrap(err, "insert failed")
	}

	return nil
}

func (r *SQLiteRepo) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, scenario, target, endpoint, started_at, elapsed_ns, status, failure
		 FROM smoke_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return run, nil
}

func (r *SQLiteRepo) List(ctx context.Context, after time.Time, before time.Time) ([]*Run, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, scenario, target, endpoint, started_at, elapsed_ns, status, failure
		 FROM smoke_runs WHERE started_at >= ? AND started_at <= ?
		 ORDER BY started_at`,
		formatTime(after), formatTime(before))
	if err != nil {
		return nil, errors.Wrap(err, "select failed")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, errors.Wrap(rows.Err(), "rows iteration failed")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var startedAt string
	var elapsed int64
	var status string

	err := s.Scan(&run.ID, &run.Scenario, &run.Target, &run.Endpoint, &startedAt, &elapsed, &status, &run.Failure)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan failed")
	}

	run.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid started_at %q", startedAt)
	}
	run.Elapsed = time.Duration(elapsed)
	run.Status = Status(status)

	return &run, nil
}
