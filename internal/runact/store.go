package runact

import (
	"context"
	"database/sql"
	"time"

	"github.com/keegancsmith/sqlf"
	"github.com/runact/runact/internal/errors"

	_ "modernc.org/sqlite" // from https://gitlab.com/cznic/sqlite
)

// Store records finished orchestrations in a local SQLite database for
// 'run-action history'. Orchestration itself never reads from it.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "Open")
	}
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ensureSchema")
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
			repo TEXT NOT NULL,
			workflow TEXT NOT NULL,
			branch TEXT NOT NULL,
			revision TEXT NOT NULL,
			run_url TEXT NOT NULL,
			conclusion TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			duration_ms INTEGER NOT NULL
		);
	`)
	return err
}

type RunRecord struct {
	Repo       string
	Workflow   string
	Branch     string
	Revision   string
	RunURL     string
	Conclusion string
	StartedAt  time.Time
	Duration   time.Duration
}

func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	q := sqlf.Sprintf(
		"INSERT INTO runs(repo, workflow, branch, revision, run_url, conclusion, started_at, duration_ms) VALUES(%v, %v, %v, %v, %v, %v, %v, %v)",
		rec.Repo,
		rec.Workflow,
		rec.Branch,
		rec.Revision,
		rec.RunURL,
		rec.Conclusion,
		rec.StartedAt,
		rec.Duration.Milliseconds(),
	)
	_, err := s.db.ExecContext(ctx, q.Query(sqlf.SimpleBindVar), q.Args()...)
	return err
}

// Runs returns the most recent records, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	q := sqlf.Sprintf(`SELECT repo, workflow, branch, revision, run_url, conclusion, started_at, duration_ms FROM runs ORDER BY started_at DESC LIMIT %v`, limit)

	rows, err := s.db.QueryContext(ctx, q.Query(sqlf.SimpleBindVar), q.Args()...)
	if err != nil {
		return nil, errors.Wrap(err, "QueryContext")
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var durationMS int64
		if err = rows.Scan(&rec.Repo, &rec.Workflow, &rec.Branch, &rec.Revision, &rec.RunURL, &rec.Conclusion, &rec.StartedAt, &durationMS); err != nil {
			return nil, errors.Wrap(err, "Scan")
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
