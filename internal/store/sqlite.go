package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/pagesift/pagesift/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// seq orders rows by insertion so listings stay stable even when
// created_at values collide.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	url        TEXT NOT NULL,
	selector   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS results (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	job_id     TEXT NOT NULL REFERENCES jobs(id),
	text       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_results_job_id ON results(job_id);
CREATE INDEX IF NOT EXISTS idx_results_job_created ON results(job_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AddJob(ctx context.Context, url, selector string) (*model.Job, error) {
	if err := model.ValidateJobInput(url, selector); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, url, selector, created_at) VALUES (?, ?, ?, ?)`,
		id, url, selector, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}

	return &model.Job{
		ID:        id,
		URL:       url,
		Selector:  selector,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, selector, created_at FROM jobs WHERE id = ?`,
		id,
	)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: job %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, selector, created_at FROM jobs ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) AppendResult(ctx context.Context, jobID, text string) (*model.ResultRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (id, job_id, text, created_at) VALUES (?, ?, ?, ?)`,
		id, jobID, text, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert result for job %s", jobID)
	}

	return &model.ResultRecord{
		ID:        id,
		JobID:     jobID,
		Text:      text,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) ResultsForJob(ctx context.Context, jobID string) ([]model.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, text, created_at FROM results WHERE job_id = ? ORDER BY created_at ASC, seq ASC`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: results for job %s", jobID)
	}
	defer rows.Close()

	var records []model.ResultRecord
	for rows.Next() {
		var r model.ResultRecord
		if err := rows.Scan(&r.ID, &r.JobID, &r.Text, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: results iterate")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT count(*) FROM jobs`, &st.Jobs},
		{`SELECT count(*) FROM results`, &st.Results},
		{`SELECT count(*) FROM results WHERE text LIKE 'Error: %'`, &st.ErrorResults},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, eris.Wrap(err, "sqlite: stats count")
		}
	}

	var last time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM results ORDER BY created_at DESC, seq DESC LIMIT 1`,
	).Scan(&last)
	switch {
	case err == sql.ErrNoRows:
		// no results yet
	case err != nil:
		return nil, eris.Wrap(err, "sqlite: stats last result")
	default:
		st.LastResultAt = &last
	}

	return &st, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.Job, error) {
	var j model.Job
	if err := row.Scan(&j.ID, &j.URL, &j.Selector, &j.CreatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}
