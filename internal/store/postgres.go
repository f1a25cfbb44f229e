package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/pagesift/pagesift/internal/db"
	"github.com/pagesift/pagesift/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_job":      `INSERT INTO jobs (id, url, selector, created_at) VALUES ($1, $2, $3, $4)`,
	"get_job":         `SELECT id, url, selector, created_at FROM jobs WHERE id = $1`,
	"list_jobs":       `SELECT id, url, selector, created_at FROM jobs ORDER BY seq ASC`,
	"insert_result":   `INSERT INTO results (id, job_id, text, created_at) VALUES ($1, $2, $3, $4)`,
	"results_for_job": `SELECT id, job_id, text, created_at FROM results WHERE job_id = $1 ORDER BY created_at ASC, seq ASC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// seq orders rows by insertion so listings stay stable even when
// created_at values collide.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	url        TEXT NOT NULL,
	selector   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS results (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	job_id     TEXT NOT NULL REFERENCES jobs(id),
	text       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_results_job_id ON results(job_id);
CREATE INDEX IF NOT EXISTS idx_results_job_created ON results(job_id, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AddJob(ctx context.Context, url, selector string) (*model.Job, error) {
	if err := model.ValidateJobInput(url, selector); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, url, selector, created_at) VALUES ($1, $2, $3, $4)`,
		id, url, selector, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}

	return &model.Job{
		ID:        id,
		URL:       url,
		Selector:  selector,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var j model.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, url, selector, created_at FROM jobs WHERE id = $1`,
		id,
	).Scan(&j.ID, &j.URL, &j.Selector, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: job %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return &j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, selector, created_at FROM jobs ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.URL, &j.Selector, &j.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) AppendResult(ctx context.Context, jobID, text string) (*model.ResultRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO results (id, job_id, text, created_at) VALUES ($1, $2, $3, $4)`,
		id, jobID, text, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert result for job %s", jobID)
	}

	return &model.ResultRecord{
		ID:        id,
		JobID:     jobID,
		Text:      text,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) ResultsForJob(ctx context.Context, jobID string) ([]model.ResultRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, text, created_at FROM results WHERE job_id = $1 ORDER BY created_at ASC, seq ASC`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: results for job %s", jobID)
	}
	defer rows.Close()

	var records []model.ResultRecord
	for rows.Next() {
		var r model.ResultRecord
		if err := rows.Scan(&r.ID, &r.JobID, &r.Text, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: results iterate")
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT count(*) FROM jobs),
			(SELECT count(*) FROM results),
			(SELECT count(*) FROM results WHERE text LIKE 'Error: %'),
			(SELECT max(created_at) FROM results)`,
	).Scan(&st.Jobs, &st.Results, &st.ErrorResults, &st.LastResultAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	return &st, nil
}
