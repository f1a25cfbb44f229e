package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pagesift/pagesift/internal/model"
)

// ErrNotFound is returned when a job id has no stored row.
var ErrNotFound = eris.New("job not found")

// Stats summarizes stored jobs and results for status reporting.
type Stats struct {
	Jobs         int        `json:"jobs"`
	Results      int        `json:"results"`
	ErrorResults int        `json:"error_results"`
	LastResultAt *time.Time `json:"last_result_at,omitempty"`
}

// Store defines the persistence interface for scrape jobs and their
// results. Implementations must be safe for concurrent use; AppendResult
// in particular is called from many workers at once.
type Store interface {
	// Jobs
	AddJob(ctx context.Context, url, selector string) (*model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context) ([]model.Job, error)

	// Results (append-only)
	AppendResult(ctx context.Context, jobID, text string) (*model.ResultRecord, error)
	ResultsForJob(ctx context.Context, jobID string) ([]model.ResultRecord, error)

	// Reporting
	Stats(ctx context.Context) (*Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
