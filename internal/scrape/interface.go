// Package scrape runs registered jobs through fetch and extraction in one
// batch pass, persisting every fragment and streaming outcomes to the
// caller as they happen.
package scrape

import (
	"context"

	"github.com/pagesift/pagesift/internal/fetcher"
	"github.com/pagesift/pagesift/internal/model"
)

// JobSource supplies the jobs for a run.
type JobSource interface {
	ListJobs(ctx context.Context) ([]model.Job, error)
}

// ResultSink persists extracted fragments.
type ResultSink interface {
	AppendResult(ctx context.Context, jobID, text string) (*model.ResultRecord, error)
}

// Fetcher retrieves one page per job URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Page, error)
}

// Extractor applies a CSS selector to fetched markup.
type Extractor interface {
	Fragments(markup, selector string) ([]string, error)
}

// Outcome is one streamed run item: a stored fragment for a job, or the
// formatted error line that took its place.
type Outcome struct {
	Job     model.Job `json:"job"`
	Text    string    `json:"text"`
	IsError bool      `json:"is_error"`
}
