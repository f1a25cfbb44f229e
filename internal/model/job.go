package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrValidation is returned when job input is rejected before anything is
// persisted. Callers detect it with eris.Is.
var ErrValidation = eris.New("validation failed")

// Job is a registered scrape target: one URL paired with the CSS selector
// applied to its markup. URL and Selector are immutable once registered.
type Job struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Selector  string    `json:"selector"`
	CreatedAt time.Time `json:"created_at"`
}

// ResultRecord is one extracted text fragment appended for a job. Fetch and
// extraction failures are stored in the same shape, with Text carrying the
// formatted error line. Records are append-only; CreatedAt is assigned by
// the store at write time.
type ResultRecord struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateJobInput rejects blank or whitespace-only job fields.
func ValidateJobInput(url, selector string) error {
	if strings.TrimSpace(url) == "" {
		return eris.Wrap(ErrValidation, "url is required")
	}
	if strings.TrimSpace(selector) == "" {
		return eris.Wrap(ErrValidation, "selector is required")
	}
	return nil
}
