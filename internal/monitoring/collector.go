package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pagesift/pagesift/internal/store"
)

// Snapshot holds a point-in-time view of stored work.
type Snapshot struct {
	Jobs         int        `json:"jobs"`
	Results      int        `json:"results"`
	ErrorResults int        `json:"error_results"`
	ErrorRate    float64    `json:"error_rate"`
	LastResultAt *time.Time `json:"last_result_at,omitempty"`
	CollectedAt  time.Time  `json:"collected_at"`
}

// StatsSource abstracts the store methods needed by the collector.
type StatsSource interface {
	Stats(ctx context.Context) (*store.Stats, error)
}

// Collector gathers status snapshots from the store.
type Collector struct {
	src StatsSource
}

// NewCollector creates a new status collector.
func NewCollector(src StatsSource) *Collector {
	return &Collector{src: src}
}

// Collect gathers a snapshot of stored jobs and results. ErrorRate is the
// share of results that recorded a failed fetch or extraction.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	st, err := c.src.Stats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: collect stats")
	}

	snap := &Snapshot{
		Jobs:         st.Jobs,
		Results:      st.Results,
		ErrorResults: st.ErrorResults,
		LastResultAt: st.LastResultAt,
		CollectedAt:  time.Now().UTC(),
	}
	if st.Results > 0 {
		snap.ErrorRate = float64(st.ErrorResults) / float64(st.Results)
	}
	return snap, nil
}
