package scrape

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pagesift/pagesift/internal/model"
)

// Engine executes one pass over every registered job: fetch the page,
// apply the selector, store and emit each fragment.
type Engine struct {
	jobs      JobSource
	sink      ResultSink
	fetcher   Fetcher
	extractor Extractor
	workers   int
}

// NewEngine creates an Engine. workers bounds how many jobs run at once;
// zero or negative means unbounded.
func NewEngine(jobs JobSource, sink ResultSink, f Fetcher, x Extractor, workers int) *Engine {
	return &Engine{
		jobs:      jobs,
		sink:      sink,
		fetcher:   f,
		extractor: x,
		workers:   workers,
	}
}

// Run starts a batch pass over the jobs registered at call time. Outcomes
// stream on the first channel as fragments are stored; the second delivers
// the terminal error (nil on success) once after the outcome channel
// closes. Fetch and extraction failures are recorded as an "Error: ..."
// result for their job and do not end the run; storage failures do.
// Callers must drain the outcome channel or cancel ctx.
func (e *Engine) Run(ctx context.Context) (<-chan Outcome, <-chan error) {
	out := make(chan Outcome)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		err := e.run(ctx, out)
		close(out)
		errc <- err
	}()
	return out, errc
}

func (e *Engine) run(ctx context.Context, out chan<- Outcome) error {
	log := zap.L().With(zap.String("component", "scrape.engine"))

	jobs, err := e.jobs.ListJobs(ctx)
	if err != nil {
		return eris.Wrap(err, "engine: list jobs")
	}
	if len(jobs) == 0 {
		log.Info("no jobs registered")
		return nil
	}

	log.Info("starting run",
		zap.Int("jobs", len(jobs)),
		zap.Int("workers", e.workers),
	)

	var processed, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	if e.workers > 0 {
		g.SetLimit(e.workers)
	}

	for _, job := range jobs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			jLog := log.With(
				zap.String("job_id", job.ID),
				zap.String("url", job.URL),
			)

			fragments, jobErr := e.collect(gctx, job)
			if jobErr != nil {
				if gctx.Err() != nil {
					// Cancelled mid-flight; record nothing for this job.
					return gctx.Err()
				}
				jLog.Warn("job failed", zap.Error(jobErr))
				failed.Add(1)
				fragments = []string{fmt.Sprintf("Error: %s", jobErr)}
			} else {
				jLog.Debug("job extracted", zap.Int("fragments", len(fragments)))
				processed.Add(1)
			}

			isErr := jobErr != nil
			for _, text := range fragments {
				// A fragment is either fully stored or not stored at all;
				// cancellation never severs an in-flight write.
				rec, err := e.sink.AppendResult(context.WithoutCancel(gctx), job.ID, text)
				if err != nil {
					return eris.Wrapf(err, "engine: store result for job %s", job.ID)
				}
				select {
				case out <- Outcome{Job: job, Text: rec.Text, IsError: isErr}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("run aborted",
			zap.Error(err),
			zap.Int64("processed", processed.Load()),
			zap.Int64("failed", failed.Load()),
		)
		return err
	}

	log.Info("run complete",
		zap.Int64("processed", processed.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

// collect fetches the job's page and applies its selector.
func (e *Engine) collect(ctx context.Context, job model.Job) ([]string, error) {
	page, err := e.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		return nil, err
	}
	return e.extractor.Fragments(page.Body, job.Selector)
}
