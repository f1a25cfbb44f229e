package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagesift/pagesift/internal/extract"
	"github.com/pagesift/pagesift/internal/fetcher"
	"github.com/pagesift/pagesift/internal/scrape"
)

var runConcurrency int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one extraction pass over every registered job",
	Long:  "Fetches each registered URL, applies its selector, stores every fragment, and prints outcomes as they arrive. Failed jobs record a single error result and do not stop the pass.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		f := fetcher.NewHTTPFetcher(fetcher.Options{
			UserAgent:    cfg.Fetch.UserAgent,
			Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxBodyBytes: int64(cfg.Fetch.MaxBodyKB) * 1024,
		})

		workers := runConcurrency
		if workers == 0 {
			workers = cfg.Run.Concurrency
		}

		engine := scrape.NewEngine(st, st, f, extract.NewCSS(), workers)

		out, errc := engine.Run(ctx)

		var fragments, errorResults int
		for o := range out {
			if o.IsError {
				errorResults++
			} else {
				fragments++
			}
			fmt.Printf("[%s] %s\n", o.Job.URL, o.Text)
		}

		if err := <-errc; err != nil {
			return eris.Wrap(err, "scrape run")
		}

		zap.L().Info("run finished",
			zap.Int("fragments", fragments),
			zap.Int("error_results", errorResults),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "max jobs fetched at once (default from config)")
	rootCmd.AddCommand(runCmd)
}
