package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagesift/pagesift/internal/extract"
	"github.com/pagesift/pagesift/internal/fetcher"
	"github.com/pagesift/pagesift/internal/model"
	"github.com/pagesift/pagesift/internal/monitoring"
	"github.com/pagesift/pagesift/internal/scrape"
	"github.com/pagesift/pagesift/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for jobs, runs, and results",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		engine := scrape.NewEngine(st, st, f, extract.NewCSS(), cfg.Run.Concurrency)
		collector := monitoring.NewCollector(st)

		// Background alert checker, active only when a webhook is configured.
		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		port := resolvePort(servePort, cfg.Server.Port)
		return startServer(ctx, buildRouter(ctx, st, engine, collector), port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort prefers the flag value over config.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer runs the HTTP server until ctx is cancelled, then drains
// in-flight requests before returning.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

// buildRouter assembles the HTTP API. runCtx bounds background scrape
// runs so shutdown cancels them.
func buildRouter(runCtx context.Context, st store.Store, engine *scrape.Engine, collector *monitoring.Collector) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		snap, err := collector.Collect(req.Context())
		if err != nil {
			zap.L().Error("serve: health snapshot", zap.Error(err))
			http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stats": snap})
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				URL      string `json:"url"`
				Selector string `json:"selector"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}

			job, err := st.AddJob(req.Context(), body.URL, body.Selector)
			if err != nil {
				if eris.Is(err, model.ErrValidation) {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
					return
				}
				zap.L().Error("serve: add job", zap.Error(err))
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusCreated, job)
		})

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			jobs, err := st.ListJobs(req.Context())
			if err != nil {
				zap.L().Error("serve: list jobs", zap.Error(err))
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			if jobs == nil {
				jobs = []model.Job{}
			}
			writeJSON(w, http.StatusOK, jobs)
		})

		r.Get("/{id}/results", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")

			job, err := st.GetJob(req.Context(), id)
			if err != nil {
				if eris.Is(err, store.ErrNotFound) {
					http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
					return
				}
				zap.L().Error("serve: get job", zap.Error(err))
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}

			records, err := st.ResultsForJob(req.Context(), job.ID)
			if err != nil {
				zap.L().Error("serve: job results", zap.Error(err))
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			if records == nil {
				records = []model.ResultRecord{}
			}
			writeJSON(w, http.StatusOK, records)
		})
	})

	r.Post("/runs", func(w http.ResponseWriter, _ *http.Request) {
		// Run asynchronously; fragments land in the store and the logs.
		go func() {
			out, errc := engine.Run(runCtx)
			var fragments, errorResults int
			for o := range out {
				if o.IsError {
					errorResults++
				} else {
					fragments++
				}
			}
			if err := <-errc; err != nil {
				zap.L().Error("serve: scrape run failed", zap.Error(err))
				return
			}
			zap.L().Info("serve: scrape run finished",
				zap.Int("fragments", fragments),
				zap.Int("error_results", errorResults),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	return r
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
