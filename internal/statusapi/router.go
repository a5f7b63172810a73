// Package statusapi serves run progress and the run journal to a polling UI.
package statusapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"psync/internal/logger"
	"psync/internal/progress"
	"psync/internal/store"
)

// RunSource reads the run journal.
type RunSource interface {
	List(limit int) ([]store.Run, error)
	Get(id string) (*store.Run, error)
}

// ErrorSource reads the errors of a run.
type ErrorSource interface {
	ByRun(runID string) ([]store.RunError, error)
}

// Options configures the router. StaleAfter marks a running snapshot stale.
type Options struct {
	StaleAfter time.Duration
	Now        func() time.Time
}

// NewRouter creates the chi router with all API routes mounted.
func NewRouter(prog progress.Reader, runs RunSource, errs ErrorSource, opts Options) http.Handler {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h := &Handlers{
		progress:   prog,
		runs:       runs,
		errs:       errs,
		staleAfter: opts.StaleAfter,
		now:        opts.Now,
		log:        logger.WithComponent("status-api"),
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLog)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/progress", h.GetProgress)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)
	})

	return r
}
