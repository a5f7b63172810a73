// Package progress publishes the current step of a run to a single slot that
// an external UI polls.
package progress

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"psync/internal/logger"
)

// Status is the state of the run as seen by a poller.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Update is one progress record. Only the latest is kept.
type Update struct {
	Step      int       `json:"step"`
	Total     int       `json:"total"`
	Message   string    `json:"message"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Reader loads the progress slot.
type Reader interface {
	// Read returns the stored record, or ok=false when there is none.
	Read() (u Update, ok bool, err error)
}

// Sink stores the progress slot.
type Sink interface {
	Reader
	Write(u Update) error
	Clear() error
}

// Snapshot is what a reader sees. NotStarted is set when no record exists.
type Snapshot struct {
	Update
	NotStarted bool `json:"notStarted"`
}

// Stale reports whether the last update is older than threshold at now.
// A run that never started is not stale.
func (s Snapshot) Stale(now time.Time, threshold time.Duration) bool {
	if s.NotStarted || s.Status != StatusRunning {
		return false
	}
	return now.Sub(s.UpdatedAt) > threshold
}

// Read takes a snapshot of r.
func Read(r Reader) (Snapshot, error) {
	u, ok, err := r.Read()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read progress: %w", err)
	}
	if !ok {
		return Snapshot{NotStarted: true}, nil
	}
	return Snapshot{Update: u}, nil
}

// Reporter writes updates to every sink. Steps never go backwards.
type Reporter struct {
	mu    sync.Mutex
	sinks []Sink
	now   func() time.Time
	last  int
	log   zerolog.Logger
}

// NewReporter returns a Reporter writing to sinks. now defaults to time.Now.
func NewReporter(now func() time.Time, sinks ...Sink) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{
		sinks: sinks,
		now:   now,
		log:   logger.WithComponent("progress"),
	}
}

// Start clears any previous record and publishes step 0.
func (r *Reporter) Start(total int, message string) error {
	r.mu.Lock()
	r.last = 0
	r.mu.Unlock()

	var errs []error
	for _, s := range r.sinks {
		if err := s.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.Publish(0, total, message, StatusRunning); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Publish overwrites the slot. A step lower than the last published one is
// raised to it. Sink failures are logged and returned but never stop the run.
func (r *Reporter) Publish(step, total int, message string, status Status) error {
	r.mu.Lock()
	if step < r.last {
		step = r.last
	}
	r.last = step
	r.mu.Unlock()

	if total < step {
		total = step
	}
	u := Update{Step: step, Total: total, Message: message, Status: status, UpdatedAt: r.now()}

	r.log.Debug().Int("step", step).Int("total", total).Str("status", string(status)).Msg(message)

	var errs []error
	for _, s := range r.sinks {
		if err := s.Write(u); err != nil {
			r.log.Warn().Err(err).Msg("Progress write failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Step returns the last published step.
func (r *Reporter) Step() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
