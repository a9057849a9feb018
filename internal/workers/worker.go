package workers

import (
	"context"
	"sync"
	"time"

	"shrinkbot/pkg/logger"
)

// Worker is a periodic task run by the Scheduler
type Worker interface {
	Name() string

	// Run executes one iteration and returns; the scheduler repeats it every Interval()
	Run(ctx context.Context) error

	Interval() time.Duration
	Enabled() bool
}

// Observed is a Worker that keeps run statistics fed by the scheduler
type Observed interface {
	Worker
	Stats() Stats
	Observe(duration time.Duration, err error)
}

// Stats is a snapshot of a worker's recent runs
type Stats struct {
	LastRun      time.Time
	LastDuration time.Duration
	LastError    error
	Runs         int64
	Failures     int64
	Streak       int // consecutive failures, reset by a successful run
}

// BaseWorker carries name, schedule and run statistics for embedding workers
type BaseWorker struct {
	name     string
	interval time.Duration
	enabled  bool
	log      *logger.Logger

	mu    sync.RWMutex
	stats Stats
}

// NewBaseWorker creates a new base worker
func NewBaseWorker(name string, interval time.Duration, enabled bool, log *logger.Logger) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  enabled,
		log:      log.With("worker", name),
	}
}

func (w *BaseWorker) Name() string            { return w.name }
func (w *BaseWorker) Interval() time.Duration { return w.interval }
func (w *BaseWorker) Enabled() bool           { return w.enabled }

// Log returns the worker's logger
func (w *BaseWorker) Log() *logger.Logger {
	return w.log
}

// Stats returns a copy of the current statistics
func (w *BaseWorker) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// Observe records the outcome of one run
func (w *BaseWorker) Observe(duration time.Duration, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.LastRun = time.Now()
	w.stats.LastDuration = duration
	w.stats.LastError = err
	w.stats.Runs++

	if err != nil {
		w.stats.Failures++
		w.stats.Streak++
		return
	}
	w.stats.Streak = 0
}
