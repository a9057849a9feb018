package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"shrinkbot/pkg/logger"
)

// SessionCounter reports how many sessions a store holds, grouped by state
type SessionCounter interface {
	CountByState(ctx context.Context) (map[string]int, error)
}

// SessionCollector exposes the live session population at scrape time
type SessionCollector struct {
	log     *logger.Logger
	store   string
	counter SessionCounter

	activeSessions *prometheus.Desc
}

// NewSessionCollector creates a collector for the given store
func NewSessionCollector(log *logger.Logger, store string, counter SessionCounter) *SessionCollector {
	return &SessionCollector{
		log:     log.With("component", "session_collector"),
		store:   store,
		counter: counter,

		activeSessions: prometheus.NewDesc(
			"shrinkbot_active_sessions",
			"Number of stored conversation sessions by state",
			[]string{"store", "state"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeSessions
}

// Collect implements prometheus.Collector
func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.counter.CountByState(ctx)
	if err != nil {
		c.log.Warnw("Failed to collect session counts", "error", err)
		return
	}

	for state, n := range counts {
		ch <- prometheus.MustNewConstMetric(
			c.activeSessions,
			prometheus.GaugeValue,
			float64(n),
			c.store, state,
		)
	}
}

// RegisterSessionCollector registers the collector with the default registry
func RegisterSessionCollector(collector *SessionCollector) {
	prometheus.MustRegister(collector)
}
