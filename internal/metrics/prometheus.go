package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Telegram transport metrics
	TelegramUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrinkbot_telegram_updates_total",
			Help: "Total number of telegram updates received",
		},
		[]string{"kind", "status"}, // status: success|error|dropped
	)

	TelegramUpdateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shrinkbot_telegram_update_duration_seconds",
			Help:    "Time spent handling one telegram update",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	TelegramMessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrinkbot_telegram_messages_sent_total",
			Help: "Total number of outgoing telegram messages",
		},
		[]string{"type", "status"}, // type: text|document
	)

	CommandExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrinkbot_command_executions_total",
			Help: "Total number of bot command executions",
		},
		[]string{"command", "status"},
	)

	DispatchQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shrinkbot_dispatch_queues",
			Help: "Number of per-session dispatch queues currently draining",
		},
	)

	// Conversation metrics
	ConversationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrinkbot_conversation_transitions_total",
			Help: "Total number of conversation state transitions",
		},
		[]string{"from", "event", "to"},
	)

	ConversationReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrinkbot_conversation_replies_total",
			Help: "Total number of replies by kind",
		},
		[]string{"kind"},
	)

	// Compression metrics
	CompressionRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrinkbot_compression_runs_total",
			Help: "Total number of compression runs",
		},
		[]string{"status"}, // status: target_met|best_effort|error
	)

	CompressionIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shrinkbot_compression_iterations",
			Help:    "Encode passes per compression run",
			Buckets: []float64{1, 2, 3, 5, 8, 12, 19},
		},
	)

	CompressionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shrinkbot_compression_duration_seconds",
			Help:    "Compression run duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	CompressionRatio = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shrinkbot_compression_ratio",
			Help:    "Original size divided by compressed size",
			Buckets: []float64{0.5, 1, 1.5, 2, 3, 5, 10, 20, 50},
		},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrinkbot_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shrinkbot_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shrinkbot_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Session store metrics
	SessionStoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrinkbot_session_store_operations_total",
			Help: "Total number of session store operations",
		},
		[]string{"store", "operation", "status"},
	)

	SessionStoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shrinkbot_session_store_duration_seconds",
			Help:    "Session store operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"store", "operation"},
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus
func Init() {
	initOnce.Do(func() {
		// Telegram metrics
		prometheus.MustRegister(TelegramUpdates)
		prometheus.MustRegister(TelegramUpdateDuration)
		prometheus.MustRegister(TelegramMessagesSent)
		prometheus.MustRegister(CommandExecutions)
		prometheus.MustRegister(DispatchQueueDepth)

		// Conversation metrics
		prometheus.MustRegister(ConversationTransitions)
		prometheus.MustRegister(ConversationReplies)

		// Compression metrics
		prometheus.MustRegister(CompressionRuns)
		prometheus.MustRegister(CompressionIterations)
		prometheus.MustRegister(CompressionDuration)
		prometheus.MustRegister(CompressionRatio)

		// Worker metrics
		prometheus.MustRegister(WorkerExecutions)
		prometheus.MustRegister(WorkerDuration)
		prometheus.MustRegister(WorkerLastRun)

		// Store metrics
		prometheus.MustRegister(SessionStoreOps)
		prometheus.MustRegister(SessionStoreDuration)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordUpdate records one handled telegram update
func RecordUpdate(kind string, duration time.Duration, err error) {
	TelegramUpdates.WithLabelValues(kind, status(err)).Inc()
	TelegramUpdateDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordDroppedUpdate records an update rejected by the dispatcher
func RecordDroppedUpdate(kind string) {
	TelegramUpdates.WithLabelValues(kind, "dropped").Inc()
}

// RecordMessageSent records an outgoing message
func RecordMessageSent(messageType string, err error) {
	TelegramMessagesSent.WithLabelValues(messageType, status(err)).Inc()
}

// RecordCommand records a bot command execution
func RecordCommand(command string, err error) {
	CommandExecutions.WithLabelValues(command, status(err)).Inc()
}

// RecordTransition records a conversation state change
func RecordTransition(from, event, to string) {
	ConversationTransitions.WithLabelValues(from, event, to).Inc()
}

// RecordReply records an outgoing conversation reply
func RecordReply(kind string) {
	ConversationReplies.WithLabelValues(kind).Inc()
}

// RecordCompression records a compression run
func RecordCompression(duration time.Duration, iterations int, ratio float64, targetMet bool, err error) {
	CompressionDuration.Observe(duration.Seconds())

	switch {
	case err != nil:
		CompressionRuns.WithLabelValues("error").Inc()
		return
	case targetMet:
		CompressionRuns.WithLabelValues("target_met").Inc()
	default:
		CompressionRuns.WithLabelValues("best_effort").Inc()
	}

	CompressionIterations.Observe(float64(iterations))
	if ratio > 0 {
		CompressionRatio.Observe(ratio)
	}
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	WorkerExecutions.WithLabelValues(worker, status(err)).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordStoreOp records a session store operation
func RecordStoreOp(store, operation string, duration time.Duration, err error) {
	SessionStoreOps.WithLabelValues(store, operation, status(err)).Inc()
	SessionStoreDuration.WithLabelValues(store, operation).Observe(duration.Seconds())
}
