package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Job metrics
	JobsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queuectl_jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queuectl_jobs_completed_total",
			Help: "Total number of jobs that finished, by outcome",
		},
		[]string{"outcome"}, // completed, rescheduled, dlq
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queuectl_job_duration_seconds",
			Help:    "Job execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15), // 10ms to ~160s
		},
		[]string{"outcome"},
	)

	JobRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queuectl_job_retries_total",
			Help: "Total number of job retry attempts scheduled",
		},
	)

	JobQueueLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queuectl_job_queue_latency_seconds",
			Help:    "Time a job spent pending before being claimed",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		},
	)

	PendingJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queuectl_pending_jobs",
			Help: "Current number of pending jobs",
		},
	)

	// DLQ metrics
	DLQSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queuectl_dlq_size",
			Help: "Current number of jobs in the dead letter queue",
		},
	)

	DLQAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queuectl_dlq_added_total",
			Help: "Total number of jobs moved to the dead letter queue",
		},
	)

	DLQRetried = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queuectl_dlq_retried_total",
			Help: "Total number of jobs requeued from the dead letter queue",
		},
	)

	// Worker metrics
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queuectl_active_workers",
			Help: "Current number of registered active workers",
		},
	)

	WorkerBusyTime = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queuectl_worker_busy_seconds_total",
			Help: "Total time workers spent executing jobs",
		},
		[]string{"worker_id"},
	)

	WorkersRecoveredOrphaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queuectl_orphaned_jobs_recovered_total",
			Help: "Total number of jobs recovered from crashed workers",
		},
	)

	// Admin HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queuectl_http_request_duration_seconds",
			Help:    "Admin HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queuectl_http_requests_total",
			Help: "Total number of admin HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queuectl_websocket_connections",
			Help: "Current number of live event-stream WebSocket connections",
		},
	)

	WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queuectl_websocket_messages_total",
			Help: "Total number of job events pushed over WebSocket",
		},
		[]string{"event"},
	)

	// Store metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queuectl_store_operation_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"operation"},
	)

	StoreBusyRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queuectl_store_busy_retries_total",
			Help: "Total number of operations retried due to a busy writer",
		},
	)
)

// RecordJobEnqueued records a job entering the queue.
func RecordJobEnqueued() {
	JobsEnqueued.Inc()
}

// RecordJobOutcome records a job leaving the processing state, either to
// completed, back to pending (rescheduled), or into the DLQ.
func RecordJobOutcome(outcome string, duration float64) {
	JobsCompleted.WithLabelValues(outcome).Inc()
	JobDuration.WithLabelValues(outcome).Observe(duration)
	if outcome == "rescheduled" {
		JobRetries.Inc()
	}
	if outcome == "dlq" {
		DLQAdded.Inc()
	}
}

// RecordQueueLatency records how long a job waited before being claimed.
func RecordQueueLatency(seconds float64) {
	JobQueueLatency.Observe(seconds)
}

// SetPendingJobs sets the pending-jobs gauge.
func SetPendingJobs(count float64) {
	PendingJobs.Set(count)
}

// SetDLQSize sets the DLQ size gauge.
func SetDLQSize(size float64) {
	DLQSize.Set(size)
}

// RecordDLQRetry records a job requeued out of the DLQ.
func RecordDLQRetry() {
	DLQRetried.Inc()
}

// SetActiveWorkers sets the active-workers gauge.
func SetActiveWorkers(count float64) {
	ActiveWorkers.Set(count)
}

// RecordWorkerBusyTime adds to the time a worker spent executing a job.
func RecordWorkerBusyTime(workerID string, duration float64) {
	WorkerBusyTime.WithLabelValues(workerID).Add(duration)
}

// RecordOrphanRecovery records jobs recovered from a crashed worker.
func RecordOrphanRecovery(count float64) {
	WorkersRecoveredOrphaned.Add(count)
}

// RecordHTTPRequest records an admin HTTP request.
func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// SetWebSocketConnections sets the live WebSocket connection gauge.
func SetWebSocketConnections(count float64) {
	WebSocketConnections.Set(count)
}

// RecordWebSocketMessage records a job event pushed to subscribers.
func RecordWebSocketMessage(event string) {
	WebSocketMessages.WithLabelValues(event).Inc()
}

// RecordStoreOperation records the latency of a Store operation.
func RecordStoreOperation(operation string, duration float64) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordStoreBusyRetry records a retry forced by writer contention.
func RecordStoreBusyRetry() {
	StoreBusyRetries.Inc()
}
