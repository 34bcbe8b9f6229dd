// Package queue implements the Queue Manager: the single entry point job
// producers and the admin surface use to enqueue, inspect, and manage
// jobs. It wraps the Store with event publishing and backoff/DLQ policy,
// keeping both out of the Store itself.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maumercado/queuectl/internal/events"
	"github.com/maumercado/queuectl/internal/job"
	"github.com/maumercado/queuectl/internal/logger"
	"github.com/maumercado/queuectl/internal/metrics"
	"github.com/maumercado/queuectl/internal/store"
)

// Manager is the Queue Manager: every job mutation flows through it so
// that a Store commit and its corresponding event publish always happen
// together, in that order.
type Manager struct {
	store *store.Store
	bus   *events.Bus
	clock func() time.Time
}

// New creates a Manager over an already-open Store.
func New(st *store.Store, bus *events.Bus) *Manager {
	return &Manager{store: st, bus: bus, clock: func() time.Time { return time.Now().UTC() }}
}

// Enqueue submits a new job. If id is empty, one is generated. Fails with
// store.ErrDuplicateID if id is already in use.
func (m *Manager) Enqueue(ctx context.Context, id, command string, maxRetries int, metadata map[string]string) (*job.Job, error) {
	if maxRetries < 1 {
		return nil, fmt.Errorf("%w: max_retries must be >= 1, got %d", store.ErrValidation, maxRetries)
	}

	if id == "" {
		id = uuid.NewString()
	}
	now := m.clock()

	j := &job.Job{
		ID:         id,
		Command:    command,
		State:      job.StatePending,
		MaxRetries: maxRetries,
		NextRunAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   metadata,
	}

	if err := m.store.InsertJob(ctx, j); err != nil {
		return nil, err
	}

	metrics.RecordJobEnqueued()
	m.publish(ctx, events.EventJobEnqueued, j.ID, nil)
	logger.WithJob(j.ID).Info().Str("command", command).Msg("job enqueued")

	return j, nil
}

// Claim finds and claims the next eligible job for workerID. Returns
// (nil, nil) when the queue has nothing ready.
func (m *Manager) Claim(ctx context.Context, workerID string) (*job.Job, error) {
	now := m.clock()
	j, err := m.store.ClaimNext(ctx, workerID, now)
	if err != nil || j == nil {
		return j, err
	}

	metrics.RecordQueueLatency(now.Sub(j.CreatedAt).Seconds())
	m.publish(ctx, events.EventJobClaimed, j.ID, map[string]interface{}{"worker_id": workerID})

	return j, nil
}

// ReportSuccess marks a claimed job completed.
func (m *Manager) ReportSuccess(ctx context.Context, j *job.Job, duration time.Duration) error {
	now := m.clock()
	if err := m.store.MarkCompleted(ctx, j.ID, j.WorkerID, now); err != nil {
		return err
	}

	metrics.RecordJobOutcome("completed", duration.Seconds())
	m.publish(ctx, events.EventJobCompleted, j.ID, nil)
	logger.WithJob(j.ID).Info().Dur("duration", duration).Msg("job completed")

	return nil
}

// ReportFailure handles a failed job execution: if the job has retry
// budget left it is rescheduled after a backoff delay; otherwise it moves
// to the dead letter queue.
func (m *Manager) ReportFailure(ctx context.Context, j *job.Job, errMsg string, duration time.Duration, backoff job.BackoffPolicy) error {
	now := m.clock()

	if j.CanRetry() {
		delay := backoff.Delay(j.Attempts)
		nextRunAt := now.Add(delay)

		if err := m.store.FailAndReschedule(ctx, j.ID, j.WorkerID, errMsg, nextRunAt, now); err != nil {
			return err
		}

		metrics.RecordJobOutcome("rescheduled", duration.Seconds())
		m.publish(ctx, events.EventJobRescheduled, j.ID, map[string]interface{}{
			"error":       errMsg,
			"next_run_at": nextRunAt,
			"attempts":    j.Attempts,
		})
		logger.WithJob(j.ID).Warn().Str("error", errMsg).Dur("backoff", delay).Msg("job failed, rescheduled")
		return nil
	}

	if err := m.store.FailAndDLQ(ctx, j.ID, j.WorkerID, errMsg, now); err != nil {
		return err
	}

	metrics.RecordJobOutcome("dlq", duration.Seconds())
	m.publish(ctx, events.EventJobDLQ, j.ID, map[string]interface{}{"error": errMsg, "attempts": j.Attempts})
	logger.WithJob(j.ID).Error().Str("error", errMsg).Msg("job exhausted retries, moved to dlq")

	return nil
}

// RetryFromDLQ requeues a dead-lettered job as pending, claimable
// immediately.
func (m *Manager) RetryFromDLQ(ctx context.Context, id string) error {
	now := m.clock()
	if err := m.store.RequeueFromDLQ(ctx, id, now); err != nil {
		return err
	}

	metrics.RecordDLQRetry()
	m.publish(ctx, events.EventJobRequeued, id, nil)
	logger.WithJob(id).Info().Msg("job requeued from dlq")

	return nil
}

// RecoverOrphans reverts jobs claimed by crashed workers back to pending,
// refunding the interrupted attempt. staleAfter is the heartbeat interval
// multiple (callers use 2x worker_heartbeat_interval) used to decide
// staleness.
func (m *Manager) RecoverOrphans(ctx context.Context, staleAfter time.Duration) (int, error) {
	now := m.clock()
	n, err := m.store.RecoverOrphans(ctx, now.Add(-staleAfter), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.RecordOrphanRecovery(float64(n))
		logger.Info().Int("count", n).Msg("recovered orphaned jobs from crashed workers")
	}
	return n, nil
}

// Get reads a single job.
func (m *Manager) Get(ctx context.Context, id string) (*job.Job, error) {
	return m.store.GetJob(ctx, id)
}

// List lists jobs, optionally filtered by state.
func (m *Manager) List(ctx context.Context, state job.State, limit int) ([]*job.Job, error) {
	return m.store.ListJobs(ctx, state, limit)
}

// ListDLQ lists jobs currently in the dead letter queue.
func (m *Manager) ListDLQ(ctx context.Context, limit int) ([]*job.Job, error) {
	return m.store.ListJobs(ctx, job.StateDLQ, limit)
}

// Status is a point-in-time snapshot of queue health.
type Status struct {
	Pending    int
	Processing int
	Completed  int
	DLQ        int
	Workers    int
}

// Status summarizes job counts by state and the number of active workers.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	counts, err := m.store.JobCounts(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("queue status: %w", err)
	}

	workers, err := m.store.ListWorkers(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("queue status: %w", err)
	}

	active := 0
	for _, w := range workers {
		if w.Status == job.WorkerActive {
			active++
		}
	}

	status := Status{
		Pending:    counts[job.StatePending],
		Processing: counts[job.StateProcessing],
		Completed:  counts[job.StateCompleted],
		DLQ:        counts[job.StateDLQ],
		Workers:    active,
	}

	metrics.SetPendingJobs(float64(status.Pending))
	metrics.SetDLQSize(float64(status.DLQ))
	metrics.SetActiveWorkers(float64(status.Workers))

	return status, nil
}

func (m *Manager) publish(ctx context.Context, eventType events.EventType, jobID string, extra map[string]interface{}) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(ctx, events.NewEvent(eventType, events.JobEventData(jobID, extra)))
}
