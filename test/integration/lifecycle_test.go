//go:build integration
// +build integration

package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/queuectl/internal/events"
	"github.com/maumercado/queuectl/internal/job"
	"github.com/maumercado/queuectl/internal/logger"
	"github.com/maumercado/queuectl/internal/queue"
	"github.com/maumercado/queuectl/internal/store"
	"github.com/maumercado/queuectl/internal/worker"
)

func init() {
	logger.Init("error", false)
}

func setupQueue(t *testing.T) (*store.Store, *queue.Manager, *events.Bus) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "queuectl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	bus := events.NewBus()
	return st, queue.New(st, bus), bus
}

// TestLifecycle_EnqueueClaimComplete exercises the happy path: a job is
// enqueued, a worker loop claims and runs it, and it ends up completed.
func TestLifecycle_EnqueueClaimComplete(t *testing.T) {
	st, mgr, _ := setupQueue(t)
	ctx := context.Background()

	_, err := mgr.Enqueue(ctx, "job-ok", "exit 0", 3, nil)
	require.NoError(t, err)

	loop := worker.New("worker-test", st, mgr)
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(runCtx) }()

	require.Eventually(t, func() bool {
		j, err := mgr.Get(ctx, "job-ok")
		return err == nil && j.State == job.StateCompleted
	}, 4*time.Second, 20*time.Millisecond, "job should complete")

	loop.Stop()
	cancel()
	<-done

	j, err := mgr.Get(ctx, "job-ok")
	require.NoError(t, err)
	assert.Equal(t, job.StateCompleted, j.State)
	assert.Equal(t, 1, j.Attempts)
}

// TestLifecycle_RetryThenDLQ exercises a job that always fails: it should
// be retried up to its MaxRetries budget, with each retry delayed by the
// configured backoff, and land in the dead letter queue once exhausted.
func TestLifecycle_RetryThenDLQ(t *testing.T) {
	st, mgr, bus := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, st.SetConfig(ctx, store.ConfigBackoffBase, "1"))
	require.NoError(t, st.SetConfig(ctx, store.ConfigBackoffMaxDelay, "200ms"))
	require.NoError(t, st.SetConfig(ctx, store.ConfigWorkerPollInterval, "20ms"))

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	_, err := mgr.Enqueue(ctx, "job-fail", "exit 1", 2, nil)
	require.NoError(t, err)

	loop := worker.New("worker-test", st, mgr)
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(runCtx) }()

	require.Eventually(t, func() bool {
		j, err := mgr.Get(ctx, "job-fail")
		return err == nil && j.State == job.StateDLQ
	}, 8*time.Second, 20*time.Millisecond, "job should exhaust retries into the dlq")

	loop.Stop()
	cancel()
	<-done

	j, err := mgr.Get(ctx, "job-fail")
	require.NoError(t, err)
	assert.Equal(t, job.StateDLQ, j.State)
	assert.Equal(t, 2, j.Attempts)

	var sawDLQEvent bool
	for {
		select {
		case ev := <-ch:
			if ev.Type == events.EventJobDLQ && ev.Data["job_id"] == "job-fail" {
				sawDLQEvent = true
			}
		default:
			assert.True(t, sawDLQEvent, "expected a dlq event to have been published")
			return
		}
	}
}

// TestLifecycle_DLQRetryRequeues confirms a dead-lettered job can be
// requeued from the DLQ, returning to pending with its attempts reset.
func TestLifecycle_DLQRetryRequeues(t *testing.T) {
	st, mgr, _ := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, st.SetConfig(ctx, store.ConfigBackoffBase, "1"))
	require.NoError(t, st.SetConfig(ctx, store.ConfigBackoffMaxDelay, "50ms"))
	require.NoError(t, st.SetConfig(ctx, store.ConfigWorkerPollInterval, "10ms"))

	_, err := mgr.Enqueue(ctx, "job-dlq", "exit 1", 1, nil)
	require.NoError(t, err)

	loop := worker.New("worker-test", st, mgr)
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)

	done := make(chan error, 1)
	go func() { done <- loop.Run(runCtx) }()

	require.Eventually(t, func() bool {
		j, err := mgr.Get(ctx, "job-dlq")
		return err == nil && j.State == job.StateDLQ
	}, 4*time.Second, 20*time.Millisecond)

	loop.Stop()
	cancel()
	<-done

	require.NoError(t, mgr.RetryFromDLQ(ctx, "job-dlq"))

	j, err := mgr.Get(ctx, "job-dlq")
	require.NoError(t, err)
	assert.Equal(t, job.StatePending, j.State)
	assert.Equal(t, 0, j.Attempts)
}

// TestLifecycle_RecoverOrphans confirms a job left in "processing" by a
// worker that vanished without deregistering is reclaimed as pending with
// its interrupted attempt refunded.
func TestLifecycle_RecoverOrphans(t *testing.T) {
	st, mgr, _ := setupQueue(t)
	ctx := context.Background()

	_, err := mgr.Enqueue(ctx, "job-orphan", "exit 0", 3, nil)
	require.NoError(t, err)

	j, err := mgr.Claim(ctx, "ghost-worker")
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(t, job.StateProcessing, j.State)

	n, err := mgr.RecoverOrphans(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recovered, err := mgr.Get(ctx, "job-orphan")
	require.NoError(t, err)
	assert.Equal(t, job.StatePending, recovered.State)
	assert.Equal(t, 0, recovered.Attempts)
}
