package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/queuectl/internal/events"
	"github.com/maumercado/queuectl/internal/job"
	"github.com/maumercado/queuectl/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *events.Bus) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "queuectl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	bus := events.NewBus()
	return New(st, bus), bus
}

func TestManager_EnqueueAndGet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	j, err := m.Enqueue(ctx, "", "echo hi", 3, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, j.ID)

	got, err := m.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatePending, got.State)
}

func TestManager_Enqueue_PublishesEvent(t *testing.T) {
	m, bus := newTestManager(t)
	ctx := context.Background()

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	_, err := m.Enqueue(ctx, "job-1", "echo hi", 3, nil)
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, events.EventJobEnqueued, ev.Type)
		assert.Equal(t, "job-1", ev.Data["job_id"])
	case <-time.After(time.Second):
		t.Fatal("expected an enqueued event")
	}
}

func TestManager_ClaimAndReportSuccess(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Enqueue(ctx, "job-1", "echo hi", 3, nil)
	require.NoError(t, err)

	claimed, err := m.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, m.ReportSuccess(ctx, claimed, 10*time.Millisecond))

	got, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.StateCompleted, got.State)
}

func TestManager_ReportFailure_ReschedulesWithinBudget(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Enqueue(ctx, "job-1", "false", 3, nil)
	require.NoError(t, err)

	claimed, err := m.Claim(ctx, "worker-1")
	require.NoError(t, err)

	backoff := job.BackoffPolicy{Base: 2, MaxDelay: time.Hour}
	require.NoError(t, m.ReportFailure(ctx, claimed, "boom", time.Millisecond, backoff))

	got, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatePending, got.State)
	assert.Equal(t, "boom", got.ErrorMessage)
}

func TestManager_ReportFailure_ExhaustsToDLQ(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Enqueue(ctx, "job-1", "false", 1, nil)
	require.NoError(t, err)

	claimed, err := m.Claim(ctx, "worker-1")
	require.NoError(t, err)

	backoff := job.BackoffPolicy{Base: 2, MaxDelay: time.Hour}
	require.NoError(t, m.ReportFailure(ctx, claimed, "boom", time.Millisecond, backoff))

	got, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.StateDLQ, got.State)
}

func TestManager_RetryFromDLQ(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Enqueue(ctx, "job-1", "false", 1, nil)
	require.NoError(t, err)
	claimed, err := m.Claim(ctx, "worker-1")
	require.NoError(t, err)
	backoff := job.BackoffPolicy{Base: 2, MaxDelay: time.Hour}
	require.NoError(t, m.ReportFailure(ctx, claimed, "boom", time.Millisecond, backoff))

	require.NoError(t, m.RetryFromDLQ(ctx, "job-1"))

	got, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatePending, got.State)
}

func TestManager_Status(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Enqueue(ctx, "job-1", "echo hi", 3, nil)
	require.NoError(t, err)
	_, err = m.Enqueue(ctx, "job-2", "echo hi", 3, nil)
	require.NoError(t, err)

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Pending)
	assert.Equal(t, 0, status.DLQ)
}

func TestManager_RecoverOrphans(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	m.clock = func() time.Time { return time.Now().UTC().Add(-time.Hour) }
	_, err := m.Enqueue(ctx, "job-1", "echo hi", 3, nil)
	require.NoError(t, err)

	_, err = m.Claim(ctx, "worker-1")
	require.NoError(t, err)
	m.clock = func() time.Time { return time.Now().UTC() }

	n, err := m.RecoverOrphans(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatePending, got.State)
	assert.Equal(t, 0, got.Attempts)
}

func TestManager_Enqueue_RejectsNonPositiveMaxRetries(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Enqueue(ctx, "job-1", "echo hi", 0, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrValidation))

	_, err = m.Enqueue(ctx, "job-2", "echo hi", -1, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrValidation))
}
