// Package worker implements the Worker Loop: a single-job-at-a-time
// process that claims jobs from the Queue Manager, runs their command
// through the launcher, and reports the outcome, while heartbeating its
// liveness to the Store so a crash can be detected and recovered from.
package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/maumercado/queuectl/internal/job"
	"github.com/maumercado/queuectl/internal/launcher"
	"github.com/maumercado/queuectl/internal/logger"
	"github.com/maumercado/queuectl/internal/metrics"
	"github.com/maumercado/queuectl/internal/queue"
	"github.com/maumercado/queuectl/internal/store"
)

// State is the Worker Loop's lifecycle state.
type State int

const (
	StateInit State = iota
	StateIdle
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Loop is a single worker process: it claims one job at a time, runs it,
// reports the result, and repeats, while a heartbeat goroutine keeps its
// liveness current in the Store.
type Loop struct {
	id    string
	store *store.Store
	mgr   *queue.Manager

	stateMu sync.RWMutex
	state   State

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Worker Loop with a generated id, unless id is non-empty.
func New(id string, st *store.Store, mgr *queue.Manager) *Loop {
	if id == "" {
		id = fmt.Sprintf("worker-%s", uuid.NewString()[:8])
	}
	return &Loop{
		id:     id,
		store:  st,
		mgr:    mgr,
		state:  StateInit,
		stopCh: make(chan struct{}),
	}
}

// ID returns the worker's identifier.
func (l *Loop) ID() string { return l.id }

// State returns the worker's current lifecycle state.
func (l *Loop) State() State {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.stateMu.Lock()
	l.state = s
	l.stateMu.Unlock()
}

// Run registers the worker and blocks, polling for and executing jobs
// until ctx is canceled or Stop is called. It returns once the loop and
// its heartbeat goroutine have both exited.
func (l *Loop) Run(ctx context.Context) error {
	now := time.Now().UTC()
	if err := l.store.RegisterWorker(ctx, &job.Worker{
		ID:            l.id,
		PID:           processID(),
		LastHeartbeat: now,
		StartedAt:     now,
	}); err != nil {
		return fmt.Errorf("register worker: %w", err)
	}

	log := logger.WithWorker(l.id)
	log.Info().Msg("worker loop started")

	heartbeatInterval := l.readDuration(ctx, store.ConfigWorkerHeartbeatInterval, 5*time.Second)
	l.recoverFromCrash(ctx, heartbeatInterval, log)

	l.setState(StateIdle)

	l.wg.Add(1)
	go l.heartbeatLoop(ctx, heartbeatInterval)

	l.pollLoop(ctx, log)

	l.setState(StateStopped)
	l.wg.Wait()

	deregisterCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.DeregisterWorker(deregisterCtx, l.id, time.Now().UTC()); err != nil {
		log.Warn().Err(err).Msg("failed to deregister worker on shutdown")
	}

	log.Info().Msg("worker loop stopped")
	return nil
}

// Stop signals the loop to finish its current job (if any) and exit. It
// does not wait for Run to return.
func (l *Loop) Stop() {
	l.setState(StateDraining)
	close(l.stopCh)
}

func (l *Loop) pollLoop(ctx context.Context, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		default:
		}

		pollInterval := l.readDuration(ctx, store.ConfigWorkerPollInterval, time.Second)

		j, err := l.mgr.Claim(ctx, l.id)
		if err != nil {
			log.Error().Err(err).Msg("claim failed")
			l.sleep(pollInterval)
			continue
		}
		if j == nil {
			l.sleep(pollInterval)
			continue
		}

		l.setState(StateRunning)
		l.executeAndReport(ctx, j, log)
		l.setState(StateIdle)
	}
}

func (l *Loop) executeAndReport(ctx context.Context, j *job.Job, log zerolog.Logger) {
	timeout := l.readDuration(ctx, store.ConfigJobTimeout, 300*time.Second)
	backoffBase := l.readFloat(ctx, store.ConfigBackoffBase, 2)
	backoffMax := l.readDuration(ctx, store.ConfigBackoffMaxDelay, time.Hour)
	backoff := job.BackoffPolicy{Base: backoffBase, MaxDelay: backoffMax}

	start := time.Now()
	result, err := launcher.Run(ctx, j.Command, timeout)
	duration := time.Since(start)
	metrics.RecordWorkerBusyTime(l.id, duration.Seconds())

	if err != nil {
		if reportErr := l.mgr.ReportFailure(ctx, j, err.Error(), duration, backoff); reportErr != nil {
			log.Error().Err(reportErr).Str("job_id", j.ID).Msg("failed to report launcher error")
		}
		return
	}

	if result.TimedOut {
		if reportErr := l.mgr.ReportFailure(ctx, j, "job timed out", duration, backoff); reportErr != nil {
			log.Error().Err(reportErr).Str("job_id", j.ID).Msg("failed to report timeout")
		}
		return
	}

	if result.ExitCode != 0 {
		errMsg := fmt.Sprintf("exit code %d: %s", result.ExitCode, truncate(result.Stdout+result.Stderr, 500))
		if reportErr := l.mgr.ReportFailure(ctx, j, errMsg, duration, backoff); reportErr != nil {
			log.Error().Err(reportErr).Str("job_id", j.ID).Msg("failed to report failure")
		}
		return
	}

	if reportErr := l.mgr.ReportSuccess(ctx, j, duration); reportErr != nil {
		log.Error().Err(reportErr).Str("job_id", j.ID).Msg("failed to report success")
	}
}

// recoverFromCrash reverts orphaned in-flight jobs and prunes workers
// whose heartbeat has gone stale, using 2x the heartbeat interval as the
// staleness threshold. Safe to call repeatedly, so every worker does this
// once at startup rather than relying on a single designated recoverer.
func (l *Loop) recoverFromCrash(ctx context.Context, heartbeatInterval time.Duration, log zerolog.Logger) {
	staleAfter := 2 * heartbeatInterval

	if n, err := l.mgr.RecoverOrphans(ctx, staleAfter); err != nil {
		log.Warn().Err(err).Msg("recover orphans failed")
	} else if n > 0 {
		log.Info().Int("count", n).Msg("recovered orphaned jobs on startup")
	}

	now := time.Now().UTC()
	pruned, err := l.store.PruneStaleWorkers(ctx, now.Add(-staleAfter), now)
	if err != nil {
		log.Warn().Err(err).Msg("prune stale workers failed")
	} else if len(pruned) > 0 {
		log.Info().Int("count", len(pruned)).Msg("pruned stale workers on startup")
	}
}

func (l *Loop) heartbeatLoop(ctx context.Context, interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-ticker.C:
			if err := l.store.HeartbeatWorker(ctx, l.id, time.Now().UTC()); err != nil {
				logger.WithWorker(l.id).Warn().Err(err).Msg("heartbeat failed")
			}
			ticker.Reset(l.readDuration(ctx, store.ConfigWorkerHeartbeatInterval, interval))
		}
	}
}

func (l *Loop) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-l.stopCh:
	}
}

func (l *Loop) readDuration(ctx context.Context, key store.ConfigKey, fallback time.Duration) time.Duration {
	raw, err := l.store.GetConfig(ctx, key)
	if err != nil {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func (l *Loop) readFloat(ctx context.Context, key store.ConfigKey, fallback float64) float64 {
	raw, err := l.store.GetConfig(ctx, key)
	if err != nil {
		return fallback
	}
	var f float64
	if _, err := fmt.Sscanf(raw, "%g", &f); err != nil {
		return fallback
	}
	return f
}

func processID() int {
	return os.Getpid()
}

// truncate keeps the last n bytes of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
