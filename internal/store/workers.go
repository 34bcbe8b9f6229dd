package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/maumercado/queuectl/internal/job"
)

// RegisterWorker inserts or re-activates a worker registration row.
func (s *Store) RegisterWorker(ctx context.Context, w *job.Worker) error {
	return withBusyRetry(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO workers (id, pid, status, last_heartbeat, started_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				pid = excluded.pid,
				status = excluded.status,
				last_heartbeat = excluded.last_heartbeat,
				started_at = excluded.started_at
		`, w.ID, w.PID, job.WorkerActive, w.LastHeartbeat, w.StartedAt)
		if err != nil {
			return fmt.Errorf("register worker: %w", err)
		}
		return nil
	})
}

// HeartbeatWorker bumps a worker's last_heartbeat to now and sets its status
// to active. Returns ErrNotFound if there is no worker row for id.
func (s *Store) HeartbeatWorker(ctx context.Context, id string, now time.Time) error {
	return withBusyRetry(func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE workers SET last_heartbeat = ?, status = ? WHERE id = ?
		`, now, job.WorkerActive, id)
		if err != nil {
			return fmt.Errorf("heartbeat worker: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("heartbeat worker: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: worker %s", ErrNotFound, id)
		}
		return nil
	})
}

// DeregisterWorker marks a worker stopped rather than deleting its row,
// keeping a record of the last PID/heartbeat visible to admin surfaces.
func (s *Store) DeregisterWorker(ctx context.Context, id string, now time.Time) error {
	return withBusyRetry(func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE workers SET status = ?, last_heartbeat = ? WHERE id = ?
		`, job.WorkerStopped, now, id)
		if err != nil {
			return fmt.Errorf("deregister worker: %w", err)
		}
		return nil
	})
}

// ListWorkers returns all registered workers, most recently started first.
func (s *Store) ListWorkers(ctx context.Context) ([]*job.Worker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pid, status, last_heartbeat, started_at FROM workers
		ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var out []*job.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetWorker reads a single worker row by id.
func (s *Store) GetWorker(ctx context.Context, id string) (*job.Worker, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, pid, status, last_heartbeat, started_at FROM workers WHERE id = ?
	`, id)
	w, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get worker: %w", err)
	}
	return w, nil
}

// PruneStaleWorkers marks every active worker whose heartbeat predates
// staleBefore as stopped, and returns the workers it marked. Its caller is
// the Worker Loop's startup recovery.
func (s *Store) PruneStaleWorkers(ctx context.Context, staleBefore, now time.Time) ([]*job.Worker, error) {
	var stale []*job.Worker

	err := withBusyRetry(func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, pid, status, last_heartbeat, started_at FROM workers
			WHERE status = ? AND last_heartbeat < ?
		`, job.WorkerActive, staleBefore)
		if err != nil {
			return fmt.Errorf("select stale workers: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			w, err := scanWorker(rows)
			if err != nil {
				return fmt.Errorf("scan stale worker: %w", err)
			}
			stale = append(stale, w)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if len(stale) == 0 {
			return nil
		}

		_, err = s.db.ExecContext(ctx, `
			UPDATE workers SET status = ? WHERE status = ? AND last_heartbeat < ?
		`, job.WorkerStopped, job.WorkerActive, staleBefore)
		if err != nil {
			return fmt.Errorf("mark stale workers stopped: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}

func scanWorker(row rowScanner) (*job.Worker, error) {
	var w job.Worker
	var status string
	if err := row.Scan(&w.ID, &w.PID, &status, &w.LastHeartbeat, &w.StartedAt); err != nil {
		return nil, err
	}
	w.Status = job.WorkerStatus(status)
	return &w, nil
}
