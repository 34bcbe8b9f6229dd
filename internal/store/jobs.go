package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maumercado/queuectl/internal/job"
)

// InsertJob persists a new job in state pending. Fails with ErrDuplicateID
// if id already exists.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) error {
	metadata, err := j.MetadataJSON()
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %v", ErrValidation, err)
	}

	return withBusyRetry(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO jobs (id, command, state, attempts, max_retries, next_run_at, created_at, updated_at, metadata)
			VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?)
		`, j.ID, j.Command, job.StatePending, j.MaxRetries, j.NextRunAt, j.CreatedAt, j.UpdatedAt, metadata)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateID, j.ID)
			}
			return fmt.Errorf("insert job: %w", err)
		}
		return nil
	})
}

// GetJob reads a single job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx, jobSelectColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// ListJobs lists jobs, optionally filtered by state, newest first, bounded
// by limit (0 = unbounded).
func (s *Store) ListJobs(ctx context.Context, state job.State, limit int) ([]*job.Job, error) {
	query := jobSelectColumns + ` FROM jobs`
	args := []any{}
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ClaimNext atomically finds the oldest-eligible pending job and transitions
// it to processing, bound to workerID. Returns (nil, nil) if none is ready.
//
// The SELECT and UPDATE execute as one statement under SQLite's single
// writer lock, so two concurrent callers can never observe and claim the
// same row: by the time the second caller's subquery runs, the first
// caller's UPDATE has already flipped the row's state away from pending.
func (s *Store) ClaimNext(ctx context.Context, workerID string, now time.Time) (*job.Job, error) {
	var claimed *job.Job

	err := withBusyRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer tx.Rollback()

		var id string
		err = tx.QueryRowContext(ctx, `
			UPDATE jobs
			SET state = ?, worker_id = ?, claimed_at = ?, attempts = attempts + 1, updated_at = ?
			WHERE id = (
				SELECT id FROM jobs
				WHERE state = ? AND next_run_at <= ?
				ORDER BY next_run_at ASC, created_at ASC, id ASC
				LIMIT 1
			)
			RETURNING id
		`, job.StateProcessing, workerID, now, now, job.StatePending, now).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			claimed = nil
			return nil
		}
		if err != nil {
			return fmt.Errorf("claim job: %w", err)
		}

		row := tx.QueryRowContext(ctx, jobSelectColumns+` FROM jobs WHERE id = ?`, id)
		claimed, err = scanJob(row)
		if err != nil {
			return fmt.Errorf("reload claimed job: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkCompleted transitions a processing job claimed by workerID to
// completed, clearing claim fields.
func (s *Store) MarkCompleted(ctx context.Context, id, workerID string, now time.Time) error {
	return s.transitionFromProcessing(ctx, id, workerID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET state = ?, worker_id = NULL, claimed_at = NULL, updated_at = ?
			WHERE id = ?
		`, job.StateCompleted, now, id)
		return err
	})
}

// FailAndReschedule transitions a processing job back to pending with a
// new next_run_at, recording the failure's error message.
func (s *Store) FailAndReschedule(ctx context.Context, id, workerID, errMsg string, nextRunAt, now time.Time) error {
	return s.transitionFromProcessing(ctx, id, workerID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET state = ?, worker_id = NULL, claimed_at = NULL, error_message = ?, next_run_at = ?, updated_at = ?
			WHERE id = ?
		`, job.StatePending, errMsg, nextRunAt, now, id)
		return err
	})
}

// FailAndDLQ transitions a processing job to dlq, recording the error
// message that exhausted its retry budget.
func (s *Store) FailAndDLQ(ctx context.Context, id, workerID, errMsg string, now time.Time) error {
	return s.transitionFromProcessing(ctx, id, workerID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET state = ?, worker_id = NULL, claimed_at = NULL, error_message = ?, updated_at = ?
			WHERE id = ?
		`, job.StateDLQ, errMsg, now, id)
		return err
	})
}

// transitionFromProcessing runs mutate inside a transaction after verifying
// the job is still processing and still claimed by workerID — the defence
// against split-brain after orphan recovery.
func (s *Store) transitionFromProcessing(ctx context.Context, id, workerID string, mutate func(tx *sql.Tx) error) error {
	return withBusyRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		var state string
		var claimant sql.NullString
		err = tx.QueryRowContext(ctx, `SELECT state, worker_id FROM jobs WHERE id = ?`, id).Scan(&state, &claimant)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("load job for transition: %w", err)
		}
		if job.State(state) != job.StateProcessing || claimant.String != workerID {
			return fmt.Errorf("%w: job %s is not claimed by %s", ErrInvalidState, id, workerID)
		}

		if err := mutate(tx); err != nil {
			return fmt.Errorf("apply transition: %w", err)
		}
		return tx.Commit()
	})
}

// RequeueFromDLQ returns a dlq job to pending, resetting attempts and the
// last error, claimable immediately.
func (s *Store) RequeueFromDLQ(ctx context.Context, id string, now time.Time) error {
	return withBusyRetry(func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE jobs
			SET state = ?, attempts = 0, error_message = NULL, next_run_at = ?, updated_at = ?
			WHERE id = ? AND state = ?
		`, job.StatePending, now, now, id, job.StateDLQ)
		if err != nil {
			return fmt.Errorf("requeue from dlq: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("requeue from dlq: %w", err)
		}
		if n == 0 {
			exists, qerr := s.jobExists(ctx, id)
			if qerr != nil {
				return qerr
			}
			if !exists {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return fmt.Errorf("%w: job %s is not in dlq", ErrInvalidState, id)
		}
		return nil
	})
}

func (s *Store) jobExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check job existence: %w", err)
	}
	return n > 0, nil
}

// RecoverOrphans reverts every job stuck in processing whose claim predates
// staleBefore back to pending, refunding the interrupted attempt:
// infrastructure failure should not consume the job's retry budget.
// Returns the number of jobs recovered.
func (s *Store) RecoverOrphans(ctx context.Context, staleBefore, now time.Time) (int, error) {
	var n int
	err := withBusyRetry(func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE jobs
			SET state = ?, attempts = MAX(attempts - 1, 0), worker_id = NULL, claimed_at = NULL, updated_at = ?
			WHERE state = ? AND claimed_at < ?
		`, job.StatePending, now, job.StateProcessing, staleBefore)
		if err != nil {
			return fmt.Errorf("recover orphans: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("recover orphans: %w", err)
		}
		n = int(affected)
		return nil
	})
	if err != nil {
		logStoreError("recover_orphans", err)
	}
	return n, err
}

// JobCounts returns the number of jobs in each state, for status reporting.
func (s *Store) JobCounts(ctx context.Context) (map[job.State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[job.State]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[job.State(state)] = n
	}
	return counts, rows.Err()
}

const jobSelectColumns = `SELECT id, command, state, attempts, max_retries, worker_id, next_run_at, claimed_at, error_message, created_at, updated_at, metadata`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*job.Job, error) {
	var (
		j            job.Job
		state        string
		workerID     sql.NullString
		claimedAt    sql.NullTime
		errorMessage sql.NullString
		metadataRaw  string
	)

	err := row.Scan(&j.ID, &j.Command, &state, &j.Attempts, &j.MaxRetries, &workerID, &j.NextRunAt, &claimedAt, &errorMessage, &j.CreatedAt, &j.UpdatedAt, &metadataRaw)
	if err != nil {
		return nil, err
	}

	j.State = job.State(state)
	j.WorkerID = workerID.String
	j.ErrorMessage = errorMessage.String
	if claimedAt.Valid {
		t := claimedAt.Time
		j.ClaimedAt = &t
	}
	metadata, err := job.ParseMetadata(metadataRaw)
	if err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	j.Metadata = metadata

	return &j, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
