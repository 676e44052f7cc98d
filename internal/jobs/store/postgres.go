package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"domainwatch/internal/jobs"
)

// Postgres persists the job queue in the domain_update_jobs table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed job store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Enqueue queues a job for the domain. A job already queued or in progress
// is left alone; terminal jobs are re-queued.
func (s *Postgres) Enqueue(ctx context.Context, domain string, userID uuid.UUID) error {
	query := `
		INSERT INTO domain_update_jobs (id, domain, user_id, status, attempts, last_updated_at)
		VALUES ($1, $2, $3, 'queued', 0, now())
		ON CONFLICT (domain) DO UPDATE
		SET status = 'queued', last_updated_at = now()
		WHERE domain_update_jobs.status IN ('complete', 'failed')
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.New(), domain, userID); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Dequeue returns up to batchSize queued jobs outside the retry cutoff
// window, never-attempted first, then oldest-attempted.
func (s *Postgres) Dequeue(ctx context.Context, batchSize int, retryCutoff time.Duration) ([]jobs.Job, error) {
	query := `
		SELECT id, domain, user_id, status, attempts, last_attempt_at, last_updated_at
		FROM domain_update_jobs
		WHERE status = 'queued'
		  AND (last_attempt_at IS NULL OR last_attempt_at < $2)
		ORDER BY last_attempt_at ASC NULLS FIRST
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, batchSize, time.Now().Add(-retryCutoff))
	if err != nil {
		return nil, fmt.Errorf("dequeue jobs: %w", err)
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		var (
			job           jobs.Job
			status        string
			lastAttemptAt sql.NullTime
		)
		if err := rows.Scan(&job.ID, &job.Domain, &job.UserID, &status, &job.Attempts, &lastAttemptAt, &job.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Status = jobs.Status(status)
		if lastAttemptAt.Valid {
			t := lastAttemptAt.Time
			job.LastAttemptAt = &t
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Claim atomically moves a queued job to in_progress, incrementing attempts
// and stamping the attempt time. The status guard makes the claim a
// compare-and-swap: a job claimed by a concurrent worker is not claimed
// again.
func (s *Postgres) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE domain_update_jobs
		SET status = 'in_progress', attempts = attempts + 1, last_attempt_at = now()
		WHERE id = $1 AND status = 'queued'
	`
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job rows affected: %w", err)
	}
	return affected == 1, nil
}

// Complete marks a job complete.
func (s *Postgres) Complete(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, jobs.StatusComplete)
}

// Fail marks a job failed.
func (s *Postgres) Fail(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, jobs.StatusFailed)
}

func (s *Postgres) setStatus(ctx context.Context, id uuid.UUID, status jobs.Status) error {
	query := `UPDATE domain_update_jobs SET status = $2, last_updated_at = now() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
