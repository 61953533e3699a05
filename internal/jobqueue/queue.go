// Package jobqueue implements the Job Queue (spec §4.G) over the
// `jobs` table: enqueue, claim, progress, payload merge, completion
// and the cancel handshake, backed directly by a pgx pool rather than
// an ORM session.
package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grabpic/pipeline/internal/domain"
)

// Queue operates the jobs table through pool.
type Queue struct {
	pool *pgxpool.Pool
}

// New wraps pool as a Queue.
func New(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

// Enqueue inserts job in status queued, progress 0, attempts 0 (spec
// §4.G "enqueue").
func (q *Queue) Enqueue(ctx context.Context, jobType domain.JobType, eventID, queryID *string, payload map[string]any, stage string) (*domain.Job, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling job payload: %w", err)
	}

	id := domain.NewID()
	var job domain.Job
	err = q.pool.QueryRow(ctx, `
		INSERT INTO jobs (id, event_id, query_id, type, status, stage, payload, progress_percent, attempts, created_at, updated_at)
		VALUES ($1,$2,$3,$4,'queued',$5,$6,0,0,NOW(),NOW())
		RETURNING id, event_id, query_id, type, status, progress_percent, stage, error_text, payload, attempts, locked_at, started_at, completed_at, created_at, updated_at
	`, id, eventID, queryID, jobType, stage, raw).Scan(
		&job.ID, &job.EventID, &job.QueryID, &job.Type, &job.Status, &job.ProgressPercent, &job.Stage,
		&job.ErrorText, &job.Payload, &job.Attempts, &job.LockedAt, &job.StartedAt, &job.CompletedAt,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueueing job: %w", err)
	}
	return &job, nil
}

// ClaimNext atomically claims at most one queued job, FIFO by
// created_at, using `FOR UPDATE SKIP LOCKED` so concurrent worker
// processes never block on each other (spec §4.G "claim_next"). Returns
// nil, nil when no job is queued.
func (q *Queue) ClaimNext(ctx context.Context) (*domain.Job, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var job domain.Job
	err = tx.QueryRow(ctx, `
		SELECT id, event_id, query_id, type, status, progress_percent, stage, error_text, payload, attempts, locked_at, started_at, completed_at, created_at, updated_at
		FROM jobs
		WHERE status = 'queued'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(
		&job.ID, &job.EventID, &job.QueryID, &job.Type, &job.Status, &job.ProgressPercent, &job.Stage,
		&job.ErrorText, &job.Payload, &job.Attempts, &job.LockedAt, &job.StartedAt, &job.CompletedAt,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting next queued job: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE jobs SET status='running', started_at=NOW(), locked_at=NOW(), attempts=attempts+1, stage='running', updated_at=NOW()
		WHERE id = $1
	`, job.ID)
	if err != nil {
		return nil, fmt.Errorf("claiming job %s: %w", job.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing claim for job %s: %w", job.ID, err)
	}

	job.Status = domain.JobRunning
	job.Attempts++
	job.Stage = "running"
	return &job, nil
}

// MarkProgress clamps percent to [0,100] and records stage (spec §4.G
// "mark_progress").
func (q *Queue) MarkProgress(ctx context.Context, jobID string, percent float64, stage string) error {
	percent = clamp(percent, 0, 100)
	_, err := q.pool.Exec(ctx, `UPDATE jobs SET progress_percent=$2, stage=$3, updated_at=NOW() WHERE id=$1`, jobID, percent, stage)
	if err != nil {
		return fmt.Errorf("marking progress for job %s: %w", jobID, err)
	}
	return nil
}

// UpsertPayload merges updates into the job's free-form payload (spec
// §4.G "upsert_payload": phase/total_listed/completed/processed/
// failures/current_file_id and similar counters).
func (q *Queue) UpsertPayload(ctx context.Context, jobID string, updates map[string]any) error {
	var existing map[string]any
	err := q.pool.QueryRow(ctx, `SELECT payload FROM jobs WHERE id=$1`, jobID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("loading payload for job %s: %w", jobID, err)
	}
	if existing == nil {
		existing = map[string]any{}
	}
	for k, v := range updates {
		existing[k] = v
	}

	raw, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("marshaling merged payload for job %s: %w", jobID, err)
	}
	if _, err := q.pool.Exec(ctx, `UPDATE jobs SET payload=$2, updated_at=NOW() WHERE id=$1`, jobID, raw); err != nil {
		return fmt.Errorf("storing merged payload for job %s: %w", jobID, err)
	}
	return nil
}

// Complete finalizes job as completed, progress 100 (spec §4.G
// "complete"). A nil payload leaves the job's current payload as-is.
func (q *Queue) Complete(ctx context.Context, jobID, stage string, payload map[string]any) error {
	if payload == nil {
		_, err := q.pool.Exec(ctx, `
			UPDATE jobs SET status='completed', progress_percent=100, stage=$2, completed_at=NOW(), updated_at=NOW()
			WHERE id=$1
		`, jobID, stage)
		if err != nil {
			return fmt.Errorf("completing job %s: %w", jobID, err)
		}
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling completion payload for job %s: %w", jobID, err)
	}
	_, err = q.pool.Exec(ctx, `
		UPDATE jobs SET status='completed', progress_percent=100, stage=$2, payload=$3, completed_at=NOW(), updated_at=NOW()
		WHERE id=$1
	`, jobID, stage, raw)
	if err != nil {
		return fmt.Errorf("completing job %s: %w", jobID, err)
	}
	return nil
}

// Fail finalizes job as failed with message (spec §4.G "fail").
func (q *Queue) Fail(ctx context.Context, jobID, message string) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE jobs SET status='failed', stage='failed', error_text=$2, updated_at=NOW()
		WHERE id=$1
	`, jobID, message)
	if err != nil {
		return fmt.Errorf("failing job %s: %w", jobID, err)
	}
	return nil
}

// RequestCancel implements the cancel handshake (spec §4.G
// "request_cancel"): terminal jobs are left alone, queued jobs cancel
// immediately, running jobs move to cancel_requested for the worker to
// observe and finalize, and an already cancel_requested job is a
// no-op.
func (q *Queue) RequestCancel(ctx context.Context, jobID string) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE jobs SET status='canceled', stage='canceled', updated_at=NOW()
		WHERE id=$1 AND status='queued'
	`, jobID)
	if err != nil {
		return fmt.Errorf("canceling queued job %s: %w", jobID, err)
	}

	_, err = q.pool.Exec(ctx, `
		UPDATE jobs SET status='cancel_requested', updated_at=NOW()
		WHERE id=$1 AND status='running'
	`, jobID)
	if err != nil {
		return fmt.Errorf("requesting cancel for running job %s: %w", jobID, err)
	}
	return nil
}

// FinalizeCanceled transitions a running job that observed
// cancel_requested into canceled (spec §4.G: "the worker checks the
// database row between units of work and, upon observing
// cancel_requested, finalizes to canceled").
func (q *Queue) FinalizeCanceled(ctx context.Context, jobID string) error {
	_, err := q.pool.Exec(ctx, `UPDATE jobs SET status='canceled', stage='canceled', updated_at=NOW() WHERE id=$1`, jobID)
	if err != nil {
		return fmt.Errorf("finalizing canceled job %s: %w", jobID, err)
	}
	return nil
}

// Status returns the current status string for jobID, used by the
// worker's cancellation checkpoints between units of work.
func (q *Queue) Status(ctx context.Context, jobID string) (domain.JobStatus, error) {
	var status domain.JobStatus
	err := q.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id=$1`, jobID).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("reading status for job %s: %w", jobID, err)
	}
	return status, nil
}

// GetJob returns the full current row for jobID, used by the
// single-pass sync CLI to poll progress_percent/stage while a worker
// goroutine drives the job in the background.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	err := q.pool.QueryRow(ctx, `
		SELECT id, event_id, query_id, type, status, progress_percent, stage, error_text, payload, attempts, locked_at, started_at, completed_at, created_at, updated_at
		FROM jobs WHERE id=$1
	`, jobID).Scan(
		&job.ID, &job.EventID, &job.QueryID, &job.Type, &job.Status, &job.ProgressPercent, &job.Stage,
		&job.ErrorText, &job.Payload, &job.Attempts, &job.LockedAt, &job.StartedAt, &job.CompletedAt,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("reading job %s: %w", jobID, err)
	}
	return &job, nil
}

// HasActiveJobForEvent reports whether eventID has a queued, running or
// cancel_requested job, used by the auto-refresh pass to avoid
// double-enqueueing a sync for an event already being worked (spec
// §4.H cleanup pass).
func (q *Queue) HasActiveJobForEvent(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := q.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM jobs
			WHERE event_id = $1 AND status IN ('queued','running','cancel_requested')
		)
	`, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking active job for event %s: %w", eventID, err)
	}
	return exists, nil
}

// LastSyncCompletedAt returns when eventID's most recent sync_event job
// finished (completed, failed or canceled), or nil if it has never had
// one. The auto-refresh pass uses this to respect auto_sync_interval.
func (q *Queue) LastSyncCompletedAt(ctx context.Context, eventID string) (*time.Time, error) {
	var completedAt *time.Time
	err := q.pool.QueryRow(ctx, `
		SELECT MAX(COALESCE(completed_at, updated_at)) FROM jobs
		WHERE event_id = $1 AND type = 'sync_event' AND status IN ('completed','failed','canceled')
	`, eventID).Scan(&completedAt)
	if err != nil {
		return nil, fmt.Errorf("reading last sync time for event %s: %w", eventID, err)
	}
	return completedAt, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
