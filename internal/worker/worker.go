// Package worker implements the Worker / Pipeline Driver (spec §4.H):
// a long-running claim-dispatch-checkpoint loop over the Job Queue,
// with handlers for sync_event, cluster_event and match_guest, plus an
// idle cleanup+auto-refresh pass.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/grabpic/pipeline/internal/config"
	"github.com/grabpic/pipeline/internal/database"
	"github.com/grabpic/pipeline/internal/domain"
	"github.com/grabpic/pipeline/internal/faceengine"
	"github.com/grabpic/pipeline/internal/jobqueue"
	"github.com/grabpic/pipeline/internal/remote"
	"github.com/grabpic/pipeline/internal/storage"
)

// jobQueue is the subset of *jobqueue.Queue the Worker drives jobs
// through. Declaring it here (rather than depending on the concrete
// type) lets tests substitute an in-memory fake instead of a real
// Postgres-backed queue.
type jobQueue interface {
	Enqueue(ctx context.Context, jobType domain.JobType, eventID, queryID *string, payload map[string]any, stage string) (*domain.Job, error)
	ClaimNext(ctx context.Context) (*domain.Job, error)
	MarkProgress(ctx context.Context, jobID string, percent float64, stage string) error
	UpsertPayload(ctx context.Context, jobID string, updates map[string]any) error
	Complete(ctx context.Context, jobID, stage string, payload map[string]any) error
	Fail(ctx context.Context, jobID, message string) error
	FinalizeCanceled(ctx context.Context, jobID string) error
	Status(ctx context.Context, jobID string) (domain.JobStatus, error)
	HasActiveJobForEvent(ctx context.Context, eventID string) (bool, error)
	LastSyncCompletedAt(ctx context.Context, eventID string) (*time.Time, error)
}

var _ jobQueue = (*jobqueue.Queue)(nil)

// Worker owns its Face Engine instances (one for event photos, one for
// guest selfies) and drives jobs to completion
// against a shared Store and Queue (spec §4.H, §9 "process-local
// service handle ... not shared between worker processes").
type Worker struct {
	cfg          config.Config
	store        database.Store
	queue        jobQueue
	storage      *storage.Store
	remote       *remote.Client
	engine       faceengine.Detector
	selfieEngine faceengine.Detector
}

// New constructs a Worker from its collaborators. selfieEngine detects
// the reference-image variant (spec §4.C), used only for guest selfie
// embedding; pass the same engine as both arguments if a relaxed
// selfie configuration isn't available.
func New(cfg config.Config, store database.Store, queue *jobqueue.Queue, st *storage.Store, rc *remote.Client, engine, selfieEngine faceengine.Detector) *Worker {
	return &Worker{cfg: cfg, store: store, queue: queue, storage: st, remote: rc, engine: engine, selfieEngine: selfieEngine}
}

// Run blocks, claiming and dispatching jobs until ctx is canceled
// (spec §4.H main loop).
func (w *Worker) Run(ctx context.Context) {
	lastCleanup := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queue.ClaimNext(ctx)
		if err != nil {
			log.Printf("worker: claiming next job: %v", err)
			w.sleep(ctx, w.cfg.Worker.IdleSleep)
			continue
		}

		if job == nil {
			if time.Since(lastCleanup) >= 60*time.Second {
				w.runCleanupAndAutoRefresh(ctx)
				lastCleanup = time.Now()
			}
			w.sleep(ctx, w.cfg.Worker.IdleSleep)
			continue
		}

		if err := w.dispatchRecovered(ctx, job); err != nil {
			w.recoverFromDispatchError(ctx, job, err)
			w.sleep(ctx, w.cfg.Worker.PollInterval)
		}
	}
}

// RunOnce claims and dispatches at most one job, then returns. It
// reports whether a job was claimed, so a single-pass CLI can drive one
// job to completion without running the full idle/cleanup loop.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.queue.ClaimNext(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	if err := w.dispatchRecovered(ctx, job); err != nil {
		w.recoverFromDispatchError(ctx, job, err)
	}
	return true, nil
}

// dispatchRecovered runs dispatch but converts a panic into an error,
// matching spec §4.H step 3's "any uncaught exception during dispatch".
func (w *Worker) dispatchRecovered(ctx context.Context, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %s dispatch: %v", job.ID, r)
		}
	}()
	return w.dispatch(ctx, job)
}

func (w *Worker) dispatch(ctx context.Context, job *domain.Job) error {
	switch job.Type {
	case domain.JobSyncEvent:
		return w.runSync(ctx, job)
	case domain.JobClusterEvent:
		return w.runCluster(ctx, job)
	case domain.JobMatchGuest:
		return w.runMatch(ctx, job)
	default:
		return domain.NewPipelineError(domain.ErrUnsupportedJobType, "unsupported job type "+string(job.Type), nil)
	}
}

// recoverFromDispatchError finalizes job after a failed dispatch (spec
// §4.H step 3): canceled if the job observed cancel_requested, else
// failed with the stringified error, propagating the same terminal
// state to any coupled Event or GuestQuery.
func (w *Worker) recoverFromDispatchError(ctx context.Context, job *domain.Job, dispatchErr error) {
	status, statusErr := w.queue.Status(ctx, job.ID)
	if statusErr == nil && status == domain.JobCancelRequested {
		w.finalizeCancellation(ctx, job)
		return
	}

	log.Printf("worker: job %s failed: %v", job.ID, dispatchErr)
	if err := w.queue.Fail(ctx, job.ID, dispatchErr.Error()); err != nil {
		log.Printf("worker: recording failure for job %s: %v", job.ID, err)
	}

	if job.EventID != nil {
		if err := w.store.UpdateEventStatus(ctx, *job.EventID, domain.EventFailed); err != nil {
			log.Printf("worker: marking event %s failed: %v", *job.EventID, err)
		}
	}
	if job.QueryID != nil {
		w.failGuestQuery(ctx, *job.QueryID, dispatchErr.Error())
	}
}

// finalizeCancellation moves job's coupled Event or GuestQuery to its
// canceled terminal state and marks the job itself canceled (spec
// §4.H: "Cancellation check").
func (w *Worker) finalizeCancellation(ctx context.Context, job *domain.Job) {
	if job.EventID != nil {
		if err := w.store.UpdateEventStatus(ctx, *job.EventID, domain.EventCanceled); err != nil {
			log.Printf("worker: canceling event %s: %v", *job.EventID, err)
		}
	}
	if job.QueryID != nil {
		w.failGuestQuery(ctx, *job.QueryID, "canceled")
	}
	if err := w.queue.FinalizeCanceled(ctx, job.ID); err != nil {
		log.Printf("worker: finalizing cancellation for job %s: %v", job.ID, err)
	}
}

func (w *Worker) failGuestQuery(ctx context.Context, queryID, message string) {
	query, err := w.store.GetGuestQuery(ctx, queryID)
	if err != nil || query == nil {
		return
	}
	query.Status = domain.GuestQueryFailed
	query.ErrorText = message
	now := time.Now()
	query.CompletedAt = &now
	if err := w.store.UpdateGuestQuery(ctx, *query); err != nil {
		log.Printf("worker: marking guest query %s failed: %v", queryID, err)
	}
}

// checkCanceled implements the worker's cooperative cancellation
// checkpoint (spec §4.H, §5 "optimistic observation").
func (w *Worker) checkCanceled(ctx context.Context, jobID string) (bool, error) {
	status, err := w.queue.Status(ctx, jobID)
	if err != nil {
		return false, err
	}
	return status == domain.JobCancelRequested, nil
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
