package worker

import (
	"context"
	"log"
	"time"

	"github.com/grabpic/pipeline/internal/domain"
	"github.com/grabpic/pipeline/internal/pageconst"
)

// runCleanupAndAutoRefresh runs once per ~60 idle seconds (spec §4.H
// "Cleanup+auto-refresh pass"): purges expired selfie blobs, then, if
// enabled, enqueues sync jobs for stale events.
func (w *Worker) runCleanupAndAutoRefresh(ctx context.Context) {
	now := time.Now()

	paths, err := w.store.ExpiredSelfiePaths(ctx, now)
	if err != nil {
		log.Printf("worker: listing expired selfie paths: %v", err)
	} else {
		for _, p := range paths {
			w.storage.DeleteIfExists(p)
		}
		if err := w.store.BlankExpiredSelfiePaths(ctx, now); err != nil {
			log.Printf("worker: blanking expired selfie paths: %v", err)
		}
	}

	if !w.cfg.Worker.AutoSyncEnabled || w.cfg.Remote.APIKey == "" {
		return
	}
	w.runAutoRefresh(ctx, now)
}

var terminalEventStatuses = []domain.EventStatus{
	domain.EventReady, domain.EventFailed, domain.EventCanceled, domain.EventCancelRequested,
}

func (w *Worker) runAutoRefresh(ctx context.Context, now time.Time) {
	events, err := w.store.StaleEvents(ctx, terminalEventStatuses, pageconst.AutoRefreshScanLimit)
	if err != nil {
		log.Printf("worker: scanning stale events for auto-refresh: %v", err)
		return
	}

	enqueued := 0
	for _, event := range events {
		if enqueued >= w.cfg.Worker.AutoSyncBatchSize {
			break
		}

		active, err := w.queue.HasActiveJobForEvent(ctx, event.ID)
		if err != nil {
			log.Printf("worker: checking active job for event %s: %v", event.ID, err)
			continue
		}
		if active {
			continue
		}

		lastSync, err := w.queue.LastSyncCompletedAt(ctx, event.ID)
		if err != nil {
			log.Printf("worker: checking last sync for event %s: %v", event.ID, err)
			continue
		}
		if lastSync != nil && now.Sub(*lastSync) < w.cfg.Worker.AutoSyncInterval {
			continue
		}

		if err := w.store.UpdateEventStatus(ctx, event.ID, domain.EventSyncing); err != nil {
			log.Printf("worker: marking event %s syncing for auto-refresh: %v", event.ID, err)
			continue
		}
		eventID := event.ID
		if _, err := w.queue.Enqueue(ctx, domain.JobSyncEvent, &eventID, nil, map[string]any{"trigger": "auto_refresh"}, "queued"); err != nil {
			log.Printf("worker: enqueueing auto-refresh sync for event %s: %v", event.ID, err)
			continue
		}
		enqueued++
	}
}
