package worker

import (
	"context"
	"testing"
	"time"

	"github.com/grabpic/pipeline/internal/config"
	"github.com/grabpic/pipeline/internal/domain"
	"github.com/grabpic/pipeline/internal/storage"
)

func newTestWorker(t *testing.T, store *fakeStore, queue *fakeQueue) *Worker {
	t.Helper()
	st, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("building storage: %v", err)
	}
	return &Worker{
		cfg:          config.Config{},
		store:        store,
		queue:        queue,
		storage:      st,
		engine:       &fakeDetector{},
		selfieEngine: &fakeDetector{},
	}
}

func TestClampPercent_ClampsBothBounds(t *testing.T) {
	if got := clampPercent(-5); got != 2 {
		t.Errorf("got %v, want 2", got)
	}
	if got := clampPercent(99); got != 95 {
		t.Errorf("got %v, want 95", got)
	}
	if got := clampPercent(50); got != 50 {
		t.Errorf("got %v, want 50", got)
	}
}

func TestDispatch_UnsupportedJobTypeReturnsError(t *testing.T) {
	w := newTestWorker(t, newFakeStore(), newFakeQueue())
	job := &domain.Job{ID: "j1", Type: domain.JobType("unknown")}
	err := w.dispatch(context.Background(), job)
	if err == nil {
		t.Fatal("expected an error for an unsupported job type")
	}
}

func TestDispatchRecovered_ConvertsPanicToError(t *testing.T) {
	store := newFakeStore()
	store.getEventPanic = "ev-panics"
	w := newTestWorker(t, store, newFakeQueue())
	eventID := "ev-panics"
	job := &domain.Job{ID: "j1", Type: domain.JobClusterEvent, EventID: &eventID}

	err := w.dispatchRecovered(context.Background(), job)
	if err == nil {
		t.Fatal("expected dispatchRecovered to convert the panic into an error")
	}
}

func TestRecoverFromDispatchError_FailsJobAndEventWhenNotCanceled(t *testing.T) {
	store := newFakeStore()
	eventID := "ev1"
	store.events[eventID] = &domain.Event{ID: eventID, Status: domain.EventSyncing}
	queue := newFakeQueue()
	queue.statuses["j1"] = domain.JobRunning
	w := newTestWorker(t, store, queue)
	job := &domain.Job{ID: "j1", EventID: &eventID}

	w.recoverFromDispatchError(context.Background(), job, errFor("boom"))

	if queue.failed["j1"] != "boom" {
		t.Errorf("expected job to be failed with message %q, got %q", "boom", queue.failed["j1"])
	}
	if store.events[eventID].Status != domain.EventFailed {
		t.Errorf("expected event to move to failed, got %v", store.events[eventID].Status)
	}
}

func TestRecoverFromDispatchError_FinalizesCancellationWhenRequested(t *testing.T) {
	store := newFakeStore()
	eventID := "ev1"
	store.events[eventID] = &domain.Event{ID: eventID, Status: domain.EventSyncing}
	queue := newFakeQueue()
	queue.statuses["j1"] = domain.JobCancelRequested
	w := newTestWorker(t, store, queue)
	job := &domain.Job{ID: "j1", EventID: &eventID}

	w.recoverFromDispatchError(context.Background(), job, errFor("boom"))

	if store.events[eventID].Status != domain.EventCanceled {
		t.Errorf("expected event to move to canceled, got %v", store.events[eventID].Status)
	}
	if len(queue.finalizedCanceled) != 1 || queue.finalizedCanceled[0] != "j1" {
		t.Errorf("expected job j1 to be finalized as canceled, got %v", queue.finalizedCanceled)
	}
	if _, failed := queue.failed["j1"]; failed {
		t.Error("a canceled job should not also be recorded as failed")
	}
}

func TestCheckCanceled_ReflectsQueueStatus(t *testing.T) {
	queue := newFakeQueue()
	queue.statuses["j1"] = domain.JobCancelRequested
	w := newTestWorker(t, newFakeStore(), queue)

	canceled, err := w.checkCanceled(context.Background(), "j1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !canceled {
		t.Error("expected checkCanceled to report true for cancel_requested")
	}

	queue.statuses["j1"] = domain.JobRunning
	canceled, err = w.checkCanceled(context.Background(), "j1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if canceled {
		t.Error("expected checkCanceled to report false for running")
	}
}

func TestRunCluster_ReplacesClustersAndMarksEventReady(t *testing.T) {
	store := newFakeStore()
	eventID := "ev1"
	store.events[eventID] = &domain.Event{ID: eventID, Status: domain.EventProcessingClusters}
	v := []float32{1, 0, 0}
	store.faces[eventID] = []domain.Face{
		{ID: "f1", PhotoID: "p1", Embedding: v},
		{ID: "f2", PhotoID: "p2", Embedding: v},
	}
	queue := newFakeQueue()
	queue.statuses["j1"] = domain.JobRunning
	w := newTestWorker(t, store, queue)
	w.cfg.Cluster.Eps = 0.1
	w.cfg.Cluster.MinSamples = 2

	job := &domain.Job{ID: "j1", EventID: &eventID, Type: domain.JobClusterEvent}
	if err := w.runCluster(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.replacedClusters[eventID]) != 1 {
		t.Fatalf("expected one cluster, got %d", len(store.replacedClusters[eventID]))
	}
	if store.events[eventID].Status != domain.EventReady {
		t.Errorf("expected event to move to ready, got %v", store.events[eventID].Status)
	}
	if queue.completed["j1"] != "completed" {
		t.Errorf("expected job to complete, got stage %q", queue.completed["j1"])
	}
}

func TestRunCluster_CancellationShortCircuitsBeforeClustering(t *testing.T) {
	store := newFakeStore()
	eventID := "ev1"
	store.events[eventID] = &domain.Event{ID: eventID}
	queue := newFakeQueue()
	queue.statuses["j1"] = domain.JobCancelRequested
	w := newTestWorker(t, store, queue)

	job := &domain.Job{ID: "j1", EventID: &eventID}
	if err := w.runCluster(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.events[eventID].Status != domain.EventCanceled {
		t.Errorf("expected event to move to canceled, got %v", store.events[eventID].Status)
	}
	if len(store.replacedClusters[eventID]) != 0 {
		t.Error("expected clustering to be skipped once cancellation was observed")
	}
}

func TestRunCleanupAndAutoRefresh_DeletesExpiredSelfiesAndEnqueuesAutoSync(t *testing.T) {
	store := newFakeStore()
	store.expiredSelfies = []string{"selfies/a.jpg"}
	staleEvent := domain.Event{ID: "ev1", Status: domain.EventReady}
	store.staleEvents = []domain.Event{staleEvent}
	store.events[staleEvent.ID] = &staleEvent

	queue := newFakeQueue()
	w := newTestWorker(t, store, queue)
	w.cfg.Worker.AutoSyncEnabled = true
	w.cfg.Remote.APIKey = "key"
	w.cfg.Worker.AutoSyncBatchSize = 4
	w.cfg.Worker.AutoSyncInterval = time.Hour

	w.runCleanupAndAutoRefresh(context.Background())

	if !store.blankedSelfies {
		t.Error("expected expired selfie paths to be blanked")
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0].Type != domain.JobSyncEvent {
		t.Fatalf("expected one auto-refresh sync job to be enqueued, got %v", queue.enqueued)
	}
	if store.events[staleEvent.ID].Status != domain.EventSyncing {
		t.Errorf("expected event to move to syncing, got %v", store.events[staleEvent.ID].Status)
	}
}

func TestRunCleanupAndAutoRefresh_SkipsEventsWithActiveJob(t *testing.T) {
	store := newFakeStore()
	staleEvent := domain.Event{ID: "ev1", Status: domain.EventReady}
	store.staleEvents = []domain.Event{staleEvent}
	store.events[staleEvent.ID] = &staleEvent

	queue := newFakeQueue()
	queue.activeForEvent[staleEvent.ID] = true
	w := newTestWorker(t, store, queue)
	w.cfg.Worker.AutoSyncEnabled = true
	w.cfg.Remote.APIKey = "key"
	w.cfg.Worker.AutoSyncBatchSize = 4

	w.runCleanupAndAutoRefresh(context.Background())

	if len(queue.enqueued) != 0 {
		t.Errorf("expected no jobs enqueued for an event with an active job, got %v", queue.enqueued)
	}
}

func TestRunCleanupAndAutoRefresh_SkipsEventsSyncedRecently(t *testing.T) {
	store := newFakeStore()
	staleEvent := domain.Event{ID: "ev1", Status: domain.EventReady}
	store.staleEvents = []domain.Event{staleEvent}
	store.events[staleEvent.ID] = &staleEvent

	recently := time.Now().Add(-time.Minute)
	queue := newFakeQueue()
	queue.lastSyncForEvent[staleEvent.ID] = &recently
	w := newTestWorker(t, store, queue)
	w.cfg.Worker.AutoSyncEnabled = true
	w.cfg.Remote.APIKey = "key"
	w.cfg.Worker.AutoSyncBatchSize = 4
	w.cfg.Worker.AutoSyncInterval = time.Hour

	w.runCleanupAndAutoRefresh(context.Background())

	if len(queue.enqueued) != 0 {
		t.Errorf("expected no jobs enqueued for a recently synced event, got %v", queue.enqueued)
	}
}

func TestRunCleanupAndAutoRefresh_SkipsWhenAutoSyncDisabled(t *testing.T) {
	store := newFakeStore()
	staleEvent := domain.Event{ID: "ev1", Status: domain.EventReady}
	store.staleEvents = []domain.Event{staleEvent}
	store.events[staleEvent.ID] = &staleEvent

	queue := newFakeQueue()
	w := newTestWorker(t, store, queue)
	w.cfg.Worker.AutoSyncEnabled = false
	w.cfg.Remote.APIKey = "key"

	w.runCleanupAndAutoRefresh(context.Background())

	if len(queue.enqueued) != 0 {
		t.Errorf("expected no jobs enqueued when auto-sync is disabled, got %v", queue.enqueued)
	}
}

type errFor string

func (e errFor) Error() string { return string(e) }
