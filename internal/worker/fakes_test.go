package worker

import (
	"context"
	"time"

	"github.com/grabpic/pipeline/internal/database"
	"github.com/grabpic/pipeline/internal/domain"
	"github.com/grabpic/pipeline/internal/faceengine"
)

// fakeStore is an in-memory database.Store stand-in for unit-testing
// worker dispatch logic without a live Postgres instance.
type fakeStore struct {
	events       map[string]*domain.Event
	guestQueries map[string]*domain.GuestQuery
	photos       map[string][]domain.Photo
	faces        map[string][]domain.Face
	embeddings   map[string][]database.EmbeddingPair

	staleEvents       []domain.Event
	expiredSelfies    []string
	blankedSelfies    bool
	replacedClusters  map[string][]domain.FaceCluster
	guestResults      map[string][]domain.GuestResult
	deletedPhotoIDs   []string
	getEventPanic     string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:           map[string]*domain.Event{},
		guestQueries:     map[string]*domain.GuestQuery{},
		photos:           map[string][]domain.Photo{},
		faces:            map[string][]domain.Face{},
		embeddings:       map[string][]database.EmbeddingPair{},
		replacedClusters: map[string][]domain.FaceCluster{},
		guestResults:     map[string][]domain.GuestResult{},
	}
}

func (f *fakeStore) InsertFaces(ctx context.Context, eventID, photoID string, faces []domain.Face) error {
	f.faces[eventID] = append(f.faces[eventID], faces...)
	return nil
}

func (f *fakeStore) DeleteFacesForPhoto(ctx context.Context, photoID string) error { return nil }

func (f *fakeStore) StreamEmbeddingsForEvent(ctx context.Context, eventID string) ([]database.EmbeddingPair, error) {
	return f.embeddings[eventID], nil
}

func (f *fakeStore) FacesForEvent(ctx context.Context, eventID string) ([]domain.Face, error) {
	return f.faces[eventID], nil
}

func (f *fakeStore) ReplaceClusters(ctx context.Context, eventID string, clusters []domain.FaceCluster, faceLabels map[string]*int) error {
	f.replacedClusters[eventID] = clusters
	return nil
}

func (f *fakeStore) InsertPhoto(ctx context.Context, photo domain.Photo) error {
	f.photos[photo.EventID] = append(f.photos[photo.EventID], photo)
	return nil
}

func (f *fakeStore) UpdatePhoto(ctx context.Context, photo domain.Photo) error { return nil }

func (f *fakeStore) DeletePhoto(ctx context.Context, photoID string) error {
	f.deletedPhotoIDs = append(f.deletedPhotoIDs, photoID)
	return nil
}

func (f *fakeStore) PhotosByEvent(ctx context.Context, eventID string) ([]domain.Photo, error) {
	return f.photos[eventID], nil
}

func (f *fakeStore) PhotosByIDs(ctx context.Context, ids []string) ([]domain.Photo, error) {
	return nil, nil
}

func (f *fakeStore) PhotoByDriveFileID(ctx context.Context, eventID, driveFileID string) (*domain.Photo, error) {
	return nil, nil
}

func (f *fakeStore) InsertEvent(ctx context.Context, event domain.Event) error { return nil }

func (f *fakeStore) UpdateEventStatus(ctx context.Context, eventID string, status domain.EventStatus) error {
	if e, ok := f.events[eventID]; ok {
		e.Status = status
	}
	return nil
}

func (f *fakeStore) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	if eventID == f.getEventPanic {
		panic("boom")
	}
	return f.events[eventID], nil
}

func (f *fakeStore) StaleEvents(ctx context.Context, statuses []domain.EventStatus, limit int) ([]domain.Event, error) {
	return f.staleEvents, nil
}

func (f *fakeStore) GetGuestQuery(ctx context.Context, queryID string) (*domain.GuestQuery, error) {
	return f.guestQueries[queryID], nil
}

func (f *fakeStore) UpdateGuestQuery(ctx context.Context, query domain.GuestQuery) error {
	f.guestQueries[query.ID] = &query
	return nil
}

func (f *fakeStore) ReplaceGuestResults(ctx context.Context, queryID string, results []domain.GuestResult) error {
	f.guestResults[queryID] = results
	return nil
}

func (f *fakeStore) ExpiredSelfiePaths(ctx context.Context, olderThan time.Time) ([]string, error) {
	return f.expiredSelfies, nil
}

func (f *fakeStore) BlankExpiredSelfiePaths(ctx context.Context, olderThan time.Time) error {
	f.blankedSelfies = true
	return nil
}

var _ database.Store = (*fakeStore)(nil)

// fakeQueue is an in-memory jobQueue stand-in.
type fakeQueue struct {
	jobs               map[string]*domain.Job
	statuses           map[string]domain.JobStatus
	enqueued           []domain.Job
	failed             map[string]string
	completed          map[string]string
	finalizedCanceled  []string
	activeForEvent     map[string]bool
	lastSyncForEvent   map[string]*time.Time
	progressCalls      []float64
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		jobs:             map[string]*domain.Job{},
		statuses:         map[string]domain.JobStatus{},
		failed:           map[string]string{},
		completed:        map[string]string{},
		activeForEvent:   map[string]bool{},
		lastSyncForEvent: map[string]*time.Time{},
	}
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobType domain.JobType, eventID, queryID *string, payload map[string]any, stage string) (*domain.Job, error) {
	job := domain.Job{ID: domain.NewID(), Type: jobType, EventID: eventID, QueryID: queryID, Payload: payload, Stage: stage, Status: domain.JobQueued}
	q.enqueued = append(q.enqueued, job)
	q.jobs[job.ID] = &job
	q.statuses[job.ID] = domain.JobQueued
	return &job, nil
}

func (q *fakeQueue) ClaimNext(ctx context.Context) (*domain.Job, error) { return nil, nil }

func (q *fakeQueue) MarkProgress(ctx context.Context, jobID string, percent float64, stage string) error {
	q.progressCalls = append(q.progressCalls, percent)
	return nil
}

func (q *fakeQueue) UpsertPayload(ctx context.Context, jobID string, updates map[string]any) error {
	return nil
}

func (q *fakeQueue) Complete(ctx context.Context, jobID, stage string, payload map[string]any) error {
	q.completed[jobID] = stage
	return nil
}

func (q *fakeQueue) Fail(ctx context.Context, jobID, message string) error {
	q.failed[jobID] = message
	return nil
}

func (q *fakeQueue) FinalizeCanceled(ctx context.Context, jobID string) error {
	q.finalizedCanceled = append(q.finalizedCanceled, jobID)
	return nil
}

func (q *fakeQueue) Status(ctx context.Context, jobID string) (domain.JobStatus, error) {
	return q.statuses[jobID], nil
}

func (q *fakeQueue) HasActiveJobForEvent(ctx context.Context, eventID string) (bool, error) {
	return q.activeForEvent[eventID], nil
}

func (q *fakeQueue) LastSyncCompletedAt(ctx context.Context, eventID string) (*time.Time, error) {
	return q.lastSyncForEvent[eventID], nil
}

var _ jobQueue = (*fakeQueue)(nil)

// fakeDetector is an in-memory faceengine.Detector stand-in.
type fakeDetector struct {
	embedding []float32
	err       error
}

func (d *fakeDetector) EmbedFaces(ctx context.Context, imageBytes []byte, maxFaces int) ([]faceengine.Face, error) {
	return nil, nil
}

func (d *fakeDetector) EmbedSingleFace(ctx context.Context, imageBytes []byte) ([]float32, error) {
	return d.embedding, d.err
}

var _ faceengine.Detector = (*fakeDetector)(nil)
