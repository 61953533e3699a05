package database

import (
	"context"
	"time"

	"github.com/grabpic/pipeline/internal/domain"
)

// EmbeddingPair is one Face reduced to what the Clusterer and Matcher
// need: its photo and its embedding (spec §4.D: "stream all Faces for
// an event as (photo_id, 512-d embedding) pairs").
type EmbeddingPair struct {
	PhotoID   string
	FaceIndex int
	Embedding []float32
}

// FaceStore is the Embedding Store's face-facing surface (spec §4.D).
type FaceStore interface {
	// InsertFaces persists faces for photoID, assigning a fresh id to
	// any face whose ID is empty.
	InsertFaces(ctx context.Context, eventID, photoID string, faces []domain.Face) error
	// DeleteFacesForPhoto removes every Face row bound to photoID.
	DeleteFacesForPhoto(ctx context.Context, photoID string) error
	// StreamEmbeddingsForEvent returns every (photo_id, embedding) pair
	// for eventID, ordered deterministically by (photo_id, face_index).
	StreamEmbeddingsForEvent(ctx context.Context, eventID string) ([]EmbeddingPair, error)
	// FacesForEvent returns full Face rows for eventID in the same
	// deterministic order, used by the Clusterer to rewrite cluster_label.
	FacesForEvent(ctx context.Context, eventID string) ([]domain.Face, error)
}

// ClusterStore is the Embedding Store's cluster-facing surface (spec
// §4.D, §4.E): a single transaction deletes all prior clusters for an
// event, writes the new set, and updates cluster_label on every Face.
type ClusterStore interface {
	// ReplaceClusters deletes all FaceCluster rows for eventID and the
	// prior cluster_label on every Face, then inserts clusters and sets
	// labels in faceLabels (face id -> cluster_label, nil for noise), all
	// inside one transaction.
	ReplaceClusters(ctx context.Context, eventID string, clusters []domain.FaceCluster, faceLabels map[string]*int) error
}

// PhotoStore is the Embedding Store's photo-facing surface (spec §4.D).
type PhotoStore interface {
	InsertPhoto(ctx context.Context, photo domain.Photo) error
	UpdatePhoto(ctx context.Context, photo domain.Photo) error
	DeletePhoto(ctx context.Context, photoID string) error
	PhotosByEvent(ctx context.Context, eventID string) ([]domain.Photo, error)
	PhotosByIDs(ctx context.Context, ids []string) ([]domain.Photo, error)
	PhotoByDriveFileID(ctx context.Context, eventID, driveFileID string) (*domain.Photo, error)
}

// EventStore covers the Event lifecycle rows the Worker reads and
// transitions.
type EventStore interface {
	InsertEvent(ctx context.Context, event domain.Event) error
	UpdateEventStatus(ctx context.Context, eventID string, status domain.EventStatus) error
	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
	StaleEvents(ctx context.Context, statuses []domain.EventStatus, limit int) ([]domain.Event, error)
}

// GuestQueryStore covers the GuestQuery/GuestResult rows the Matcher's
// caller reads and writes.
type GuestQueryStore interface {
	GetGuestQuery(ctx context.Context, queryID string) (*domain.GuestQuery, error)
	UpdateGuestQuery(ctx context.Context, query domain.GuestQuery) error
	ReplaceGuestResults(ctx context.Context, queryID string, results []domain.GuestResult) error
	ExpiredSelfiePaths(ctx context.Context, olderThan time.Time) ([]string, error)
	// BlankExpiredSelfiePaths clears selfie_path on every GuestQuery
	// whose expires_at is before olderThan, once the cleanup pass has
	// deleted the corresponding blobs from disk (spec §4.H cleanup
	// pass: "delete-if-exists the blob and blank the path").
	BlankExpiredSelfiePaths(ctx context.Context, olderThan time.Time) error
}

// Store aggregates every repository surface the worker needs; the pgx
// implementation in internal/database/postgres satisfies all of them
// from a single connection pool.
type Store interface {
	FaceStore
	ClusterStore
	PhotoStore
	EventStore
	GuestQueryStore
}
