// Package domain holds the entities of the ingest-and-match pipeline:
// Event, Photo, Face, FaceCluster, GuestQuery, GuestResult and Job, plus
// the EventMembership join used by the out-of-scope API layer.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh surrogate string id for any entity in this package.
func NewID() string {
	return uuid.NewString()
}

// EventStatus is the lifecycle status of an Event.
type EventStatus string

const (
	EventQueued             EventStatus = "queued"
	EventSyncing            EventStatus = "syncing"
	EventProcessingClusters EventStatus = "processing_clusters"
	EventReady              EventStatus = "ready"
	EventFailed             EventStatus = "failed"
	EventCanceled           EventStatus = "canceled"
	EventCancelRequested    EventStatus = "cancel_requested"
)

// Event is a photo collection synced from one remote folder.
type Event struct {
	ID             string
	Name           string
	Slug           string
	DriveLink      string
	DriveFolderID  string
	OwnerUserID    string
	GuestCodeHash  string
	AdminTokenHash string
	Status         EventStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PhotoStatus is the lifecycle status of a Photo row.
type PhotoStatus string

const (
	PhotoOK PhotoStatus = "ok"
)

// Photo is one image file discovered within an Event's remote folder.
type Photo struct {
	ID            string
	EventID       string
	DriveFileID   string
	FileName      string
	MimeType      string
	WebViewLink   string
	PreviewURL    string
	DownloadURL   string
	ThumbnailPath string
	ContentStamp  string
	Status        PhotoStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BBox is an axis-aligned bounding box in image pixel coordinates.
type BBox struct {
	X, Y, W, H float64
}

// Face is one detected face on a Photo.
type Face struct {
	ID            string
	EventID       string
	PhotoID       string
	FaceIndex     int
	Embedding     []float32
	AreaRatio     float64
	DetConfidence float64
	Sharpness     float64
	BBox          BBox
	ClusterLabel  *int
	CreatedAt     time.Time
}

// FaceCluster is one DBSCAN cluster for an Event.
type FaceCluster struct {
	ID            string
	EventID       string
	ClusterLabel  int
	Centroid      []float32
	FaceCount     int
	CoverPhotoID  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GuestQueryStatus is the lifecycle status of a GuestQuery.
type GuestQueryStatus string

const (
	GuestQueryQueued    GuestQueryStatus = "queued"
	GuestQueryRunning   GuestQueryStatus = "running"
	GuestQueryCompleted GuestQueryStatus = "completed"
	GuestQueryFailed    GuestQueryStatus = "failed"
)

// GuestQuery is a guest selfie match request against one Event.
type GuestQuery struct {
	ID            string
	EventID       string
	GuestUserID   *string
	Status        GuestQueryStatus
	SelfiePath    string
	ExpiresAt     time.Time
	Confidence    float64
	ClusterID     *string
	Message       string
	ErrorText     string
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GuestResult is one ranked photo match for a GuestQuery.
type GuestResult struct {
	ID        string
	QueryID   string
	PhotoID   string
	Score     float64
	Rank      int
	CreatedAt time.Time
}

// JobType names the kind of work a Job performs.
type JobType string

const (
	JobSyncEvent   JobType = "sync_event"
	JobClusterEvent JobType = "cluster_event"
	JobMatchGuest  JobType = "match_guest"
)

// JobStatus is the Job state-machine position, see internal/jobqueue.
type JobStatus string

const (
	JobQueued          JobStatus = "queued"
	JobRunning         JobStatus = "running"
	JobCancelRequested JobStatus = "cancel_requested"
	JobCanceled        JobStatus = "canceled"
	JobCompleted       JobStatus = "completed"
	JobFailed          JobStatus = "failed"
)

// Job is a unit of work consumed by the worker.
type Job struct {
	ID              string
	EventID         *string
	QueryID         *string
	Type            JobType
	Status          JobStatus
	ProgressPercent float64
	Stage           string
	ErrorText       string
	Payload         map[string]any
	Attempts        int
	LockedAt        *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EventMembership is the role-based access join between a user and an
// Event. No pipeline operation in this module mutates it; it is kept for
// Data Model completeness since the out-of-scope API layer owns it.
type EventMembership struct {
	ID        string
	EventID   string
	UserID    string
	CreatedAt time.Time
}
