package worker

import (
	"context"
	"fmt"

	clusterer "github.com/grabpic/pipeline/internal/cluster"
	"github.com/grabpic/pipeline/internal/domain"
	"github.com/grabpic/pipeline/internal/jobqueue"
)

// runCluster implements the cluster_event job (spec §4.H "Cluster job").
func (w *Worker) runCluster(ctx context.Context, job *domain.Job) error {
	if job.EventID == nil {
		return domain.NewPipelineError(domain.ErrEventMissing, "cluster job carries no event_id", nil)
	}
	eventID := *job.EventID

	event, err := w.store.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("loading event %s: %w", eventID, err)
	}
	if event == nil {
		return domain.NewPipelineError(domain.ErrEventMissing, "event "+eventID+" not found", nil)
	}

	if canceled, err := w.checkCanceled(ctx, job.ID); err != nil {
		return err
	} else if canceled {
		w.finalizeCancellation(ctx, job)
		return nil
	}

	if err := w.queue.MarkProgress(ctx, job.ID, 96, "clustering_faces"); err != nil {
		return err
	}

	faces, err := w.store.FacesForEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("loading faces for event %s: %w", eventID, err)
	}

	points := make([]clusterer.Point, len(faces))
	for i, f := range faces {
		points[i] = clusterer.Point{FaceID: f.ID, PhotoID: f.PhotoID, Embedding: f.Embedding}
	}
	result := clusterer.Run(points, w.cfg.Cluster.Eps, w.cfg.Cluster.MinSamples)

	faceLabels := make(map[string]*int, len(faces))
	for i, f := range faces {
		faceLabels[f.ID] = result.Labels[i]
	}
	for i := range result.Clusters {
		result.Clusters[i].ID = domain.NewID()
		result.Clusters[i].EventID = eventID
	}

	if err := w.store.ReplaceClusters(ctx, eventID, result.Clusters, faceLabels); err != nil {
		return fmt.Errorf("replacing clusters for event %s: %w", eventID, err)
	}
	if err := w.store.UpdateEventStatus(ctx, eventID, domain.EventReady); err != nil {
		return err
	}

	return w.queue.Complete(ctx, job.ID, "completed", jobqueue.ClusterPayload{ClusterCount: len(result.Clusters)}.ToMap())
}
