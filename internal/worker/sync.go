package worker

import (
	"context"
	"fmt"

	"github.com/grabpic/pipeline/internal/domain"
	"github.com/grabpic/pipeline/internal/jobqueue"
	"github.com/grabpic/pipeline/internal/remote"
)

// runSync implements the sync_event job (spec §4.H "Sync job").
func (w *Worker) runSync(ctx context.Context, job *domain.Job) error {
	if job.EventID == nil {
		return domain.NewPipelineError(domain.ErrEventMissing, "sync job carries no event_id", nil)
	}
	eventID := *job.EventID

	event, err := w.store.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("loading event %s: %w", eventID, err)
	}
	if event == nil {
		return domain.NewPipelineError(domain.ErrEventMissing, "event "+eventID+" not found", nil)
	}

	payload := jobqueue.SyncPayload{Phase: "listing"}
	if err := w.queue.UpsertPayload(ctx, job.ID, payload.ToMap()); err != nil {
		return err
	}
	if err := w.queue.MarkProgress(ctx, job.ID, 1, "listing_drive_files"); err != nil {
		return err
	}

	files, err := w.remote.ListImages(ctx, event.DriveFolderID, w.cfg.Remote.MaxSyncImages)
	if err != nil {
		return fmt.Errorf("listing remote images for event %s: %w", eventID, err)
	}
	var listed []remote.FileInfo
	for _, f := range files {
		if f.ID == "" {
			continue
		}
		listed = append(listed, f)
	}
	total := len(listed)

	if total == 0 {
		if err := w.store.UpdateEventStatus(ctx, eventID, domain.EventReady); err != nil {
			return err
		}
		return w.queue.Complete(ctx, job.ID, "completed", payload.ToMap())
	}

	existingPhotos, err := w.store.PhotosByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("loading existing photos for event %s: %w", eventID, err)
	}
	existingByDriveID := make(map[string]domain.Photo, len(existingPhotos))
	for _, p := range existingPhotos {
		existingByDriveID[p.DriveFileID] = p
	}

	var reused, refreshQueue []remote.FileInfo
	for _, f := range listed {
		if existing, ok := existingByDriveID[f.ID]; ok && existing.ContentStamp == remote.ContentStamp(f) {
			reused = append(reused, f)
			continue
		}
		refreshQueue = append(refreshQueue, f)
	}

	payload.TotalListed = total
	payload.ReusedFiles = len(reused)
	payload.Processed = len(reused)
	payload.Completed = len(reused)
	payload.RefreshQueueTotal = len(refreshQueue)
	payload.Phase = "processing"
	if err := w.queue.UpsertPayload(ctx, job.ID, payload.ToMap()); err != nil {
		return err
	}

	listedDriveIDs := make(map[string]bool, total)
	for _, f := range listed {
		listedDriveIDs[f.ID] = true
	}

	for i, f := range refreshQueue {
		if canceled, err := w.checkCanceled(ctx, job.ID); err != nil {
			return err
		} else if canceled {
			w.finalizeCancellation(ctx, job)
			return nil
		}

		payload.CurrentFileID = f.ID
		payload.CurrentFileName = f.Name
		if err := w.syncOneFile(ctx, eventID, existingByDriveID, f, &payload); err != nil {
			payload.Failures++
		}
		payload.Completed = len(reused) + i + 1

		progress := clampPercent(float64(len(reused)+i+1) / float64(total) * 100)
		if err := w.queue.MarkProgress(ctx, job.ID, progress, fmt.Sprintf("processing image %d/%d", len(reused)+i+1, total)); err != nil {
			return err
		}
		if err := w.queue.UpsertPayload(ctx, job.ID, payload.ToMap()); err != nil {
			return err
		}
	}

	for _, p := range existingPhotos {
		if !listedDriveIDs[p.DriveFileID] {
			if err := w.store.DeletePhoto(ctx, p.ID); err != nil {
				return fmt.Errorf("removing stale photo %s: %w", p.ID, err)
			}
		}
	}

	hasClusters, err := w.eventHasClusters(ctx, eventID)
	if err != nil {
		return err
	}
	if payload.RefreshedFiles > 0 || payload.Failures > 0 || !hasClusters {
		if err := w.store.UpdateEventStatus(ctx, eventID, domain.EventProcessingClusters); err != nil {
			return err
		}
		if _, err := w.queue.Enqueue(ctx, domain.JobClusterEvent, &eventID, nil, map[string]any{"trigger": "after_sync", "source_job_id": job.ID}, "queued"); err != nil {
			return err
		}
	} else if err := w.store.UpdateEventStatus(ctx, eventID, domain.EventReady); err != nil {
		return err
	}

	return w.queue.Complete(ctx, job.ID, "completed", payload.ToMap())
}

// syncOneFile downloads, thumbnails, upserts and re-embeds one listed
// file. A failure here (download, decode, persistence) is reported to
// the caller so it can bump the failures counter without blocking the
// rest of the refresh queue (spec §4.H step f: "do not bump refreshed").
func (w *Worker) syncOneFile(ctx context.Context, eventID string, existingByDriveID map[string]domain.Photo, f remote.FileInfo, payload *jobqueue.SyncPayload) error {
	data, err := w.remote.Download(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", f.ID, err)
	}

	thumbPath, err := w.storage.SaveThumbnail(eventID, f.ID, data, w.cfg.Storage.ThumbnailMaxSize)
	if err != nil {
		return fmt.Errorf("saving thumbnail for %s: %w", f.ID, err)
	}

	photo := domain.Photo{
		EventID:       eventID,
		DriveFileID:   f.ID,
		FileName:      f.Name,
		MimeType:      f.MimeType,
		WebViewLink:   f.WebViewLink,
		ThumbnailPath: thumbPath,
		ContentStamp:  remote.ContentStamp(f),
		Status:        domain.PhotoOK,
	}

	if existing, ok := existingByDriveID[f.ID]; ok {
		photo.ID = existing.ID
		if err := w.store.UpdatePhoto(ctx, photo); err != nil {
			return fmt.Errorf("updating photo %s: %w", photo.ID, err)
		}
	} else {
		photo.ID = domain.NewID()
		if err := w.store.InsertPhoto(ctx, photo); err != nil {
			return fmt.Errorf("inserting photo %s: %w", photo.ID, err)
		}
	}

	if err := w.store.DeleteFacesForPhoto(ctx, photo.ID); err != nil {
		return fmt.Errorf("clearing faces for photo %s: %w", photo.ID, err)
	}

	faces, err := w.engine.EmbedFaces(ctx, data, w.cfg.FaceEngine.MaxFacesPerImage)
	if err != nil {
		return fmt.Errorf("embedding faces for photo %s: %w", photo.ID, err)
	}

	domainFaces := make([]domain.Face, len(faces))
	for i, face := range faces {
		domainFaces[i] = domain.Face{
			EventID:       eventID,
			PhotoID:       photo.ID,
			FaceIndex:     i,
			Embedding:     face.Embedding,
			AreaRatio:     face.AreaRatio,
			DetConfidence: face.DetConfidence,
			Sharpness:     face.Sharpness,
			BBox:          domain.BBox{X: face.BBox[0], Y: face.BBox[1], W: face.BBox[2], H: face.BBox[3]},
		}
	}
	if len(domainFaces) > 0 {
		if err := w.store.InsertFaces(ctx, eventID, photo.ID, domainFaces); err != nil {
			return fmt.Errorf("inserting faces for photo %s: %w", photo.ID, err)
		}
	}

	payload.RefreshedFiles++
	payload.Processed++
	payload.MatchedFaces += len(faces)
	return nil
}

// eventHasClusters reports whether eventID already has at least one
// face assigned to a cluster, used to decide whether a fresh sync with
// no content changes still needs a cluster job (spec §4.H step h).
func (w *Worker) eventHasClusters(ctx context.Context, eventID string) (bool, error) {
	faces, err := w.store.FacesForEvent(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("checking existing clusters for event %s: %w", eventID, err)
	}
	for _, f := range faces {
		if f.ClusterLabel != nil {
			return true, nil
		}
	}
	return false, nil
}

func clampPercent(v float64) float64 {
	if v < 2 {
		return 2
	}
	if v > 95 {
		return 95
	}
	return v
}
