package postgres

import (
	"context"
	"fmt"

	"github.com/grabpic/pipeline/internal/database"
	"github.com/grabpic/pipeline/internal/domain"
)

// ReplaceClusters implements database.ClusterStore: deletes every prior
// FaceCluster for eventID, inserts the new set, and rewrites
// cluster_label on every Face, all inside one transaction so the two
// stay mutually consistent (spec §4.E: "the cluster job always runs
// inside a single transaction").
func (r *Repo) ReplaceClusters(ctx context.Context, eventID string, clusters []domain.FaceCluster, faceLabels map[string]*int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning cluster replace transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM face_clusters WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("deleting prior clusters: %w", err)
	}

	for _, c := range clusters {
		vec, err := database.EncodeVector(c.Centroid, r.nativeVector)
		if err != nil {
			return fmt.Errorf("encoding cluster centroid: %w", err)
		}
		id := c.ID
		if id == "" {
			id = domain.NewID()
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO face_clusters (id, event_id, cluster_label, centroid, face_count, cover_photo_id, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
		`, id, eventID, c.ClusterLabel, vec, c.FaceCount, c.CoverPhotoID)
		if err != nil {
			return fmt.Errorf("inserting cluster %d: %w", c.ClusterLabel, err)
		}
	}

	for faceID, label := range faceLabels {
		if _, err := tx.Exec(ctx, `UPDATE faces SET cluster_label = $1 WHERE id = $2`, label, faceID); err != nil {
			return fmt.Errorf("updating cluster_label for face %s: %w", faceID, err)
		}
	}

	return tx.Commit(ctx)
}
