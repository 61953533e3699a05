package postgres

import (
	"context"
	"fmt"

	"github.com/grabpic/pipeline/internal/database"
	"github.com/grabpic/pipeline/internal/domain"
)

// InsertFaces persists faces for photoID inside a transaction (spec
// §4.D: "insert Face bound to event and photo; face_index unique
// within photo").
func (r *Repo) InsertFaces(ctx context.Context, eventID, photoID string, faces []domain.Face) error {
	if len(faces) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning face insert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, f := range faces {
		vec, err := database.EncodeVector(f.Embedding, r.nativeVector)
		if err != nil {
			return fmt.Errorf("encoding face embedding: %w", err)
		}
		id := f.ID
		if id == "" {
			id = domain.NewID()
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO faces (id, event_id, photo_id, face_index, embedding, area_ratio, det_confidence, sharpness, bbox_x, bbox_y, bbox_w, bbox_h, cluster_label, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())
		`, id, eventID, photoID, f.FaceIndex, vec, f.AreaRatio, f.DetConfidence, f.Sharpness, f.BBox.X, f.BBox.Y, f.BBox.W, f.BBox.H, f.ClusterLabel)
		if err != nil {
			return fmt.Errorf("inserting face %d: %w", f.FaceIndex, err)
		}
	}
	return tx.Commit(ctx)
}

// DeleteFacesForPhoto implements database.FaceStore (spec §4.D).
func (r *Repo) DeleteFacesForPhoto(ctx context.Context, photoID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM faces WHERE photo_id = $1`, photoID)
	if err != nil {
		return fmt.Errorf("deleting faces for photo: %w", err)
	}
	return nil
}

// StreamEmbeddingsForEvent implements database.FaceStore, ordering
// deterministically by (photo_id, face_index) (spec §4.E).
func (r *Repo) StreamEmbeddingsForEvent(ctx context.Context, eventID string) ([]database.EmbeddingPair, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT photo_id, face_index, embedding FROM faces
		WHERE event_id = $1 ORDER BY photo_id ASC, face_index ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("streaming event embeddings: %w", err)
	}
	defer rows.Close()

	var out []database.EmbeddingPair
	for rows.Next() {
		var p database.EmbeddingPair
		var raw any
		if err := rows.Scan(&p.PhotoID, &p.FaceIndex, &raw); err != nil {
			return nil, fmt.Errorf("scanning embedding pair: %w", err)
		}
		vec, err := database.DecodeVector(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for photo %s: %w", p.PhotoID, err)
		}
		p.Embedding = vec
		out = append(out, p)
	}
	return out, rows.Err()
}

// FacesForEvent implements database.FaceStore, same deterministic order
// as StreamEmbeddingsForEvent (spec §4.E).
func (r *Repo) FacesForEvent(ctx context.Context, eventID string) ([]domain.Face, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, photo_id, face_index, embedding, area_ratio, det_confidence, sharpness, bbox_x, bbox_y, bbox_w, bbox_h, cluster_label, created_at
		FROM faces WHERE event_id = $1 ORDER BY photo_id ASC, face_index ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing faces for event: %w", err)
	}
	defer rows.Close()

	var out []domain.Face
	for rows.Next() {
		var f domain.Face
		var raw any
		if err := rows.Scan(&f.ID, &f.EventID, &f.PhotoID, &f.FaceIndex, &raw, &f.AreaRatio, &f.DetConfidence, &f.Sharpness, &f.BBox.X, &f.BBox.Y, &f.BBox.W, &f.BBox.H, &f.ClusterLabel, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning face: %w", err)
		}
		vec, err := database.DecodeVector(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding face embedding: %w", err)
		}
		f.Embedding = vec
		out = append(out, f)
	}
	return out, rows.Err()
}
