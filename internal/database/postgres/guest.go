package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/grabpic/pipeline/internal/domain"
)

func (r *Repo) GetGuestQuery(ctx context.Context, queryID string) (*domain.GuestQuery, error) {
	var q domain.GuestQuery
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_id, guest_user_id, status, selfie_path, expires_at, confidence, cluster_id, message, error_text, completed_at, created_at, updated_at
		FROM guest_queries WHERE id = $1
	`, queryID).Scan(&q.ID, &q.EventID, &q.GuestUserID, &q.Status, &q.SelfiePath, &q.ExpiresAt, &q.Confidence, &q.ClusterID, &q.Message, &q.ErrorText, &q.CompletedAt, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting guest query: %w", err)
	}
	return &q, nil
}

func (r *Repo) UpdateGuestQuery(ctx context.Context, q domain.GuestQuery) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE guest_queries SET status=$2, selfie_path=$3, confidence=$4, cluster_id=$5, message=$6, error_text=$7, completed_at=$8, updated_at=NOW()
		WHERE id = $1
	`, q.ID, q.Status, q.SelfiePath, q.Confidence, q.ClusterID, q.Message, q.ErrorText, q.CompletedAt)
	if err != nil {
		return fmt.Errorf("updating guest query: %w", err)
	}
	return nil
}

// ReplaceGuestResults overwrites all GuestResult rows for queryID
// inside a transaction (the Matcher's output is always a full
// re-ranking, never an incremental merge; spec §4.F).
func (r *Repo) ReplaceGuestResults(ctx context.Context, queryID string, results []domain.GuestResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning guest result replace transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM guest_results WHERE query_id = $1`, queryID); err != nil {
		return fmt.Errorf("deleting prior guest results: %w", err)
	}

	for _, res := range results {
		id := res.ID
		if id == "" {
			id = domain.NewID()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO guest_results (id, query_id, photo_id, score, rank, created_at)
			VALUES ($1,$2,$3,$4,$5,NOW())
		`, id, queryID, res.PhotoID, res.Score, res.Rank)
		if err != nil {
			return fmt.Errorf("inserting guest result rank %d: %w", res.Rank, err)
		}
	}

	return tx.Commit(ctx)
}

// ExpiredSelfiePaths returns the selfie_path of every guest query whose
// expires_at is before olderThan, used by the cleanup pass to purge
// expired selfie blobs from storage (spec §4.A, §4.H).
func (r *Repo) ExpiredSelfiePaths(ctx context.Context, olderThan time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT selfie_path FROM guest_queries WHERE expires_at < $1 AND selfie_path != ''
	`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("listing expired selfie paths: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning selfie path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// BlankExpiredSelfiePaths implements database.GuestQueryStore.
func (r *Repo) BlankExpiredSelfiePaths(ctx context.Context, olderThan time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE guest_queries SET selfie_path = '', updated_at = NOW() WHERE expires_at < $1 AND selfie_path != ''
	`, olderThan)
	if err != nil {
		return fmt.Errorf("blanking expired selfie paths: %w", err)
	}
	return nil
}
