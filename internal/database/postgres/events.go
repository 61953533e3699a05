package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/grabpic/pipeline/internal/domain"
)

func (r *Repo) InsertEvent(ctx context.Context, e domain.Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO events (id, name, slug, drive_link, drive_folder_id, owner_user_id, guest_code_hash, admin_token_hash, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
	`, e.ID, e.Name, e.Slug, e.DriveLink, e.DriveFolderID, e.OwnerUserID, e.GuestCodeHash, e.AdminTokenHash, e.Status)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (r *Repo) UpdateEventStatus(ctx context.Context, eventID string, status domain.EventStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2`, status, eventID)
	if err != nil {
		return fmt.Errorf("updating event status: %w", err)
	}
	return nil
}

func (r *Repo) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	var e domain.Event
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, slug, drive_link, drive_folder_id, owner_user_id, guest_code_hash, admin_token_hash, status, created_at, updated_at
		FROM events WHERE id = $1
	`, eventID).Scan(&e.ID, &e.Name, &e.Slug, &e.DriveLink, &e.DriveFolderID, &e.OwnerUserID, &e.GuestCodeHash, &e.AdminTokenHash, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting event: %w", err)
	}
	return &e, nil
}

// StaleEvents returns up to limit events whose status is in statuses,
// ordered by least-recently-updated first, for the cleanup+auto-refresh
// pass's scan over stale terminal events (spec §4.H).
func (r *Repo) StaleEvents(ctx context.Context, statuses []domain.EventStatus, limit int) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, slug, drive_link, drive_folder_id, owner_user_id, guest_code_hash, admin_token_hash, status, created_at, updated_at
		FROM events WHERE status = ANY($1) ORDER BY updated_at ASC LIMIT $2
	`, toStrings(statuses), limit)
	if err != nil {
		return nil, fmt.Errorf("listing stale events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Slug, &e.DriveLink, &e.DriveFolderID, &e.OwnerUserID, &e.GuestCodeHash, &e.AdminTokenHash, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning stale event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func toStrings(statuses []domain.EventStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
