package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/grabpic/pipeline/internal/domain"
)

func (r *Repo) InsertPhoto(ctx context.Context, p domain.Photo) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO photos (id, event_id, drive_file_id, file_name, mime_type, web_view_link, preview_url, download_url, thumbnail_path, content_stamp, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW(),NOW())
	`, p.ID, p.EventID, p.DriveFileID, p.FileName, p.MimeType, p.WebViewLink, p.PreviewURL, p.DownloadURL, p.ThumbnailPath, p.ContentStamp, p.Status)
	if err != nil {
		return fmt.Errorf("inserting photo: %w", err)
	}
	return nil
}

func (r *Repo) UpdatePhoto(ctx context.Context, p domain.Photo) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE photos SET file_name=$2, mime_type=$3, web_view_link=$4, preview_url=$5, download_url=$6,
			thumbnail_path=$7, content_stamp=$8, status=$9, updated_at=NOW()
		WHERE id = $1
	`, p.ID, p.FileName, p.MimeType, p.WebViewLink, p.PreviewURL, p.DownloadURL, p.ThumbnailPath, p.ContentStamp, p.Status)
	if err != nil {
		return fmt.Errorf("updating photo: %w", err)
	}
	return nil
}

func (r *Repo) DeletePhoto(ctx context.Context, photoID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM photos WHERE id = $1`, photoID)
	if err != nil {
		return fmt.Errorf("deleting photo: %w", err)
	}
	return nil
}

func (r *Repo) PhotosByEvent(ctx context.Context, eventID string) ([]domain.Photo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, drive_file_id, file_name, mime_type, web_view_link, preview_url, download_url, thumbnail_path, content_stamp, status, created_at, updated_at
		FROM photos WHERE event_id = $1 ORDER BY created_at ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing photos by event: %w", err)
	}
	defer rows.Close()
	return scanPhotos(rows)
}

func (r *Repo) PhotosByIDs(ctx context.Context, ids []string) ([]domain.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, drive_file_id, file_name, mime_type, web_view_link, preview_url, download_url, thumbnail_path, content_stamp, status, created_at, updated_at
		FROM photos WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("listing photos by id: %w", err)
	}
	defer rows.Close()
	return scanPhotos(rows)
}

func (r *Repo) PhotoByDriveFileID(ctx context.Context, eventID, driveFileID string) (*domain.Photo, error) {
	var p domain.Photo
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_id, drive_file_id, file_name, mime_type, web_view_link, preview_url, download_url, thumbnail_path, content_stamp, status, created_at, updated_at
		FROM photos WHERE event_id = $1 AND drive_file_id = $2
	`, eventID, driveFileID).Scan(&p.ID, &p.EventID, &p.DriveFileID, &p.FileName, &p.MimeType, &p.WebViewLink, &p.PreviewURL, &p.DownloadURL, &p.ThumbnailPath, &p.ContentStamp, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting photo by drive file id: %w", err)
	}
	return &p, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPhotos(rows rowScanner) ([]domain.Photo, error) {
	var out []domain.Photo
	for rows.Next() {
		var p domain.Photo
		if err := rows.Scan(&p.ID, &p.EventID, &p.DriveFileID, &p.FileName, &p.MimeType, &p.WebViewLink, &p.PreviewURL, &p.DownloadURL, &p.ThumbnailPath, &p.ContentStamp, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning photo: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
