package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/MarselBissengaliyev/x-backend/internal/models"
	"github.com/lib/pq"
)

type MediaAssetRepository interface {
	// ClaimUnused atomically selects the oldest unused asset of the job and
	// marks it used. Returns (nil, nil) when the pool is exhausted.
	ClaimUnused(ctx context.Context, scheduledPostID string) (*models.MediaAsset, error)
	BulkCreate(ctx context.Context, scheduledPostID string, fileIDs []string) error
	CountUnused(ctx context.Context, scheduledPostID string) (int64, error)
	RemoveByScheduledPost(ctx context.Context, scheduledPostID string) error
}

type mediaAssetRepository struct {
	db *sql.DB
}

func NewMediaAssetRepository(db *sql.DB) MediaAssetRepository {
	return &mediaAssetRepository{db: db}
}

// ClaimUnused is the only statement in the codebase that flips the used
// flag. FOR UPDATE SKIP LOCKED makes concurrent claims land on different
// rows, so two ticks can never take the same asset.
func (r *mediaAssetRepository) ClaimUnused(ctx context.Context, scheduledPostID string) (*models.MediaAsset, error) {
	query := `
		UPDATE media_assets SET used = TRUE
		WHERE id = (
			SELECT id FROM media_assets
			WHERE scheduled_post_id = $1 AND used = FALSE
			ORDER BY id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, scheduled_post_id, file_id, used, created_at
	`

	var ma models.MediaAsset
	err := r.db.QueryRowContext(ctx, query, scheduledPostID).Scan(
		&ma.ID, &ma.ScheduledPostID, &ma.FileID, &ma.Used, &ma.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &ma, nil
}

// BulkCreate inserts newly enumerated Drive files; files already known for
// the job are skipped so a re-enumeration never resets the used flag.
func (r *mediaAssetRepository) BulkCreate(ctx context.Context, scheduledPostID string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO media_assets (scheduled_post_id, file_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT (scheduled_post_id, file_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, scheduledPostID, pq.Array(fileIDs))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *mediaAssetRepository) CountUnused(ctx context.Context, scheduledPostID string) (int64, error) {
	query := `SELECT COUNT(*) FROM media_assets WHERE scheduled_post_id = $1 AND used = FALSE`

	var n int64
	err := r.db.QueryRowContext(ctx, query, scheduledPostID).Scan(&n)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return n, nil
}

func (r *mediaAssetRepository) RemoveByScheduledPost(ctx context.Context, scheduledPostID string) error {
	query := `DELETE FROM media_assets WHERE scheduled_post_id = $1`
	_, err := r.db.ExecContext(ctx, query, scheduledPostID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
