package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/MarselBissengaliyev/x-backend/internal/models"
)

type ScheduledPostRepository interface {
	GetByID(ctx context.Context, id string) (*models.ScheduledPost, bool, error)
	Create(ctx context.Context, sp *models.ScheduledPost) error
	GetByAccountID(ctx context.Context, accountID string) ([]*models.ScheduledPost, error)
	ListActive(ctx context.Context) ([]*models.ScheduledPost, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateResult(ctx context.Context, id, status, postID string, nextRun time.Time) error
	UpdateNextRun(ctx context.Context, id string, nextRun time.Time) error
	Remove(ctx context.Context, id string) (bool, error)
}

type scheduledPostRepository struct {
	db *sql.DB
}

func NewScheduledPostRepository(db *sql.DB) ScheduledPostRepository {
	return &scheduledPostRepository{db: db}
}

const scheduledPostColumns = `
	id, account_id, cron_expression, prompt_text, COALESCE(prompt_image, ''),
	COALESCE(prompt_hashtags, ''), COALESCE(images_source, ''), use_ai_on_image,
	COALESCE(target_url, ''), promoted_only, status, scheduled_at, COALESCE(post_id, ''), created_at
`

func scanScheduledPost(row interface{ Scan(...any) error }) (*models.ScheduledPost, error) {
	var sp models.ScheduledPost
	err := row.Scan(
		&sp.ID, &sp.AccountID, &sp.CronExpression, &sp.PromptText, &sp.PromptImage,
		&sp.PromptHashtags, &sp.ImagesSource, &sp.UseAiOnImage,
		&sp.TargetURL, &sp.PromotedOnly, &sp.Status, &sp.ScheduledAt, &sp.PostID, &sp.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (r *scheduledPostRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, bool, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE id = $1`

	sp, err := scanScheduledPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return sp, true, nil
}

func (r *scheduledPostRepository) Create(ctx context.Context, sp *models.ScheduledPost) error {
	query := `
		INSERT INTO scheduled_posts (
			id, account_id, cron_expression, prompt_text, prompt_image, prompt_hashtags,
			images_source, use_ai_on_image, target_url, promoted_only, status, scheduled_at
		)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, NULLIF($9, ''), $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		sp.ID, sp.AccountID, sp.CronExpression, sp.PromptText, sp.PromptImage, sp.PromptHashtags,
		sp.ImagesSource, sp.UseAiOnImage, sp.TargetURL, sp.PromotedOnly, sp.Status, sp.ScheduledAt,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *scheduledPostRepository) GetByAccountID(ctx context.Context, accountID string) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE account_id = $1 ORDER BY created_at`
	return r.list(ctx, query, accountID)
}

// ListActive returns jobs whose timers should exist after a restart:
// everything except cancelled and captcha_required.
func (r *scheduledPostRepository) ListActive(ctx context.Context) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE status NOT IN ($1, $2) ORDER BY created_at`
	return r.list(ctx, query, models.ScheduleStatusCancelled, models.ScheduleStatusCaptchaRequired)
}

func (r *scheduledPostRepository) list(ctx context.Context, query string, args ...any) ([]*models.ScheduledPost, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var sps []*models.ScheduledPost
	for rows.Next() {
		sp, err := scanScheduledPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		sps = append(sps, sp)
	}
	return sps, rows.Err()
}

func (r *scheduledPostRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE scheduled_posts SET status = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// UpdateResult records a tick outcome. An empty postID keeps the previous
// reference so a failed tick does not erase the last produced post.
func (r *scheduledPostRepository) UpdateResult(ctx context.Context, id, status, postID string, nextRun time.Time) error {
	query := `UPDATE scheduled_posts SET status = $1, post_id = COALESCE(NULLIF($2, ''), post_id), scheduled_at = $3 WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, status, postID, nextRun, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *scheduledPostRepository) UpdateNextRun(ctx context.Context, id string, nextRun time.Time) error {
	query := `UPDATE scheduled_posts SET scheduled_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, nextRun, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Remove reports whether a row was actually deleted so callers can
// distinguish "removed" from "was already gone".
func (r *scheduledPostRepository) Remove(ctx context.Context, id string) (bool, error) {
	query := `DELETE FROM scheduled_posts WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return n > 0, nil
}
