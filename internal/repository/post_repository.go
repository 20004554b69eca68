package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/MarselBissengaliyev/x-backend/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id string) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	GetByAccountID(ctx context.Context, accountID string) ([]*models.Post, error)
	Remove(ctx context.Context, id string) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (id, account_id, content, image_url, hashtags, target_url, promoted)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7)
	`
	_, err := r.db.ExecContext(ctx, query, post.ID, post.AccountID, post.Content, post.ImageURL, post.Hashtags, post.TargetURL, post.Promoted)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `
		SELECT id, account_id, content, COALESCE(image_url, ''), COALESCE(hashtags, ''), COALESCE(target_url, ''), promoted, created_at
		FROM posts WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var post models.Post
	err := row.Scan(&post.ID, &post.AccountID, &post.Content, &post.ImageURL, &post.Hashtags, &post.TargetURL, &post.Promoted, &post.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &post, nil
}

func (r *postRepository) GetByAccountID(ctx context.Context, accountID string) ([]*models.Post, error) {
	query := `
		SELECT id, account_id, content, COALESCE(image_url, ''), COALESCE(hashtags, ''), COALESCE(target_url, ''), promoted, created_at
		FROM posts WHERE account_id = $1 ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var post models.Post
		err := rows.Scan(&post.ID, &post.AccountID, &post.Content, &post.ImageURL, &post.Hashtags, &post.TargetURL, &post.Promoted, &post.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, &post)
	}
	return posts, rows.Err()
}

func (r *postRepository) Remove(ctx context.Context, id string) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
