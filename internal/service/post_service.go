package service

import (
	"context"

	"github.com/MarselBissengaliyev/x-backend/internal/models"
	"github.com/MarselBissengaliyev/x-backend/internal/repository"
)

// PostService reads the publish history. Posts are written by the scheduler
// only; this surface never creates them.
type PostService interface {
	PostInfo(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, accountID string) ([]*models.Post, error)
	Remove(ctx context.Context, id string) error
}

type postService struct {
	posts repository.PostRepository
}

func NewPostService(posts repository.PostRepository) PostService {
	return &postService{posts: posts}
}

func (s *postService) PostInfo(ctx context.Context, id string) (*models.Post, error) {
	return s.posts.GetByID(ctx, id)
}

func (s *postService) List(ctx context.Context, accountID string) ([]*models.Post, error) {
	return s.posts.GetByAccountID(ctx, accountID)
}

func (s *postService) Remove(ctx context.Context, id string) error {
	return s.posts.Remove(ctx, id)
}
