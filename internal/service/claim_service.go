package service

import (
	"context"
	"log/slog"

	"github.com/MarselBissengaliyev/x-backend/internal/models"
	"github.com/MarselBissengaliyev/x-backend/internal/repository"
)

// ClaimService hands out media assets under mutual exclusion: an asset is
// claimed by at most one publish attempt, ever.
type ClaimService interface {
	// Claim takes one unused asset of the job, refilling the pool from the
	// job's source folder once if it is empty. ErrNoImagesAvailable is a
	// soft condition, not a failure.
	Claim(ctx context.Context, sp *models.ScheduledPost) (*models.MediaAsset, error)

	// Resolve downloads the claimed asset and returns its local path. The
	// caller removes the file after use regardless of outcome.
	Resolve(ctx context.Context, asset *models.MediaAsset) (string, error)
}

type claimService struct {
	assets repository.MediaAssetRepository
	drive  DriveService
}

func NewClaimService(assets repository.MediaAssetRepository, drive DriveService) ClaimService {
	return &claimService{assets: assets, drive: drive}
}

func (s *claimService) Claim(ctx context.Context, sp *models.ScheduledPost) (*models.MediaAsset, error) {
	asset, err := s.assets.ClaimUnused(ctx, sp.ID)
	if err != nil {
		return nil, err
	}
	if asset != nil {
		if remaining, err := s.assets.CountUnused(ctx, sp.ID); err == nil {
			slog.Info("media asset claimed", "scheduled_post_id", sp.ID, "file_id", asset.FileID, "remaining", remaining)
		}
		return asset, nil
	}

	if sp.ImagesSource == "" {
		return nil, ErrNoImagesAvailable
	}

	// Pool exhausted: enumerate the folder and try exactly once more. New
	// files show up, already-used ones are skipped by the unique index.
	slog.Info("asset pool exhausted, re-enumerating source folder", "scheduled_post_id", sp.ID, "folder", sp.ImagesSource)
	fileIDs, err := s.drive.ListFolder(ctx, sp.ImagesSource)
	if err != nil {
		return nil, err
	}
	if err := s.assets.BulkCreate(ctx, sp.ID, fileIDs); err != nil {
		return nil, err
	}

	asset, err = s.assets.ClaimUnused(ctx, sp.ID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrNoImagesAvailable
	}
	return asset, nil
}

func (s *claimService) Resolve(ctx context.Context, asset *models.MediaAsset) (string, error) {
	return s.drive.Download(ctx, asset.FileID)
}
