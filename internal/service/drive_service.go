package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	config "github.com/MarselBissengaliyev/x-backend/configs"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DriveService lists and downloads images from publicly shared Google Drive
// folders. Folders are read-only to us, so an API key is enough.
type DriveService interface {
	ListFolder(ctx context.Context, folderID string) ([]string, error)
	Download(ctx context.Context, fileID string) (string, error)
}

type driveService struct {
	cfg config.Config
}

func NewDriveService(cfg config.Config) DriveService {
	return &driveService{cfg: cfg}
}

func (d *driveService) client(ctx context.Context) (*drive.Service, error) {
	return drive.NewService(ctx, option.WithAPIKey(d.cfg.GoogleAPIKey))
}

func (d *driveService) ListFolder(ctx context.Context, folderID string) ([]string, error) {
	srv, err := d.client(ctx)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	query := fmt.Sprintf("'%s' in parents and mimeType contains 'image/' and trashed = false", folderID)
	var fileIDs []string
	pageToken := ""
	for {
		call := srv.Files.List().Q(query).Fields("nextPageToken, files(id, name)").Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("list drive folder %s: %w", folderID, err)
		}
		for _, f := range res.Files {
			fileIDs = append(fileIDs, f.Id)
		}
		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}
	return fileIDs, nil
}

// Download fetches the file into the downloads dir and returns the local
// path. The caller removes the file when it is done with it.
func (d *driveService) Download(ctx context.Context, fileID string) (string, error) {
	srv, err := d.client(ctx)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	if err := os.MkdirAll(d.cfg.DownloadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create downloads dir: %w", err)
	}

	res, err := srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("download drive file %s: %w", fileID, err)
	}
	defer res.Body.Close()

	path := filepath.Join(d.cfg.DownloadsDir, fileID+".jpg")
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, res.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("save drive file %s: %w", fileID, err)
	}
	return path, nil
}
