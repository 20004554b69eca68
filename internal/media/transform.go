// Package media prepares source images for the composer uploader: download,
// type check, 1:1 center crop and resize to the upload dimensions.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// The composer rejects files above 3MB.
	MaxUploadBytes = 3 * 1024 * 1024

	TargetSize = 1200

	downloadTimeout = 2 * time.Minute
)

var allowedTypes = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {},
}

// PrepareForUpload turns source (an http(s) URL or a local path) into a
// square jpeg of at most MaxUploadBytes at TargetSize pixels. The returned
// file is temporary; the caller removes it after the upload, success or not.
func PrepareForUpload(ctx context.Context, source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", fmt.Errorf("empty image source")
	}

	localPath := source
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		downloaded, err := downloadToTemp(ctx, source)
		if err != nil {
			return "", err
		}
		defer os.Remove(downloaded)
		localPath = downloaded
	}

	if err := checkImageType(localPath); err != nil {
		return "", err
	}

	img, err := imaging.Open(localPath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	// Center-crop to 1:1 before scaling so the subject stays framed.
	bounds := img.Bounds()
	if bounds.Dx() != bounds.Dy() {
		side := bounds.Dx()
		if bounds.Dy() < side {
			side = bounds.Dy()
		}
		img = imaging.CropCenter(img, side, side)
	}
	img = imaging.Resize(img, TargetSize, TargetSize, imaging.Lanczos)

	outPath, err := tempFileName(".jpg")
	if err != nil {
		return "", err
	}
	if err := imaging.Save(img, outPath, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	// Downscale once more if the encoded file still exceeds the cap.
	if info, err := os.Stat(outPath); err == nil && info.Size() > MaxUploadBytes {
		slog.Info("image exceeds upload cap, downscaling", "size", info.Size())
		small := imaging.Resize(img, TargetSize/2, TargetSize/2, imaging.Lanczos)
		if err := imaging.Save(small, outPath, imaging.JPEGQuality(80)); err != nil {
			return "", fmt.Errorf("encode downscaled image: %w", err)
		}
	}

	return outPath, nil
}

func checkImageType(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, 261)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return err
	}

	kind, err := filetype.Match(head[:n])
	if err != nil {
		return err
	}
	if _, ok := allowedTypes[kind.Extension]; !ok {
		return fmt.Errorf("unsupported image format %q, only PNG and JPEG are allowed", kind.Extension)
	}
	return nil
}

func downloadToTemp(ctx context.Context, url string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download image: unexpected status %s", resp.Status)
	}

	path, err := tempFileName(filepath.Ext(strings.Split(url, "?")[0]))
	if err != nil {
		return "", err
	}
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("save image: %w", err)
	}
	return path, nil
}

func tempFileName(ext string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	if ext == "" || !strings.HasPrefix(ext, ".") {
		ext = ".jpg"
	}
	return filepath.Join(os.TempDir(), "image-"+id+ext), nil
}
