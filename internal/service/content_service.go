package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MarselBissengaliyev/x-backend/internal/models"
)

// Field is one generated value. "Not requested" and "requested but failed"
// stay distinguishable instead of both collapsing to an empty string.
type Field struct {
	Value     string
	Requested bool
	Err       error
}

// Present reports whether the field produced a usable value.
func (f Field) Present() bool {
	return f.Requested && f.Err == nil && f.Value != ""
}

type GeneratedContent struct {
	Text     Field
	Image    Field
	Hashtags Field
}

// ContentService fans the configured generation requests out in parallel.
// Text is mandatory; image and hashtags degrade to absent on failure.
type ContentService interface {
	// Generate produces content for one tick. claimedImagePath, when set,
	// is a locally resolved media asset and suppresses image generation.
	Generate(ctx context.Context, sp *models.ScheduledPost, claimedImagePath string) (*GeneratedContent, error)
}

type contentService struct {
	gen ContentGenerator
}

func NewContentService(gen ContentGenerator) ContentService {
	return &contentService{gen: gen}
}

func (s *contentService) Generate(ctx context.Context, sp *models.ScheduledPost, claimedImagePath string) (*GeneratedContent, error) {
	var content GeneratedContent
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		content.Text = requestField(ctx, sp.PromptText, s.gen.GenerateText)
	}()

	switch {
	case claimedImagePath != "":
		// A claimed media asset wins over image generation.
		content.Image = Field{Value: claimedImagePath, Requested: true}
	case sp.PromptImage != "" && sp.UseAiOnImage:
		wg.Add(1)
		go func() {
			defer wg.Done()
			content.Image = requestField(ctx, sp.PromptImage, func(ctx context.Context, prompt string) (string, error) {
				return s.gen.AnalyzeAndRegenerateImage(ctx, prompt, sp.PromptImage)
			})
		}()
	case sp.PromptImage != "":
		wg.Add(1)
		go func() {
			defer wg.Done()
			content.Image = requestField(ctx, sp.PromptImage, s.gen.GenerateImage)
		}()
	}

	if sp.PromptHashtags != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content.Hashtags = requestField(ctx, sp.PromptHashtags, s.gen.GenerateHashtags)
		}()
	}

	wg.Wait()

	if content.Text.Err != nil {
		return nil, fmt.Errorf("text generation: %w", content.Text.Err)
	}
	if content.Image.Requested && content.Image.Err != nil {
		slog.Info("image generation failed, publishing without image", "error", content.Image.Err.Error())
	}
	if content.Hashtags.Requested && content.Hashtags.Err != nil {
		slog.Info("hashtag generation failed, publishing without hashtags", "error", content.Hashtags.Err.Error())
	}

	return &content, nil
}

func requestField(ctx context.Context, prompt string, generate func(context.Context, string) (string, error)) Field {
	value, err := generate(ctx, prompt)
	return Field{Value: value, Requested: true, Err: err}
}
