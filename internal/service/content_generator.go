package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ContentGenerator is the black-box text/image generator behind the content
// pipeline. All methods may fail with a plain error; callers decide whether
// the field was mandatory.
type ContentGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
	AnalyzeAndRegenerateImage(ctx context.Context, prompt, imageURL string) (string, error)
	GenerateHashtags(ctx context.Context, prompt string) (string, error)
}

type openaiGenerator struct {
	client *openai.Client
}

func NewOpenAIGenerator(apiKey string) ContentGenerator {
	return &openaiGenerator{client: openai.NewClient(apiKey)}
}

func (g *openaiGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return g.complete(ctx, prompt)
}

func (g *openaiGenerator) GenerateHashtags(ctx context.Context, prompt string) (string, error) {
	return g.complete(ctx, prompt)
}

func (g *openaiGenerator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("generation failed: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *openaiGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt: prompt,
		N:      1,
		Size:   openai.CreateImageSize512x512,
	})
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("generation failed: no image URL returned")
	}
	return resp.Data[0].URL, nil
}

// AnalyzeAndRegenerateImage describes the source image with a vision model
// and generates a fresh image from that description.
func (g *openaiGenerator) AnalyzeAndRegenerateImage(ctx context.Context, prompt, imageURL string) (string, error) {
	encoded, err := fetchImageBase64(ctx, imageURL)
	if err != nil {
		return "", err
	}

	if prompt == "" {
		prompt = "Describe what is depicted and how it could be visualised."
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4Turbo,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: "data:image/jpeg;base64," + encoded,
						},
					},
				},
			},
		},
	})
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("generation failed: empty image description")
	}

	return g.GenerateImage(ctx, resp.Choices[0].Message.Content)
}

func fetchImageBase64(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch source image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch source image: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
