package service

import (
	"context"
	"errors"
	"testing"

	"github.com/MarselBissengaliyev/x-backend/internal/models"
)

func TestGenerateTextOnly(t *testing.T) {
	gen := &scriptedGenerator{text: "a post"}
	s := NewContentService(gen)

	content, err := s.Generate(context.Background(), &models.ScheduledPost{PromptText: "write"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !content.Text.Present() || content.Text.Value != "a post" {
		t.Errorf("text field: %+v", content.Text)
	}
	if content.Image.Requested || content.Hashtags.Requested {
		t.Error("image and hashtags must stay unrequested")
	}
}

func TestGenerateAllFields(t *testing.T) {
	gen := &scriptedGenerator{text: "a post", image: "https://img", hashtags: "#go"}
	s := NewContentService(gen)
	sp := &models.ScheduledPost{PromptText: "write", PromptImage: "draw", PromptHashtags: "tag"}

	content, err := s.Generate(context.Background(), sp, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content.Image.Value != "https://img" || content.Hashtags.Value != "#go" {
		t.Errorf("optional fields: image=%+v hashtags=%+v", content.Image, content.Hashtags)
	}
}

func TestGenerateTextFailureIsFatal(t *testing.T) {
	gen := &scriptedGenerator{textErr: errors.New("quota exceeded"), image: "https://img"}
	s := NewContentService(gen)
	sp := &models.ScheduledPost{PromptText: "write", PromptImage: "draw"}

	if _, err := s.Generate(context.Background(), sp, ""); err == nil {
		t.Fatal("expected error when text generation fails")
	}
}

func TestGenerateOptionalFailureDegrades(t *testing.T) {
	gen := &scriptedGenerator{text: "a post", imageErr: errors.New("boom"), hashtagsErr: errors.New("boom")}
	s := NewContentService(gen)
	sp := &models.ScheduledPost{PromptText: "write", PromptImage: "draw", PromptHashtags: "tag"}

	content, err := s.Generate(context.Background(), sp, "")
	if err != nil {
		t.Fatalf("optional failures must not fail the tick: %v", err)
	}
	if content.Image.Present() || content.Hashtags.Present() {
		t.Error("failed optional fields must be absent")
	}
	if !content.Image.Requested || !content.Hashtags.Requested {
		t.Error("failed optional fields must remain marked requested")
	}
}

func TestGenerateClaimedImageWins(t *testing.T) {
	gen := &scriptedGenerator{text: "a post", image: "https://img"}
	s := NewContentService(gen)
	sp := &models.ScheduledPost{PromptText: "write", PromptImage: "draw"}

	content, err := s.Generate(context.Background(), sp, "/tmp/claimed.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content.Image.Value != "/tmp/claimed.jpg" {
		t.Errorf("claimed image must win, got %q", content.Image.Value)
	}
	for _, call := range gen.calls {
		if call == "image" || call == "analyze" {
			t.Error("image generation must be suppressed when an asset was claimed")
		}
	}
}

func TestGenerateAnalyzeRoute(t *testing.T) {
	gen := &scriptedGenerator{text: "a post", analyzed: "https://regen"}
	s := NewContentService(gen)
	sp := &models.ScheduledPost{PromptText: "write", PromptImage: "https://source", UseAiOnImage: true}

	content, err := s.Generate(context.Background(), sp, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content.Image.Value != "https://regen" {
		t.Errorf("expected regenerated image, got %q", content.Image.Value)
	}
	found := false
	for _, call := range gen.calls {
		if call == "analyze" {
			found = true
		}
	}
	if !found {
		t.Error("analyze route not taken")
	}
}
