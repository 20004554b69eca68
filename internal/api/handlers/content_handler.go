package handlers

import (
	"log/slog"

	"github.com/MarselBissengaliyev/x-backend/internal/service"
	"github.com/MarselBissengaliyev/x-backend/internal/transfer"
	"github.com/gofiber/fiber/v2"
)

type ContentHandler struct {
	gen service.ContentGenerator
}

func NewContentHandler(gen service.ContentGenerator) *ContentHandler {
	return &ContentHandler{gen: gen}
}

// Generate runs a single on-demand generation so prompts can be previewed
// before a job is scheduled with them.
func (h *ContentHandler) Generate(c *fiber.Ctx) error {
	var req transfer.GenerationRequest
	if !ParseBody(c, &req) {
		return nil
	}
	if req.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "prompt is required",
		})
	}

	var result string
	var err error
	switch req.Type {
	case transfer.GenerationTypeText:
		result, err = h.gen.GenerateText(c.Context(), req.Prompt)
	case transfer.GenerationTypeImage:
		result, err = h.gen.GenerateImage(c.Context(), req.Prompt)
	case transfer.GenerationTypeImageAnalysis:
		if req.ImageURL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "image_url is required for image analysis",
			})
		}
		result, err = h.gen.AnalyzeAndRegenerateImage(c.Context(), req.Prompt, req.ImageURL)
	case transfer.GenerationTypeHashtags:
		result, err = h.gen.GenerateHashtags(c.Context(), req.Prompt)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown generation type",
		})
	}

	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Generation failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(transfer.GenerationResponse{Result: result})
}
