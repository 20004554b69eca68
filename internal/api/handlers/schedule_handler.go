package handlers

import (
	"errors"
	"log/slog"

	"github.com/MarselBissengaliyev/x-backend/internal/scheduler"
	"github.com/MarselBissengaliyev/x-backend/internal/service"
	"github.com/MarselBissengaliyev/x-backend/internal/transfer"
	"github.com/gofiber/fiber/v2"
)

type ScheduleHandler struct {
	registry *scheduler.Registry
}

func NewScheduleHandler(registry *scheduler.Registry) *ScheduleHandler {
	return &ScheduleHandler{registry: registry}
}

func (h *ScheduleHandler) CreateSchedule(c *fiber.Ctx) error {
	var req transfer.ScheduleCreation
	if !ParseBody(c, &req) {
		return nil
	}
	if req.AccountID == "" || req.CronExpression == "" || req.PromptText == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "account_id, cron_expression and prompt_text are required",
		})
	}

	sp, err := h.registry.Schedule(c.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Account not found",
			})
		}
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(sp)
}

func (h *ScheduleHandler) ListSchedules(c *fiber.Ctx) error {
	accountID := c.Query("account_id")
	if accountID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "account_id is required",
		})
	}

	schedules, err := h.registry.List(c.Context(), accountID)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list scheduled posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(schedules)
}

func (h *ScheduleHandler) RemoveSchedule(c *fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id is required",
		})
	}

	err := h.registry.Remove(c.Context(), id)
	if err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Scheduled post not found",
			})
		}
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove scheduled post",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *ScheduleHandler) ActiveJobs(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"job_ids": h.registry.ActiveJobIDs(),
	})
}
