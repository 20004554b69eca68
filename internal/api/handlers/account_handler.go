package handlers

import (
	"errors"
	"log/slog"

	"github.com/MarselBissengaliyev/x-backend/internal/service"
	"github.com/MarselBissengaliyev/x-backend/internal/transfer"
	"github.com/gofiber/fiber/v2"
)

type AccountHandler struct {
	auth     service.AuthService
	accounts service.AccountService
}

func NewAccountHandler(auth service.AuthService, accounts service.AccountService) *AccountHandler {
	return &AccountHandler{auth: auth, accounts: accounts}
}

// CreateAccount drives the browser login. The response is the login outcome:
// either the account is created, or a session id for the challenge / 2FA
// follow-up, or a rejection.
func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req transfer.AccountCreation
	if !ParseBody(c, &req) {
		return nil
	}
	if req.Login == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "login and password are required",
		})
	}

	// Logging in with a known login refreshes its cookie jar instead of
	// failing, so retries after cookie expiry need no special endpoint.
	outcome, err := h.auth.BeginLogin(c.Context(), &req)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Login attempt failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(outcome)
}

func (h *AccountHandler) SubmitChallenge(c *fiber.Ctx) error {
	var req transfer.ChallengeSubmission
	if !ParseBody(c, &req) {
		return nil
	}

	outcome, err := h.auth.ContinueChallenge(c.Context(), req.SessionID, req.ChallengeInput, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Login session expired or not found",
			})
		}
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Challenge step failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(outcome)
}

func (h *AccountHandler) SubmitCode(c *fiber.Ctx) error {
	var req transfer.CodeSubmission
	if !ParseBody(c, &req) {
		return nil
	}

	outcome, err := h.auth.ContinueSecondFactor(c.Context(), req.SessionID, req.Code)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Login session expired or not found",
			})
		}
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Verification step failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(outcome)
}

func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	accounts, err := h.accounts.List(c.Context())
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list accounts",
		})
	}
	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *AccountHandler) RemoveAccount(c *fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id is required",
		})
	}

	err := h.accounts.Remove(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Account not found",
			})
		}
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
