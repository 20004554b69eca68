package service

import (
	"context"
	"log/slog"

	"github.com/MarselBissengaliyev/x-backend/internal/browser"
	"github.com/MarselBissengaliyev/x-backend/internal/models"
	"github.com/MarselBissengaliyev/x-backend/internal/repository"
)

type AccountService interface {
	List(ctx context.Context) ([]*models.Account, error)
	Remove(ctx context.Context, id string) error
}

type accountService struct {
	accounts repository.AccountRepository
	jar      *browser.CookieStore
}

func NewAccountService(accounts repository.AccountRepository, jar *browser.CookieStore) AccountService {
	return &accountService{accounts: accounts, jar: jar}
}

func (s *accountService) List(ctx context.Context) ([]*models.Account, error) {
	return s.accounts.List(ctx)
}

// Remove deletes the account row and its saved cookie jar. Jobs bound to the
// account are torn down lazily on their next tick.
func (s *accountService) Remove(ctx context.Context, id string) error {
	account, found, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrAccountNotFound
	}

	if err := s.accounts.Remove(ctx, id); err != nil {
		return err
	}
	if err := s.jar.Remove(account.Login); err != nil {
		slog.Info(err.Error())
	}
	return nil
}
