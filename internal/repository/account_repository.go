package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/MarselBissengaliyev/x-backend/internal/models"
)

type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, bool, error)
	GetByLogin(ctx context.Context, login string) (*models.Account, bool, error)
	Create(ctx context.Context, account *models.Account) error
	List(ctx context.Context) ([]*models.Account, error)
	Remove(ctx context.Context, id string) error
}

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, bool, error) {
	query := `SELECT id, login, password, COALESCE(proxy, ''), user_agent, created_at FROM accounts WHERE id = $1`

	var a models.Account
	err := r.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.Login, &a.Password, &a.Proxy, &a.UserAgent, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &a, true, nil
}

func (r *accountRepository) GetByLogin(ctx context.Context, login string) (*models.Account, bool, error) {
	query := `SELECT id, login, password, COALESCE(proxy, ''), user_agent, created_at FROM accounts WHERE login = $1`

	var a models.Account
	err := r.db.QueryRowContext(ctx, query, login).Scan(&a.ID, &a.Login, &a.Password, &a.Proxy, &a.UserAgent, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &a, true, nil
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, login, password, proxy, user_agent)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	`
	_, err := r.db.ExecContext(ctx, query, account.ID, account.Login, account.Password, account.Proxy, account.UserAgent)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *accountRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT id, login, password, COALESCE(proxy, ''), user_agent, created_at FROM accounts ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var a models.Account
		err := rows.Scan(&a.ID, &a.Login, &a.Password, &a.Proxy, &a.UserAgent, &a.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// Remove deletes the account; posts, scheduled posts and media assets go
// with it through ON DELETE CASCADE.
func (r *accountRepository) Remove(ctx context.Context, id string) error {
	query := `DELETE FROM accounts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
