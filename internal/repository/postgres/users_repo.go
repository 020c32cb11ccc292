package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/vipclub/vipclub-backend/internal/models"
	repo "github.com/vipclub/vipclub-backend/internal/repository"
)

type usersRepo struct{ pool *pgxpool.Pool }

const userCols = `id, username, email, password_hash, role, balance, last_withdrawal_at, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.Balance, &u.LastWithdrawalAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, repo.ErrNotFound
	}
	return u, err
}

func (r *usersRepo) Create(ctx context.Context, username, email, passwordHash, role string) (models.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users(id, username, email, password_hash, role)
		 VALUES($1,$2,$3,$4,$5)
		 RETURNING `+userCols,
		uuid.NewString(), username, email, passwordHash, role,
	))
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email))
}

func (r *usersRepo) Debit(ctx context.Context, userID string, amount decimal.Decimal) (models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		    SET balance = balance - $2, updated_at = now()
		  WHERE id = $1 AND balance >= $2
		  RETURNING `+userCols,
		userID, amount,
	))
	if errors.Is(err, repo.ErrNotFound) {
		// row exists but the guard failed, or no such user; either way
		// the debit did not happen
		return models.User{}, repo.ErrInsufficientBalance
	}
	return u, err
}

func (r *usersRepo) Credit(ctx context.Context, userID string, amount decimal.Decimal) (models.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		    SET balance = balance + $2, updated_at = now()
		  WHERE id = $1
		  RETURNING `+userCols,
		userID, amount,
	))
}

func (r *usersRepo) TouchLastWithdrawal(ctx context.Context, userID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET last_withdrawal_at=$2, updated_at=now() WHERE id=$1`,
		userID, at,
	)
	return err
}
