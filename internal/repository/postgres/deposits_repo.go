package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vipclub/vipclub-backend/internal/models"
	repo "github.com/vipclub/vipclub-backend/internal/repository"
)

type depositsRepo struct{ pool *pgxpool.Pool }

const depositCols = `id, user_id, payment_id, amount_usd, pay_currency, status, created_at, updated_at`

func scanDeposit(row pgx.Row) (models.Deposit, error) {
	var d models.Deposit
	err := row.Scan(&d.ID, &d.UserID, &d.PaymentID, &d.AmountUSD, &d.PayCurrency,
		&d.Status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Deposit{}, repo.ErrNotFound
	}
	return d, err
}

func (r *depositsRepo) Create(ctx context.Context, d models.Deposit) (models.Deposit, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = models.DepositWaiting
	}
	return scanDeposit(r.pool.QueryRow(ctx,
		`INSERT INTO deposits(id, user_id, payment_id, amount_usd, pay_currency, status)
		 VALUES($1,$2,$3,$4,$5,$6)
		 RETURNING `+depositCols,
		d.ID, d.UserID, d.PaymentID, d.AmountUSD, d.PayCurrency, d.Status,
	))
}

func (r *depositsRepo) GetByPaymentID(ctx context.Context, paymentID string) (models.Deposit, error) {
	return scanDeposit(r.pool.QueryRow(ctx,
		`SELECT `+depositCols+` FROM deposits WHERE payment_id=$1`, paymentID))
}

// ConfirmAndCredit flips waiting -> finished and credits the balance in
// one DB transaction. The conditional UPDATE is the single idempotency
// guard: a replayed webhook matches no row and credits nothing.
func (r *depositsRepo) ConfirmAndCredit(ctx context.Context, paymentID string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var d models.Deposit
	err = tx.QueryRow(ctx,
		`UPDATE deposits SET status=$2, updated_at=now()
		  WHERE payment_id=$1 AND status=$3
		  RETURNING `+depositCols,
		paymentID, models.DepositFinished, models.DepositWaiting,
	).Scan(&d.ID, &d.UserID, &d.PaymentID, &d.AmountUSD, &d.PayCurrency,
		&d.Status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil // already credited or unknown payment
	}
	if err != nil {
		return false, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET balance = balance + $2, updated_at = now() WHERE id = $1`,
		d.UserID, d.AmountUSD,
	); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *depositsRepo) MarkFailed(ctx context.Context, paymentID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE deposits SET status=$2, updated_at=now() WHERE payment_id=$1 AND status=$3`,
		paymentID, models.DepositFailed, models.DepositWaiting,
	)
	return err
}
