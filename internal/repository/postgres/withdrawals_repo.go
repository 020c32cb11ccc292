package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vipclub/vipclub-backend/internal/models"
	repo "github.com/vipclub/vipclub-backend/internal/repository"
)

type withdrawalsRepo struct{ pool *pgxpool.Pool }

const withdrawalCols = `id, user_id, amount_usd, amount_crypto, currency, network, wallet_address,
	status, payout_type, external_payout_id, tx_hash, created_at, processed_at`

func scanWithdrawal(row pgx.Row) (models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(&w.ID, &w.UserID, &w.AmountUSD, &w.AmountCrypto, &w.Currency, &w.Network,
		&w.WalletAddress, &w.Status, &w.PayoutType, &w.ExternalPayoutID, &w.TxHash,
		&w.CreatedAt, &w.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Withdrawal{}, repo.ErrNotFound
	}
	return w, err
}

func (r *withdrawalsRepo) Create(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Status == "" {
		w.Status = models.WithdrawalPending
	}
	return scanWithdrawal(r.pool.QueryRow(ctx,
		`INSERT INTO withdrawals(id, user_id, amount_usd, amount_crypto, currency, network,
		                         wallet_address, status, payout_type)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING `+withdrawalCols,
		w.ID, w.UserID, w.AmountUSD, w.AmountCrypto, w.Currency, w.Network,
		w.WalletAddress, w.Status, w.PayoutType,
	))
}

func (r *withdrawalsRepo) GetByID(ctx context.Context, id string) (models.Withdrawal, error) {
	return scanWithdrawal(r.pool.QueryRow(ctx,
		`SELECT `+withdrawalCols+` FROM withdrawals WHERE id=$1`, id))
}

func (r *withdrawalsRepo) list(ctx context.Context, where string, args ...any) ([]models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+withdrawalCols+` FROM withdrawals `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *withdrawalsRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Withdrawal, error) {
	return r.list(ctx, `WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
}

func (r *withdrawalsRepo) ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.Withdrawal, error) {
	return r.list(ctx, `WHERE status=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, status, limit, offset)
}

func (r *withdrawalsRepo) HasInFlight(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM withdrawals WHERE user_id=$1 AND status=$2)`,
		userID, models.WithdrawalPending,
	).Scan(&exists)
	return exists, err
}

// Every transition carries its allowed-source-status predicate, so the
// UPDATE itself is the atomic guard. A terminal row can never be moved
// back and two racing transitions resolve to exactly one winner.

func (r *withdrawalsRepo) MarkCompleted(ctx context.Context, id, externalID, txHash string, at time.Time) error {
	return r.transition(ctx,
		`UPDATE withdrawals
		    SET status=$2, external_payout_id=$3, tx_hash=NULLIF($4,''), processed_at=$5
		  WHERE id=$1 AND status IN ('pending','error')`,
		id, models.WithdrawalCompleted, externalID, txHash, at,
	)
}

func (r *withdrawalsRepo) MarkError(ctx context.Context, id, taggedMessage string) error {
	return r.transition(ctx,
		`UPDATE withdrawals SET status=$2, external_payout_id=$3
		  WHERE id=$1 AND status IN ('pending','error')`,
		id, models.WithdrawalError, taggedMessage,
	)
}

// RejectAndRefund flips the row and credits the balance in one DB
// transaction. The guarded UPDATE makes concurrent rejects resolve to
// a single refund; the loser sees ErrConflict. A failed credit rolls
// the flip back, leaving the row actionable.
func (r *withdrawalsRepo) RejectAndRefund(ctx context.Context, id string, at time.Time) (models.Withdrawal, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return models.Withdrawal{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	w, err := scanWithdrawal(tx.QueryRow(ctx,
		`UPDATE withdrawals SET status=$2, processed_at=$3
		  WHERE id=$1 AND status IN ('pending','error')
		  RETURNING `+withdrawalCols,
		id, models.WithdrawalRejected, at,
	))
	if errors.Is(err, repo.ErrNotFound) {
		return models.Withdrawal{}, repo.ErrConflict
	}
	if err != nil {
		return models.Withdrawal{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET balance = balance + $2, updated_at = now() WHERE id = $1`,
		w.UserID, w.AmountUSD,
	); err != nil {
		return models.Withdrawal{}, err
	}
	return w, tx.Commit(ctx)
}

func (r *withdrawalsRepo) transition(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrConflict
	}
	return nil
}
