package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vipclub/vipclub-backend/internal/models"
)

var (
	// ErrInsufficientBalance is returned by Debit when the conditional
	// update matched no row (balance < amount).
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNotFound is returned for lookups that matched nothing.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by status transitions whose guarded
	// UPDATE matched no row: the withdrawal left the allowed source
	// status concurrently, or does not exist.
	ErrConflict = errors.New("conflicting status transition")
)

type Users interface {
	Create(ctx context.Context, username, email, passwordHash, role string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	// Debit subtracts amount from balance only when balance >= amount,
	// in a single statement. Returns ErrInsufficientBalance otherwise.
	Debit(ctx context.Context, userID string, amount decimal.Decimal) (models.User, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal) (models.User, error)
	TouchLastWithdrawal(ctx context.Context, userID string, at time.Time) error
}

type Withdrawals interface {
	Create(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error)
	GetByID(ctx context.Context, id string) (models.Withdrawal, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Withdrawal, error)
	ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.Withdrawal, error)
	HasInFlight(ctx context.Context, userID string) (bool, error)
	// MarkCompleted and MarkError move a row out of pending|error. The
	// status predicate lives in the UPDATE itself; ErrConflict means
	// another transition won.
	MarkCompleted(ctx context.Context, id, externalID, txHash string, at time.Time) error
	MarkError(ctx context.Context, id, taggedMessage string) error
	// RejectAndRefund flips a pending|error row to rejected and credits
	// the amount back to the user inside one DB transaction, so a
	// withdrawal can never be refunded twice.
	RejectAndRefund(ctx context.Context, id string, at time.Time) (models.Withdrawal, error)
}

type Deposits interface {
	Create(ctx context.Context, d models.Deposit) (models.Deposit, error)
	GetByPaymentID(ctx context.Context, paymentID string) (models.Deposit, error)
	// ConfirmAndCredit flips a waiting deposit to finished and credits the
	// user's balance inside one DB transaction. Returns false when the
	// deposit was already finished (webhook replay), in which case nothing
	// is credited.
	ConfirmAndCredit(ctx context.Context, paymentID string) (bool, error)
	MarkFailed(ctx context.Context, paymentID string) error
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}

type Settings interface {
	// Withdrawal reads the current withdrawal settings, falling back to
	// defaults for missing keys. Called fresh on every submission.
	Withdrawal(ctx context.Context) (models.WithdrawalSettings, error)
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
}
