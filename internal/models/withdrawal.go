package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalError     WithdrawalStatus = "error"
	WithdrawalRejected  WithdrawalStatus = "rejected"
)

type PayoutType string

const (
	PayoutAuto   PayoutType = "auto"
	PayoutManual PayoutType = "manual"
)

// Withdrawal is a single payout request. The status lifecycle is
// pending -> completed | error | rejected; error rows may still be
// retried (-> completed/error) or rejected by an admin.
type Withdrawal struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	AmountUSD        decimal.Decimal  `json:"amount_usd"`
	AmountCrypto     *decimal.Decimal `json:"amount_crypto,omitempty"`
	Currency         string           `json:"currency"`
	Network          string           `json:"network,omitempty"`
	WalletAddress    string           `json:"wallet_address"`
	Status           WithdrawalStatus `json:"status"`
	PayoutType       PayoutType       `json:"payout_type"`
	ExternalPayoutID *string          `json:"external_payout_id,omitempty"`
	TxHash           *string          `json:"tx_hash,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
}

// Terminal reports whether no further transition may act on the row.
func (w Withdrawal) Terminal() bool {
	return w.Status == WithdrawalCompleted || w.Status == WithdrawalRejected
}
