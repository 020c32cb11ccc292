package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DepositStatus string

const (
	DepositWaiting  DepositStatus = "waiting"
	DepositFinished DepositStatus = "finished"
	DepositFailed   DepositStatus = "failed"
)

// Deposit tracks a provider payment from creation until the webhook
// confirms it and the balance is credited.
type Deposit struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	PaymentID   string          `json:"payment_id"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	PayCurrency string          `json:"pay_currency"`
	Status      DepositStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
