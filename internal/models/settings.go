package models

import "github.com/shopspring/decimal"

// Setting keys stored in the settings table, editable by admins.
const (
	SettingMinWithdrawal       = "min_withdrawal"
	SettingMaxWithdrawal       = "max_withdrawal"
	SettingAutoPayoutThreshold = "auto_payout_threshold"
	SettingCooldownHours       = "withdrawal_cooldown_hours"
	SettingWithdrawalsEnabled  = "withdrawals_enabled"
)

// WithdrawalSettings is the snapshot read fresh on every submission.
type WithdrawalSettings struct {
	MinWithdrawal       decimal.Decimal `json:"min_withdrawal"`
	MaxWithdrawal       decimal.Decimal `json:"max_withdrawal"`
	AutoPayoutThreshold decimal.Decimal `json:"auto_payout_threshold"`
	CooldownHours       int             `json:"withdrawal_cooldown_hours"`
	WithdrawalsEnabled  bool            `json:"withdrawals_enabled"`
}

// DefaultWithdrawalSettings returns the values used for keys missing
// from the settings table.
func DefaultWithdrawalSettings() WithdrawalSettings {
	return WithdrawalSettings{
		MinWithdrawal:       decimal.NewFromInt(5),
		MaxWithdrawal:       decimal.NewFromInt(1000),
		AutoPayoutThreshold: decimal.NewFromInt(10),
		CooldownHours:       24,
		WithdrawalsEnabled:  true,
	}
}
