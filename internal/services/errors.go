package services

import "errors"

// One sentinel per distinct failure reason so handlers and tests can
// tell them apart without string matching.
var (
	ErrWithdrawalsDisabled = errors.New("withdrawals are currently disabled")
	ErrAmountOutOfRange    = errors.New("amount outside allowed withdrawal range")
	ErrBadWalletAddress    = errors.New("wallet address must be 20-100 characters")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrCooldownActive      = errors.New("withdrawal cooldown active")
	ErrWithdrawalInFlight  = errors.New("another withdrawal is already pending")
	ErrInvalidStatus       = errors.New("withdrawal status does not allow this action")
	ErrPayoutFailed        = errors.New("payout gateway call failed")
	ErrRefundFailed        = errors.New("refund failed")
	ErrNotFound            = errors.New("not found")
)
