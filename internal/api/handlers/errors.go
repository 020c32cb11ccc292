package handlers

import (
	"errors"
	"net/http"

	"github.com/vipclub/vipclub-backend/internal/api/httpx"
	"github.com/vipclub/vipclub-backend/internal/api/validate"
	"github.com/vipclub/vipclub-backend/internal/services"
)

// writeServiceError maps service sentinels onto the envelope. Gateway
// failures deliberately go out as HTTP 200 with success=false; the
// flag, not the status code, is what the UI keys on.
func writeServiceError(w http.ResponseWriter, err error) {
	var verrs validate.Errs
	switch {
	case errors.As(err, &verrs):
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "validation failed", verrs)
	case errors.Is(err, services.ErrWithdrawalsDisabled):
		httpx.WriteError(w, http.StatusBadRequest, "withdrawals_disabled", err.Error(), nil)
	case errors.Is(err, services.ErrAmountOutOfRange):
		httpx.WriteError(w, http.StatusBadRequest, "amount_out_of_range", err.Error(), nil)
	case errors.Is(err, services.ErrBadWalletAddress):
		httpx.WriteError(w, http.StatusBadRequest, "bad_wallet_address", err.Error(), nil)
	case errors.Is(err, services.ErrInsufficientBalance):
		httpx.WriteError(w, http.StatusBadRequest, "insufficient_balance", err.Error(), nil)
	case errors.Is(err, services.ErrCooldownActive):
		httpx.WriteError(w, http.StatusBadRequest, "cooldown_active", err.Error(), nil)
	case errors.Is(err, services.ErrWithdrawalInFlight):
		httpx.WriteError(w, http.StatusBadRequest, "withdrawal_in_flight", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidStatus):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_status", err.Error(), nil)
	case errors.Is(err, services.ErrPayoutFailed):
		httpx.WriteError(w, http.StatusOK, "payout_failed", err.Error(), nil)
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", err.Error(), nil)
	case errors.Is(err, services.ErrRefundFailed):
		httpx.WriteError(w, http.StatusInternalServerError, "refund_failed", err.Error(), nil)
	case errors.Is(err, services.ErrBadSignature):
		httpx.WriteError(w, http.StatusUnauthorized, "bad_signature", err.Error(), nil)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
