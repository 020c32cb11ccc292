package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/vipclub/vipclub-backend/internal/api/httpx"
	"github.com/vipclub/vipclub-backend/internal/api/validate"
	"github.com/vipclub/vipclub-backend/internal/middleware"
	"github.com/vipclub/vipclub-backend/internal/services"
)

type WithdrawalHandler struct {
	Withdrawals *services.WithdrawalService
}

func NewWithdrawalHandler(ws *services.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{Withdrawals: ws}
}

type submitWithdrawalReq struct {
	AmountUSD     decimal.Decimal `json:"amount_usd"`
	Currency      string          `json:"currency"`
	Network       string          `json:"network"`
	WalletAddress string          `json:"wallet_address"`
}

func (h *WithdrawalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.FromCtx(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	var req submitWithdrawalReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	if err := validate.Collect(
		validate.Positive("amount_usd", req.AmountUSD),
		validate.Required("currency", req.Currency),
		validate.Required("wallet_address", req.WalletAddress),
	); err != nil {
		writeServiceError(w, err)
		return
	}

	res, err := h.Withdrawals.Submit(r.Context(), u.UserID, req.AmountUSD, req.Currency, req.Network, req.WalletAddress)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusCreated, res)
}

func (h *WithdrawalHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.FromCtx(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}
	limit, offset := pageParams(r, 50)
	list, err := h.Withdrawals.ListByUser(r.Context(), u.UserID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, list)
}

func pageParams(r *http.Request, defLimit int) (limit, offset int) {
	limit = defLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
