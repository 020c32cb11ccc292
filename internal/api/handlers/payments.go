package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/vipclub/vipclub-backend/internal/api/httpx"
	"github.com/vipclub/vipclub-backend/internal/api/validate"
	"github.com/vipclub/vipclub-backend/internal/gateway"
	"github.com/vipclub/vipclub-backend/internal/middleware"
	"github.com/vipclub/vipclub-backend/internal/services"
)

type PaymentHandler struct {
	Deposits *services.DepositService
	Gateway  *gateway.Client
}

func NewPaymentHandler(ds *services.DepositService, gw *gateway.Client) *PaymentHandler {
	return &PaymentHandler{Deposits: ds, Gateway: gw}
}

func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.FromCtx(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	var req struct {
		AmountUSD   decimal.Decimal `json:"amount_usd"`
		PayCurrency string          `json:"pay_currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	if err := validate.Collect(
		validate.Positive("amount_usd", req.AmountUSD),
		validate.Required("pay_currency", req.PayCurrency),
	); err != nil {
		writeServiceError(w, err)
		return
	}

	inv, err := h.Deposits.CreatePayment(r.Context(), u.UserID, req.AmountUSD, req.PayCurrency)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "payment_failed", err.Error(), nil)
		return
	}
	httpx.WriteOK(w, http.StatusCreated, inv)
}

func (h *PaymentHandler) Currencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.Gateway.Currencies(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusOK, "gateway_error", err.Error(), nil)
		return
	}
	httpx.WriteOK(w, http.StatusOK, list)
}

func (h *PaymentHandler) MinAmount(w http.ResponseWriter, r *http.Request) {
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "currency required", nil)
		return
	}
	min, err := h.Gateway.MinAmount(r.Context(), currency)
	if err != nil {
		httpx.WriteError(w, http.StatusOK, "gateway_error", err.Error(), nil)
		return
	}
	httpx.WriteOK(w, http.StatusOK, map[string]any{"currency": currency, "min_amount": min})
}

// Webhook receives the provider's asynchronous payment confirmations.
// It is authenticated by HMAC signature, not by JWT.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "unreadable body", nil)
		return
	}
	sig := r.Header.Get("x-nowpayments-sig")
	if err := h.Deposits.HandleWebhook(r.Context(), body, sig); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, map[string]string{"status": "ok"})
}
