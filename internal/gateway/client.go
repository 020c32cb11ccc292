// Package gateway is a thin client for the external crypto payment
// processor. Payout normalizes every failure mode (transport error,
// timeout, non-2xx, structured error body) into a closed Result shape
// so callers never see an untyped payload. No retries happen here;
// retry is an explicit admin action one level up.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vipclub/vipclub-backend/internal/metrics"
)

type Client struct {
	BaseURL     string
	APIKey      string
	CallbackURL string
	HTTPClient  *http.Client
}

func NewClient(baseURL, apiKey, callbackURL string) *Client {
	return &Client{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		CallbackURL: callbackURL,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Result is the tagged outcome of a payout attempt.
type Result struct {
	Success    bool
	ID         string
	TxHash     string
	ErrMessage string
}

type payoutRequest struct {
	Address     string          `json:"address"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	CallbackURL string          `json:"callback_url,omitempty"`
}

type payoutResponse struct {
	ID   string `json:"id"`
	Hash string `json:"hash,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e errorBody) text() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	return "unknown gateway error"
}

func (c *Client) Payout(ctx context.Context, address, currency string, amount decimal.Decimal) Result {
	start := time.Now()
	res := c.payout(ctx, address, currency, amount)
	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	metrics.GatewayLatency.WithLabelValues("payout", outcome).Observe(time.Since(start).Seconds())
	return res
}

func (c *Client) payout(ctx context.Context, address, currency string, amount decimal.Decimal) Result {
	body := payoutRequest{Address: address, Currency: currency, Amount: amount, CallbackURL: c.CallbackURL}

	var ok payoutResponse
	if err := c.post(ctx, "/payout", body, &ok); err != nil {
		return Result{Success: false, ErrMessage: err.Error()}
	}
	if ok.ID == "" {
		return Result{Success: false, ErrMessage: "gateway returned no payout id"}
	}
	return Result{Success: true, ID: ok.ID, TxHash: ok.Hash}
}

// PaymentInvoice is the provider's deposit-payment handle returned to
// the UI so the user can complete the on-chain payment.
type PaymentInvoice struct {
	PaymentID   string          `json:"payment_id"`
	PayAddress  string          `json:"pay_address"`
	PayAmount   decimal.Decimal `json:"pay_amount"`
	PayCurrency string          `json:"pay_currency"`
}

func (c *Client) CreatePayment(ctx context.Context, priceUSD decimal.Decimal, payCurrency, orderID string) (PaymentInvoice, error) {
	req := map[string]any{
		"price_amount":     priceUSD,
		"price_currency":   "usd",
		"pay_currency":     payCurrency,
		"order_id":         orderID,
		"ipn_callback_url": c.CallbackURL,
	}
	var inv PaymentInvoice
	if err := c.post(ctx, "/payment", req, &inv); err != nil {
		return PaymentInvoice{}, err
	}
	return inv, nil
}

func (c *Client) Currencies(ctx context.Context) ([]string, error) {
	var out struct {
		Currencies []string `json:"currencies"`
	}
	if err := c.get(ctx, "/currencies", &out); err != nil {
		return nil, err
	}
	return out.Currencies, nil
}

func (c *Client) MinAmount(ctx context.Context, currency string) (decimal.Decimal, error) {
	var out struct {
		MinAmount decimal.Decimal `json:"min_amount"`
	}
	if err := c.get(ctx, "/min-amount?currency_from="+currency, &out); err != nil {
		return decimal.Zero, err
	}
	return out.MinAmount, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return fmt.Errorf("gateway status %d: %s", resp.StatusCode, eb.text())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gateway decode: %w", err)
	}
	return nil
}
