package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/vipclub/vipclub-backend/internal/gateway"
	"github.com/vipclub/vipclub-backend/internal/metrics"
	"github.com/vipclub/vipclub-backend/internal/models"
	repo "github.com/vipclub/vipclub-backend/internal/repository"
)

var ErrBadSignature = errors.New("invalid webhook signature")

// PaymentCreator is the slice of the gateway used for deposits.
type PaymentCreator interface {
	CreatePayment(ctx context.Context, priceUSD decimal.Decimal, payCurrency, orderID string) (gateway.PaymentInvoice, error)
}

type DepositService struct {
	deposits  repo.Deposits
	audit     repo.AuditLogs
	payments  PaymentCreator
	ipnSecret []byte
}

func NewDepositService(deposits repo.Deposits, audit repo.AuditLogs, payments PaymentCreator, ipnSecret string) *DepositService {
	return &DepositService{deposits: deposits, audit: audit, payments: payments, ipnSecret: []byte(ipnSecret)}
}

// CreatePayment asks the provider for a payment invoice and records a
// waiting deposit row keyed by the provider payment id.
func (s *DepositService) CreatePayment(ctx context.Context, userID string, amountUSD decimal.Decimal, payCurrency string) (gateway.PaymentInvoice, error) {
	if !amountUSD.IsPositive() {
		return gateway.PaymentInvoice{}, errors.New("amount must be positive")
	}
	inv, err := s.payments.CreatePayment(ctx, amountUSD, payCurrency, userID)
	if err != nil {
		return gateway.PaymentInvoice{}, err
	}
	_, err = s.deposits.Create(ctx, models.Deposit{
		UserID:      userID,
		PaymentID:   inv.PaymentID,
		AmountUSD:   amountUSD,
		PayCurrency: payCurrency,
	})
	if err != nil {
		return gateway.PaymentInvoice{}, err
	}
	return inv, nil
}

type webhookPayload struct {
	PaymentID     string `json:"payment_id"`
	PaymentStatus string `json:"payment_status"`
}

// HandleWebhook verifies the provider signature and, for a confirmed
// payment, credits the user's balance exactly once. Replays are
// accepted and ignored.
func (s *DepositService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if err := s.verifySignature(body, signature); err != nil {
		return err
	}

	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("webhook payload: %w", err)
	}
	if p.PaymentID == "" {
		return errors.New("webhook payload: missing payment_id")
	}

	switch p.PaymentStatus {
	case "finished", "confirmed":
		credited, err := s.deposits.ConfirmAndCredit(ctx, p.PaymentID)
		if err != nil {
			return err
		}
		if !credited {
			slog.Info("webhook replay ignored", "payment_id", p.PaymentID)
			return nil
		}
		metrics.DepositsCredited.Inc()
		d, err := s.deposits.GetByPaymentID(ctx, p.PaymentID)
		if err == nil {
			s.auditDeposit(ctx, d)
		}
		return nil
	case "failed", "expired":
		return s.deposits.MarkFailed(ctx, p.PaymentID)
	default:
		// intermediate statuses (waiting, confirming, sending) carry
		// no state change for us
		return nil
	}
}

// verifySignature checks the HMAC-SHA512 over the canonical key-sorted
// JSON payload. Re-marshalling a decoded map gives us the sorted keys;
// json.Number keeps the original number formatting intact.
func (s *DepositService) verifySignature(body []byte, signature string) error {
	if len(s.ipnSecret) == 0 {
		return errors.New("webhook secret not configured")
	}

	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("webhook payload: %w", err)
	}
	canonical, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	mac := hmac.New(sha512.New, s.ipnSecret)
	mac.Write(canonical)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

func (s *DepositService) auditDeposit(ctx context.Context, d models.Deposit) {
	if err := s.audit.Create(ctx, models.AuditLog{
		Action:   models.AuditDepositCredited,
		TargetID: &d.ID,
		Details: map[string]any{
			"payment_id": d.PaymentID,
			"amount_usd": d.AmountUSD.String(),
		},
	}); err != nil {
		slog.Error("audit log", "action", models.AuditDepositCredited, "err", err)
	}
}
