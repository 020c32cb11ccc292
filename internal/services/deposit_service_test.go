package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vipclub/vipclub-backend/internal/gateway"
	"github.com/vipclub/vipclub-backend/internal/models"
	repo "github.com/vipclub/vipclub-backend/internal/repository"
)

type fakeDeposits struct {
	mu       sync.Mutex
	rows     map[string]models.Deposit
	credits  int
	balances *fakeUsers
}

func newFakeDeposits(users *fakeUsers, rows ...models.Deposit) *fakeDeposits {
	f := &fakeDeposits{rows: map[string]models.Deposit{}, balances: users}
	for _, d := range rows {
		f.rows[d.PaymentID] = d
	}
	return f
}

func (f *fakeDeposits) Create(ctx context.Context, d models.Deposit) (models.Deposit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.Status == "" {
		d.Status = models.DepositWaiting
	}
	if d.ID == "" {
		d.ID = "dep-" + d.PaymentID
	}
	f.rows[d.PaymentID] = d
	return d, nil
}

func (f *fakeDeposits) GetByPaymentID(ctx context.Context, paymentID string) (models.Deposit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[paymentID]
	if !ok {
		return models.Deposit{}, repo.ErrNotFound
	}
	return d, nil
}

func (f *fakeDeposits) ConfirmAndCredit(ctx context.Context, paymentID string) (bool, error) {
	f.mu.Lock()
	d, ok := f.rows[paymentID]
	if !ok || d.Status != models.DepositWaiting {
		f.mu.Unlock()
		return false, nil
	}
	d.Status = models.DepositFinished
	f.rows[paymentID] = d
	f.credits++
	f.mu.Unlock()

	_, err := f.balances.Credit(ctx, d.UserID, d.AmountUSD)
	return true, err
}

func (f *fakeDeposits) MarkFailed(ctx context.Context, paymentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.rows[paymentID]; ok && d.Status == models.DepositWaiting {
		d.Status = models.DepositFailed
		f.rows[paymentID] = d
	}
	return nil
}

type stubPayments struct {
	invoice gateway.PaymentInvoice
	err     error
}

func (s *stubPayments) CreatePayment(ctx context.Context, priceUSD decimal.Decimal, payCurrency, orderID string) (gateway.PaymentInvoice, error) {
	return s.invoice, s.err
}

const testIPNSecret = "super-secret"

// sign reproduces the provider's signature: HMAC-SHA512 over the
// key-sorted JSON payload.
func sign(t *testing.T, body []byte) string {
	t.Helper()
	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	canonical, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	mac := hmac.New(sha512.New, []byte(testIPNSecret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil))
}

func newDepositEnv(t *testing.T) (*DepositService, *fakeUsers, *fakeDeposits) {
	t.Helper()
	users := newFakeUsers(models.User{ID: "u1", Balance: decimal.NewFromInt(10)})
	deposits := newFakeDeposits(users, models.Deposit{
		ID:        "dep-1",
		UserID:    "u1",
		PaymentID: "pay-1",
		AmountUSD: decimal.NewFromInt(25),
		Status:    models.DepositWaiting,
	})
	svc := NewDepositService(deposits, &fakeAudit{}, &stubPayments{}, testIPNSecret)
	return svc, users, deposits
}

func TestWebhookCreditsOnce(t *testing.T) {
	svc, users, deposits := newDepositEnv(t)
	body := []byte(`{"payment_id":"pay-1","payment_status":"finished","price_amount":25}`)
	sig := sign(t, body)

	if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := users.balance("u1"); !got.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("expected balance 35, got %s", got)
	}

	// replayed webhook must not credit again
	if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
		t.Fatalf("replay must be accepted: %v", err)
	}
	if got := users.balance("u1"); !got.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("replay double-credited, balance=%s", got)
	}
	if deposits.credits != 1 {
		t.Fatalf("expected exactly one credit, got %d", deposits.credits)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc, users, _ := newDepositEnv(t)
	body := []byte(`{"payment_id":"pay-1","payment_status":"finished"}`)

	err := svc.HandleWebhook(context.Background(), body, "deadbeef")
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
	if got := users.balance("u1"); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("bad signature must not credit, balance=%s", got)
	}
}

func TestWebhookSignatureIgnoresKeyOrder(t *testing.T) {
	svc, _, _ := newDepositEnv(t)
	// same payload, keys deliberately out of order; signature is over
	// the canonical sorted form
	body := []byte(`{"payment_status":"finished","payment_id":"pay-1"}`)
	sig := sign(t, []byte(`{"payment_id":"pay-1","payment_status":"finished"}`))

	if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
		t.Fatalf("key order must not matter: %v", err)
	}
}

func TestWebhookIntermediateStatusNoop(t *testing.T) {
	svc, users, deposits := newDepositEnv(t)
	body := []byte(`{"payment_id":"pay-1","payment_status":"confirming"}`)

	if err := svc.HandleWebhook(context.Background(), body, sign(t, body)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := users.balance("u1"); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("intermediate status must not credit, balance=%s", got)
	}
	d, _ := deposits.GetByPaymentID(context.Background(), "pay-1")
	if d.Status != models.DepositWaiting {
		t.Fatalf("expected waiting, got %s", d.Status)
	}
}

func TestWebhookFailedMarksDeposit(t *testing.T) {
	svc, _, deposits := newDepositEnv(t)
	body := []byte(`{"payment_id":"pay-1","payment_status":"failed"}`)

	if err := svc.HandleWebhook(context.Background(), body, sign(t, body)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, _ := deposits.GetByPaymentID(context.Background(), "pay-1")
	if d.Status != models.DepositFailed {
		t.Fatalf("expected failed, got %s", d.Status)
	}
}

func TestCreatePaymentRecordsDeposit(t *testing.T) {
	users := newFakeUsers(models.User{ID: "u1"})
	deposits := newFakeDeposits(users)
	svc := NewDepositService(deposits, &fakeAudit{}, &stubPayments{
		invoice: gateway.PaymentInvoice{PaymentID: "pay-9", PayAddress: "addr", PayCurrency: "btc"},
	}, testIPNSecret)

	inv, err := svc.CreatePayment(context.Background(), "u1", decimal.NewFromInt(40), "btc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.PaymentID != "pay-9" {
		t.Fatalf("expected invoice pay-9, got %s", inv.PaymentID)
	}
	d, err := deposits.GetByPaymentID(context.Background(), "pay-9")
	if err != nil {
		t.Fatalf("deposit row missing: %v", err)
	}
	if d.Status != models.DepositWaiting {
		t.Fatalf("expected waiting, got %s", d.Status)
	}
}
