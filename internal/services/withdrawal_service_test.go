package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vipclub/vipclub-backend/internal/gateway"
	"github.com/vipclub/vipclub-backend/internal/models"
	"github.com/vipclub/vipclub-backend/internal/worker"
)

type submitEnv struct {
	svc      *WithdrawalService
	users    *fakeUsers
	wd       *fakeWithdrawals
	audit    *fakeAudit
	settings *fakeSettings
	payout   *stubPayout
	notifier *stubNotifier
	wp       *worker.Pool
}

func newSubmitEnv(t *testing.T, balance int64) *submitEnv {
	t.Helper()
	users := newFakeUsers(models.User{
		ID:      "u1",
		Email:   "u1@example.com",
		Balance: decimal.NewFromInt(balance),
	})
	env := &submitEnv{
		users:    users,
		wd:       newFakeWithdrawals(users),
		audit:    &fakeAudit{},
		settings: newFakeSettings(),
		payout:   &stubPayout{},
		notifier: &stubNotifier{},
		wp:       worker.NewPool(1),
	}
	env.svc = NewWithdrawalService(env.users, env.wd, env.audit, env.settings, env.payout, env.notifier, env.wp)
	return env
}

const goodWallet = "0x1111222233334444555566667777888899990000"

func (e *submitEnv) submit(amount int64) (SubmitResult, error) {
	return e.svc.Submit(context.Background(), "u1", decimal.NewFromInt(amount), "btc", "", goodWallet)
}

func TestSubmitAutoSuccess(t *testing.T) {
	env := newSubmitEnv(t, 100)
	env.payout.results = []gateway.Result{{Success: true, ID: "X", TxHash: "0xabc"}}

	res, err := env.submit(5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env.wp.Stop()

	if got := env.users.balance("u1"); !got.Equal(decimal.NewFromInt(95)) {
		t.Fatalf("expected balance 95, got %s", got)
	}
	w := env.wd.get(res.Withdrawal.ID)
	if w.Status != models.WithdrawalCompleted {
		t.Fatalf("expected completed, got %s", w.Status)
	}
	if w.PayoutType != models.PayoutAuto {
		t.Fatalf("expected auto payout, got %s", w.PayoutType)
	}
	if w.ExternalPayoutID == nil || *w.ExternalPayoutID != "X" {
		t.Fatalf("expected external payout id X, got %v", w.ExternalPayoutID)
	}
	if w.TxHash == nil || *w.TxHash != "0xabc" {
		t.Fatalf("expected tx hash, got %v", w.TxHash)
	}
	if w.ProcessedAt == nil {
		t.Fatal("expected processed_at to be set")
	}
	if acts := env.audit.actions(); len(acts) != 1 || acts[0] != models.AuditAutoWithdrawalSuccess {
		t.Fatalf("expected one AUTO_WITHDRAWAL_SUCCESS audit entry, got %v", acts)
	}
	if env.notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", env.notifier.count())
	}
}

func TestSubmitManualAboveThreshold(t *testing.T) {
	env := newSubmitEnv(t, 100)

	res, err := env.submit(50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env.wp.Stop()

	if got := env.users.balance("u1"); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected balance 50, got %s", got)
	}
	w := env.wd.get(res.Withdrawal.ID)
	if w.Status != models.WithdrawalPending {
		t.Fatalf("expected pending, got %s", w.Status)
	}
	if w.PayoutType != models.PayoutManual {
		t.Fatalf("expected manual payout, got %s", w.PayoutType)
	}
	if !res.RequiresReview {
		t.Fatal("expected requires_review")
	}
	if env.payout.callCount() != 0 {
		t.Fatalf("manual path must not call the gateway, got %d calls", env.payout.callCount())
	}
}

func TestSubmitThresholdBoundaryIsAuto(t *testing.T) {
	env := newSubmitEnv(t, 100)
	env.payout.results = []gateway.Result{{Success: true, ID: "X"}}

	res, err := env.submit(10) // equal to default threshold
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env.wp.Stop()
	if res.Withdrawal.PayoutType != models.PayoutAuto {
		t.Fatalf("amount equal to threshold should be auto, got %s", res.Withdrawal.PayoutType)
	}
}

func TestSubmitAutoGatewayFailureHoldsFunds(t *testing.T) {
	env := newSubmitEnv(t, 100)
	env.payout.results = []gateway.Result{{Success: false, ErrMessage: "hot wallet empty"}}

	res, err := env.submit(5)
	if err != nil {
		t.Fatalf("gateway failure must not fail the submission: %v", err)
	}
	env.wp.Stop()

	// balance stays debited pending admin action
	if got := env.users.balance("u1"); !got.Equal(decimal.NewFromInt(95)) {
		t.Fatalf("expected balance 95 (no refund), got %s", got)
	}
	w := env.wd.get(res.Withdrawal.ID)
	if w.Status != models.WithdrawalError {
		t.Fatalf("expected error status, got %s", w.Status)
	}
	if w.ExternalPayoutID == nil || !strings.HasPrefix(*w.ExternalPayoutID, "ERROR: ") {
		t.Fatalf("expected error-tagged payout id, got %v", w.ExternalPayoutID)
	}
	if !res.RequiresReview {
		t.Fatal("expected requires_review after gateway failure")
	}
	if acts := env.audit.actions(); len(acts) != 1 || acts[0] != models.AuditAutoWithdrawalFailed {
		t.Fatalf("expected AUTO_WITHDRAWAL_FAILED audit entry, got %v", acts)
	}
}

func TestSubmitValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		prep    func(env *submitEnv)
		amount  int64
		wallet  string
		wantErr error
	}{
		{
			name:    "withdrawals disabled",
			prep:    func(env *submitEnv) { env.settings.st.WithdrawalsEnabled = false },
			amount:  5,
			wallet:  goodWallet,
			wantErr: ErrWithdrawalsDisabled,
		},
		{
			name:    "below minimum",
			amount:  1,
			wallet:  goodWallet,
			wantErr: ErrAmountOutOfRange,
		},
		{
			name:    "above maximum",
			amount:  5000,
			wallet:  goodWallet,
			wantErr: ErrAmountOutOfRange,
		},
		{
			name:    "wallet too short",
			amount:  5,
			wallet:  "short",
			wantErr: ErrBadWalletAddress,
		},
		{
			name:    "wallet too long",
			amount:  5,
			wallet:  strings.Repeat("a", 101),
			wantErr: ErrBadWalletAddress,
		},
		{
			name:    "insufficient balance",
			amount:  500,
			wallet:  goodWallet,
			wantErr: ErrInsufficientBalance,
		},
		{
			name: "cooldown active",
			prep: func(env *submitEnv) {
				last := time.Now().Add(-1 * time.Hour)
				_ = env.users.TouchLastWithdrawal(context.Background(), "u1", last)
			},
			amount:  5,
			wallet:  goodWallet,
			wantErr: ErrCooldownActive,
		},
		{
			name: "in-flight withdrawal",
			prep: func(env *submitEnv) {
				_, _ = env.wd.Create(context.Background(), models.Withdrawal{
					ID: "existing", UserID: "u1", Status: models.WithdrawalPending,
				})
			},
			amount:  5,
			wallet:  goodWallet,
			wantErr: ErrWithdrawalInFlight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newSubmitEnv(t, 100)
			before := env.wd.count()
			if tt.prep != nil {
				tt.prep(env)
				before = env.wd.count()
			}

			_, err := env.svc.Submit(context.Background(), "u1",
				decimal.NewFromInt(tt.amount), "btc", "", tt.wallet)
			env.wp.Stop()

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := env.users.balance("u1"); !got.Equal(decimal.NewFromInt(100)) {
				t.Fatalf("balance must be untouched, got %s", got)
			}
			if env.wd.count() != before {
				t.Fatal("no ledger entry may be created on validation failure")
			}
			if env.payout.callCount() != 0 {
				t.Fatal("gateway must not be called on validation failure")
			}
		})
	}
}

func TestSubmitCooldownReportsRemainingHours(t *testing.T) {
	env := newSubmitEnv(t, 100)
	last := time.Now().Add(-1 * time.Hour)
	_ = env.users.TouchLastWithdrawal(context.Background(), "u1", last)

	_, err := env.submit(5)
	env.wp.Stop()
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected cooldown error, got %v", err)
	}
	if !strings.Contains(err.Error(), "23 hour") {
		t.Fatalf("expected remaining hours in message, got %q", err.Error())
	}
}

func TestSubmitStampsLastWithdrawal(t *testing.T) {
	env := newSubmitEnv(t, 100)
	env.payout.results = []gateway.Result{{Success: false, ErrMessage: "down"}}

	if _, err := env.submit(5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env.wp.Stop()

	u, _ := env.users.GetByID(context.Background(), "u1")
	// the stamp throttles request creation, not settlement, so it is
	// set even though the payout failed
	if u.LastWithdrawalAt == nil {
		t.Fatal("expected last_withdrawal_at to be set")
	}
}

func TestSubmitRefundsDebitWhenLedgerInsertFails(t *testing.T) {
	env := newSubmitEnv(t, 100)
	env.wd.createErr = errBoom

	_, err := env.submit(50)
	env.wp.Stop()
	if err == nil {
		t.Fatal("expected error")
	}
	if got := env.users.balance("u1"); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("debit must be rolled back, balance=%s", got)
	}
}

func TestSubmitSurfacesRefundFailure(t *testing.T) {
	env := newSubmitEnv(t, 100)
	env.wd.createErr = errBoom
	env.users.creditErr = errBoom

	_, err := env.submit(50)
	env.wp.Stop()
	if !errors.Is(err, ErrRefundFailed) {
		t.Fatalf("expected ErrRefundFailed, got %v", err)
	}
}

func TestSubmitNotificationFailureDoesNotFailOperation(t *testing.T) {
	env := newSubmitEnv(t, 100)
	env.notifier.err = errBoom

	res, err := env.submit(50)
	env.wp.Stop()
	if err != nil {
		t.Fatalf("notification failure must not fail the submission: %v", err)
	}
	if env.wd.get(res.Withdrawal.ID).Status != models.WithdrawalPending {
		t.Fatal("withdrawal should exist despite notification failure")
	}
}
