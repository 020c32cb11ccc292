package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vipclub/vipclub-backend/internal/gateway"
	"github.com/vipclub/vipclub-backend/internal/metrics"
	"github.com/vipclub/vipclub-backend/internal/models"
	"github.com/vipclub/vipclub-backend/internal/notify"
	repo "github.com/vipclub/vipclub-backend/internal/repository"
	"github.com/vipclub/vipclub-backend/internal/worker"
)

// PayoutClient is the slice of the gateway the services need.
type PayoutClient interface {
	Payout(ctx context.Context, address, currency string, amount decimal.Decimal) gateway.Result
}

// errorTag prefixes the failure reason stored in external_payout_id on
// a failed payout attempt.
const errorTag = "ERROR: "

type WithdrawalService struct {
	users    repo.Users
	wd       repo.Withdrawals
	audit    repo.AuditLogs
	settings repo.Settings
	payout   PayoutClient
	notifier notify.Publisher
	wp       *worker.Pool
	now      func() time.Time
}

func NewWithdrawalService(
	users repo.Users,
	wd repo.Withdrawals,
	audit repo.AuditLogs,
	settings repo.Settings,
	payout PayoutClient,
	notifier notify.Publisher,
	wp *worker.Pool,
) *WithdrawalService {
	return &WithdrawalService{
		users: users, wd: wd, audit: audit, settings: settings,
		payout: payout, notifier: notifier, wp: wp, now: time.Now,
	}
}

// SubmitResult tells the caller what happened to their request.
type SubmitResult struct {
	Withdrawal     models.Withdrawal `json:"withdrawal"`
	RequiresReview bool              `json:"requires_review"`
	Message        string            `json:"message"`
}

// Submit runs the full withdrawal submission: ordered validation,
// balance debit, ledger entry, auto/manual routing and, on the auto
// path, the synchronous gateway call. The debit and the cooldown stamp
// throttle request creation, so they stick even when the payout
// attempt fails afterwards.
func (s *WithdrawalService) Submit(ctx context.Context, userID string, amountUSD decimal.Decimal, currency, network, walletAddress string) (SubmitResult, error) {
	st, err := s.settings.Withdrawal(ctx)
	if err != nil {
		return SubmitResult{}, err
	}
	if !st.WithdrawalsEnabled {
		return SubmitResult{}, ErrWithdrawalsDisabled
	}
	if amountUSD.LessThan(st.MinWithdrawal) || amountUSD.GreaterThan(st.MaxWithdrawal) {
		return SubmitResult{}, fmt.Errorf("%w: allowed %s-%s", ErrAmountOutOfRange,
			st.MinWithdrawal.String(), st.MaxWithdrawal.String())
	}
	if l := len(walletAddress); l < 20 || l > 100 {
		return SubmitResult{}, ErrBadWalletAddress
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return SubmitResult{}, err
	}
	if u.Balance.LessThan(amountUSD) {
		return SubmitResult{}, ErrInsufficientBalance
	}
	if u.LastWithdrawalAt != nil && st.CooldownHours > 0 {
		next := u.LastWithdrawalAt.Add(time.Duration(st.CooldownHours) * time.Hour)
		if now := s.now(); now.Before(next) {
			remaining := int(math.Ceil(next.Sub(now).Hours()))
			return SubmitResult{}, fmt.Errorf("%w: try again in %d hour(s)", ErrCooldownActive, remaining)
		}
	}
	if inflight, err := s.wd.HasInFlight(ctx, userID); err != nil {
		return SubmitResult{}, err
	} else if inflight {
		return SubmitResult{}, ErrWithdrawalInFlight
	}

	// Point of no return: debit first, conditional on balance, so a
	// racing spender cannot push the account below zero.
	if _, err := s.users.Debit(ctx, userID, amountUSD); err != nil {
		if errors.Is(err, repo.ErrInsufficientBalance) {
			return SubmitResult{}, ErrInsufficientBalance
		}
		return SubmitResult{}, err
	}
	// The stamp only throttles later submissions; a failed write must
	// not abort a request that is already debited, so the cooldown
	// fails open for this user until the next successful stamp.
	if err := s.users.TouchLastWithdrawal(ctx, userID, s.now()); err != nil {
		slog.Error("touch last withdrawal", "user_id", userID, "err", err)
	}

	payoutType := models.PayoutManual
	if amountUSD.LessThanOrEqual(st.AutoPayoutThreshold) {
		payoutType = models.PayoutAuto
	}
	w, err := s.wd.Create(ctx, models.Withdrawal{
		UserID:        userID,
		AmountUSD:     amountUSD,
		Currency:      currency,
		Network:       network,
		WalletAddress: walletAddress,
		Status:        models.WithdrawalPending,
		PayoutType:    payoutType,
	})
	if err != nil {
		// compensating action: the debit must not outlive a failed
		// ledger insert
		if _, rerr := s.users.Credit(ctx, userID, amountUSD); rerr != nil {
			return SubmitResult{}, fmt.Errorf("%w after ledger insert failed (%v): %v", ErrRefundFailed, err, rerr)
		}
		return SubmitResult{}, err
	}

	s.notifyAsync(u.Email, w)

	if payoutType == models.PayoutManual {
		metrics.WithdrawalsTotal.WithLabelValues("pending").Inc()
		return SubmitResult{
			Withdrawal:     w,
			RequiresReview: true,
			Message:        "withdrawal created, awaiting admin approval",
		}, nil
	}

	// auto path: settle immediately
	res := s.payout.Payout(ctx, walletAddress, currency, amountUSD)
	if res.Success {
		processedAt := s.now()
		if err := s.wd.MarkCompleted(ctx, w.ID, res.ID, res.TxHash, processedAt); err != nil {
			return SubmitResult{}, err
		}
		w.Status = models.WithdrawalCompleted
		w.ExternalPayoutID = &res.ID
		if res.TxHash != "" {
			w.TxHash = &res.TxHash
		}
		w.ProcessedAt = &processedAt
		s.auditLog(ctx, nil, models.AuditAutoWithdrawalSuccess, w.ID, map[string]any{
			"amount_usd": amountUSD.String(),
			"payout_id":  res.ID,
		})
		metrics.WithdrawalsTotal.WithLabelValues("completed").Inc()
		metrics.PayoutCalls.WithLabelValues("success").Inc()
		return SubmitResult{Withdrawal: w, Message: "withdrawal sent"}, nil
	}

	// Gateway failed: the request stays debited in error status until
	// an admin retries or rejects it. No refund here.
	tagged := errorTag + res.ErrMessage
	if err := s.wd.MarkError(ctx, w.ID, tagged); err != nil {
		return SubmitResult{}, err
	}
	w.Status = models.WithdrawalError
	w.ExternalPayoutID = &tagged
	s.auditLog(ctx, nil, models.AuditAutoWithdrawalFailed, w.ID, map[string]any{
		"amount_usd": amountUSD.String(),
		"error":      res.ErrMessage,
	})
	metrics.WithdrawalsTotal.WithLabelValues("error").Inc()
	metrics.PayoutCalls.WithLabelValues("failure").Inc()
	return SubmitResult{
		Withdrawal:     w,
		RequiresReview: true,
		Message:        "withdrawal created but the payout failed; it will be handled manually",
	}, nil
}

func (s *WithdrawalService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Withdrawal, error) {
	return s.wd.ListByUser(ctx, userID, limit, offset)
}

func (s *WithdrawalService) notifyAsync(email string, w models.Withdrawal) {
	ev := notify.WithdrawalEvent{
		RequestID: w.ID,
		UserEmail: email,
		Amount:    w.AmountUSD,
		Wallet:    w.WalletAddress,
		Currency:  w.Currency,
		Network:   w.Network,
		Status:    string(w.Status),
		Timestamp: s.now(),
	}
	s.wp.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.WithdrawalEvent(ctx, ev); err != nil {
			slog.Error("withdrawal notification", "request_id", ev.RequestID, "err", err)
		}
	})
}

func (s *WithdrawalService) auditLog(ctx context.Context, actorID *string, action, targetID string, details map[string]any) {
	if err := s.audit.Create(ctx, models.AuditLog{
		ActorID:  actorID,
		Action:   action,
		TargetID: &targetID,
		Details:  details,
	}); err != nil {
		slog.Error("audit log", "action", action, "target_id", targetID, "err", err)
	}
}
