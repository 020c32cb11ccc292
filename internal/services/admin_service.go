package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vipclub/vipclub-backend/internal/metrics"
	"github.com/vipclub/vipclub-backend/internal/models"
	repo "github.com/vipclub/vipclub-backend/internal/repository"
)

// AdminService carries out admin decisions on withdrawal rows. The
// caller's admin capability is enforced by the middleware layer; every
// action here records the acting admin in the audit log.
type AdminService struct {
	wd       repo.Withdrawals
	audit    repo.AuditLogs
	settings repo.Settings
	payout   PayoutClient
	now      func() time.Time
}

func NewAdminService(wd repo.Withdrawals, audit repo.AuditLogs, settings repo.Settings, payout PayoutClient) *AdminService {
	return &AdminService{wd: wd, audit: audit, settings: settings, payout: payout, now: time.Now}
}

// Approve pays out a pending withdrawal. The balance was debited at
// submission, so it is not touched regardless of outcome.
func (s *AdminService) Approve(ctx context.Context, adminID, withdrawalID string) (models.Withdrawal, error) {
	return s.pay(ctx, adminID, withdrawalID,
		[]models.WithdrawalStatus{models.WithdrawalPending},
		models.AuditApproveWithdrawal, models.AuditWithdrawalError)
}

// Retry re-attempts the payout of an errored withdrawal.
func (s *AdminService) Retry(ctx context.Context, adminID, withdrawalID string) (models.Withdrawal, error) {
	return s.pay(ctx, adminID, withdrawalID,
		[]models.WithdrawalStatus{models.WithdrawalError},
		models.AuditRetrySuccess, models.AuditRetryFailed)
}

func (s *AdminService) pay(ctx context.Context, adminID, withdrawalID string, allowed []models.WithdrawalStatus, okAction, failAction string) (models.Withdrawal, error) {
	w, err := s.get(ctx, withdrawalID)
	if err != nil {
		return models.Withdrawal{}, err
	}
	if !statusIn(w.Status, allowed) {
		return w, fmt.Errorf("%w: %s", ErrInvalidStatus, w.Status)
	}

	res := s.payout.Payout(ctx, w.WalletAddress, w.Currency, w.AmountUSD)
	if res.Success {
		processedAt := s.now()
		if err := s.wd.MarkCompleted(ctx, w.ID, res.ID, res.TxHash, processedAt); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				slog.Error("payout sent but withdrawal moved concurrently", "id", w.ID, "payout_id", res.ID)
				return w, fmt.Errorf("%w: concurrent update", ErrInvalidStatus)
			}
			return w, err
		}
		w.Status = models.WithdrawalCompleted
		w.ExternalPayoutID = &res.ID
		if res.TxHash != "" {
			w.TxHash = &res.TxHash
		}
		w.ProcessedAt = &processedAt
		s.auditLog(ctx, &adminID, okAction, w.ID, map[string]any{
			"amount_usd": w.AmountUSD.String(),
			"payout_id":  res.ID,
		})
		metrics.PayoutCalls.WithLabelValues("success").Inc()
		return w, nil
	}

	tagged := errorTag + res.ErrMessage
	if err := s.wd.MarkError(ctx, w.ID, tagged); err != nil && !errors.Is(err, repo.ErrConflict) {
		return w, err
	}
	w.Status = models.WithdrawalError
	w.ExternalPayoutID = &tagged
	s.auditLog(ctx, &adminID, failAction, w.ID, map[string]any{
		"amount_usd": w.AmountUSD.String(),
		"error":      res.ErrMessage,
	})
	metrics.PayoutCalls.WithLabelValues("failure").Inc()
	return w, fmt.Errorf("%w: %s", ErrPayoutFailed, res.ErrMessage)
}

// Reject refunds the debited amount and closes the withdrawal. This is
// the only path that returns funds to the user. The flip and the
// refund run in one repo transaction behind a guarded UPDATE, so two
// racing rejects resolve to exactly one refund.
func (s *AdminService) Reject(ctx context.Context, adminID, withdrawalID string) (models.Withdrawal, error) {
	w, err := s.get(ctx, withdrawalID)
	if err != nil {
		return models.Withdrawal{}, err
	}
	if w.Status != models.WithdrawalPending && w.Status != models.WithdrawalError {
		return w, fmt.Errorf("%w: %s", ErrInvalidStatus, w.Status)
	}

	rejected, err := s.wd.RejectAndRefund(ctx, w.ID, s.now())
	if errors.Is(err, repo.ErrConflict) {
		return w, fmt.Errorf("%w: concurrent update", ErrInvalidStatus)
	}
	if err != nil {
		// the transaction rolled back, the row stays actionable
		return w, fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}
	s.auditLog(ctx, &adminID, models.AuditRejectWithdrawal, rejected.ID, map[string]any{
		"amount_usd": rejected.AmountUSD.String(),
		"refunded":   true,
	})
	metrics.WithdrawalsTotal.WithLabelValues("rejected_request").Inc()
	return rejected, nil
}

// MassPayoutItem is the per-id outcome of a bulk payout run.
type MassPayoutItem struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"` // completed|error|skipped
	Message string `json:"message,omitempty"`
}

type MassPayoutResult struct {
	Items     []MassPayoutItem `json:"items"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
}

// MassPayout processes the ids sequentially, one gateway call at a
// time. Each id is re-fetched and skipped silently unless pending; one
// failure never aborts the rest. A single aggregate audit row is
// written for the whole batch, no per-item entries.
func (s *AdminService) MassPayout(ctx context.Context, adminID string, ids []string) (MassPayoutResult, error) {
	var out MassPayoutResult
	for _, id := range ids {
		item := s.massPayoutOne(ctx, id)
		switch item.Outcome {
		case "completed":
			out.Succeeded++
		case "error":
			out.Failed++
		default:
			out.Skipped++
		}
		out.Items = append(out.Items, item)
	}

	s.auditLog(ctx, &adminID, models.AuditMassPayout, "", map[string]any{
		"requested": len(ids),
		"succeeded": out.Succeeded,
		"failed":    out.Failed,
		"skipped":   out.Skipped,
	})
	return out, nil
}

func (s *AdminService) massPayoutOne(ctx context.Context, id string) MassPayoutItem {
	w, err := s.get(ctx, id)
	if err != nil {
		return MassPayoutItem{ID: id, Outcome: "skipped", Message: "not found"}
	}
	if w.Status != models.WithdrawalPending {
		return MassPayoutItem{ID: id, Outcome: "skipped"}
	}

	res := s.payout.Payout(ctx, w.WalletAddress, w.Currency, w.AmountUSD)
	if res.Success {
		if err := s.wd.MarkCompleted(ctx, w.ID, res.ID, res.TxHash, s.now()); err != nil {
			return MassPayoutItem{ID: id, Outcome: "error", Message: err.Error()}
		}
		metrics.PayoutCalls.WithLabelValues("success").Inc()
		return MassPayoutItem{ID: id, Outcome: "completed"}
	}
	if err := s.wd.MarkError(ctx, w.ID, errorTag+res.ErrMessage); err != nil {
		slog.Error("mass payout mark error", "id", id, "err", err)
	}
	metrics.PayoutCalls.WithLabelValues("failure").Inc()
	return MassPayoutItem{ID: id, Outcome: "error", Message: res.ErrMessage}
}

func (s *AdminService) ListWithdrawals(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.Withdrawal, error) {
	return s.wd.ListByStatus(ctx, status, limit, offset)
}

func (s *AdminService) Settings(ctx context.Context) (map[string]string, error) {
	return s.settings.All(ctx)
}

func (s *AdminService) UpdateSettings(ctx context.Context, adminID string, values map[string]string) error {
	valid := map[string]bool{
		models.SettingMinWithdrawal:       true,
		models.SettingMaxWithdrawal:       true,
		models.SettingAutoPayoutThreshold: true,
		models.SettingCooldownHours:       true,
		models.SettingWithdrawalsEnabled:  true,
	}
	changed := map[string]any{}
	for k, v := range values {
		if !valid[k] {
			return fmt.Errorf("unknown setting %q", k)
		}
		if err := s.settings.Set(ctx, k, v); err != nil {
			return err
		}
		changed[k] = v
	}
	s.auditLog(ctx, &adminID, models.AuditSettingsUpdated, "", changed)
	return nil
}

func (s *AdminService) get(ctx context.Context, id string) (models.Withdrawal, error) {
	w, err := s.wd.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Withdrawal{}, ErrNotFound
	}
	return w, err
}

func statusIn(st models.WithdrawalStatus, allowed []models.WithdrawalStatus) bool {
	for _, a := range allowed {
		if st == a {
			return true
		}
	}
	return false
}

func (s *AdminService) auditLog(ctx context.Context, actorID *string, action, targetID string, details map[string]any) {
	l := models.AuditLog{ActorID: actorID, Action: action, Details: details}
	if targetID != "" {
		l.TargetID = &targetID
	}
	if err := s.audit.Create(ctx, l); err != nil {
		slog.Error("audit log", "action", action, "err", err)
	}
}
