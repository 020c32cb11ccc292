package models

import "time"

// Audit action tags. One row per state-changing action, except mass
// payout which writes a single aggregate row for the whole batch.
const (
	AuditAutoWithdrawalSuccess = "AUTO_WITHDRAWAL_SUCCESS"
	AuditAutoWithdrawalFailed  = "AUTO_WITHDRAWAL_FAILED"
	AuditApproveWithdrawal     = "APPROVE_WITHDRAWAL"
	AuditWithdrawalError       = "WITHDRAWAL_ERROR"
	AuditRejectWithdrawal      = "REJECT_WITHDRAWAL"
	AuditRetrySuccess          = "RETRY_WITHDRAWAL_SUCCESS"
	AuditRetryFailed           = "RETRY_WITHDRAWAL_FAILED"
	AuditMassPayout            = "MASS_PAYOUT"
	AuditDepositCredited       = "DEPOSIT_CREDITED"
	AuditSettingsUpdated       = "SETTINGS_UPDATED"
)

// AuditLog is append-only. ActorID is nil for system-initiated actions.
type AuditLog struct {
	ID        string         `json:"id"`
	ActorID   *string        `json:"actor_id"`
	Action    string         `json:"action"`
	TargetID  *string        `json:"target_id"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}
