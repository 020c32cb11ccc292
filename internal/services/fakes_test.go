package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vipclub/vipclub-backend/internal/gateway"
	"github.com/vipclub/vipclub-backend/internal/models"
	"github.com/vipclub/vipclub-backend/internal/notify"
	repo "github.com/vipclub/vipclub-backend/internal/repository"
)

type fakeUsers struct {
	mu         sync.Mutex
	users      map[string]models.User
	creditErr  error
	creditHits int
}

func newFakeUsers(us ...models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]models.User{}}
	for _, u := range us {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(ctx context.Context, username, email, hash, role string) (models.User, error) {
	u := models.User{ID: username, Username: username, Email: email, PasswordHash: hash, Role: role}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return models.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repo.ErrNotFound
}

func (f *fakeUsers) Debit(ctx context.Context, userID string, amount decimal.Decimal) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok || u.Balance.LessThan(amount) {
		return models.User{}, repo.ErrInsufficientBalance
	}
	u.Balance = u.Balance.Sub(amount)
	f.users[userID] = u
	return u, nil
}

func (f *fakeUsers) Credit(ctx context.Context, userID string, amount decimal.Decimal) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creditHits++
	if f.creditErr != nil {
		return models.User{}, f.creditErr
	}
	u, ok := f.users[userID]
	if !ok {
		return models.User{}, repo.ErrNotFound
	}
	u.Balance = u.Balance.Add(amount)
	f.users[userID] = u
	return u, nil
}

func (f *fakeUsers) TouchLastWithdrawal(ctx context.Context, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repo.ErrNotFound
	}
	u.LastWithdrawalAt = &at
	f.users[userID] = u
	return nil
}

func (f *fakeUsers) balance(id string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].Balance
}

type fakeWithdrawals struct {
	mu        sync.Mutex
	rows      map[string]models.Withdrawal
	balances  *fakeUsers
	seq       int
	createErr error
}

func newFakeWithdrawals(users *fakeUsers, ws ...models.Withdrawal) *fakeWithdrawals {
	f := &fakeWithdrawals{rows: map[string]models.Withdrawal{}, balances: users}
	for _, w := range ws {
		f.rows[w.ID] = w
	}
	return f
}

func (f *fakeWithdrawals) Create(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return models.Withdrawal{}, f.createErr
	}
	if w.ID == "" {
		f.seq++
		w.ID = fmt.Sprintf("wd-%d", f.seq)
	}
	w.CreatedAt = time.Now()
	f.rows[w.ID] = w
	return w, nil
}

func (f *fakeWithdrawals) GetByID(ctx context.Context, id string) (models.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.rows[id]
	if !ok {
		return models.Withdrawal{}, repo.ErrNotFound
	}
	return w, nil
}

func (f *fakeWithdrawals) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Withdrawal
	for _, w := range f.rows {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWithdrawals) ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Withdrawal
	for _, w := range f.rows {
		if w.Status == status {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWithdrawals) HasInFlight(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.rows {
		if w.UserID == userID && w.Status == models.WithdrawalPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWithdrawals) MarkCompleted(ctx context.Context, id, externalID, txHash string, at time.Time) error {
	return f.transition(id, func(w *models.Withdrawal) {
		w.Status = models.WithdrawalCompleted
		w.ExternalPayoutID = &externalID
		if txHash != "" {
			w.TxHash = &txHash
		}
		w.ProcessedAt = &at
	})
}

func (f *fakeWithdrawals) MarkError(ctx context.Context, id, tagged string) error {
	return f.transition(id, func(w *models.Withdrawal) {
		w.Status = models.WithdrawalError
		w.ExternalPayoutID = &tagged
	})
}

func (f *fakeWithdrawals) RejectAndRefund(ctx context.Context, id string, at time.Time) (models.Withdrawal, error) {
	f.mu.Lock()
	prev, ok := f.rows[id]
	if !ok || (prev.Status != models.WithdrawalPending && prev.Status != models.WithdrawalError) {
		f.mu.Unlock()
		return models.Withdrawal{}, repo.ErrConflict
	}
	w := prev
	w.Status = models.WithdrawalRejected
	w.ProcessedAt = &at
	f.rows[id] = w
	f.mu.Unlock()

	if _, err := f.balances.Credit(ctx, w.UserID, w.AmountUSD); err != nil {
		// roll the flip back, mirroring the transaction rollback
		f.mu.Lock()
		f.rows[id] = prev
		f.mu.Unlock()
		return models.Withdrawal{}, err
	}
	return w, nil
}

// transition applies fn only when the row is in pending|error, the
// same guard the SQL transitions carry.
func (f *fakeWithdrawals) transition(id string, fn func(*models.Withdrawal)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.rows[id]
	if !ok || (w.Status != models.WithdrawalPending && w.Status != models.WithdrawalError) {
		return repo.ErrConflict
	}
	fn(&w)
	f.rows[id] = w
	return nil
}

func (f *fakeWithdrawals) get(id string) models.Withdrawal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeWithdrawals) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (f *fakeAudit) Create(ctx context.Context, l models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, l := range f.logs {
		out = append(out, l.Action)
	}
	return out
}

type fakeSettings struct {
	st     models.WithdrawalSettings
	values map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{st: models.DefaultWithdrawalSettings(), values: map[string]string{}}
}

func (f *fakeSettings) Withdrawal(ctx context.Context) (models.WithdrawalSettings, error) {
	return f.st, nil
}

func (f *fakeSettings) All(ctx context.Context) (map[string]string, error) { return f.values, nil }

func (f *fakeSettings) Set(ctx context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

// stubPayout returns canned results and records calls. onCall, when
// set, runs in the middle of the gateway call so tests can interleave
// a competing action.
type stubPayout struct {
	mu      sync.Mutex
	results []gateway.Result
	calls   int
	onCall  func()
}

func (s *stubPayout) Payout(ctx context.Context, address, currency string, amount decimal.Decimal) gateway.Result {
	s.mu.Lock()
	s.calls++
	r := gateway.Result{Success: false, ErrMessage: "no stubbed result"}
	if len(s.results) > 0 {
		r = s.results[0]
		if len(s.results) > 1 {
			s.results = s.results[1:]
		}
	}
	hook := s.onCall
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return r
}

func (s *stubPayout) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubNotifier struct {
	mu     sync.Mutex
	events []notify.WithdrawalEvent
	err    error
}

func (s *stubNotifier) WithdrawalEvent(ctx context.Context, ev notify.WithdrawalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *stubNotifier) Close() {}

func (s *stubNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

var errBoom = errors.New("boom")
