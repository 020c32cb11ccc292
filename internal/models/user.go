package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID               string          `json:"id"`
	Username         string          `json:"username"`
	Email            string          `json:"email"`
	PasswordHash     string          `json:"-"`
	Role             string          `json:"role"`
	Balance          decimal.Decimal `json:"balance"`
	LastWithdrawalAt *time.Time      `json:"last_withdrawal_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (u *User) Validate() error {
	if len(strings.TrimSpace(u.Username)) < 3 {
		return errors.New("username too short")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("invalid email")
	}
	if u.Role == "" {
		u.Role = "user"
	}
	return nil
}
