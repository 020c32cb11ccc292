package postgres

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/vipclub/vipclub-backend/internal/models"
)

type settingsRepo struct{ pool *pgxpool.Pool }

func (r *settingsRepo) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *settingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO settings(key, value) VALUES($1,$2)
		 ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`,
		key, value,
	)
	return err
}

// Withdrawal reads the settings table fresh; keys missing or malformed
// fall back to the defaults.
func (r *settingsRepo) Withdrawal(ctx context.Context) (models.WithdrawalSettings, error) {
	raw, err := r.All(ctx)
	if err != nil {
		return models.WithdrawalSettings{}, err
	}

	st := models.DefaultWithdrawalSettings()
	if v, ok := raw[models.SettingMinWithdrawal]; ok {
		if d, err := decimal.NewFromString(v); err == nil {
			st.MinWithdrawal = d
		}
	}
	if v, ok := raw[models.SettingMaxWithdrawal]; ok {
		if d, err := decimal.NewFromString(v); err == nil {
			st.MaxWithdrawal = d
		}
	}
	if v, ok := raw[models.SettingAutoPayoutThreshold]; ok {
		if d, err := decimal.NewFromString(v); err == nil {
			st.AutoPayoutThreshold = d
		}
	}
	if v, ok := raw[models.SettingCooldownHours]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			st.CooldownHours = n
		}
	}
	if v, ok := raw[models.SettingWithdrawalsEnabled]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			st.WithdrawalsEnabled = b
		}
	}
	return st, nil
}
