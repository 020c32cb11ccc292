package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	repo "github.com/vipclub/vipclub-backend/internal/repository"
)

type Repositories struct {
	Users       repo.Users
	Withdrawals repo.Withdrawals
	Deposits    repo.Deposits
	AuditLogs   repo.AuditLogs
	Settings    repo.Settings
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Users:       &usersRepo{pool},
		Withdrawals: &withdrawalsRepo{pool},
		Deposits:    &depositsRepo{pool},
		AuditLogs:   &auditLogsRepo{pool},
		Settings:    &settingsRepo{pool},
	}
}
