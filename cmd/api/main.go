package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vipclub/vipclub-backend/internal/api"
	"github.com/vipclub/vipclub-backend/internal/auth"
	"github.com/vipclub/vipclub-backend/internal/config"
	"github.com/vipclub/vipclub-backend/internal/db"
	"github.com/vipclub/vipclub-backend/internal/gateway"
	"github.com/vipclub/vipclub-backend/internal/logger"
	"github.com/vipclub/vipclub-backend/internal/metrics"
	"github.com/vipclub/vipclub-backend/internal/notify"
	"github.com/vipclub/vipclub-backend/internal/repository/postgres"
	"github.com/vipclub/vipclub-backend/internal/services"
	"github.com/vipclub/vipclub-backend/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	metrics.Init()

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(4)
	defer wp.Stop()

	var notifier notify.Publisher = notify.NopPublisher{}
	if cfg.AMQPURL != "" {
		if p, err := notify.NewEventProducer(cfg.AMQPURL, cfg.NotifyExchange); err != nil {
			log.Warn("notification broker unavailable, events will be dropped", "err", err)
		} else {
			notifier = p
		}
	}
	defer notifier.Close()

	tm := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTRefresh, cfg.JWTIssuer, 15*time.Minute, 7*24*time.Hour)
	gw := gateway.NewClient(cfg.PayoutBaseURL, cfg.PayoutAPIKey, cfg.IPNCallbackURL)

	userSvc := services.NewUserService(repos.Users, tm)
	withdrawalSvc := services.NewWithdrawalService(
		repos.Users, repos.Withdrawals, repos.AuditLogs, repos.Settings, gw, notifier, wp)
	adminSvc := services.NewAdminService(repos.Withdrawals, repos.AuditLogs, repos.Settings, gw)
	depositSvc := services.NewDepositService(repos.Deposits, repos.AuditLogs, gw, cfg.IPNSecret)

	r := api.NewRouter(api.RouterDeps{
		Cfg:           cfg,
		TokenManager:  tm,
		UserSvc:       userSvc,
		WithdrawalSvc: withdrawalSvc,
		AdminSvc:      adminSvc,
		DepositSvc:    depositSvc,
		Gateway:       gw,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
