package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vipclub/vipclub-backend/internal/api/handlers"
	"github.com/vipclub/vipclub-backend/internal/auth"
	"github.com/vipclub/vipclub-backend/internal/config"
	"github.com/vipclub/vipclub-backend/internal/gateway"
	"github.com/vipclub/vipclub-backend/internal/middleware"
	"github.com/vipclub/vipclub-backend/internal/services"
)

type RouterDeps struct {
	Cfg           config.Config
	TokenManager  *auth.TokenManager
	UserSvc       *services.UserService
	WithdrawalSvc *services.WithdrawalService
	AdminSvc      *services.AdminService
	DepositSvc    *services.DepositService
	Gateway       *gateway.Client
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	authMW := middleware.NewAuthMiddleware(d.TokenManager)
	authH := handlers.NewAuthHandler(d.UserSvc)
	wdH := handlers.NewWithdrawalHandler(d.WithdrawalSvc)
	adminH := handlers.NewAdminHandler(d.AdminSvc)
	payH := handlers.NewPaymentHandler(d.DepositSvc, d.Gateway)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)

		// signature-authenticated, no JWT
		r.Post("/webhook/payments", payH.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth)

			r.Get("/me", authH.Me)
			r.Get("/withdrawals", wdH.ListMine)
			r.Post("/withdrawals", wdH.Submit)
			r.Post("/payments", payH.CreatePayment)
			r.Get("/payments/currencies", payH.Currencies)
			r.Get("/payments/min-amount", payH.MinAmount)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))

				r.Get("/withdrawals", adminH.ListWithdrawals)
				r.Post("/withdrawals/{id}/approve", adminH.Approve)
				r.Post("/withdrawals/{id}/reject", adminH.Reject)
				r.Post("/withdrawals/{id}/retry", adminH.Retry)
				r.Post("/withdrawals/mass-payout", adminH.MassPayout)
				r.Get("/settings", adminH.GetSettings)
				r.Put("/settings", adminH.UpdateSettings)
			})
		})
	})

	return r
}
