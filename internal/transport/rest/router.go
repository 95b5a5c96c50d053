package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/bareeqalyusr/bnpl-backend/internal/auth"
	"github.com/bareeqalyusr/bnpl-backend/internal/customer"
	"github.com/bareeqalyusr/bnpl-backend/internal/merchant"
	"github.com/bareeqalyusr/bnpl-backend/internal/metrics"
	"github.com/bareeqalyusr/bnpl-backend/internal/payment"
	"github.com/bareeqalyusr/bnpl-backend/internal/purchase"
	"github.com/bareeqalyusr/bnpl-backend/internal/settlement"
	"github.com/bareeqalyusr/bnpl-backend/internal/transport/middleware"
	"github.com/bareeqalyusr/bnpl-backend/internal/transport/swagger"
	"github.com/bareeqalyusr/bnpl-backend/internal/user"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth       *auth.Handler
	Customer   *customer.Handler
	Merchant   *merchant.Handler
	Purchase   *purchase.Handler
	Payment    *payment.Handler
	Settlement *settlement.Handler
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, cache Pinger, h Handlers, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, cache)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.HTTPMetrics)

	// OpenAPI spec and Swagger UI live outside the API prefix
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())
	router.Handle("/metrics", metrics.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/register", h.Auth.Register)
			sr.Post("/login", h.Auth.Login)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			// customer side
			pr.Group(func(cr chi.Router) {
				cr.Use(h.Auth.RequireRole(user.RoleCustomer))

				cr.Get("/customers/me/balance", h.Customer.GetBalance)
				cr.Post("/customers/me/limit-increase", h.Customer.RequestLimitIncrease)
				cr.Get("/customers/me/limit-history", h.Customer.GetLimitHistory)

				cr.Get("/purchase-requests", h.Purchase.ListForCustomer)
				cr.Get("/purchase-requests/{id}", h.Purchase.GetRequestForCustomer)
				cr.Post("/purchase-requests/{id}/accept", h.Purchase.AcceptRequest)
				cr.Post("/purchase-requests/{id}/reject", h.Purchase.RejectRequest)

				cr.Get("/transactions", h.Payment.ListTransactions)
				cr.Get("/transactions/{id}", h.Payment.GetTransaction)
				cr.Post("/payments", h.Payment.MakePayment)
				cr.Get("/payments", h.Payment.ListPayments)
				cr.Get("/payments/upcoming", h.Payment.UpcomingPayments)
			})

			// merchant side
			pr.Group(func(mr chi.Router) {
				mr.Use(h.Auth.RequireRole(user.RoleMerchant))

				mr.Get("/merchants/me", h.Merchant.GetProfile)
				mr.Get("/merchants/me/stats", h.Merchant.GetStats)

				mr.Post("/merchant/purchase-requests", h.Purchase.SendRequest)
				mr.Get("/merchant/purchase-requests", h.Purchase.ListForMerchant)
				mr.Get("/merchant/purchase-requests/{id}", h.Purchase.GetRequestForMerchant)
				mr.Post("/merchant/purchase-requests/{id}/cancel", h.Purchase.CancelRequest)

				mr.Get("/merchant/transactions", h.Payment.ListMerchantTransactions)
				mr.Get("/merchant/transactions/{id}", h.Payment.GetMerchantTransaction)

				mr.Post("/merchant/withdrawals", h.Settlement.RequestWithdrawal)
				mr.Get("/merchant/settlements", h.Settlement.ListSettlements)
				mr.Get("/merchant/settlements/{id}", h.Settlement.GetSettlement)
			})

			// admin side
			pr.Group(func(ar chi.Router) {
				ar.Use(h.Auth.RequireRole(user.RoleAdmin))

				ar.Get("/admin/limit-requests", h.Customer.ListPendingLimitRequests)
				ar.Patch("/admin/limit-requests/{id}", h.Customer.DecideLimitRequest)

				ar.Get("/admin/withdrawals", h.Settlement.ListPendingWithdrawals)
				ar.Patch("/admin/withdrawals/{id}", h.Settlement.ProcessWithdrawal)

				ar.Get("/admin/revenue", h.Settlement.PlatformRevenue)
			})
		})
	})
}
