package router

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/restpay/payments/internal/interface/http/handler"
	"github.com/restpay/payments/internal/interface/http/middleware"
	"go.uber.org/zap"
)

func NewRouter(handlers *handler.Handlers, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Routes
	r.Get("/health", handlers.Ledger.HealthCheck)
	r.Get("/metrics", handlers.Ledger.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sources", handlers.Ledger.CreateSource)

		r.Route("/charges", func(r chi.Router) {
			r.Post("/", handlers.Ledger.CreateCharge)
			r.Route("/{charge_id}", func(r chi.Router) {
				r.Get("/", handlers.Ledger.GetCharge)
				r.Delete("/", handlers.Ledger.DeleteCharge)
				r.Post("/status", handlers.Ledger.RecordStatus)
				r.Post("/refunds", handlers.Ledger.CreateRefund)
				r.Get("/refunds", handlers.Ledger.ListRefunds)
			})
		})

		r.Post("/integrations/{integration}/callbacks", handlers.Ledger.IntegrationCallback)

		r.Get("/customers/{user_id}/charges", handlers.Ledger.ListCustomerCharges)
		r.Delete("/customers/{user_id}", handlers.Ledger.DeleteCustomer)
	})

	return r
}
