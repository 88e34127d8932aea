package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pointloyal/loyalty-backend/internal/handlers"
)

// SetupRoutes registers all API routes on the router.
func SetupRoutes(r *chi.Mux) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signin", handlers.Signin)
			r.Post("/cashier/signin", handlers.CashierSignin)
			r.Get("/me", handlers.GetMe)
			r.Post("/signout", handlers.Signout)
			r.Post("/change-password", handlers.ChangePassword)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", handlers.GetCatalog)
			r.Post("/redeem", handlers.RedeemReward)
		})

		r.Get("/transactions", handlers.GetTransactions)

		r.Route("/cashier", func(r chi.Router) {
			r.Get("/profiles", handlers.ListProfiles)
			r.Post("/customers", handlers.CreateCustomer)
			r.Post("/points", handlers.AdjustPoints)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/catalog", handlers.CreateCatalogItem)
			r.Put("/catalog/{id}", handlers.UpdateCatalogItem)
			r.Delete("/catalog/{id}", handlers.DeactivateCatalogItem)
			r.Get("/audit", handlers.GetAuditTrail)
		})
	})

	r.Get("/ws/transactions", handlers.TransactionsWebSocket)
}
