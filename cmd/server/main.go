package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/pointloyal/loyalty-backend/internal/config"
	"github.com/pointloyal/loyalty-backend/internal/database"
	"github.com/pointloyal/loyalty-backend/internal/handlers"
	"github.com/pointloyal/loyalty-backend/internal/middleware"
	"github.com/pointloyal/loyalty-backend/internal/routes"
	"github.com/pointloyal/loyalty-backend/internal/services"
)

func main() {
	// Load env
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}
	// Load configuration
	cfg := config.Load()

	// Connect to PostgreSQL
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB (audit trail)
	log.Printf("Connecting to MongoDB...")
	if err := database.ConnectMongo(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.DisconnectMongo()

	// Wire services onto the shared connections
	handlers.InitLoyaltyService()
	handlers.InitCloudinaryService(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ensure MongoDB indexes for the audit trail
	if err := services.EnsureAuditIndexes(ctx); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure MongoDB audit indexes: %v", err)
	} else {
		log.Println("✅ MongoDB audit indexes ensured")
	}

	// Start the Redis listener feeding transaction events to WebSocket clients
	services.StartTransactionFeedSubscriber(ctx)

	// Setup router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Production: SecurityHeaders → HostCheck → GlobalRateLimit → LoginRateLimit
	// Non-production: Redis-based rate limit only
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost) {
			r.Use(mw)
		}
		log.Println("✅ Production security enabled (security headers, host check, per-IP + login rate limiting)")
	} else {
		r.Use(middleware.RateLimitMiddleware)
	}

	// Health check (no auth)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Setup routes
	routes.SetupRoutes(r)

	// Log registered routes for debugging
	log.Println("📋 Registered routes:")
	log.Println("  GET  /health")
	log.Println("  POST /api/auth/signin")
	log.Println("  POST /api/auth/cashier/signin")
	log.Println("  GET  /api/auth/me")
	log.Println("  POST /api/auth/signout")
	log.Println("  POST /api/auth/change-password")
	log.Println("  GET  /api/catalog")
	log.Println("  POST /api/catalog/redeem")
	log.Println("  GET  /api/transactions")
	log.Println("  GET  /api/cashier/profiles")
	log.Println("  POST /api/cashier/customers")
	log.Println("  POST /api/cashier/points")
	log.Println("  POST /api/admin/catalog")
	log.Println("  PUT  /api/admin/catalog/{id}")
	log.Println("  DELETE /api/admin/catalog/{id}")
	log.Println("  GET  /api/admin/audit")
	log.Println("  GET  /ws/transactions")

	log.Printf("🚀 PointLoyal backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
