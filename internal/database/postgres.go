package database

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL database
func ConnectPostgres(postgresURI string) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	// Set connection pool settings
	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err = PostgresDB.Ping(); err != nil {
		return err
	}

	log.Println("✅ Connected to PostgreSQL")

	// Initialize tables
	if err = InitPostgresTables(); err != nil {
		return err
	}

	return SeedCatalogItems()
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables() error {
	queries := []string{
		// Users table: auth identities only. Cashier/admin accounts are created
		// directly in the database; customer accounts via the cashier console.
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		// Profiles table: one per user; points_balance is the cached ledger aggregate
		`CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			full_name VARCHAR(255) NOT NULL,
			phone VARCHAR(50),
			points_balance INTEGER NOT NULL DEFAULT 0 CHECK (points_balance >= 0),
			must_change_password BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE(user_id)
		)`,

		// Transactions table: append-only points ledger
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type VARCHAR(10) NOT NULL CHECK (type IN ('earn', 'redeem')),
			points INTEGER NOT NULL,
			description TEXT NOT NULL,
			category VARCHAR(50),
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Catalog items table: redeemable rewards
		`CREATE TABLE IF NOT EXISTS catalog_items (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			description TEXT,
			points_cost INTEGER NOT NULL CHECK (points_cost > 0),
			category VARCHAR(50) NOT NULL,
			image_url TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// User roles table
		`CREATE TABLE IF NOT EXISTS user_roles (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role VARCHAR(20) NOT NULL CHECK (role IN ('user', 'cashier', 'admin')),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE(user_id, role)
		)`,

		// Create indexes for better performance
		`CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users(LOWER(email))`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_user_id ON profiles(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_full_name_lower ON profiles(LOWER(full_name))`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_created_at ON profiles(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_id_created_at ON transactions(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_items_active_cost ON catalog_items(is_active, points_cost)`,
		`CREATE INDEX IF NOT EXISTS idx_user_roles_user_id ON user_roles(user_id)`,
	}

	for _, query := range queries {
		if _, err := PostgresDB.Exec(query); err != nil {
			return err
		}
	}

	log.Println("✅ PostgreSQL tables initialized")
	return nil
}

// SeedCatalogItems inserts a starter rewards catalog when the table is empty,
// so a fresh install has something to show on the catalog screen.
func SeedCatalogItems() error {
	var count int
	if err := PostgresDB.QueryRow("SELECT COUNT(*) FROM catalog_items").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	seeds := []struct {
		name, description, category string
		pointsCost                  int
	}{
		{"Free Coffee", "Any regular-sized hot drink on the house", "drinks", 500},
		{"Free Smoothie", "One fresh fruit smoothie of your choice", "drinks", 650},
		{"10% Off Next Purchase", "One-time 10% discount on your next visit", "discounts", 300},
		{"25% Off Next Purchase", "One-time 25% discount on your next visit", "discounts", 900},
		{"Movie Ticket", "One standard cinema admission", "entertainment", 1200},
		{"Branded Tote Bag", "Reusable canvas tote with our logo", "shopping", 800},
	}

	for _, s := range seeds {
		_, err := PostgresDB.Exec(`
			INSERT INTO catalog_items (name, description, points_cost, category)
			VALUES ($1, $2, $3, $4)
		`, s.name, s.description, s.pointsCost, s.category)
		if err != nil {
			return err
		}
	}

	log.Printf("✅ Seeded %d catalog items", len(seeds))
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
