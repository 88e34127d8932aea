package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pointloyal/loyalty-backend/internal/models"
)

// PostgresLoyaltyStore implements LoyaltyStore against the shared lib/pq pool.
type PostgresLoyaltyStore struct {
	DB *sql.DB
}

func NewPostgresLoyaltyStore(db *sql.DB) *PostgresLoyaltyStore {
	return &PostgresLoyaltyStore{DB: db}
}

func (s *PostgresLoyaltyStore) ProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	return s.scanProfile(s.DB.QueryRowContext(ctx, `
		SELECT id, user_id, full_name, COALESCE(phone, ''), points_balance, must_change_password, created_at, updated_at
		FROM profiles WHERE user_id = $1
	`, userID))
}

func (s *PostgresLoyaltyStore) ProfileByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return s.scanProfile(s.DB.QueryRowContext(ctx, `
		SELECT id, user_id, full_name, COALESCE(phone, ''), points_balance, must_change_password, created_at, updated_at
		FROM profiles WHERE id = $1
	`, id))
}

func (s *PostgresLoyaltyStore) scanProfile(row *sql.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.UserID, &p.FullName, &p.Phone, &p.PointsBalance,
		&p.MustChangePassword, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresLoyaltyStore) RolesByUserID(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *PostgresLoyaltyStore) ActiveCatalogItem(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	var item models.CatalogItem
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, ''), points_cost, category, COALESCE(image_url, ''), is_active, created_at
		FROM catalog_items WHERE id = $1 AND is_active = TRUE
	`, id).Scan(&item.ID, &item.Name, &item.Description, &item.PointsCost,
		&item.Category, &item.ImageURL, &item.IsActive, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrItemUnavailable
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *PostgresLoyaltyStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`, email,
	).Scan(&exists)
	return exists, err
}

func (s *PostgresLoyaltyStore) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *PostgresLoyaltyStore) AddPoints(ctx context.Context, tx *sql.Tx, profileID uuid.UUID, amount int) (int, error) {
	var newBalance int
	err := tx.QueryRowContext(ctx, `
		UPDATE profiles SET points_balance = points_balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING points_balance
	`, profileID, amount).Scan(&newBalance)
	if err == sql.ErrNoRows {
		return 0, ErrProfileNotFound
	}
	return newBalance, err
}

// DeductPoints performs a guarded debit: the WHERE clause rejects the update
// when the balance no longer covers the amount, which closes the
// read-then-write race between concurrent redemptions.
func (s *PostgresLoyaltyStore) DeductPoints(ctx context.Context, tx *sql.Tx, profileID uuid.UUID, amount int) (int, error) {
	var newBalance int
	err := tx.QueryRowContext(ctx, `
		UPDATE profiles SET points_balance = points_balance - $2, updated_at = NOW()
		WHERE id = $1 AND points_balance >= $2
		RETURNING points_balance
	`, profileID, amount).Scan(&newBalance)
	if err == sql.ErrNoRows {
		return 0, ErrInsufficientPoints
	}
	return newBalance, err
}

func (s *PostgresLoyaltyStore) InsertTransaction(ctx context.Context, tx *sql.Tx, t *models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, points, description, category, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`, t.ID, t.UserID, t.Type, t.Points, t.Description, t.Category, t.CreatedAt)
	return err
}

// CreateUser maps a unique-constraint violation on users.email to
// ErrEmailTaken: the EmailExists pre-check runs outside the transaction, so a
// concurrent create for the same address can still reach the constraint.
func (s *PostgresLoyaltyStore) CreateUser(ctx context.Context, tx *sql.Tx, userID uuid.UUID, email, passwordHash string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)
	`, userID, email, passwordHash)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

func (s *PostgresLoyaltyStore) CreateProfile(ctx context.Context, tx *sql.Tx, p *models.Profile) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (id, user_id, full_name, phone, points_balance, must_change_password, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
	`, p.ID, p.UserID, p.FullName, p.Phone, p.PointsBalance, p.MustChangePassword, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *PostgresLoyaltyStore) AssignRole(ctx context.Context, tx *sql.Tx, userID uuid.UUID, role string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
		ON CONFLICT (user_id, role) DO NOTHING
	`, userID, role)
	return err
}

func (s *PostgresLoyaltyStore) UpdatePasswordHash(ctx context.Context, tx *sql.Tx, userID uuid.UUID, passwordHash string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1
	`, userID, passwordHash)
	return err
}

func (s *PostgresLoyaltyStore) ClearPasswordFlag(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE profiles SET must_change_password = FALSE, updated_at = NOW() WHERE user_id = $1
	`, userID)
	return err
}
