package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pointloyal/loyalty-backend/internal/models"
)

var (
	// ErrInsufficientPoints is returned when a guarded balance update finds
	// the balance too low (e.g. a concurrent redemption got there first).
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrProfileNotFound is returned when no profile exists for the id.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrItemUnavailable is returned when the catalog item is missing or inactive.
	ErrItemUnavailable = errors.New("reward is not available")

	// ErrInvalidAmount is returned for non-positive point amounts.
	ErrInvalidAmount = errors.New("points amount must be a positive number")

	// ErrEmailTaken is returned when a customer account already uses the email.
	ErrEmailTaken = errors.New("user with this email already exists")
)

// InsufficientPointsError carries the shortfall for the customer-facing
// redemption rejection. No write happens when this is returned.
type InsufficientPointsError struct {
	Shortfall int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("You need %d more points to redeem this reward.", e.Shortfall)
}

// LoyaltyStore is the persistence boundary for the point flows. Balance
// updates and ledger inserts always run inside a single transaction.
type LoyaltyStore interface {
	ProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	ProfileByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	RolesByUserID(ctx context.Context, userID uuid.UUID) ([]string, error)
	ActiveCatalogItem(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	AddPoints(ctx context.Context, tx *sql.Tx, profileID uuid.UUID, amount int) (int, error)
	DeductPoints(ctx context.Context, tx *sql.Tx, profileID uuid.UUID, amount int) (int, error)
	InsertTransaction(ctx context.Context, tx *sql.Tx, t *models.Transaction) error
	CreateUser(ctx context.Context, tx *sql.Tx, userID uuid.UUID, email, passwordHash string) error
	CreateProfile(ctx context.Context, tx *sql.Tx, p *models.Profile) error
	AssignRole(ctx context.Context, tx *sql.Tx, userID uuid.UUID, role string) error
	UpdatePasswordHash(ctx context.Context, tx *sql.Tx, userID uuid.UUID, passwordHash string) error
	ClearPasswordFlag(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error
}

// LoyaltyService owns the redemption and cashier adjustment flows.
type LoyaltyService struct {
	store LoyaltyStore
}

func NewLoyaltyService(store LoyaltyStore) *LoyaltyService {
	return &LoyaltyService{store: store}
}

// Redeem debits the customer's balance by the item's cost and appends the
// matching ledger entry. Rejected with *InsufficientPointsError (and no
// write) when the balance does not cover the cost.
func (s *LoyaltyService) Redeem(ctx context.Context, userID, itemID uuid.UUID) (*models.Transaction, int, error) {
	profile, err := s.store.ProfileByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	item, err := s.store.ActiveCatalogItem(ctx, itemID)
	if err != nil {
		return nil, 0, err
	}

	if profile.PointsBalance < item.PointsCost {
		return nil, profile.PointsBalance, &InsufficientPointsError{
			Shortfall: item.PointsCost - profile.PointsBalance,
		}
	}

	entry := &models.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        models.TransactionRedeem,
		Points:      -item.PointsCost,
		Description: "Redeemed: " + item.Name,
		Category:    item.Category,
		CreatedAt:   time.Now().UTC(),
	}

	var newBalance int
	err = s.store.WithinTx(ctx, func(tx *sql.Tx) error {
		// Guarded update: fails with ErrInsufficientPoints if a concurrent
		// redemption drained the balance after the check above.
		newBalance, err = s.store.DeductPoints(ctx, tx, profile.ID, item.PointsCost)
		if err != nil {
			return err
		}
		return s.store.InsertTransaction(ctx, tx, entry)
	})
	if err != nil {
		return nil, profile.PointsBalance, err
	}

	return entry, newBalance, nil
}

// Adjust credits or debits a named profile on behalf of a cashier and
// appends the ledger entry. The amount must be a positive integer; debits
// must not exceed the current balance. The returned profile carries the
// post-adjustment balance so callers can render it without a second read.
func (s *LoyaltyService) Adjust(ctx context.Context, profileID uuid.UUID, txType string, amount int) (*models.Transaction, *models.Profile, error) {
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if txType != models.TransactionEarn && txType != models.TransactionRedeem {
		return nil, nil, fmt.Errorf("unknown transaction type %q", txType)
	}

	profile, err := s.store.ProfileByID(ctx, profileID)
	if err != nil {
		return nil, nil, err
	}

	if txType == models.TransactionRedeem && amount > profile.PointsBalance {
		return nil, nil, &InsufficientPointsError{
			Shortfall: amount - profile.PointsBalance,
		}
	}

	entry := &models.Transaction{
		ID:        uuid.New(),
		UserID:    profile.UserID,
		Type:      txType,
		Category:  "cashier",
		CreatedAt: time.Now().UTC(),
	}
	if txType == models.TransactionEarn {
		entry.Points = amount
		entry.Description = "Points earned from purchase"
	} else {
		entry.Points = -amount
		entry.Description = "Points redeemed"
	}

	var newBalance int
	err = s.store.WithinTx(ctx, func(tx *sql.Tx) error {
		if txType == models.TransactionEarn {
			newBalance, err = s.store.AddPoints(ctx, tx, profile.ID, amount)
		} else {
			newBalance, err = s.store.DeductPoints(ctx, tx, profile.ID, amount)
		}
		if err != nil {
			return err
		}
		return s.store.InsertTransaction(ctx, tx, entry)
	})
	if err != nil {
		return nil, nil, err
	}

	profile.PointsBalance = newBalance
	return entry, profile, nil
}

// CreateCustomer creates a customer identity with the supplied (already
// hashed) default password, a zero-balance profile flagged for a forced
// password change, and the default "user" role.
func (s *LoyaltyService) CreateCustomer(ctx context.Context, email, fullName, phone, passwordHash string) (uuid.UUID, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	exists, err := s.store.EmailExists(ctx, email)
	if err != nil {
		return uuid.Nil, err
	}
	if exists {
		return uuid.Nil, ErrEmailTaken
	}

	userID := uuid.New()
	now := time.Now().UTC()
	profile := &models.Profile{
		ID:                 uuid.New(),
		UserID:             userID,
		FullName:           strings.TrimSpace(fullName),
		Phone:              strings.TrimSpace(phone),
		PointsBalance:      0,
		MustChangePassword: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.store.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.store.CreateUser(ctx, tx, userID, email, passwordHash); err != nil {
			return err
		}
		if err := s.store.CreateProfile(ctx, tx, profile); err != nil {
			return err
		}
		return s.store.AssignRole(ctx, tx, userID, models.RoleUser)
	})
	if err != nil {
		return uuid.Nil, err
	}

	return userID, nil
}

// ProfileForUser loads the profile owned by a user.
func (s *LoyaltyService) ProfileForUser(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	return s.store.ProfileByUserID(ctx, userID)
}

// RolesForUser returns the roles assigned to a user.
func (s *LoyaltyService) RolesForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.store.RolesByUserID(ctx, userID)
}

// SetPassword stores the new password hash and clears must_change_password
// in the same transaction, so the forced-change gate cannot get stuck after
// a successful update.
func (s *LoyaltyService) SetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return s.store.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.store.UpdatePasswordHash(ctx, tx, userID, passwordHash); err != nil {
			return err
		}
		return s.store.ClearPasswordFlag(ctx, tx, userID)
	})
}
