package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TransactionEarn   = "earn"
	TransactionRedeem = "redeem"
)

// Transaction is an append-only ledger entry. Points are signed: positive for
// earn, negative for redeem. Rows are never updated or deleted.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Type        string    `json:"type"`
	Points      int       `json:"points"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
