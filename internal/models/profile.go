package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile holds per-customer loyalty state. points_balance is the cached
// aggregate of the transactions ledger.
type Profile struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	FullName           string    `json:"full_name"`
	Phone              string    `json:"phone,omitempty"`
	PointsBalance      int       `json:"points_balance"`
	MustChangePassword bool      `json:"must_change_password"`
	MemberCode         string    `json:"member_code,omitempty"` // rendered as the QR payload by the client
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
