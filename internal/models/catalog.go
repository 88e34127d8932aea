package models

import (
	"time"

	"github.com/google/uuid"
)

// CatalogItem is a redeemable reward. Customers only ever see active items.
type CatalogItem struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PointsCost  int       `json:"points_cost"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}
