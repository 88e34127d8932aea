package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AuditActionPointsAdjust   = "points_adjust"
	AuditActionCustomerCreate = "customer_create"
	AuditActionCatalogChange  = "catalog_change"
)

// AuditRecord is an append-only record of an operator action, stored in
// MongoDB so cashier activity stays reviewable independently of the ledger.
type AuditRecord struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Action       string             `bson:"action" json:"action"`
	OperatorID   string             `bson:"operator_id" json:"operator_id"`
	TargetUserID string             `bson:"target_user_id,omitempty" json:"target_user_id,omitempty"`
	Points       int                `bson:"points,omitempty" json:"points,omitempty"`
	Detail       string             `bson:"detail" json:"detail"`
	IPAddress    string             `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}
