package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pointloyal/loyalty-backend/internal/database"
	"github.com/pointloyal/loyalty-backend/internal/models"
)

const auditCollection = "audit_trail"

// EnsureAuditIndexes configures indexes for the audit_trail collection.
// Called on startup from main after Mongo has connected.
func EnsureAuditIndexes(ctx context.Context) error {
	col := database.MongoDB.Collection(auditCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_created_at"),
		},
		{
			Keys: bson.D{
				{Key: "operator_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_operator_created_at"),
		},
	}

	for _, m := range indexes {
		if _, err := col.Indexes().CreateOne(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// RecordAuditAsync persists an operator action asynchronously. The caller
// should NOT block on this; fire-and-forget is acceptable for the trail.
func RecordAuditAsync(rec models.AuditRecord) {
	if database.MongoDB == nil {
		return
	}
	go func(r models.AuditRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}

		col := database.MongoDB.Collection(auditCollection)
		_, _ = col.InsertOne(ctx, r)
	}(rec)
}

// ListAudit returns the newest operator actions, optionally only those
// before the given time (for paging back through the trail).
func ListAudit(ctx context.Context, before *time.Time, limit int64) ([]models.AuditRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	col := database.MongoDB.Collection(auditCollection)

	filter := bson.M{}
	if before != nil {
		filter["created_at"] = bson.M{"$lt": before.UTC()}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []models.AuditRecord
	for cur.Next(ctx) {
		var r models.AuditRecord
		if err := cur.Decode(&r); err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, cur.Err()
}
