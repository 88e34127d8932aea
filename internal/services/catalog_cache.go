package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pointloyal/loyalty-backend/internal/database"
	"github.com/pointloyal/loyalty-backend/internal/models"
)

const (
	catalogCacheKey = "cache:catalog:active"
	// CatalogCacheTTL keeps the catalog warm without letting admin edits go
	// stale for long; writes invalidate it immediately anyway.
	CatalogCacheTTL = 10 * time.Minute
)

// GetCachedCatalog returns the cached active catalog list, if present.
func GetCachedCatalog(ctx context.Context) ([]models.CatalogItem, bool) {
	val, err := database.RedisClient.Get(ctx, catalogCacheKey).Result()
	if err != nil {
		return nil, false // cache miss, not an error
	}

	var items []models.CatalogItem
	if err := json.Unmarshal([]byte(val), &items); err != nil {
		return nil, false
	}
	return items, true
}

// SetCachedCatalog stores the active catalog list.
func SetCachedCatalog(ctx context.Context, items []models.CatalogItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return database.RedisClient.Set(ctx, catalogCacheKey, data, CatalogCacheTTL).Err()
}

// InvalidateCatalogCache drops the cached list; called after admin writes.
func InvalidateCatalogCache(ctx context.Context) error {
	return database.RedisClient.Del(ctx, catalogCacheKey).Err()
}
