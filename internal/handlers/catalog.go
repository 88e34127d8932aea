package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pointloyal/loyalty-backend/internal/database"
	"github.com/pointloyal/loyalty-backend/internal/models"
	"github.com/pointloyal/loyalty-backend/internal/services"
)

type RedeemRequest struct {
	ItemID string `json:"item_id"`
}

// loadActiveCatalog returns active items ordered by cost ascending, via the
// Redis cache when warm.
func loadActiveCatalog(r *http.Request) ([]models.CatalogItem, error) {
	ctx := r.Context()

	if items, ok := services.GetCachedCatalog(ctx); ok {
		return items, nil
	}

	rows, err := database.PostgresDB.Query(`
		SELECT id, name, COALESCE(description, ''), points_cost, category, COALESCE(image_url, ''), is_active, created_at
		FROM catalog_items
		WHERE is_active = TRUE
		ORDER BY points_cost ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.CatalogItem
	for rows.Next() {
		var item models.CatalogItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.PointsCost,
			&item.Category, &item.ImageURL, &item.IsActive, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	services.SetCachedCatalog(ctx, items)
	return items, nil
}

// filterCatalogItems applies the search and category filters the catalog
// screen offers. Search matches the name case-insensitively; category "all"
// or "" matches everything.
func filterCatalogItems(items []models.CatalogItem, search, category string) []models.CatalogItem {
	search = strings.ToLower(strings.TrimSpace(search))
	category = strings.TrimSpace(category)

	filtered := make([]models.CatalogItem, 0, len(items))
	for _, item := range items {
		if !item.IsActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(item.Name), search) {
			continue
		}
		if category != "" && category != "all" && item.Category != category {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

// GetCatalog lists active redeemable items, cheapest first
func GetCatalog(w http.ResponseWriter, r *http.Request) {
	_, _, ok := requireCustomer(w, r)
	if !ok {
		return
	}

	items, err := loadActiveCatalog(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load catalog")
		return
	}

	filtered := filterCatalogItems(items, r.URL.Query().Get("search"), r.URL.Query().Get("category"))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"items":   filtered,
		"total":   len(filtered),
	})
}

// RedeemReward debits the caller's balance by the item cost and appends the
// ledger entry.
func RedeemReward(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireCustomer(w, r)
	if !ok {
		return
	}

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "item_id must be a valid id")
		return
	}

	entry, newBalance, err := loyaltyService.Redeem(r.Context(), userID, itemID)
	if err != nil {
		var insufficient *services.InsufficientPointsError
		switch {
		case errors.As(err, &insufficient):
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success":   false,
				"message":   insufficient.Error(),
				"shortfall": insufficient.Shortfall,
			})
		case errors.Is(err, services.ErrItemUnavailable):
			writeError(w, http.StatusNotFound, "Reward is not available")
		case errors.Is(err, services.ErrInsufficientPoints):
			writeError(w, http.StatusConflict, "Insufficient points")
		case errors.Is(err, services.ErrProfileNotFound):
			writeError(w, http.StatusNotFound, "Profile not found")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to redeem reward")
		}
		return
	}

	services.PublishTransactionEvent(r.Context(), entry)

	rewardName := strings.TrimPrefix(entry.Description, "Redeemed: ")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        "You've successfully redeemed " + rewardName,
		"transaction":    entry,
		"points_balance": newBalance,
	})
}
