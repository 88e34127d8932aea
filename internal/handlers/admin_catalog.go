package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pointloyal/loyalty-backend/internal/config"
	"github.com/pointloyal/loyalty-backend/internal/database"
	"github.com/pointloyal/loyalty-backend/internal/models"
	"github.com/pointloyal/loyalty-backend/internal/services"
	"github.com/pointloyal/loyalty-backend/pkg/clientip"
)

var cloudinaryService *services.CloudinaryService

// InitCloudinaryService wires the image uploader. Safe to skip when the
// Cloudinary credentials are absent; item images are optional.
func InitCloudinaryService(cfg *config.Config) {
	if cfg.CloudinaryName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
		log.Println("⚠️ Cloudinary credentials not set, catalog image uploads disabled")
		return
	}

	svc, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		log.Printf("⚠️ Cloudinary initialization failed: %v", err)
		return
	}
	cloudinaryService = svc
	log.Println("✅ Cloudinary service initialized")
}

// parseCatalogForm reads the multipart form the admin console submits for
// catalog items and uploads the image when one is attached.
func parseCatalogForm(w http.ResponseWriter, r *http.Request) (name, description, category, imageURL string, pointsCost int, ok bool) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	name = strings.TrimSpace(r.FormValue("name"))
	description = strings.TrimSpace(r.FormValue("description"))
	category = strings.TrimSpace(r.FormValue("category"))

	pointsCost, err := strconv.Atoi(r.FormValue("points_cost"))
	if err != nil || pointsCost <= 0 {
		writeError(w, http.StatusBadRequest, "points_cost must be a positive number")
		return
	}

	if name == "" || category == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: name, category")
		return
	}

	if file, fileHeader, err := r.FormFile("image"); err == nil {
		file.Close()
		if cloudinaryService == nil {
			writeError(w, http.StatusServiceUnavailable, "Image uploads are not configured")
			return
		}
		imageURL, err = cloudinaryService.UploadFileFromHeader(r.Context(), fileHeader, "catalog")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to upload image")
			return
		}
	}

	ok = true
	return
}

// Admin edits touch updated_at like every other catalog/profile write path.
const (
	updateCatalogItemQuery = `
		UPDATE catalog_items
		SET name = $2, description = $3, points_cost = $4, category = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`
	updateCatalogItemWithImageQuery = `
		UPDATE catalog_items
		SET name = $2, description = $3, points_cost = $4, category = $5, image_url = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`
	deactivateCatalogItemQuery = `
		UPDATE catalog_items SET is_active = FALSE, updated_at = NOW() WHERE id = $1 RETURNING name
	`
)

// CreateCatalogItem adds a redeemable item (admin only)
func CreateCatalogItem(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireRole(w, r, models.RoleAdmin)
	if !ok {
		return
	}

	name, description, category, imageURL, pointsCost, ok := parseCatalogForm(w, r)
	if !ok {
		return
	}

	item := models.CatalogItem{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		PointsCost:  pointsCost,
		Category:    category,
		ImageURL:    imageURL,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := database.PostgresDB.Exec(`
		INSERT INTO catalog_items (id, name, description, points_cost, category, image_url, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.Name, item.Description, item.PointsCost, item.Category, item.ImageURL, item.IsActive, item.CreatedAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create catalog item")
		return
	}

	services.InvalidateCatalogCache(r.Context())
	services.RecordAuditAsync(models.AuditRecord{
		Action:     models.AuditActionCatalogChange,
		OperatorID: operatorID.String(),
		Detail:     "Created catalog item " + item.Name,
		IPAddress:  clientip.RealClientIP(r),
		CreatedAt:  time.Now().UTC(),
	})

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"item":    item,
	})
}

// UpdateCatalogItem edits an existing item (admin only)
func UpdateCatalogItem(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireRole(w, r, models.RoleAdmin)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a valid id")
		return
	}

	name, description, category, imageURL, pointsCost, ok := parseCatalogForm(w, r)
	if !ok {
		return
	}

	query := updateCatalogItemQuery
	args := []interface{}{itemID, name, description, pointsCost, category}
	if imageURL != "" {
		query = updateCatalogItemWithImageQuery
		args = append(args, imageURL)
	}

	var updatedID uuid.UUID
	if err := database.PostgresDB.QueryRow(query, args...).Scan(&updatedID); err != nil {
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "Catalog item not found")
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to update catalog item")
		}
		return
	}

	services.InvalidateCatalogCache(r.Context())
	services.RecordAuditAsync(models.AuditRecord{
		Action:     models.AuditActionCatalogChange,
		OperatorID: operatorID.String(),
		Detail:     "Updated catalog item " + name,
		IPAddress:  clientip.RealClientIP(r),
		CreatedAt:  time.Now().UTC(),
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Catalog item updated",
	})
}

// DeactivateCatalogItem soft-deletes an item so past redemptions keep their
// reference (admin only).
func DeactivateCatalogItem(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireRole(w, r, models.RoleAdmin)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a valid id")
		return
	}

	var name string
	err = database.PostgresDB.QueryRow(deactivateCatalogItemQuery, itemID).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "Catalog item not found")
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to deactivate catalog item")
		}
		return
	}

	services.InvalidateCatalogCache(r.Context())
	services.RecordAuditAsync(models.AuditRecord{
		Action:     models.AuditActionCatalogChange,
		OperatorID: operatorID.String(),
		Detail:     "Deactivated catalog item " + name,
		IPAddress:  clientip.RealClientIP(r),
		CreatedAt:  time.Now().UTC(),
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Catalog item deactivated",
	})
}

// GetAuditTrail pages back through operator actions, newest first (admin only)
func GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
		return
	}

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be an RFC 3339 timestamp")
			return
		}
		before = &t
	}

	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)

	records, err := services.ListAudit(r.Context(), before, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load audit trail")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"records": records,
		"total":   len(records),
	})
}
