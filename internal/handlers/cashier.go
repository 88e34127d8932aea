package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pointloyal/loyalty-backend/internal/database"
	"github.com/pointloyal/loyalty-backend/internal/models"
	"github.com/pointloyal/loyalty-backend/internal/services"
	"github.com/pointloyal/loyalty-backend/pkg/clientip"
	"github.com/pointloyal/loyalty-backend/pkg/utils"
)

// defaultCustomerPassword is handed to new customers at the register; the
// forced password-change gate makes them replace it on first login.
const defaultCustomerPassword = "welcome123"

type CreateCustomerRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone,omitempty"`
}

type AdjustPointsRequest struct {
	ProfileID string      `json:"profile_id"`
	Type      string      `json:"type"` // "earn" or "redeem"
	Points    json.Number `json:"points"`
}

// CreateCustomer creates a customer account on behalf of a cashier. The
// response contract is: 400 invalid fields, 401 missing/invalid credential,
// 403 insufficient role, 500 unexpected failure.
func CreateCustomer(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireRole(w, r, models.RoleCashier, models.RoleAdmin)
	if !ok {
		return
	}

	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Invalid request body"})
		return
	}

	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.FullName) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Missing required fields: email, fullName"})
		return
	}
	if err := utils.ValidateEmail(req.Email); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	if err := utils.ValidateFullName(req.FullName); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}

	hash, err := utils.HashPassword(defaultCustomerPassword)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "Failed to hash password"})
		return
	}

	userID, err := loyaltyService.CreateCustomer(r.Context(), req.Email, req.FullName, req.Phone, hash)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "User with this email already exists"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "Failed to create customer"})
		return
	}

	services.RecordAuditAsync(models.AuditRecord{
		Action:       models.AuditActionCustomerCreate,
		OperatorID:   operatorID.String(),
		TargetUserID: userID.String(),
		Detail:       "Created customer account for " + strings.TrimSpace(req.FullName),
		IPAddress:    clientip.RealClientIP(r),
		CreatedAt:    time.Now().UTC(),
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user": map[string]interface{}{
			"id":       userID.String(),
			"email":    utils.NormalizeEmail(req.Email),
			"fullName": strings.TrimSpace(req.FullName),
		},
	})
}

// ListProfiles returns customer profiles for the manage-points view, newest
// first. An optional search matches full name or phone.
func ListProfiles(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, models.RoleCashier, models.RoleAdmin); !ok {
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("search"))

	query := `
		SELECT id, user_id, full_name, COALESCE(phone, ''), points_balance, must_change_password, created_at, updated_at
		FROM profiles
	`
	args := []interface{}{}
	if search != "" {
		query += ` WHERE LOWER(full_name) LIKE $1 OR COALESCE(phone, '') LIKE $2`
		args = append(args, "%"+strings.ToLower(search)+"%", "%"+search+"%")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := database.PostgresDB.Query(query, args...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load profiles")
		return
	}
	defer rows.Close()

	profiles := make([]models.Profile, 0)
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.UserID, &p.FullName, &p.Phone, &p.PointsBalance,
			&p.MustChangePassword, &p.CreatedAt, &p.UpdatedAt); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load profiles")
			return
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load profiles")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"profiles": profiles,
		"total":    len(profiles),
	})
}

// AdjustPoints credits or debits a customer's balance on behalf of a cashier
func AdjustPoints(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireRole(w, r, models.RoleCashier, models.RoleAdmin)
	if !ok {
		return
	}

	var req AdjustPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profileID, err := uuid.Parse(req.ProfileID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "profile_id must be a valid id")
		return
	}

	amount, err := req.Points.Int64()
	if err != nil || amount <= 0 {
		writeError(w, http.StatusBadRequest, "Please enter a valid points amount")
		return
	}

	entry, profile, err := loyaltyService.Adjust(r.Context(), profileID, req.Type, int(amount))
	if err != nil {
		var insufficient *services.InsufficientPointsError
		switch {
		case errors.As(err, &insufficient):
			writeError(w, http.StatusBadRequest, "Customer doesn't have enough points")
		case errors.Is(err, services.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "Please enter a valid points amount")
		case errors.Is(err, services.ErrInsufficientPoints):
			writeError(w, http.StatusConflict, "Customer doesn't have enough points")
		case errors.Is(err, services.ErrProfileNotFound):
			writeError(w, http.StatusNotFound, "Profile not found")
		default:
			writeError(w, http.StatusInternalServerError, "Transaction failed")
		}
		return
	}

	services.PublishTransactionEvent(r.Context(), entry)
	services.RecordAuditAsync(models.AuditRecord{
		Action:       models.AuditActionPointsAdjust,
		OperatorID:   operatorID.String(),
		TargetUserID: entry.UserID.String(),
		Points:       entry.Points,
		Detail:       entry.Description,
		IPAddress:    clientip.RealClientIP(r),
		CreatedAt:    time.Now().UTC(),
	})

	var message string
	if entry.Type == models.TransactionEarn {
		message = fmt.Sprintf("%d points added to %s's account", amount, profile.FullName)
	} else {
		message = fmt.Sprintf("%d points redeemed from %s's account", amount, profile.FullName)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        message,
		"transaction":    entry,
		"points_balance": profile.PointsBalance,
	})
}
