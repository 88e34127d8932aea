package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pointloyal/loyalty-backend/internal/database"
	"github.com/pointloyal/loyalty-backend/internal/models"
	"github.com/pointloyal/loyalty-backend/internal/services"
)

var loyaltyService *services.LoyaltyService

// validateSession resolves a session token to its user. A variable so tests
// can stand in for the Redis-backed session store.
var validateSession = services.ValidateSession

// InitLoyaltyService wires the loyalty service onto the shared Postgres pool.
// Must be called from main after the database has connected.
func InitLoyaltyService() {
	loyaltyService = services.NewLoyaltyService(services.NewPostgresLoyaltyStore(database.PostgresDB))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// currentUserID resolves the session token to a user ID. Returns false when
// there is no valid session.
func currentUserID(r *http.Request) (uuid.UUID, bool) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return uuid.Nil, false
	}
	userID, ok, err := validateSession(token)
	if err != nil || !ok {
		return uuid.Nil, false
	}
	return userID, true
}

// loadProfileByUserID fetches the caller's profile and attaches the member code.
func loadProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	p, err := loyaltyService.ProfileForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.MemberCode = memberCode(userID)
	return p, nil
}

// memberCode is the payload the client renders as the member QR code.
func memberCode(userID uuid.UUID) string {
	return "LOYAL:" + userID.String()
}

// userRoles returns the roles assigned to a user.
func userRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return loyaltyService.RolesForUser(ctx, userID)
}

func hasAnyRole(roles []string, wanted ...string) bool {
	for _, r := range roles {
		for _, w := range wanted {
			if r == w {
				return true
			}
		}
	}
	return false
}

// passwordChangeRequired reports whether the forced password-change gate
// should block the profile from everything except the change-password flow.
func passwordChangeRequired(p *models.Profile) bool {
	return p != nil && p.MustChangePassword
}

// requireCustomer authenticates the caller and enforces the password-change
// gate. Writes the error response and returns ok=false when blocked.
func requireCustomer(w http.ResponseWriter, r *http.Request) (uuid.UUID, *models.Profile, bool) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, nil, false
	}

	profile, err := loadProfileByUserID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
		} else {
			writeError(w, http.StatusInternalServerError, "Database error")
		}
		return uuid.Nil, nil, false
	}

	if passwordChangeRequired(profile) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"success": false,
			"code":    "password_change_required",
			"message": "Please set a new password before continuing",
		})
		return uuid.Nil, nil, false
	}

	return userID, profile, true
}

// requireRole authenticates the caller and checks for one of the given
// roles. Responses follow the privileged-function contract: 401 without a
// valid credential, 403 without the role.
func requireRole(w http.ResponseWriter, r *http.Request, wanted ...string) (uuid.UUID, bool) {
	userID, ok := currentUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"error": "Unauthorized"})
		return uuid.Nil, false
	}

	roles, err := userRoles(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "Database error"})
		return uuid.Nil, false
	}
	if !hasAnyRole(roles, wanted...) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"error": "Forbidden: Cashier privileges required"})
		return uuid.Nil, false
	}

	return userID, true
}
