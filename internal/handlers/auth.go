package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/pointloyal/loyalty-backend/internal/database"
	"github.com/pointloyal/loyalty-backend/internal/models"
	"github.com/pointloyal/loyalty-backend/internal/services"
	"github.com/pointloyal/loyalty-backend/pkg/utils"
)

type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// AuthResponse is returned by the sign-in endpoints.
type AuthResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Token   string                 `json:"token,omitempty"`
	User    map[string]interface{} `json:"user,omitempty"`
	Profile *models.Profile        `json:"profile,omitempty"`
}

// signinUser verifies credentials and returns the user ID. Writes the error
// response and returns false on failure.
func signinUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return uuid.Nil, "", false
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return uuid.Nil, "", false
	}

	var userID uuid.UUID
	var email, passwordHash string
	var isActive bool
	err := database.PostgresDB.QueryRow(`
		SELECT id, email, password_hash, is_active FROM users WHERE LOWER(email) = $1
	`, utils.NormalizeEmail(req.Email)).Scan(&userID, &email, &passwordHash, &isActive)
	if err != nil {
		if err == sql.ErrNoRows {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
		} else {
			writeError(w, http.StatusInternalServerError, "Database error")
		}
		return uuid.Nil, "", false
	}

	if !isActive {
		writeError(w, http.StatusForbidden, "This account has been deactivated")
		return uuid.Nil, "", false
	}

	valid, err := utils.VerifyPassword(req.Password, passwordHash)
	if err != nil || !valid {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return uuid.Nil, "", false
	}

	return userID, email, true
}

// Signin handles customer login
func Signin(w http.ResponseWriter, r *http.Request) {
	userID, email, ok := signinUser(w, r)
	if !ok {
		return
	}

	token, err := services.CreateSession(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	// Cashier-only accounts may have no profile row; that is not an error here.
	profile, err := loadProfileByUserID(r.Context(), userID)
	if err != nil && !errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Login successful",
		Token:   token,
		User: map[string]interface{}{
			"id":    userID.String(),
			"email": email,
		},
		Profile: profile,
	})
}

// CashierSignin handles cashier console login. The account must hold the
// cashier or admin role.
func CashierSignin(w http.ResponseWriter, r *http.Request) {
	userID, email, ok := signinUser(w, r)
	if !ok {
		return
	}

	roles, err := userRoles(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !hasAnyRole(roles, models.RoleCashier, models.RoleAdmin) {
		writeError(w, http.StatusForbidden, "Cashier privileges required")
		return
	}

	token, err := services.CreateSession(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Login successful",
		Token:   token,
		User: map[string]interface{}{
			"id":    userID.String(),
			"email": email,
			"roles": roles,
		},
	})
}

// GetMe returns the caller's profile and roles. This endpoint stays
// reachable while must_change_password is set; the client needs it to know
// the gate is active.
func GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	// Sliding expiration: every authenticated profile load pushes the
	// session TTL out another 7 days.
	services.RefreshSession(extractBearerToken(r.Header.Get("Authorization")))

	profile, err := loadProfileByUserID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
		} else {
			writeError(w, http.StatusInternalServerError, "Database error")
		}
		return
	}

	roles, err := userRoles(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"profile": profile,
		"roles":   roles,
	})
}

// Signout invalidates the caller's session
func Signout(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token != "" {
		services.InvalidateSession(token)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Signed out",
	})
}

// ChangePassword updates the caller's password and clears the forced-change
// flag. Reachable while the gate is active; that is its purpose.
func ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := utils.ValidateNewPassword(req.NewPassword, req.ConfirmPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	if err := loyaltyService.SetPassword(r.Context(), userID, hash); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to change password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Your password has been updated successfully.",
	})
}
