package handlers

import (
	"net/http"

	"github.com/pointloyal/loyalty-backend/internal/database"
	"github.com/pointloyal/loyalty-backend/internal/models"
)

// GetTransactions lists the caller's ledger entries, newest first
func GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireCustomer(w, r)
	if !ok {
		return
	}

	rows, err := database.PostgresDB.Query(`
		SELECT id, user_id, type, points, description, COALESCE(category, ''), created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions")
		return
	}
	defer rows.Close()

	transactions := make([]models.Transaction, 0)
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Points, &t.Description, &t.Category, &t.CreatedAt); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load transactions")
			return
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"transactions": transactions,
		"total":        len(transactions),
	})
}
