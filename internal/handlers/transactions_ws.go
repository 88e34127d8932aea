package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pointloyal/loyalty-backend/internal/services"
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// TransactionsWebSocket streams newly inserted ledger entries to the
// authenticated user's open history views. Authentication uses the session
// token (Authorization: Bearer <token>, or ?token= for browser clients).
func TransactionsWebSocket(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing session token", http.StatusUnauthorized)
			return
		}
	}

	userID, ok, err := validateSession(token)
	if err != nil || !ok {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Subscribe to local events for this user (fed by the Redis subscriber)
	events, unsubscribe := services.SubscribeTransactionFeed(userID.String())
	defer unsubscribe()

	// Writer goroutine: forward feed events to this connection
	go func() {
		for evt := range events {
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}()

	// Reader loop: only keepalives come from the client
	conn.SetReadLimit(4 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	}
}
