package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/pointloyal/loyalty-backend/internal/database"
	"github.com/pointloyal/loyalty-backend/internal/models"
)

const feedChannelPrefix = "loyalty:tx:"

// FeedEvent is the payload broadcast over Redis and WebSocket when a ledger
// row is inserted for a user.
type FeedEvent struct {
	Type        string              `json:"type"` // "transaction"
	UserID      string              `json:"user_id"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}

// feedHub fans Redis feed events out to local WebSocket subscribers.
// Subscriptions are per-user and individually cancellable.
type feedHub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan FeedEvent
}

var (
	transactionHub = &feedHub{subs: make(map[string]map[int]chan FeedEvent)}
	feedStarted    sync.Once
)

// SubscribeTransactionFeed registers a subscriber for a user's ledger events.
// The returned cancel func must be called when the owning connection goes
// away; it closes the channel.
func SubscribeTransactionFeed(userID string) (<-chan FeedEvent, func()) {
	ch := make(chan FeedEvent, 16)

	transactionHub.mu.Lock()
	transactionHub.nextID++
	id := transactionHub.nextID
	if transactionHub.subs[userID] == nil {
		transactionHub.subs[userID] = make(map[int]chan FeedEvent)
	}
	transactionHub.subs[userID][id] = ch
	transactionHub.mu.Unlock()

	cancel := func() {
		transactionHub.mu.Lock()
		defer transactionHub.mu.Unlock()
		if userSubs, ok := transactionHub.subs[userID]; ok {
			if sub, ok := userSubs[id]; ok {
				delete(userSubs, id)
				close(sub)
			}
			if len(userSubs) == 0 {
				delete(transactionHub.subs, userID)
			}
		}
	}
	return ch, cancel
}

// fanOutFeedEvent delivers an event to all local subscribers for its user.
// Slow consumers have the event dropped rather than blocking the fan-out.
func fanOutFeedEvent(event FeedEvent) {
	transactionHub.mu.RLock()
	defer transactionHub.mu.RUnlock()

	for _, ch := range transactionHub.subs[event.UserID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// localSubscriberCount is used by tests and diagnostics.
func localSubscriberCount(userID string) int {
	transactionHub.mu.RLock()
	defer transactionHub.mu.RUnlock()
	return len(transactionHub.subs[userID])
}

// StartTransactionFeedSubscriber ensures a single shared Redis listener per
// instance, feeding the local hub.
func StartTransactionFeedSubscriber(ctx context.Context) {
	feedStarted.Do(func() {
		go runFeedSubscriber(ctx)
	})
}

func runFeedSubscriber(ctx context.Context) {
	client := database.RedisClient
	if client == nil {
		log.Println("Redis client not initialized; transaction feed subscriber not started")
		return
	}

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := client.PSubscribe(ctx, feedChannelPrefix+"*")
			defer pubsub.Close()

			log.Println("✅ Transaction feed subscriber started (pattern: " + feedChannelPrefix + "*)")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					log.Printf("Redis feed subscriber error: %v", err)
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var event FeedEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("failed to unmarshal feed event: %v", err)
					continue
				}
				if event.UserID == "" {
					event.UserID = strings.TrimPrefix(msg.Channel, feedChannelPrefix)
				}

				fanOutFeedEvent(event)
			}
		}()
	}
}

// PublishTransactionEvent publishes a ledger insert to Redis so every
// instance can notify the user's open history views.
func PublishTransactionEvent(ctx context.Context, t *models.Transaction) error {
	if database.RedisClient == nil {
		return nil
	}
	event := FeedEvent{
		Type:        "transaction",
		UserID:      t.UserID.String(),
		Transaction: t,
		Timestamp:   time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return database.RedisClient.Publish(ctx, feedChannelPrefix+event.UserID, data).Err()
}
