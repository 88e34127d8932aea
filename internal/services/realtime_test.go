package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestFeedSubscribeAndFanOut(t *testing.T) {
	userID := uuid.NewString()

	ch, cancel := SubscribeTransactionFeed(userID)
	defer cancel()

	event := FeedEvent{Type: "transaction", UserID: userID, Timestamp: time.Now()}
	fanOutFeedEvent(event)

	select {
	case got := <-ch:
		if got.UserID != userID {
			t.Errorf("event user: got %q, want %q", got.UserID, userID)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the event")
	}
}

func TestFeedFanOut_OnlyMatchingUser(t *testing.T) {
	userA := uuid.NewString()
	userB := uuid.NewString()

	chA, cancelA := SubscribeTransactionFeed(userA)
	defer cancelA()
	chB, cancelB := SubscribeTransactionFeed(userB)
	defer cancelB()

	fanOutFeedEvent(FeedEvent{Type: "transaction", UserID: userA})

	select {
	case <-chA:
	case <-time.After(time.Second):
		t.Fatal("subscriber for userA did not receive the event")
	}

	select {
	case evt := <-chB:
		t.Errorf("subscriber for userB received an event for %q", evt.UserID)
	default:
	}
}

func TestFeedUnsubscribe(t *testing.T) {
	userID := uuid.NewString()

	ch, cancel := SubscribeTransactionFeed(userID)
	if got := localSubscriberCount(userID); got != 1 {
		t.Fatalf("subscriber count: got %d, want 1", got)
	}

	cancel()

	if got := localSubscriberCount(userID); got != 0 {
		t.Errorf("subscriber count after cancel: got %d, want 0", got)
	}

	// The channel is closed; fan-out after cancel must not panic.
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	fanOutFeedEvent(FeedEvent{Type: "transaction", UserID: userID})

	// Double cancel is safe.
	cancel()
}

func TestFeedFanOut_DropsWhenSubscriberIsFull(t *testing.T) {
	userID := uuid.NewString()

	ch, cancel := SubscribeTransactionFeed(userID)
	defer cancel()

	// Fill the buffer without draining, then push one more. The extra event
	// is dropped instead of blocking the fan-out.
	for i := 0; i < cap(ch)+5; i++ {
		fanOutFeedEvent(FeedEvent{Type: "transaction", UserID: userID})
	}

	if got := len(ch); got != cap(ch) {
		t.Errorf("buffered events: got %d, want %d", got, cap(ch))
	}
}
