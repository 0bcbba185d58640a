package push

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelfleet/signage-notify/internal/notify"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testNotification(screenID string) notify.Notification {
	return notify.Promote(screenID, notify.ChangeSystem, time.Now().UTC())
}

func TestSendConfirmsWithLiveSubscriber(t *testing.T) {
	hub := newTestHub()
	sub := hub.Subscribe("scr_1")
	defer hub.Unsubscribe(sub)

	n := testNotification("scr_1")
	ok := hub.Send(context.Background(), "scr_1", n, time.Second)
	require.True(t, ok)

	select {
	case got := <-sub.C:
		assert.Equal(t, n.ID, got.ID)
	default:
		t.Fatal("confirmed send did not reach the subscriber channel")
	}
}

func TestSendUnconfirmedWithoutSubscriber(t *testing.T) {
	hub := newTestHub()
	ok := hub.Send(context.Background(), "scr_1", testNotification("scr_1"), 10*time.Millisecond)
	assert.False(t, ok)
}

func TestSendDoesNotCrossScreens(t *testing.T) {
	hub := newTestHub()
	sub := hub.Subscribe("scr_1")
	defer hub.Unsubscribe(sub)

	ok := hub.Send(context.Background(), "scr_2", testNotification("scr_2"), 10*time.Millisecond)
	assert.False(t, ok)
	assert.Empty(t, sub.C)
}

func TestSendTimesOutOnFullBuffer(t *testing.T) {
	hub := newTestHub()
	sub := hub.Subscribe("scr_1")
	defer hub.Unsubscribe(sub)

	// Saturate the buffer without a reader.
	for i := 0; i < subscriptionBuffer; i++ {
		require.True(t, hub.Send(context.Background(), "scr_1", testNotification("scr_1"), 10*time.Millisecond))
	}

	start := time.Now()
	ok := hub.Send(context.Background(), "scr_1", testNotification("scr_1"), 20*time.Millisecond)
	assert.False(t, ok, "a device that cannot drain its buffer reports unconfirmed")
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSendConfirmsWhenAnySubscriberAccepts(t *testing.T) {
	hub := newTestHub()
	stale := hub.Subscribe("scr_1")
	for i := 0; i < subscriptionBuffer; i++ {
		stale.ch <- testNotification("scr_1")
	}
	fresh := hub.Subscribe("scr_1")
	defer hub.Unsubscribe(stale)
	defer hub.Unsubscribe(fresh)

	ok := hub.Send(context.Background(), "scr_1", testNotification("scr_1"), 50*time.Millisecond)
	assert.True(t, ok, "one reconnected channel accepting is enough")
}

func TestUnsubscribeRemovesScreen(t *testing.T) {
	hub := newTestHub()
	sub := hub.Subscribe("scr_1")
	assert.True(t, hub.Connected("scr_1"))
	assert.Equal(t, []string{"scr_1"}, hub.ConnectedScreens())

	hub.Unsubscribe(sub)
	assert.False(t, hub.Connected("scr_1"))
	assert.Empty(t, hub.ConnectedScreens())

	// Unsubscribing twice is harmless.
	hub.Unsubscribe(sub)
}

func TestStats(t *testing.T) {
	hub := newTestHub()
	a := hub.Subscribe("scr_1")
	b := hub.Subscribe("scr_1")
	c := hub.Subscribe("scr_2")
	defer hub.Unsubscribe(a)
	defer hub.Unsubscribe(b)
	defer hub.Unsubscribe(c)

	stats := hub.Stats()
	assert.Equal(t, 2, stats["screens"])
	assert.Equal(t, 3, stats["subscriptions"])
}

func TestSendRespectsContextCancel(t *testing.T) {
	hub := newTestHub()
	sub := hub.Subscribe("scr_1")
	defer hub.Unsubscribe(sub)
	for i := 0; i < subscriptionBuffer; i++ {
		sub.ch <- testNotification("scr_1")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := hub.Send(ctx, "scr_1", testNotification("scr_1"), time.Minute)
	assert.False(t, ok)
}
