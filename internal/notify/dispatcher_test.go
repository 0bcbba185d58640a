package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

// fakePush is a scriptable PushChannel.
type fakePush struct {
	confirm   bool
	connected []string
	sent      []Notification
}

func (f *fakePush) Send(_ context.Context, _ string, n Notification, _ time.Duration) bool {
	f.sent = append(f.sent, n)
	return f.confirm
}

func (f *fakePush) ConnectedScreens() []string { return f.connected }

// markFailStore delegates to a MemoryStore but fails MarkPushed.
type markFailStore struct {
	*MemoryStore
	err error
}

func (s markFailStore) MarkPushed(context.Context, string, time.Time) (bool, error) {
	return false, s.err
}

func recordOne(t *testing.T, store Store, screenID string) Notification {
	t.Helper()
	created, err := store.AppendChange(context.Background(), []ChangeRecord{{
		Entry: LogEntry{
			ID:        NewID(),
			ScreenID:  screenID,
			Type:      ChangePlaylist,
			Payload:   payload,
			CreatedAt: time.Now().UTC(),
		},
		Notification: Promote(screenID, ChangePlaylist, time.Now().UTC()),
	}})
	require.NoError(t, err)
	require.Len(t, created, 1)
	return created[0]
}

// --- Dispatch ---

func TestDispatchConfirmedMarksDelivered(t *testing.T) {
	store := NewMemoryStore()
	push := &fakePush{confirm: true}
	d := NewDispatcher(store, push, testLogger())

	n := recordOne(t, store, "scr_1")
	result := d.Dispatch(context.Background(), &n)

	assert.Equal(t, DispatchAttempted, result)
	require.NotNil(t, n.DeliveredAt)
	assert.Equal(t, ChannelPush, n.Channel)

	stored, ok := store.Get(n.ID)
	require.True(t, ok)
	assert.False(t, stored.Pending())

	// Delivered rows are invisible to a subsequent poll.
	claimed, err := store.ClaimPending(context.Background(), "scr_1", time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestDispatchNoChannelLeavesPending(t *testing.T) {
	store := NewMemoryStore()
	d := NewDispatcher(store, nil, testLogger())

	n := recordOne(t, store, "scr_1")
	result := d.Dispatch(context.Background(), &n)

	assert.Equal(t, DispatchQueued, result)
	assert.True(t, n.Pending())

	claimed, err := store.ClaimPending(context.Background(), "scr_1", time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, claimed, 1, "unconfirmed push leaves the notification claimable")
}

func TestDispatchUnconfirmedSendLeavesPending(t *testing.T) {
	store := NewMemoryStore()
	push := &fakePush{confirm: false}
	d := NewDispatcher(store, push, testLogger())

	n := recordOne(t, store, "scr_1")
	result := d.Dispatch(context.Background(), &n)

	assert.Equal(t, DispatchQueued, result)
	assert.True(t, n.Pending())
	assert.Len(t, push.sent, 1)
}

func TestDispatchLosesRaceToPoll(t *testing.T) {
	store := NewMemoryStore()
	push := &fakePush{confirm: true}
	d := NewDispatcher(store, push, testLogger())

	n := recordOne(t, store, "scr_1")

	// A poll claims the notification while the dispatcher still holds the
	// pending snapshot, so the push hand-off happens but its delivery mark
	// loses the compare-and-set.
	claimed, err := store.ClaimPending(context.Background(), "scr_1", time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	result := d.Dispatch(context.Background(), &n)
	assert.Equal(t, DispatchAttempted, result)
	assert.True(t, n.Pending(), "the loser must not record a delivery on its copy")

	stored, ok := store.Get(n.ID)
	require.True(t, ok)
	assert.Equal(t, ChannelPoll, stored.Channel, "the poll claim's mark stands")
	require.NotNil(t, stored.DeliveredAt)
	assert.True(t, stored.DeliveredAt.Equal(*claimed[0].DeliveredAt),
		"delivery timestamp is set at most once")
}

func TestDispatchMarkFailureStaysPollEligible(t *testing.T) {
	store := markFailStore{MemoryStore: NewMemoryStore(), err: errors.New("write timeout")}
	push := &fakePush{confirm: true}
	d := NewDispatcher(store, push, testLogger())

	n := recordOne(t, store.MemoryStore, "scr_1")
	result := d.Dispatch(context.Background(), &n)

	// Duplicate display beats lost delivery: the row stays pending and the
	// device will see it again on its next heartbeat.
	assert.Equal(t, DispatchQueued, result)
	claimed, err := store.ClaimPending(context.Background(), "scr_1", time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}

func TestDispatchSkipsDelivered(t *testing.T) {
	store := NewMemoryStore()
	push := &fakePush{confirm: true}
	d := NewDispatcher(store, push, testLogger())

	at := time.Now().UTC()
	n := Notification{ID: NewID(), ScreenID: "scr_1", DeliveredAt: &at, Channel: ChannelPoll}
	result := d.Dispatch(context.Background(), &n)

	assert.Equal(t, DispatchAttempted, result)
	assert.Empty(t, push.sent, "delivered notifications are never re-pushed")
}

// --- retry sweep ---

func TestRetryConnectedRedeliversPending(t *testing.T) {
	store := NewMemoryStore()
	push := &fakePush{confirm: true, connected: []string{"scr_1"}}
	d := NewDispatcher(store, push, testLogger())

	n := recordOne(t, store, "scr_1")
	d.retryConnected(context.Background())

	require.Len(t, push.sent, 1)
	stored, ok := store.Get(n.ID)
	require.True(t, ok)
	assert.False(t, stored.Pending())
	assert.Equal(t, ChannelPush, stored.Channel)
}

func TestRetryConnectedIgnoresDisconnectedScreens(t *testing.T) {
	store := NewMemoryStore()
	push := &fakePush{confirm: true, connected: nil}
	d := NewDispatcher(store, push, testLogger())

	recordOne(t, store, "scr_1")
	d.retryConnected(context.Background())
	assert.Empty(t, push.sent)
}

// emergencyFunc adapts a function to EmergencyChecker.
type emergencyFunc func(ctx context.Context) (bool, error)

func (f emergencyFunc) AnyEmergencyActive(ctx context.Context) (bool, error) { return f(ctx) }

func TestSweepIntervalShortensDuringEmergency(t *testing.T) {
	d := NewDispatcher(NewMemoryStore(), nil, testLogger())
	ctx := context.Background()

	active := emergencyFunc(func(context.Context) (bool, error) { return true, nil })
	idle := emergencyFunc(func(context.Context) (bool, error) { return false, nil })
	failing := emergencyFunc(func(context.Context) (bool, error) { return false, errors.New("unavailable") })

	assert.Equal(t, RetryIntervalUrgent, d.sweepInterval(ctx, active))
	assert.Equal(t, RetryInterval, d.sweepInterval(ctx, idle))
	assert.Equal(t, RetryInterval, d.sweepInterval(ctx, failing), "check failure falls back to normal cadence")
	assert.Equal(t, RetryInterval, d.sweepInterval(ctx, nil))
}
