// Package notify is the screen notification delivery core: it records
// content-affecting change events, fans them out to affected screens,
// derives deduplicated pending notifications, and tracks delivery state
// independent of transport.
//
// Pipeline: record change → append log entries → promote to notifications
// (dedup against pending rows) → dispatch attempt over the push channel.
// Push is strictly an accelerator; the poll path alone guarantees
// eventual delivery.
package notify

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Priority scale for notifications. Emergency overrides always use
// PriorityUrgent regardless of the template default.
const (
	PriorityLow    = 1
	PriorityNormal = 3
	PriorityHigh   = 4
	PriorityUrgent = 5
)

const (
	// PushTimeout bounds a single push channel hand-off. A push that does
	// not confirm within this window is abandoned without side effects and
	// the notification stays poll-eligible.
	PushTimeout = 2 * time.Second

	// RetryInterval is the cadence of the background push retry worker.
	// RetryIntervalUrgent applies while any organization has emergency
	// override active.
	RetryInterval       = 30 * time.Second
	RetryIntervalUrgent = 5 * time.Second
)

// --------------------------------------------------------------------------
// Change types and delivery channels
// --------------------------------------------------------------------------

// ChangeType classifies a content-affecting mutation.
type ChangeType string

const (
	ChangePlaylist  ChangeType = "playlist_change"
	ChangeSchedule  ChangeType = "schedule_change"
	ChangeSystem    ChangeType = "system_message"
	ChangeEmergency ChangeType = "emergency_override"
)

// Valid reports whether t is a known change type.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangePlaylist, ChangeSchedule, ChangeSystem, ChangeEmergency:
		return true
	}
	return false
}

// Channel records how a notification reached the device.
type Channel string

const (
	ChannelNone Channel = ""     // not yet delivered
	ChannelPush Channel = "push" // handed to a live push channel
	ChannelPoll Channel = "poll" // claimed by a heartbeat poll
)

// --------------------------------------------------------------------------
// Sentinel errors
// --------------------------------------------------------------------------

// Sentinel errors for domain-level discrimination. Handlers map these to
// HTTP status codes without leaking store details.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnknownScreen = errors.New("unknown screen")
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// ChangeEvent is the ephemeral input to the recorder. ScreenIDs may be
// empty — editing an unscheduled playlist affects nothing and is a valid
// no-op.
type ChangeEvent struct {
	Type      ChangeType      `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	ScreenIDs []string        `json:"screen_ids"`
}

// LogEntry is the durable, append-only record of "something changed for
// this screen". One row per (screen, change event) pair; never mutated.
type LogEntry struct {
	ID        string          `json:"id"`
	ScreenID  string          `json:"screen_id"`
	Type      ChangeType      `json:"change_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Notification is the unit a device consumes. DeliveredAt is nil while
// pending and is set at most once: the conditional update on this field
// is the single point of mutual exclusion between push confirmation and
// poll claim.
type Notification struct {
	ID          string     `json:"id"`
	ScreenID    string     `json:"screen_id"`
	Type        ChangeType `json:"type"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Priority    int        `json:"priority"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	Channel     Channel    `json:"channel,omitempty"`
}

// Pending reports whether the notification has not yet been delivered.
func (n *Notification) Pending() bool { return n.DeliveredAt == nil }

// ChangeRecord pairs a log entry with the notification it promotes to.
// Stores insert both atomically; the notification may be suppressed by
// the pending-dedup rule while the log entry is always written.
type ChangeRecord struct {
	Entry        LogEntry
	Notification Notification
}

// --------------------------------------------------------------------------
// Promotion templates
// --------------------------------------------------------------------------

type template struct {
	Title    string
	Message  string
	Priority int
}

// templates maps change types to notification fields. emergency_override
// carries the maximum priority unconditionally.
var templates = map[ChangeType]template{
	ChangePlaylist: {
		Title:    "Playlist Updated",
		Message:  "A playlist assigned to this screen changed",
		Priority: PriorityNormal,
	},
	ChangeSchedule: {
		Title:    "Schedule Updated",
		Message:  "The schedule for this screen was reassigned",
		Priority: PriorityNormal,
	},
	ChangeSystem: {
		Title:    "System Message",
		Message:  "A system message was issued for this screen",
		Priority: PriorityNormal,
	},
	ChangeEmergency: {
		Title:    "Emergency Override",
		Message:  "An emergency override is active for this screen",
		Priority: PriorityUrgent,
	},
}

// NewID returns a new ULID string. ULIDs sort lexicographically by
// creation time, which keeps log and notification rows naturally ordered.
func NewID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
