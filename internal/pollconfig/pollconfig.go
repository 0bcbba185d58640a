// Package pollconfig holds per-organization polling configuration:
// timezone and the emergency override flag that shortens heartbeat
// cadence and elevates push urgency for the organization's screens.
//
// Config absence is a normal, recoverable state: Get returns the system
// default for unknown organizations and Backfill idempotently inserts
// defaults for organizations without a row. Reads tolerate eventual
// consistency with the most recent write.
package pollconfig

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DefaultTimezone is the placeholder zone for organizations without a
	// configured row.
	DefaultTimezone = "UTC"

	// DefaultInterval is the normal heartbeat poll cadence.
	// UrgentInterval applies while emergency override is active.
	DefaultInterval = 30 * time.Second
	UrgentInterval  = 5 * time.Second
)

// ErrInvalidTimezone rejects timezone values that are not IANA zone names.
var ErrInvalidTimezone = errors.New("invalid timezone")

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Config is one organization's polling configuration.
type Config struct {
	OrgID             string    `json:"org_id"`
	Timezone          string    `json:"timezone"`
	EmergencyOverride bool      `json:"emergency_override"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Update carries the mutable fields of Set. Nil fields are left unchanged.
type Update struct {
	Timezone          *string `json:"timezone"`
	EmergencyOverride *bool   `json:"emergency_override"`
}

// Validate checks that a supplied timezone is a loadable IANA zone name.
func (u Update) Validate() error {
	if u.Timezone != nil {
		if _, err := time.LoadLocation(*u.Timezone); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTimezone, *u.Timezone)
		}
	}
	return nil
}

// Default returns the system default configuration for an organization.
func Default(orgID string) Config {
	return Config{OrgID: orgID, Timezone: DefaultTimezone}
}

// EffectiveInterval returns the heartbeat cadence for an organization's
// screens. Emergency override short-circuits normal cadence to the
// minimum urgent interval.
func EffectiveInterval(cfg Config) time.Duration {
	if cfg.EmergencyOverride {
		return UrgentInterval
	}
	return DefaultInterval
}

// Store is the persistence boundary for polling configuration.
type Store interface {
	// Get returns the stored configuration, or Default(orgID) when no row
	// exists. A missing row is never an error.
	Get(ctx context.Context, orgID string) (Config, error)

	// Set upserts the given fields and returns the resulting config.
	Set(ctx context.Context, orgID string, upd Update) (Config, error)

	// Backfill inserts default rows for the given organizations that have
	// none, returning the number inserted. Idempotent: a second run with
	// the same input inserts nothing.
	Backfill(ctx context.Context, orgIDs []string) (int, error)

	// AnyEmergencyActive reports whether any organization currently has
	// emergency override set. Read by the push retry worker.
	AnyEmergencyActive(ctx context.Context) (bool, error)
}
