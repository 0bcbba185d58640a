package pollconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, orgID string) (Config, error) {
	var cfg Config
	err := s.pool.QueryRow(ctx, "get_polling_config", orgID).
		Scan(&cfg.OrgID, &cfg.Timezone, &cfg.EmergencyOverride, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Default(orgID), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("get polling config: %w", err)
	}
	return cfg, nil
}

func (s *PostgresStore) Set(ctx context.Context, orgID string, upd Update) (Config, error) {
	if err := upd.Validate(); err != nil {
		return Config{}, err
	}

	var cfg Config
	err := s.pool.QueryRow(ctx, `
		INSERT INTO polling_configs (org_id, timezone, emergency_override, updated_at)
		VALUES ($1, COALESCE($2, $4), COALESCE($3, false), NOW())
		ON CONFLICT (org_id) DO UPDATE SET
			timezone = COALESCE($2, polling_configs.timezone),
			emergency_override = COALESCE($3, polling_configs.emergency_override),
			updated_at = NOW()
		RETURNING org_id, timezone, emergency_override, updated_at`,
		orgID, upd.Timezone, upd.EmergencyOverride, DefaultTimezone,
	).Scan(&cfg.OrgID, &cfg.Timezone, &cfg.EmergencyOverride, &cfg.UpdatedAt)
	if err != nil {
		return Config{}, fmt.Errorf("set polling config: %w", err)
	}
	return cfg, nil
}

// Backfill inserts default rows only for organizations without one.
// ON CONFLICT DO NOTHING keeps repeat runs from creating duplicates.
func (s *PostgresStore) Backfill(ctx context.Context, orgIDs []string) (int, error) {
	inserted := 0
	for _, orgID := range orgIDs {
		if orgID == "" {
			continue
		}
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO polling_configs (org_id, timezone, emergency_override, updated_at)
			VALUES ($1, $2, false, NOW())
			ON CONFLICT (org_id) DO NOTHING`,
			orgID, DefaultTimezone,
		)
		if err != nil {
			return inserted, fmt.Errorf("backfill org %s: %w", orgID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) AnyEmergencyActive(ctx context.Context) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx, "any_emergency_active").Scan(&active)
	if err != nil {
		return false, fmt.Errorf("any emergency active: %w", err)
	}
	return active, nil
}
