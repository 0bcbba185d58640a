// Command notifyctl is the operator CLI for the signage notification
// subsystem.
//
// Usage:
//
//	notifyctl migrate
//	notifyctl send --screen scr_42 --type system_message
//	notifyctl config get --org org_7
//	notifyctl config set --org org_7 --timezone America/Chicago --emergency
//	notifyctl backfill --org org_1 --org org_2
//	notifyctl purge --days 30
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pixelfleet/signage-notify/internal/config"
	"github.com/pixelfleet/signage-notify/internal/db"
	"github.com/pixelfleet/signage-notify/internal/notify"
	"github.com/pixelfleet/signage-notify/internal/pollconfig"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "notifyctl",
		Short: "Signage notification subsystem operator CLI",
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(configCmd())
	root.AddCommand(backfillCmd())
	root.AddCommand(purgeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// run loads config, opens the pool, and invokes fn with a
// signal-cancelled context.
func run(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the subsystem schema (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return err
			}
			logger.Info("Schema applied")
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// send command — mirrors the original push test scripts
// --------------------------------------------------------------------------

func sendCmd() *cobra.Command {
	var screenID, changeType, message string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Record a test change for a screen",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := notify.NewPostgresStore(pool.Pool)
				service := notify.NewService(store, nil, nil, logger)

				payload, err := json.Marshal(map[string]string{
					"source":  "notifyctl",
					"message": message,
				})
				if err != nil {
					return err
				}

				count, err := service.RecordChange(ctx, notify.ChangeType(changeType), payload, []string{screenID})
				if err != nil {
					return err
				}
				logger.Info("Test change recorded",
					"screen_id", screenID, "type", changeType, "log_entries", count)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&screenID, "screen", "", "Target screen identifier")
	cmd.Flags().StringVar(&changeType, "type", string(notify.ChangeSystem), "Change type")
	cmd.Flags().StringVar(&message, "message", "test notification", "Payload message")
	cmd.MarkFlagRequired("screen")
	return cmd
}

// --------------------------------------------------------------------------
// config commands
// --------------------------------------------------------------------------

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or update per-organization polling configuration",
	}
	cmd.AddCommand(configGetCmd())
	cmd.AddCommand(configSetCmd())
	return cmd
}

func configGetCmd() *cobra.Command {
	var orgID string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show an organization's polling configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := pollconfig.NewPostgresStore(pool.Pool)
				pc, err := store.Get(ctx, orgID)
				if err != nil {
					return err
				}
				logger.Info("Polling config",
					"org_id", pc.OrgID,
					"timezone", pc.Timezone,
					"emergency_override", pc.EmergencyOverride,
					"poll_interval", pollconfig.EffectiveInterval(pc))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "Organization identifier")
	cmd.MarkFlagRequired("org")
	return cmd
}

func configSetCmd() *cobra.Command {
	var (
		orgID     string
		timezone  string
		emergency bool
		clear     bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update an organization's polling configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := pollconfig.NewPostgresStore(pool.Pool)

				upd := pollconfig.Update{}
				if timezone != "" {
					upd.Timezone = &timezone
				}
				if emergency || clear {
					flag := emergency && !clear
					upd.EmergencyOverride = &flag
				}

				pc, err := store.Set(ctx, orgID, upd)
				if err != nil {
					return err
				}
				logger.Info("Polling config updated",
					"org_id", pc.OrgID,
					"timezone", pc.Timezone,
					"emergency_override", pc.EmergencyOverride)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "Organization identifier")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone name")
	cmd.Flags().BoolVar(&emergency, "emergency", false, "Enable emergency override")
	cmd.Flags().BoolVar(&clear, "clear-emergency", false, "Disable emergency override")
	cmd.MarkFlagRequired("org")
	return cmd
}

// --------------------------------------------------------------------------
// backfill command
// --------------------------------------------------------------------------

func backfillCmd() *cobra.Command {
	var orgIDs []string
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Insert default polling configs for organizations without one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := pollconfig.NewPostgresStore(pool.Pool)
				inserted, err := store.Backfill(ctx, orgIDs)
				if err != nil {
					return err
				}
				logger.Info("Backfill complete", "requested", len(orgIDs), "inserted", inserted)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&orgIDs, "org", nil, "Organization identifier (repeatable)")
	cmd.MarkFlagRequired("org")
	return cmd
}

// --------------------------------------------------------------------------
// purge command
// --------------------------------------------------------------------------

func purgeCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete delivered notifications past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := notify.NewPostgresStore(pool.Pool)
				cutoff := time.Now().UTC().AddDate(0, 0, -days)
				purged, err := store.PurgeDelivered(ctx, cutoff)
				if err != nil {
					return err
				}
				logger.Info("Purge complete", "cutoff", cutoff.Format(time.RFC3339), "purged", purged)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Retention window in days")
	return cmd
}
