// Command reminderctl runs reminder categories and maintenance without the
// HTTP server.
//
// Usage:
//
//	reminderctl run prayer
//	reminderctl run announcements
//	reminderctl purge
//	reminderctl migrate
//	reminderctl schedule
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/masjidconnect/reminder-service/internal/app"
	"github.com/masjidconnect/reminder-service/internal/config"
	"github.com/masjidconnect/reminder-service/internal/domain"
	"github.com/masjidconnect/reminder-service/internal/handler"
	"github.com/masjidconnect/reminder-service/internal/repository/postgres"
	"github.com/masjidconnect/reminder-service/internal/service"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "reminderctl",
		Short:         "Mosque reminder engine CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(purgeCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(scheduleCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run <category>",
		Short:     "Evaluate one reminder category across all active mosques",
		Args:      cobra.ExactArgs(1),
		ValidArgs: categoryNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := domain.ParseCategory(args[0])
			if err != nil {
				return fmt.Errorf("%q: %w", args[0], err)
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				summary, err := a.Reminders.Run(ctx, category)
				if err != nil {
					return err
				}
				return printJSON(cmd, summary)
			})
		},
	}
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired reminder locks and cached prayer times",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				result, err := a.Maintenance.Purge(ctx, time.Now())
				if result != nil {
					if perr := printJSON(cmd, result); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := app.NewLogger(cfg)

			version, err := postgres.Migrate(cfg.Database.URL)
			if err != nil {
				return err
			}
			logger.Info("database migrated", "version", version)
			return nil
		},
	}
}

func scheduleCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Trigger every category in-process on the TRIGGER_CRON schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				scheduler := service.NewSchedulerService(a.Logger, timeout)

				for _, category := range domain.Categories {
					err := scheduler.Register(a.Config.Cron.Schedule, string(category), func(ctx context.Context) error {
						_, err := a.Reminders.Run(ctx, category)
						return err
					})
					if err != nil {
						return err
					}
				}
				err := scheduler.Register("@daily", handler.MaintenanceCategory, func(ctx context.Context) error {
					_, err := a.Maintenance.Purge(ctx, time.Now())
					return err
				})
				if err != nil {
					return err
				}

				if err := scheduler.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				scheduler.Stop()
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 4*time.Minute, "Maximum duration of one triggered run")
	return cmd
}

// withApp loads configuration, wires the engine and runs fn until it returns
// or the process is interrupted.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := app.NewLogger(cfg)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	go a.Hub.Run(ctx)

	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func categoryNames() []string {
	names := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		names = append(names, string(c))
	}
	return names
}
