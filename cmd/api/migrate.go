package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/booking-api/internal/app"
	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	"github.com/jwalitptl/booking-api/migrations"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
					n, err := m.Up(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
					statuses, err := m.Status(ctx)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
					for _, s := range statuses {
						appliedAt := "pending"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
						fmt.Fprintf(w, "%03d\t%s\t%s\n", s.Version, s.Name, appliedAt)
					}
					return w.Flush()
				})
			},
		},
	)
	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *postgres.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app.NewLogger(cfg.Log, "booking-migrate")
	if cfg.Storage.Driver != "postgres" {
		fmt.Fprintf(os.Stderr, "storage driver %q has no schema to migrate\n", cfg.Storage.Driver)
		return nil
	}

	ctx = contextOrBackground(ctx)
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(ctx, postgres.NewMigrator(db, migrations.FS))
}
