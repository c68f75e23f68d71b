package main

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sehansi-9/gztprocessor/db"
	"github.com/sehansi-9/gztprocessor/internal/config"
	"github.com/sehansi-9/gztprocessor/internal/logging"
	"github.com/sehansi-9/gztprocessor/internal/store"
)

func newMigrateCmd(envFiles *[]string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFiles...)
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat).WithField("component", "migrate")
			if strings.TrimSpace(cfg.DatabaseURL) == "" {
				return errors.New("DATABASE_URL is required")
			}

			conn, err := store.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return errors.Wrap(err, "database connection failed")
			}
			defer conn.Close()

			applied, err := migrate(cmd.Context(), conn, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			log.WithField("applied", applied).Infof("%d migrations applied", len(applied))
			return nil
		},
	}
}

func migrate(ctx context.Context, conn *sql.DB, dir string) ([]string, error) {
	applied, err := store.ApplyMigrations(ctx, conn, migrations(dir))
	return applied, errors.Wrap(err, "migrations failed")
}

func migrations(dir string) fs.FS {
	if strings.TrimSpace(dir) == "" {
		return db.Migrations
	}
	return os.DirFS(dir)
}
