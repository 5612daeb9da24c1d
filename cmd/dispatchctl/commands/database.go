package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/config"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/persistence"
	"github.com/spec-kit/dispatch-service/internal/repository"
)

func connect(ctx context.Context) (*config.Config, *persistence.Postgres, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Postgres.DSN == "" {
		return nil, nil, nil, errors.New("POSTGRES_DSN is required")
	}
	cfg.Logger.Format = "console"
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, nil, err
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, pg, logger, nil
}

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to the configured Postgres database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pg, logger, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pg.Close()
			if dir == "" {
				dir = cfg.Postgres.MigrationsDir
			}
			applied, err := persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), dir, logger)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintln(out, "applied", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (default POSTGRES_MIGRATIONS_DIR)")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert accounts, sites and technicians into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := repository.LoadSeedFile(file)
			if err != nil {
				return err
			}
			_, pg, _, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pg.Close()
			if err := repository.NewPostgresStore(pg.PoolHandle()).Seed(cmd.Context(), seed); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d accounts, %d sites, %d technicians\n",
				len(seed.Accounts), len(seed.Sites), len(seed.Technicians))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "seed YAML file (default: embedded seed)")
	return cmd
}
