package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/quietmap/internal/config"
	"github.com/R3E-Network/quietmap/internal/platform/database"
	"github.com/R3E-Network/quietmap/internal/platform/migrations"
)

type migrateOptions struct {
	driver string
	dsn    string
	down   bool
}

func newMigrateCommand(root *rootOptions) *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the PostgreSQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("driver") {
				cfg.Database.Driver = opts.driver
			}
			if cmd.Flags().Changed("dsn") {
				cfg.Database.DSN = opts.dsn
			}
			cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return migrate(cmd, cfg, opts.down)
		},
	}

	cmd.Flags().StringVar(&opts.driver, "driver", "", "postgres (lib/pq) or pgx")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "database connection string")
	cmd.Flags().BoolVar(&opts.down, "down", false, "roll back every migration instead of applying them")
	return cmd
}

func migrate(cmd *cobra.Command, cfg *config.Config, down bool) error {
	switch cfg.Database.Driver {
	case config.DriverPostgres, config.DriverPgx:
	case config.DriverMemory:
		// Only a DSN was given; assume lib/pq.
		if cfg.Database.DSN == "" {
			return fmt.Errorf("migrate needs a postgres dsn (--dsn or DATABASE_URL)")
		}
		cfg.Database.Driver = config.DriverPostgres
	default:
		return fmt.Errorf("migrations apply to postgres only, not %q", cfg.Database.Driver)
	}

	log := newLogger(cfg, "migrate")
	db, err := database.Open(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if down {
		if err := migrations.Down(cmd.Context(), db, log); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
		return nil
	}
	if err := migrations.Up(cmd.Context(), db, log); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}
