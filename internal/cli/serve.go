package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/quietmap/internal/app/runtime"
	"github.com/R3E-Network/quietmap/internal/config"
	"github.com/R3E-Network/quietmap/pkg/graceful"
)

type serveOptions struct {
	host    string
	port    int
	driver  string
	dsn     string
	migrate bool
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			return serve(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.host, "host", "", "listen host")
	flags.IntVarP(&opts.port, "port", "p", 0, "listen port")
	flags.StringVar(&opts.driver, "driver", "", "storage driver: memory, postgres, pgx or sqlite")
	flags.StringVar(&opts.dsn, "dsn", "", "database connection string or sqlite file path")
	flags.BoolVar(&opts.migrate, "migrate", true, "apply postgres migrations on startup")
	return cmd
}

// apply overrides cfg with the flags the user actually set.
func (o *serveOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = o.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = o.port
	}
	if flags.Changed("driver") {
		cfg.Database.Driver = strings.ToLower(strings.TrimSpace(o.driver))
	}
	if flags.Changed("dsn") {
		cfg.Database.DSN = o.dsn
	}
	if flags.Changed("migrate") {
		cfg.Database.AutoMigrate = o.migrate
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	log := newLogger(cfg, "serve")

	ctx, cancel := graceful.Context(parent, log)
	defer cancel()

	application, err := runtime.NewApplication(ctx, cfg)
	if err != nil {
		return err
	}

	runErr := application.Run(ctx)
	// Shutdown gets a fresh context; ctx is already cancelled at this point.
	if err := application.Shutdown(context.Background()); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
