// Package cli implements the quietmap command line.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/quietmap/internal/config"
	"github.com/R3E-Network/quietmap/pkg/logger"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the quietmap command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "quietmap",
		Short: "Quiet Map API service",
		Long: `Quiet Map lets people register places, submit noise measurements in
decibels and browse places with their average noise level.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (default $"+config.EnvConfigPath+" or config/quietmap.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newPlaceCommand(),
		newMeasurementCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	defer logger.CloseFiles()
	return NewRootCommand().Execute()
}

func (o *rootOptions) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, component string) *logger.Logger {
	return logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}).Named(component)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) error {
	_, err := fmt.Fprintf(w, "quietmap %s\n", strings.TrimSpace(Version))
	return err
}
