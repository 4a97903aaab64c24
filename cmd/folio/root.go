package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/toolink/folio/config"
)

type rootOptions struct {
	configFile string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "folio",
		Short:         "Portfolio site API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().String("log-level", "", "override log.level")
	_ = opts.v.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(
		newServeCmd(opts),
		newRateLimitCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration and applies its logging settings.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.v, o.configFile)
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg.Log, os.Stderr); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg config.LogConfig, out io.Writer) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("invalid log.level %q: %w", cfg.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", "folio").Logger()
	return nil
}
