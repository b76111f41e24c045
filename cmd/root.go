// Package cmd defines and implements the CLI commands for the kobotest
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peyal-939/kobotest/internal/config"
	"github.com/peyal-939/kobotest/internal/logging"
)

// runtime carries the configuration and logger built by the root command's
// PersistentPreRunE into the subcommands.
type runtime struct {
	cfg config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	rt := &runtime{}
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "kobotest",
		Short: "Sync and serve KoboToolbox survey submissions",
		Long: `kobotest embeds a KoboToolbox survey form, pulls submission records
from the KoboToolbox REST API into a local database, and serves them back
through a small REST API and a handful of web pages.`,
		SilenceUsage: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			rt.cfg = cfg
			rt.log = logger
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if rt.log != nil {
				_ = rt.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (settings also read from environment)")

	cmd.AddCommand(newServeCmd(rt))
	cmd.AddCommand(newFetchCmd(rt))
	cmd.AddCommand(newFormsCmd(rt))

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
