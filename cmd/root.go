// Package cmd implements the rebalance command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rebalance/config"
	"github.com/kilianp07/rebalance/infra/logger"
	"github.com/kilianp07/rebalance/infra/monitoring"
)

var cfgPath string

// loaded state shared by subcommands
var (
	cfg   *config.Config
	flush = func() {}

	setupMonitoring = monitoring.Setup
)

var rootCmd = &cobra.Command{
	Use:           "rebalance",
	Short:         "Greedy nearest-first relocation of shared units to demand targets",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = loadConfig(cfgPath, cmd.Flags().Changed("config"))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := logger.SetLevel(cfg.Logging.Level); err != nil {
			return err
		}
		flush, err = setupMonitoring(cfg.Sentry)
		if err != nil {
			return fmt.Errorf("sentry: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI. Monitoring is flushed whether or not the command
// failed, since cobra skips post-run hooks after an error.
func Execute() error {
	defer func() {
		flush()
		flush = func() {}
	}()
	return rootCmd.Execute()
}

// loadConfig falls back to defaults when the default file is absent. A file
// named explicitly must exist.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		c := config.Default()
		return c, c.Validate()
	}
	return config.Load(path)
}
