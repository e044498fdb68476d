// Package cmd wires the CLI surface: command definitions, configuration
// loading, and logger bootstrap.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/range0420/PySafeScan/internal/config"
	"github.com/range0420/PySafeScan/internal/observability"
)

// appConfig holds the configuration resolved in PersistentPreRunE for use
// by the subcommands of the same invocation.
var appConfig *config.Config

// NewRootCommand builds a fresh root command with all subcommands attached.
// Each invocation gets its own instance so flag state never leaks between
// runs.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:     "pysafescan",
		Short:   "PySafeScan finds taint-style vulnerabilities in Python code",
		Long:    "PySafeScan statically traces untrusted input through Python sources and reports where it reaches dangerous calls.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := initializeViper(cfgFile)
			if err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				// Bring up a minimal logger so the failure is visible.
				observability.InitializeLogger(config.LoggerConfig{
					Level: "info", Format: "console", ServiceName: "pysafescan",
				})
				return err
			}
			appConfig = cfg

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("starting pysafescan", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./pysafescan.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newFixCmd())
	rootCmd.AddCommand(newContextCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the CLI with the given signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("command failed", zap.Error(err))
		return err
	}
	return nil
}

// initializeViper builds a viper instance layered as defaults, config file,
// then PYSAFESCAN_* environment variables.
func initializeViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("pysafescan")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PYSAFESCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults and env vars carry the day.
	}
	return v, nil
}

// currentConfig returns the resolved configuration, falling back to
// defaults when a command runs without the root's PersistentPreRunE (as in
// some tests).
func currentConfig() *config.Config {
	if appConfig != nil {
		return appConfig
	}
	return config.NewDefaultConfig()
}
