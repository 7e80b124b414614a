// =============================================================================
// ASIN Tax Reconciler - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (reconciler)
//   ├── reconcileCmd (reconciler reconcile)
//   ├── sheetsCmd    (reconciler sheets)
//   └── versionCmd   (reconciler version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Initializing Viper (environment, .env files, bound flags)
//   3. Setting up logging
//
// PRECEDENCE:
//   command flag > RECONCILER_* environment > config file > defaults
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ginjaninja78/asin-tax-reconciler/internal/config"
	"github.com/ginjaninja78/asin-tax-reconciler/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// defaultConfigFile is used when --config is not given. It may be absent.
const defaultConfigFile = "reconciler.yaml"

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// v resolves environment and flag overrides. It is created by initConfig.
var v *viper.Viper

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "ASIN tax reconciler - keep the per-product tax flag dataset up to date",
	Long: `ASIN tax reconciler merges a recurring Amazon order report into the
master dataset that records, per ASIN, whether tax applies (SI/NO).

Each run:
  - Adds identifiers seen for the first time
  - Updates flags that changed ("taxed wins" across repeated rows)
  - Ignores cancelled orders
  - Writes a preview of the new records and a key/value summary

The base may be delimited text (.csv, .txt, .tsv) or an xlsx workbook.

Example Usage:
  reconciler reconcile --base base.xlsx --report orders.txt
  reconciler reconcile --base base.csv --report orders.txt --dry-run
  reconciler sheets base.xlsx`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main(). Errors are
// printed to stderr and end the process with exit code 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"Path to the configuration file (default is "+defaultConfigFile+" if present)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// initConfig prepares Viper and binds the flags that override
// configuration keys.
func initConfig() {
	v = config.NewViper()
	for key, flag := range boundFlags {
		if f := reconcileCmd.Flags().Lookup(flag); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// loadConfig resolves the configuration for a command and sets up logging.
func loadConfig() (*config.Config, *slog.Logger, error) {
	path, allowMissing := cfgFile, false
	if path == "" {
		path, allowMissing = defaultConfigFile, true
	}

	cfg, err := config.Load(path, allowMissing)
	if err != nil {
		return nil, nil, err
	}
	if v == nil {
		initConfig()
	}
	if err := cfg.ApplyOverrides(v); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Debug("configuration loaded", "file", path, "sheet", cfg.Workbook.Sheet)
	return cfg, logger, nil
}
