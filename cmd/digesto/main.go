// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the digesto CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/digesto/internal/logging"
	"github.com/pdiddy/digesto/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds storage credentials loaded from the secrets dir at startup.
	loadedSecrets map[string]string

	// logger receives diagnostics. Progress lines go to stdout.
	logger = zap.NewNop()
)

// rootCmd is the base command for the digesto CLI.
var rootCmd = &cobra.Command{
	Use:   "digesto",
	Short: "Index, filter, convert and sync a corpus of legal decisions",
	Long: `digesto prepares a corpus of court decisions for downstream use. It indexes
a nested folder of decision files by identifier, selects the subset named in a
reference catalog, converts RTF documents to plain text, and uploads the
result to an Azure Blob Storage container keyed by identifier.

Each stage is a subcommand: index, filter, convert and upload. The run
subcommand chains them. Every run is recorded in a local ledger that the
history subcommand reads.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd); err != nil {
			return err
		}

		l, err := logging.New(viper.GetString("log.level"), viper.GetString("log.format"), os.Stderr)
		if err != nil {
			return err
		}
		logger = l

		s, err := secrets.Load(afero.NewOsFs(), viper.GetString("secrets_dir"), logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./digesto.yaml or ~/.config/digesto/config.yaml)")
	pf.String("log-level", "info", "diagnostic log level: debug, info, warn, error")
	pf.String("log-format", "console", "diagnostic log format: console or json")
	pf.String("secrets-dir", ".secrets/", "directory of credential files")
	pf.String("ledger-dir", ".digesto", "directory holding the run ledger (empty disables it)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("digesto")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "digesto"))
		}
	}

	viper.SetEnvPrefix("DIGESTO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
