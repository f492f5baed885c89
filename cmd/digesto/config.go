// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/digesto/pkg/types"
)

// flagKeys maps CLI flag names to their config file keys. Flags share keys
// across subcommands, so binding happens for the executing command only.
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"log-format":  "log.format",
	"secrets-dir": "secrets_dir",
	"ledger-dir":  "ledger.dir",

	"root":      "index.root",
	"delimiter": "index.delimiter",

	"catalog":      "catalog.path",
	"catalog-mode": "catalog.mode",
	"copy-dir":     "copy_dir",

	"backend":         "conversion.backend",
	"output-dir":      "conversion.output_dir",
	"errors-dir":      "conversion.errors_dir",
	"source-ext":      "conversion.source_exts",
	"convert-workers": "conversion.workers",
	"soffice-bin":     "conversion.soffice_bin",
	"retry-report":    "conversion.retry_report",

	"account-url":      "sync.account_url",
	"container":        "sync.container",
	"create-container": "sync.create_container",
	"dev-storage":      "sync.use_development_storage",
	"upload-workers":   "sync.workers",
	"dry-run":          "sync.dry_run",
}

// bindFlags binds every known flag of cmd, local and inherited, to viper.
func bindFlags(cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if bErr := viper.BindPFlag(key, f); bErr != nil {
			err = fmt.Errorf("binding flag --%s: %w", f.Name, bErr)
		}
	})
	return err
}

func addIndexFlags(cmd *cobra.Command) {
	cmd.Flags().String("root", ".", "root folder of the decision corpus")
	cmd.Flags().String("delimiter", ".", "character that ends the identifier in a filename")
}

func addCatalogFlags(cmd *cobra.Command) {
	cmd.Flags().String("catalog", "", "reference catalog (.json, .yaml or .yml)")
	cmd.Flags().String("catalog-mode", string(types.CatalogGoldLabels), "catalog layout: gold-labels or flatten")
}

func addConvertFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", string(types.BackendPandoc), "conversion backend: pandoc or soffice")
	cmd.Flags().String("output-dir", "txt", "directory for converted .txt files")
	cmd.Flags().String("errors-dir", "errors", "directory for files_not_processed.txt")
	cmd.Flags().StringSlice("source-ext", []string{".rtf"}, "extensions handed to the converter")
	cmd.Flags().Int("convert-workers", 1, "concurrent conversions")
	cmd.Flags().String("soffice-bin", "soffice", "LibreOffice binary for the soffice backend")
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().String("account-url", "", "storage account URL, e.g. https://<account>.blob.core.windows.net")
	cmd.Flags().String("container", "", "blob container name")
	cmd.Flags().Bool("create-container", false, "create the container when it does not exist")
	cmd.Flags().Bool("dev-storage", false, "use the local Azurite emulator")
	cmd.Flags().Int("upload-workers", 1, "concurrent uploads")
	cmd.Flags().Bool("dry-run", false, "upload into an in-memory store instead of Azure")
}

// pipelineConfig assembles the run configuration from flags, config file
// and environment, in viper's precedence order.
func pipelineConfig() types.PipelineConfig {
	return types.PipelineConfig{
		Index: types.IndexConfig{
			Root:      viper.GetString("index.root"),
			Delimiter: viper.GetString("index.delimiter"),
		},
		Catalog: types.CatalogConfig{
			Path: viper.GetString("catalog.path"),
			Mode: types.CatalogMode(viper.GetString("catalog.mode")),
		},
		Conversion: types.ConversionConfig{
			Backend:    types.ConversionBackend(viper.GetString("conversion.backend")),
			OutputDir:  viper.GetString("conversion.output_dir"),
			ErrorsDir:  viper.GetString("conversion.errors_dir"),
			SourceExts: viper.GetStringSlice("conversion.source_exts"),
			Workers:    viper.GetInt("conversion.workers"),
			SofficeBin: viper.GetString("conversion.soffice_bin"),

			RetryReport: viper.GetString("conversion.retry_report"),
		},
		Sync: types.SyncConfig{
			AccountURL:            viper.GetString("sync.account_url"),
			Container:             viper.GetString("sync.container"),
			CreateContainer:       viper.GetBool("sync.create_container"),
			UseDevelopmentStorage: viper.GetBool("sync.use_development_storage"),
			Workers:               viper.GetInt("sync.workers"),
			DryRun:                viper.GetBool("sync.dry_run"),
		},
		Ledger: types.LedgerConfig{Dir: viper.GetString("ledger.dir")},
		Log: types.LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
		CopyDir: viper.GetString("copy_dir"),
	}
}
