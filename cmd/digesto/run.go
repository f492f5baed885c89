// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/digesto/internal/ledger"
	"github.com/pdiddy/digesto/internal/pipeline"
	"github.com/pdiddy/digesto/internal/secrets"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Index, filter, convert and upload in one pass",
	Long: `Run chains every stage: index the corpus under --root, keep the identifiers
named in --catalog (when given), convert the selection to plain text, and
upload the text files to the blob container keyed by identifier.

A document that fails conversion or upload is reported and the run moves on.
The command exits non-zero when any document failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlow(cmd, pipeline.FlowFull)
	},
}

func init() {
	addIndexFlags(runCmd)
	addCatalogFlags(runCmd)
	addConvertFlags(runCmd)
	addSyncFlags(runCmd)
	runCmd.Flags().String("copy-dir", "", "also copy the selected documents into this directory")

	rootCmd.AddCommand(runCmd)
}

// runFlow builds the collaborators flow needs and runs it.
func runFlow(cmd *cobra.Command, flow pipeline.Flow) error {
	ctx := cmd.Context()
	cfg := pipelineConfig()

	stages, err := flow.Stages(cfg)
	if err != nil {
		return err
	}
	deps := pipeline.Deps{FS: afero.NewOsFs(), Logger: logger}

	if stages.Convert {
		conv, closeConv, err := pipeline.OpenConverter(ctx, cfg.Conversion, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeConv(); err != nil {
				logger.Warn("closing converter", zap.Error(err))
			}
		}()
		deps.Converter = conv
	}

	if stages.Sync {
		store, err := pipeline.OpenStore(cfg.Sync, secrets.StorageCredentials(loadedSecrets), logger)
		if err != nil {
			return err
		}
		deps.Store = store
	}

	if cfg.Ledger.Dir != "" {
		lg, err := ledger.Open(cfg.Ledger)
		if err != nil {
			logger.Warn("run ledger disabled", zap.Error(err))
		} else {
			defer lg.Close()
			deps.Ledger = lg
		}
	}

	sum, err := pipeline.Run(ctx, flow, cfg, deps, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := sum.Err(); err != nil {
		return fmt.Errorf("%s finished with failures: %w", flow, err)
	}
	return nil
}
