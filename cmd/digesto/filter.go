// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/digesto/internal/catalog"
	"github.com/pdiddy/digesto/internal/corpus"
	"github.com/pdiddy/digesto/internal/filter"
	"github.com/pdiddy/digesto/internal/pipeline"
	"github.com/pdiddy/digesto/pkg/types"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Select the corpus documents named in a reference catalog",
	Long: `Filter indexes --root and keeps only the identifiers present in --catalog.
With --copy-dir the selected files are copied flat into that directory;
otherwise the selection is printed. Catalog identifiers with no matching
document are reported but are not an error.`,
	RunE: runFilter,
}

func runFilter(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	if cfg.Catalog.Path == "" {
		return errors.New("--catalog is required")
	}
	if cfg.CopyDir != "" {
		return runFlow(cmd, pipeline.FlowFilterCopy)
	}
	return printSelection(cmd, cfg)
}

func printSelection(cmd *cobra.Command, cfg types.PipelineConfig) error {
	delim := cfg.Index.Delimiter
	if len(delim) != 1 {
		return fmt.Errorf("identifier delimiter must be a single character, got %q", delim)
	}
	idx, _, err := corpus.Build(afero.NewOsFs(), cfg.Index.Root, corpus.IndexOptions{Delimiter: delim[0], Logger: logger})
	if err != nil {
		return err
	}
	wanted, err := catalog.LoadSet(cfg.Catalog.Path, cfg.Catalog.Mode)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	selected := filter.Apply(idx, wanted)
	for _, id := range selected.IDs() {
		fmt.Fprintf(w, "%s\t%s\n", id, selected[id])
	}
	absent := filter.Absent(idx, wanted)
	fmt.Fprintf(w, "\n%d selected, %d catalog identifiers not in corpus\n", len(selected), len(absent))
	if len(absent) > 0 {
		logger.Info("catalog identifiers absent from corpus", zap.Strings("ids", absent))
	}
	return nil
}

func init() {
	addIndexFlags(filterCmd)
	addCatalogFlags(filterCmd)
	filterCmd.Flags().String("copy-dir", "", "copy the selected documents into this directory")

	rootCmd.AddCommand(filterCmd)
}
