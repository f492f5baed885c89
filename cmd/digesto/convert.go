// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/digesto/internal/pipeline"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert the RTF files in a folder to plain text",
	Long: `Convert turns every source file directly inside --root (not recursive) into
<name>.txt under --output-dir. Files already in .txt pass through; other
formats are skipped. Paths that fail conversion are listed, one per line, in
--errors-dir/files_not_processed.txt; pass that file back with --retry-report
to retry just those documents.

The pandoc backend runs pandoc in a docker or podman container. The soffice
backend drives a headless LibreOffice with a private profile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlow(cmd, pipeline.FlowConvert)
	},
}

func init() {
	addIndexFlags(convertCmd)
	addConvertFlags(convertCmd)
	convertCmd.Flags().String("retry-report", "", "convert the paths listed in a previous files_not_processed.txt instead of --root")

	rootCmd.AddCommand(convertCmd)
}
