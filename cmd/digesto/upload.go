// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/digesto/internal/pipeline"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload every document under a folder to blob storage",
	Long: `Upload indexes --root recursively and uploads each document to --container
under its identifier, replacing any blob already stored there. When --catalog
is set only the catalog's identifiers are uploaded. After the uploads the
container is listed and compared against what was sent.

Credentials come from the secrets directory (azure-storage-account-key or
azure-storage-sas-token) or, when neither is present, from the ambient Azure
identity.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlow(cmd, pipeline.FlowUpload)
	},
}

func init() {
	addIndexFlags(uploadCmd)
	addCatalogFlags(uploadCmd)
	addSyncFlags(uploadCmd)

	rootCmd.AddCommand(uploadCmd)
}
