// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/digesto/internal/corpus"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "List the corpus as identifier and path pairs",
	Long: `Index walks --root recursively and prints one line per identifier with the
file it resolves to. When two files share an identifier the later one in
lexical walk order wins; each replacement is logged as a warning.`,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	delim := viper.GetString("index.delimiter")
	if len(delim) != 1 {
		return fmt.Errorf("identifier delimiter must be a single character, got %q", delim)
	}
	idx, collisions, err := corpus.Build(afero.NewOsFs(), viper.GetString("index.root"),
		corpus.IndexOptions{Delimiter: delim[0], Logger: logger})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(idx.Documents())
	}
	for _, id := range idx.IDs() {
		fmt.Fprintf(w, "%s\t%s\n", id, idx[id])
	}
	fmt.Fprintf(w, "\n%d documents, %d collisions\n", len(idx), len(collisions))
	return nil
}

func init() {
	addIndexFlags(indexCmd)
	indexCmd.Flags().Bool("json", false, "print the index as JSON")

	rootCmd.AddCommand(indexCmd)
}
