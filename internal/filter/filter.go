// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter narrows a corpus index to the identifiers a reference set wants.
package filter

import (
	"sort"

	"github.com/pdiddy/digesto/internal/catalog"
	"github.com/pdiddy/digesto/internal/corpus"
)

// Apply returns a new index holding only the entries of idx whose identifier
// is in wanted. Wanted identifiers missing from idx are dropped silently.
func Apply(idx corpus.Index, wanted catalog.Set) corpus.Index {
	out := make(corpus.Index)
	for id, path := range idx {
		if wanted.Has(id) {
			out[id] = path
		}
	}
	return out
}

// Absent returns the wanted identifiers that idx does not contain, sorted.
// It is a diagnostic only.
func Absent(idx corpus.Index, wanted catalog.Set) []string {
	var missing []string
	for id := range wanted {
		if _, ok := idx[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}
