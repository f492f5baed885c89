// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/digesto/internal/catalog"
	"github.com/pdiddy/digesto/internal/corpus"
)

func TestApplyIsStrictIntersection(t *testing.T) {
	idx := corpus.Index{"A": "p1", "B": "p2", "C": "p3"}
	wanted := catalog.NewSet("B", "D")

	got := Apply(idx, wanted)

	if diff := cmp.Diff(corpus.Index{"B": "p2"}, got); diff != "" {
		t.Errorf("filtered index mismatch (-want +got):\n%s", diff)
	}
	// The input is left untouched.
	assert.Len(t, idx, 3)
}

func TestApplyEmpty(t *testing.T) {
	assert.Empty(t, Apply(corpus.Index{"A": "p1"}, catalog.NewSet()))
	assert.Empty(t, Apply(nil, catalog.NewSet("A")))
}

func TestAbsent(t *testing.T) {
	idx := corpus.Index{"A": "p1", "B": "p2"}
	assert.Equal(t, []string{"D", "E"}, Absent(idx, catalog.NewSet("E", "B", "D")))
	assert.Nil(t, Absent(idx, catalog.NewSet("A")))
}
