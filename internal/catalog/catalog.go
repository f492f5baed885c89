// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog loads reference catalogs and flattens them into the set of
// wanted document identifiers.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/digesto/pkg/types"
)

// ErrCatalogParse reports a malformed reference catalog. It is fatal.
var ErrCatalogParse = errors.New("catalog parse failure")

// Record is one named catalog entry.
type Record struct {
	GoldLabels []string `json:"gold labels" yaml:"gold labels"`
}

// Set is a deduplicated set of document identifiers. It is not modified
// after the loader returns it.
type Set map[string]struct{}

// NewSet returns a Set holding ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id.
func (s Set) Add(id string) { s[id] = struct{}{} }

// Has reports whether id is in the set.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of identifiers.
func (s Set) Len() int { return len(s) }

// Sorted returns the identifiers in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// GoldLabels returns the union of every record's gold labels.
func GoldLabels(records map[string]Record) Set {
	s := make(Set)
	for _, r := range records {
		for _, id := range r.GoldLabels {
			s.Add(id)
		}
	}
	return s
}

// Flatten returns every scalar value in m. Sequence values contribute each
// element; any other value contributes itself. Null values and null
// elements are skipped.
func Flatten(m map[string]any) Set {
	s := make(Set)
	add := func(v any) {
		if id, ok := scalar(v); ok {
			s.Add(id)
		}
	}
	for _, v := range m {
		switch vv := v.(type) {
		case []any:
			for _, e := range vv {
				add(e)
			}
		case []string:
			for _, e := range vv {
				s.Add(e)
			}
		default:
			add(vv)
		}
	}
	return s
}

// scalar formats v as an identifier. Numbers keep their literal digits
// (1000000, not 1e+06). Null values yield no identifier.
func scalar(v any) (string, bool) {
	switch vv := v.(type) {
	case nil:
		return "", false
	case string:
		return vv, true
	case json.Number:
		return vv.String(), true
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(vv), 'f', -1, 32), true
	default:
		return fmt.Sprint(vv), true
	}
}

// Load reads a gold-labels catalog from path.
func Load(path string) (map[string]Record, error) {
	var records map[string]Record
	if err := decode(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// LoadRaw reads an arbitrary key-to-value catalog from path.
func LoadRaw(path string) (map[string]any, error) {
	var m map[string]any
	if err := decode(path, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadSet reads the catalog at path and flattens it according to mode.
// An empty mode means gold labels.
func LoadSet(path string, mode types.CatalogMode) (Set, error) {
	switch mode {
	case types.CatalogGoldLabels, "":
		records, err := Load(path)
		if err != nil {
			return nil, err
		}
		return GoldLabels(records), nil
	case types.CatalogFlatten:
		m, err := LoadRaw(path)
		if err != nil {
			return nil, err
		}
		return Flatten(m), nil
	default:
		return nil, fmt.Errorf("unsupported catalog mode %q: use %s or %s",
			mode, types.CatalogGoldLabels, types.CatalogFlatten)
	}
}

// decode picks JSON or YAML by extension. Anything that is not .yaml or
// .yml is parsed as JSON.
func decode(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading catalog %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		err = decodeJSON(data, v)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCatalogParse, path, err)
	}
	return nil
}

// decodeJSON decodes a single JSON value, keeping numbers as json.Number so
// numeric identifiers survive untouched.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after top-level value")
	}
	return nil
}
