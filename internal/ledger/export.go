// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// ConversionEntry is one conversions row in an export.
type ConversionEntry struct {
	ID     string `yaml:"id"`
	Source string `yaml:"source"`
	Dest   string `yaml:"dest,omitempty"`
	Status string `yaml:"status"`
	Error  string `yaml:"error,omitempty"`
}

// UploadEntry is one uploads row in an export.
type UploadEntry struct {
	Key    string `yaml:"key"`
	Source string `yaml:"source"`
	Status string `yaml:"status"`
	Error  string `yaml:"error,omitempty"`
}

// RunExport is the YAML document written by ExportYAML.
type RunExport struct {
	Run         Run               `yaml:"run"`
	Conversions []ConversionEntry `yaml:"conversions,omitempty"`
	Uploads     []UploadEntry     `yaml:"uploads,omitempty"`
}

// ExportYAML writes a run and its per-document rows to path. An empty path
// writes run-<id>.yaml next to the database. It returns the path written.
func (s *Store) ExportYAML(ctx context.Context, runID int64, path string) (string, error) {
	exp, err := s.export(ctx, runID)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = filepath.Join(s.dir, fmt.Sprintf("run-%d.yaml", runID))
	}
	data, err := yaml.Marshal(&exp)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, nil
}

func (s *Store) export(ctx context.Context, runID int64) (RunExport, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return RunExport{}, err
	}
	exp := RunExport{Run: run}

	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, source, COALESCE(dest, ''), status, COALESCE(error, '')
		 FROM conversions WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return exp, fmt.Errorf("querying conversions: %w", err)
	}
	for rows.Next() {
		var e ConversionEntry
		if err := rows.Scan(&e.ID, &e.Source, &e.Dest, &e.Status, &e.Error); err != nil {
			rows.Close()
			return exp, fmt.Errorf("scanning conversion: %w", err)
		}
		exp.Conversions = append(exp.Conversions, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return exp, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT key, source, status, COALESCE(error, '')
		 FROM uploads WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return exp, fmt.Errorf("querying uploads: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e UploadEntry
		if err := rows.Scan(&e.Key, &e.Source, &e.Status, &e.Error); err != nil {
			return exp, fmt.Errorf("scanning upload: %w", err)
		}
		exp.Uploads = append(exp.Uploads, e)
	}
	return exp, rows.Err()
}
