// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ReportFile is the failure report's file name inside the errors directory.
const ReportFile = "files_not_processed.txt"

// Failure is one failed source document.
type Failure struct {
	Path string
	Err  error

	pos int
}

// FailureReport accumulates failed source paths during a batch. It is safe
// for concurrent use and append-only.
type FailureReport struct {
	mu      sync.Mutex
	entries []Failure
}

func (r *FailureReport) add(pos int, path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Failure{Path: path, Err: err, pos: pos})
}

// Len returns the number of failures recorded.
func (r *FailureReport) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns the failures in batch input order.
func (r *FailureReport) Entries() []Failure {
	r.mu.Lock()
	out := make([]Failure, len(r.entries))
	copy(out, r.entries)
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].pos < out[j].pos })
	return out
}

// Paths returns the failed source paths in batch input order.
func (r *FailureReport) Paths() []string {
	entries := r.Entries()
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}

// WriteFile writes the report into dir as ReportFile and returns its path.
func (r *FailureReport) WriteFile(dir string) (string, error) {
	path := filepath.Join(dir, ReportFile)
	if err := WriteReport(path, r.Paths()); err != nil {
		return "", err
	}
	return path, nil
}

// WriteReport writes paths to file, one per line, with no header.
func WriteReport(file string, paths []string) error {
	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("creating failure report %s: %w", file, err)
	}

	bw := bufio.NewWriter(f)
	for _, p := range paths {
		if _, err := fmt.Fprintln(bw, p); err != nil {
			f.Close()
			return fmt.Errorf("writing failure report %s: %w", file, err)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing failure report %s: %w", file, err)
	}
	return f.Close()
}

// ReadReport reads a failure report back into a list of source paths, for
// feeding a retry run.
func ReadReport(file string) ([]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("opening failure report %s: %w", file, err)
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			paths = append(paths, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading failure report %s: %w", file, err)
	}
	return paths, nil
}
