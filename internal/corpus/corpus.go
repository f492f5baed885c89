// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corpus indexes a folder tree of decision files by document identifier.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/pdiddy/digesto/internal/logging"
	"github.com/pdiddy/digesto/pkg/types"
)

// DefaultDelimiter separates the identifier from the rest of a filename.
const DefaultDelimiter = '.'

// ErrFilesystemUnavailable reports a root or output directory that is missing
// or unreadable. It is fatal: callers abort before any processing.
var ErrFilesystemUnavailable = errors.New("filesystem unavailable")

// DeriveID returns name truncated at the first delim, or name itself when
// delim does not occur. Derive exactly once per filename: re-applying it to
// an identifier that still contains delim truncates further.
func DeriveID(name string, delim byte) string {
	if i := strings.IndexByte(name, delim); i >= 0 {
		return name[:i]
	}
	return name
}

// Index maps document identifiers to absolute file paths. It is built once
// and not modified afterwards.
type Index map[string]string

// IDs returns the identifiers in sorted order. Every stage that prints or
// processes an Index iterates in this order.
func (idx Index) IDs() []string {
	ids := make([]string, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Documents returns the index entries as Documents sorted by identifier.
func (idx Index) Documents() []types.Document {
	docs := make([]types.Document, 0, len(idx))
	for _, id := range idx.IDs() {
		docs = append(docs, types.Document{ID: id, Path: idx[id]})
	}
	return docs
}

// Collision records a file whose identifier replaced an earlier entry.
type Collision struct {
	ID       string
	Previous string
	Current  string
}

// IndexOptions configures Build.
type IndexOptions struct {
	// Delimiter truncates filenames into identifiers. Zero means DefaultDelimiter.
	Delimiter byte

	// Logger receives collision warnings. Nil disables them.
	Logger *zap.Logger
}

// Build walks root recursively and maps each regular file's identifier to its
// path. Walk order is lexical, and a later file with the same identifier
// replaces the earlier entry; every replacement is returned as a Collision.
// Any walk error discards the partial index and wraps ErrFilesystemUnavailable.
func Build(fsys afero.Fs, root string, opts IndexOptions) (Index, []Collision, error) {
	delim := opts.Delimiter
	if delim == 0 {
		delim = DefaultDelimiter
	}
	logger := logging.OrNop(opts.Logger)

	root, err := checkDir(fsys, root)
	if err != nil {
		return nil, nil, err
	}
	walkRoot, err := resolveRoot(fsys, root)
	if err != nil {
		return nil, nil, err
	}

	idx := make(Index)
	var collisions []Collision

	err = afero.Walk(fsys, walkRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if walkRoot != root {
			rel, err := filepath.Rel(walkRoot, path)
			if err != nil {
				return err
			}
			path = filepath.Join(root, rel)
		}
		if !isFile(fsys, path, info) {
			return nil
		}
		id := DeriveID(info.Name(), delim)
		if prev, ok := idx[id]; ok {
			collisions = append(collisions, Collision{ID: id, Previous: prev, Current: path})
			logger.Warn("identifier collision, keeping later file",
				zap.String("id", id), zap.String("previous", prev), zap.String("current", path))
		}
		idx[id] = path
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: walking %s: %v", ErrFilesystemUnavailable, root, err)
	}

	return idx, collisions, nil
}

// ListFolder returns the regular files directly inside dir, sorted by name.
// It backs the standalone conversion flow, which does not recurse.
func ListFolder(fsys afero.Fs, dir string) ([]string, error) {
	dir, err := checkDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrFilesystemUnavailable, dir, err)
	}

	var paths []string
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if isFile(fsys, p, e) {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// FolderDocuments lists dir like ListFolder and derives one Document per file.
// Collisions follow the same last-write-wins rule as Build.
func FolderDocuments(fsys afero.Fs, dir string, delim byte) ([]types.Document, error) {
	if delim == 0 {
		delim = DefaultDelimiter
	}
	paths, err := ListFolder(fsys, dir)
	if err != nil {
		return nil, err
	}
	return PathDocuments(paths, delim), nil
}

// PathDocuments derives one Document per path, sorted by identifier. Later
// paths replace earlier ones with the same identifier.
func PathDocuments(paths []string, delim byte) []types.Document {
	if delim == 0 {
		delim = DefaultDelimiter
	}
	idx := make(Index, len(paths))
	for _, p := range paths {
		idx[DeriveID(filepath.Base(p), delim)] = p
	}
	return idx.Documents()
}

// checkDir makes dir absolute and verifies it is a readable directory.
func checkDir(fsys afero.Fs, dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("%w: empty directory path", ErrFilesystemUnavailable)
	}
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("%w: resolving %s: %v", ErrFilesystemUnavailable, dir, err)
		}
		dir = abs
	}
	info, err := fsys.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFilesystemUnavailable, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrFilesystemUnavailable, dir)
	}
	return dir, nil
}

// resolveRoot follows a symlinked root on the OS filesystem so the walk
// descends into its target. Other filesystems are returned unchanged.
func resolveRoot(fsys afero.Fs, root string) (string, error) {
	if _, ok := fsys.(*afero.OsFs); !ok {
		return root, nil
	}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("%w: resolving %s: %v", ErrFilesystemUnavailable, root, err)
	}
	return resolved, nil
}

// isFile reports whether path is a regular file, or a symlink to one.
func isFile(fsys afero.Fs, path string, info os.FileInfo) bool {
	if info.Mode().IsRegular() {
		return true
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return false
	}
	target, err := fsys.Stat(path)
	return err == nil && target.Mode().IsRegular()
}
