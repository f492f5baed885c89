// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/otiai10/copy"
	"github.com/spf13/afero"
)

// CopyResult counts the outcome of CopyFiles.
type CopyResult struct {
	Copied  int
	Missing int
}

// CopyFiles copies each file in paths into destDir on fsys, keeping its base
// name. destDir is created when missing. A path that does not exist or is not
// a regular file gets a warning line on w and is skipped.
func CopyFiles(fsys afero.Fs, paths []string, destDir string, w io.Writer) (CopyResult, error) {
	var result CopyResult
	if err := fsys.MkdirAll(destDir, 0o755); err != nil {
		return result, fmt.Errorf("%w: creating %s: %v", ErrFilesystemUnavailable, destDir, err)
	}

	for _, p := range paths {
		info, err := fsys.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			fmt.Fprintf(w, "warning: %s does not exist or is not a file\n", p)
			result.Missing++
			continue
		}
		dst := filepath.Join(destDir, filepath.Base(p))
		if err := copyFile(fsys, p, dst); err != nil {
			return result, fmt.Errorf("copying %s to %s: %w", p, destDir, err)
		}
		fmt.Fprintf(w, "copied: %s\n", filepath.Base(p))
		result.Copied++
	}
	return result, nil
}

func copyFile(fsys afero.Fs, src, dst string) error {
	if _, ok := fsys.(*afero.OsFs); ok {
		return copy.Copy(src, dst)
	}
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := fsys.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
