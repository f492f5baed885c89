//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups targets that run the CLI against the local project dirs.
type Pipeline mg.Namespace

func cli(args ...string) error {
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Convert converts corpus/*.rtf into txt/, reporting failures under errors/.
func (Pipeline) Convert() error {
	mg.Deps(Build)
	return cli("convert", "--root", "corpus", "--output-dir", "txt", "--errors-dir", "errors")
}

// DryRun runs every stage with an in-memory blob store.
func (Pipeline) DryRun() error {
	mg.Deps(Build)
	return cli("run", "--root", "corpus", "--dry-run")
}

// Azurite uploads txt/ to a local Azurite emulator, creating the container.
func (Pipeline) Azurite() error {
	mg.Deps(Build)
	return cli("upload", "--root", "txt", "--dev-storage", "--container", "decisions", "--create-container")
}

// History prints the run ledger.
func (Pipeline) History() error {
	mg.Deps(Build)
	return cli("history")
}
