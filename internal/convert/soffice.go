// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

const (
	defaultSofficeBin = "soffice"
	stopGrace         = 10 * time.Second
)

// commandRunner runs short commands and starts long-lived ones.
type commandRunner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	Start(name string, args ...string) (process, error)
}

// process is a started command that runs until stopped.
type process interface {
	Stop() error
}

type osRunner struct{}

func (osRunner) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (osRunner) Start(name string, args ...string) (process, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &osProcess{cmd: cmd, done: make(chan error, 1)}
	go func() { p.done <- cmd.Wait() }()
	return p, nil
}

type osProcess struct {
	cmd  *exec.Cmd
	done chan error
}

// Stop interrupts the process and kills it if it has not exited within
// stopGrace.
func (p *osProcess) Stop() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Signal(os.Interrupt); err == nil {
		select {
		case <-p.done:
			return nil
		case <-time.After(stopGrace):
		}
	}
	if err := p.cmd.Process.Kill(); err != nil {
		return err
	}
	<-p.done
	return nil
}

// SofficeEditor drives LibreOffice in headless mode. Start launches one
// instance on a private user profile; each conversion in the batch targets
// that profile, so LibreOffice hands it to the running instance. Quit stops
// the instance and removes the profile.
type SofficeEditor struct {
	bin     string
	run     commandRunner
	profile string
	proc    process
}

// NewSofficeEditor returns an editor using bin, or "soffice" when bin is empty.
func NewSofficeEditor(bin string) *SofficeEditor {
	return newSofficeEditor(bin, osRunner{})
}

func newSofficeEditor(bin string, run commandRunner) *SofficeEditor {
	if bin == "" {
		bin = defaultSofficeBin
	}
	return &SofficeEditor{bin: bin, run: run}
}

// Start checks the binary, creates the profile directory and launches the
// long-lived instance.
func (s *SofficeEditor) Start(ctx context.Context) error {
	if s.profile != "" {
		return fmt.Errorf("%s already started", s.bin)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.run.LookPath(s.bin); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", s.bin, err)
	}
	dir, err := os.MkdirTemp("", "digesto-soffice-*")
	if err != nil {
		return fmt.Errorf("creating %s profile: %w", s.bin, err)
	}
	proc, err := s.run.Start(s.bin, "--headless", "--invisible", "--norestore", "--nolockcheck", profileArg(dir))
	if err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("launching %s: %w", s.bin, err)
	}
	s.profile = dir
	s.proc = proc
	return nil
}

// Open returns a handle on the document at path.
func (s *SofficeEditor) Open(_ context.Context, path string) (EditorDocument, error) {
	if s.profile == "" {
		return nil, fmt.Errorf("%s not started", s.bin)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	return &sofficeDocument{editor: s, path: path}, nil
}

// Quit stops the instance, then removes the profile directory.
func (s *SofficeEditor) Quit() error {
	if s.profile == "" {
		return nil
	}
	var merr *multierror.Error
	if s.proc != nil {
		if err := s.proc.Stop(); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("stopping %s: %w", s.bin, err))
		}
		s.proc = nil
	}
	if err := os.RemoveAll(s.profile); err != nil {
		merr = multierror.Append(merr, err)
	}
	s.profile = ""
	return merr.ErrorOrNil()
}

func profileArg(dir string) string {
	return "-env:UserInstallation=file://" + filepath.ToSlash(dir)
}

type sofficeDocument struct {
	editor  *SofficeEditor
	path    string
	scratch string
}

// SaveAsText converts into a scratch directory next to dst, then renames the
// result into place so a failed conversion never leaves a partial dst.
func (d *sofficeDocument) SaveAsText(ctx context.Context, dst string) error {
	scratch, err := os.MkdirTemp(filepath.Dir(dst), ".soffice-*")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	d.scratch = scratch

	args := []string{
		"--headless", "--norestore", "--nolockcheck",
		profileArg(d.editor.profile),
		"--convert-to", "txt:Text",
		"--outdir", scratch,
		d.path,
	}
	out, err := d.editor.run.Run(ctx, d.editor.bin, args...)
	if err != nil {
		return fmt.Errorf("%s: %w: %s", d.editor.bin, err, strings.TrimSpace(string(out)))
	}

	produced := DestPath(d.path, scratch)
	if _, err := os.Stat(produced); err != nil {
		return fmt.Errorf("%s produced no output for %s", d.editor.bin, filepath.Base(d.path))
	}
	return os.Rename(produced, dst)
}

func (d *sofficeDocument) Close() error {
	if d.scratch == "" {
		return nil
	}
	return os.RemoveAll(d.scratch)
}
