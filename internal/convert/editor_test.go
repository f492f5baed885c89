// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEditor counts lifecycle calls and fails or panics on chosen paths.
type recordingEditor struct {
	starts, quits, opens, closes int
	startErr                     error
	fail                         map[string]bool
	panicOn                      map[string]bool
}

func (e *recordingEditor) Start(context.Context) error {
	e.starts++
	return e.startErr
}

func (e *recordingEditor) Open(_ context.Context, path string) (EditorDocument, error) {
	e.opens++
	if e.fail[path] {
		return nil, errors.New("document is password protected")
	}
	return &recordingDoc{editor: e, path: path}, nil
}

func (e *recordingEditor) Quit() error {
	e.quits++
	return nil
}

type recordingDoc struct {
	editor *recordingEditor
	path   string
}

func (d *recordingDoc) SaveAsText(_ context.Context, dst string) error {
	if d.editor.panicOn[d.path] {
		panic("COM object disconnected")
	}
	return os.WriteFile(dst, []byte("plain"), 0o644)
}

func (d *recordingDoc) Close() error {
	d.editor.closes++
	return nil
}

func TestEditorConverterLifecycle(t *testing.T) {
	docs, tmpDir := setupDocs(t, "a.rtf", "b.rtf", "c.rtf", "d.rtf")
	ed := &recordingEditor{
		fail:    map[string]bool{docs[1].Path: true},
		panicOn: map[string]bool{docs[2].Path: true},
	}

	conv, err := OpenEditor(context.Background(), ed)
	require.NoError(t, err)

	result, err := Batch(context.Background(), conv, docs, batchOpts(tmpDir), &bytes.Buffer{})
	require.NoError(t, err)
	require.NoError(t, conv.Close())
	require.NoError(t, conv.Close())

	assert.Equal(t, 1, ed.starts, "editor starts once per batch")
	assert.Equal(t, 1, ed.quits, "editor quits once per batch")
	assert.Equal(t, 4, ed.opens)
	assert.Equal(t, 3, ed.closes, "every opened document is closed, including after a panic")
	assert.Equal(t, 2, result.Converted)
	assert.Equal(t, []string{docs[1].Path, docs[2].Path}, result.Failures.Paths())
}

func TestEditorConverterStartFailure(t *testing.T) {
	_, err := OpenEditor(context.Background(), &recordingEditor{startErr: errors.New("no display")})
	assert.ErrorContains(t, err, "starting editor")
}

func TestEditorConverterAfterClose(t *testing.T) {
	ed := &recordingEditor{}
	conv, err := OpenEditor(context.Background(), ed)
	require.NoError(t, err)
	require.NoError(t, conv.Close())

	res := conv.Convert(context.Background(), "/in/a.rtf", filepath.Join(t.TempDir(), "a.txt"))
	assert.ErrorIs(t, res.Err, ErrConversion)
	assert.Equal(t, 0, ed.opens)
}

// fakeRunner mimics soffice: it writes <base>.txt into the --outdir argument.
type fakeRunner struct {
	missing  bool
	err      error
	startErr error
	stopErr  error
	calls    [][]string
	starts   [][]string
	procs    []*fakeProcess
}

type fakeProcess struct {
	stops int
	err   error
}

func (p *fakeProcess) Stop() error {
	p.stops++
	return p.err
}

func (f *fakeRunner) Start(name string, args ...string) (process, error) {
	f.starts = append(f.starts, append([]string{name}, args...))
	if f.startErr != nil {
		return nil, f.startErr
	}
	p := &fakeProcess{err: f.stopErr}
	f.procs = append(f.procs, p)
	return p, nil
}

func (f *fakeRunner) LookPath(file string) (string, error) {
	if f.missing {
		return "", errors.New("not found")
	}
	return "/usr/bin/" + file, nil
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return []byte("Error: source file could not be loaded"), f.err
	}
	var outdir string
	for i, a := range args {
		if a == "--outdir" {
			outdir = args[i+1]
		}
	}
	src := args[len(args)-1]
	return nil, os.WriteFile(DestPath(src, outdir), []byte("texto plano"), 0o644)
}

func TestSofficeEditor(t *testing.T) {
	docs, tmpDir := setupDocs(t, "T-001-92.rtf")
	run := &fakeRunner{}
	ed := newSofficeEditor("", run)

	conv, err := OpenEditor(context.Background(), ed)
	require.NoError(t, err)
	profile := ed.profile
	assert.DirExists(t, profile)

	opts := batchOpts(tmpDir)
	result, err := Batch(context.Background(), conv, docs, opts, &bytes.Buffer{})
	require.NoError(t, err)
	require.NoError(t, conv.Close())

	assert.Equal(t, 1, result.Converted)
	data, err := os.ReadFile(filepath.Join(opts.OutputDir, "T-001-92.txt"))
	require.NoError(t, err)
	assert.Equal(t, "texto plano", string(data))

	require.Len(t, run.calls, 1)
	assert.Equal(t, "soffice", run.calls[0][0])
	assert.Contains(t, run.calls[0], "txt:Text")
	assert.NoDirExists(t, profile, "profile is removed on quit")

	leftovers, err := filepath.Glob(filepath.Join(opts.OutputDir, ".soffice-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "scratch directories are removed")
}

func TestSofficeEditorRunFailure(t *testing.T) {
	docs, tmpDir := setupDocs(t, "T-002-92.rtf")
	ed := newSofficeEditor("libreoffice", &fakeRunner{err: errors.New("exit status 1")})
	conv, err := OpenEditor(context.Background(), ed)
	require.NoError(t, err)
	defer conv.Close()

	result, err := Batch(context.Background(), conv, docs, batchOpts(tmpDir), &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Failures.Entries()[0].Err.Error(), "could not be loaded")
}

func TestSofficeEditorMissingBinary(t *testing.T) {
	_, err := OpenEditor(context.Background(), newSofficeEditor("", &fakeRunner{missing: true}))
	assert.ErrorContains(t, err, "not found on PATH")
}

func TestSofficeEditorSingleInstancePerBatch(t *testing.T) {
	docs, tmpDir := setupDocs(t, "T-001-92.rtf", "T-002-92.rtf", "T-003-92.rtf")
	run := &fakeRunner{}
	ed := newSofficeEditor("", run)

	conv, err := OpenEditor(context.Background(), ed)
	require.NoError(t, err)
	profile := profileArg(ed.profile)

	result, err := Batch(context.Background(), conv, docs, batchOpts(tmpDir), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Converted)

	require.Len(t, run.starts, 1)
	assert.Equal(t, []string{"soffice", "--headless", "--invisible", "--norestore", "--nolockcheck", profile}, run.starts[0])
	require.Len(t, run.procs, 1)
	assert.Equal(t, 0, run.procs[0].stops, "instance stays up for the whole batch")

	require.Len(t, run.calls, 3)
	for _, c := range run.calls {
		assert.Contains(t, c, profile, "every conversion targets the running instance")
	}

	require.NoError(t, conv.Close())
	require.NoError(t, conv.Close())
	assert.Equal(t, 1, run.procs[0].stops)
}

func TestSofficeEditorLaunchFailure(t *testing.T) {
	run := &fakeRunner{startErr: errors.New("exec format error")}
	ed := newSofficeEditor("", run)

	_, err := OpenEditor(context.Background(), ed)
	require.ErrorContains(t, err, "launching soffice")
	assert.Empty(t, ed.profile)

	require.Len(t, run.starts, 1)
	arg := run.starts[0][len(run.starts[0])-1]
	profile := filepath.FromSlash(strings.TrimPrefix(arg, "-env:UserInstallation=file://"))
	assert.NoDirExists(t, profile, "profile is removed when launch fails")
}

func TestSofficeEditorQuitStopsBeforeRemovingProfile(t *testing.T) {
	run := &fakeRunner{stopErr: errors.New("no such process")}
	ed := newSofficeEditor("", run)
	require.NoError(t, ed.Start(context.Background()))
	profile := ed.profile

	err := ed.Quit()
	assert.ErrorContains(t, err, "stopping soffice")
	assert.Equal(t, 1, run.procs[0].stops)
	assert.NoDirExists(t, profile)
	assert.NoError(t, ed.Quit())
}
