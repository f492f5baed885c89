// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Editor drives a document editor process. It is started once per batch
// and quit once at the end.
type Editor interface {
	Start(ctx context.Context) error
	Open(ctx context.Context, path string) (EditorDocument, error)
	Quit() error
}

// EditorDocument is a document open in an Editor.
type EditorDocument interface {
	// SaveAsText saves the document as plain text at dst.
	SaveAsText(ctx context.Context, dst string) error
	// Close discards the document without saving.
	Close() error
}

var errEditorClosed = errors.New("editor already closed")

// EditorConverter converts documents through a running Editor. Calls are
// serialized because the editor handles one document at a time.
type EditorConverter struct {
	mu     sync.Mutex
	editor Editor
	closed bool
}

// OpenEditor starts e and returns a Converter bound to it. The caller must
// Close the converter to quit the editor.
func OpenEditor(ctx context.Context, e Editor) (*EditorConverter, error) {
	if err := e.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting editor: %w", err)
	}
	return &EditorConverter{editor: e}, nil
}

// Convert opens src, saves it as text at dst and closes it. A panic in the
// editor binding is turned into this document's failure; the editor stays up
// for the next document.
func (c *EditorConverter) Convert(ctx context.Context, src, dst string) (res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return failed(src, dst, errEditorClosed)
	}

	defer func() {
		if r := recover(); r != nil {
			res = failed(src, dst, fmt.Errorf("editor panic: %v", r))
		}
	}()

	doc, err := c.editor.Open(ctx, src)
	if err != nil {
		return failed(src, dst, fmt.Errorf("opening: %w", err))
	}
	defer doc.Close()

	if err := doc.SaveAsText(ctx, dst); err != nil {
		return failed(src, dst, fmt.Errorf("saving as text: %w", err))
	}
	return Result{Source: src, Dest: dst}
}

// Close quits the editor. Calling it more than once is a no-op.
func (c *EditorConverter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.editor.Quit(); err != nil {
		return fmt.Errorf("quitting editor: %w", err)
	}
	return nil
}
