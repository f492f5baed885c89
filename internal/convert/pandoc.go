// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/digesto/internal/container"
)

const imagePandoc = "pandoc/core:3.1"

// pandocArgs reads RTF on stdin and writes unwrapped plain text on stdout.
var pandocArgs = []string{"--from", "rtf", "--to", "plain", "--wrap", "none"}

// PandocExtractor extracts text by piping documents through the pandoc
// container image. It depends on a container.Runtime injected at
// construction time.
type PandocExtractor struct {
	runtime container.Runtime
}

// NewPandocExtractor creates an extractor that runs the pandoc image on rt.
// It verifies that the image exists locally before returning.
func NewPandocExtractor(rt container.Runtime) (*PandocExtractor, error) {
	if err := rt.ImageExists(imagePandoc); err != nil {
		return nil, fmt.Errorf("pandoc image not available in %s: %w", rt.Name(), err)
	}
	return &PandocExtractor{runtime: rt}, nil
}

// Extract pipes the RTF file at src through pandoc and returns the text.
func (p *PandocExtractor) Extract(ctx context.Context, src string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := p.runtime.Run(ctx, imagePandoc, pandocArgs, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with pandoc: %w", src, err)
	}

	if out.Len() == 0 {
		return "", fmt.Errorf("pandoc produced empty output for %s", src)
	}

	return out.String(), nil
}
