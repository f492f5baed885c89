// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// TextExtractor is a stateless backend that returns the plain text of a
// document.
type TextExtractor interface {
	Extract(ctx context.Context, src string) (string, error)
}

// FromExtractor adapts a TextExtractor to Converter. The extracted text is
// written to dst.
func FromExtractor(e TextExtractor) Converter {
	return ConverterFunc(func(ctx context.Context, src, dst string) Result {
		text, err := e.Extract(ctx, src)
		if err != nil {
			return failed(src, dst, err)
		}
		if err := os.WriteFile(dst, []byte(text), 0o644); err != nil {
			return failed(src, dst, fmt.Errorf("writing %s: %w", dst, err))
		}
		return Result{Source: src, Dest: dst}
	})
}

// SentinelFunc is a backend that reports failure by returning its input path
// and success by returning "".
type SentinelFunc func(src, dst string) string

// FromSentinel adapts a SentinelFunc to Converter.
func FromSentinel(f SentinelFunc) Converter {
	return ConverterFunc(func(_ context.Context, src, dst string) Result {
		if echoed := f(src, dst); echoed != "" {
			return failed(src, dst, errors.New("backend returned failure sentinel"))
		}
		return Result{Source: src, Dest: dst}
	})
}
