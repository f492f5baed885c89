// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns rich-text decisions into plain text with pluggable
// backends. A batch tolerates per-document failures: each one is recorded in
// a FailureReport and the batch moves on to the next document.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/digesto/internal/corpus"
	"github.com/pdiddy/digesto/internal/logging"
	"github.com/pdiddy/digesto/pkg/types"
)

const (
	// textExt is the extension of converted output.
	textExt = ".txt"
	// defaultSourceExt is converted when BatchOptions.SourceExts is empty.
	defaultSourceExt = ".rtf"
)

// ErrConversion marks a per-document conversion failure. It never aborts a batch.
var ErrConversion = errors.New("conversion failed")

// Result is the outcome of converting one document. Every backend reports
// through it, whatever its native failure signal.
type Result struct {
	Source string
	Dest   string
	Err    error
}

// OK reports whether the conversion succeeded.
func (r Result) OK() bool { return r.Err == nil }

func failed(src, dst string, err error) Result {
	if !errors.Is(err, ErrConversion) {
		err = fmt.Errorf("%w: %s: %v", ErrConversion, filepath.Base(src), err)
	}
	return Result{Source: src, Dest: dst, Err: err}
}

// Converter writes a plain-text rendition of src at dst.
type Converter interface {
	Convert(ctx context.Context, src, dst string) Result
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, src, dst string) Result

// Convert calls f.
func (f ConverterFunc) Convert(ctx context.Context, src, dst string) Result {
	return f(ctx, src, dst)
}

// BatchOptions configures Batch.
type BatchOptions struct {
	// OutputDir receives <basename>.txt per converted document.
	OutputDir string

	// ErrorsDir receives the failure report. Empty skips writing it.
	ErrorsDir string

	// SourceExts lists the extensions handed to the converter. Empty means .rtf.
	SourceExts []string

	// Workers bounds concurrent conversions. Values below 1 mean 1.
	Workers int

	Logger *zap.Logger
}

// Outcome is what the batch did with one document.
type Outcome struct {
	Document types.Document
	Status   types.ConversionStatus
	Dest     string
	Err      error
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Passed    int
	Skipped   int
	Failed    int

	// Outputs maps identifiers to the plain-text file to sync: the converted
	// output, or the original file for documents already in text form.
	Outputs map[string]string

	// Outcomes holds one entry per attempted document, in input order.
	Outcomes []Outcome

	// Failures is the batch's failure report.
	Failures *FailureReport

	// ReportPath is where the failure report was written, if anywhere.
	ReportPath string
}

// Total returns the number of documents attempted.
func (r BatchResult) Total() int {
	return r.Converted + r.Passed + r.Skipped + r.Failed
}

// HasFailures reports whether any document failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Documents returns the sync inputs as Documents sorted by identifier.
func (r BatchResult) Documents() []types.Document {
	return corpus.Index(r.Outputs).Documents()
}

// DestPath returns the output path for src: its base name with the last
// extension replaced by .txt, inside outputDir.
func DestPath(src, outputDir string) string {
	base := filepath.Base(src)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, base+textExt)
}

// Batch converts docs with c. Documents with a source extension are
// converted; documents already in .txt pass through unchanged; anything else
// is skipped. A failure for one document is recorded and the batch continues.
// Cancelling ctx abandons the documents not yet started. The failure report
// is written once, after the last document, even when it is empty.
func Batch(ctx context.Context, c Converter, docs []types.Document, opts BatchOptions, w io.Writer) (BatchResult, error) {
	logger := logging.OrNop(opts.Logger)
	result := BatchResult{
		Outputs:  make(map[string]string),
		Failures: &FailureReport{},
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return result, fmt.Errorf("%w: creating output directory %s: %v", corpus.ErrFilesystemUnavailable, opts.OutputDir, err)
	}
	if opts.ErrorsDir != "" {
		if err := os.MkdirAll(opts.ErrorsDir, 0o755); err != nil {
			return result, fmt.Errorf("%w: creating errors directory %s: %v", corpus.ErrFilesystemUnavailable, opts.ErrorsDir, err)
		}
	}

	exts := opts.SourceExts
	if len(exts) == 0 {
		exts = []string{defaultSourceExt}
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	p := &progress{w: w}
	outcomes := make([]*Outcome, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, d := range docs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			o := convertOne(gctx, c, d, opts.OutputDir, exts, p)
			if o.Status == types.ConversionFailed {
				result.Failures.add(i, d.Path, o.Err)
				logger.Debug("conversion failed", zap.String("id", d.ID), zap.Error(o.Err))
			}
			outcomes[i] = &o
			return nil
		})
	}
	_ = g.Wait() // failures are captured per document

	for _, o := range outcomes {
		if o == nil {
			continue
		}
		result.Outcomes = append(result.Outcomes, *o)
		switch o.Status {
		case types.ConversionDone:
			result.Converted++
			result.Outputs[o.Document.ID] = o.Dest
		case types.ConversionSkipped:
			if o.Dest != "" {
				result.Passed++
				result.Outputs[o.Document.ID] = o.Dest
			} else {
				result.Skipped++
			}
		case types.ConversionFailed:
			result.Failed++
		}
	}

	fmt.Fprintf(w, "\nBatch summary: %d converted, %d passed through, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Passed, result.Skipped, result.Failed, result.Total())

	if abandoned := len(docs) - len(result.Outcomes); abandoned > 0 {
		logger.Warn("batch cancelled, remaining documents abandoned", zap.Int("abandoned", abandoned))
	}

	if opts.ErrorsDir != "" {
		path, err := result.Failures.WriteFile(opts.ErrorsDir)
		if err != nil {
			return result, err
		}
		result.ReportPath = path
		fmt.Fprintf(w, "Failure report: %s (%d entries)\n", path, result.Failures.Len())
	}

	return result, ctx.Err()
}

// convertOne runs the converter for a single document and classifies the
// result. A panic inside the backend counts as that document's failure.
func convertOne(ctx context.Context, c Converter, d types.Document, outputDir string, exts []string, p *progress) (o Outcome) {
	o = Outcome{Document: d}
	ext := strings.ToLower(filepath.Ext(d.Path))

	if !hasExt(exts, ext) {
		o.Status = types.ConversionSkipped
		if ext == textExt {
			o.Dest = d.Path
			p.printf("passthrough: %s\n", d.ID)
		} else {
			p.printf("skipped: %s (%s is not a source format)\n", d.ID, ext)
		}
		return o
	}

	dst := DestPath(d.Path, outputDir)
	defer func() {
		if r := recover(); r != nil {
			o.Status = types.ConversionFailed
			o.Err = failed(d.Path, dst, fmt.Errorf("converter panic: %v", r)).Err
			p.printf("failed:  %s (%v)\n", d.ID, o.Err)
		}
	}()

	res := c.Convert(ctx, d.Path, dst)
	if res.OK() {
		if _, err := os.Stat(dst); err != nil {
			res = failed(d.Path, dst, fmt.Errorf("converter reported success but %s is missing", dst))
		}
	} else {
		res = failed(d.Path, dst, res.Err)
	}

	if !res.OK() {
		o.Status = types.ConversionFailed
		o.Err = res.Err
		p.printf("failed:  %s (%v)\n", d.ID, res.Err)
		return o
	}

	o.Status = types.ConversionDone
	o.Dest = dst
	p.printf("converted: %s\n", d.ID)
	return o
}

func hasExt(exts []string, ext string) bool {
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// progress serializes per-document lines from concurrent workers.
type progress struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *progress) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}
