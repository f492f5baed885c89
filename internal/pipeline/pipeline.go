// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline wires the stages into one run: index, filter, copy,
// convert and sync. A Flow picks which stages run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/pdiddy/digesto/internal/blobstore"
	"github.com/pdiddy/digesto/internal/catalog"
	"github.com/pdiddy/digesto/internal/convert"
	"github.com/pdiddy/digesto/internal/corpus"
	"github.com/pdiddy/digesto/internal/filter"
	"github.com/pdiddy/digesto/internal/ledger"
	"github.com/pdiddy/digesto/internal/logging"
	"github.com/pdiddy/digesto/internal/upload"
	"github.com/pdiddy/digesto/pkg/types"
)

// Flow names a preset sequence of stages.
type Flow string

const (
	// FlowUpload indexes the tree and uploads every document as-is.
	FlowUpload Flow = "upload"

	// FlowFilterCopy indexes, filters by the catalog and copies the subset.
	FlowFilterCopy Flow = "filter-copy"

	// FlowConvert converts the files directly inside the root folder.
	FlowConvert Flow = "convert"

	// FlowFull indexes, filters when a catalog is set, converts and uploads.
	FlowFull Flow = "full"
)

// Stages lists which stages a flow runs.
type Stages struct {
	Recursive bool
	Filter    bool
	Copy      bool
	Convert   bool
	Sync      bool
}

// Stages returns the stage set for f given cfg. Optional stages switch on
// when their configuration is present.
func (f Flow) Stages(cfg types.PipelineConfig) (Stages, error) {
	switch f {
	case FlowUpload:
		return Stages{Recursive: true, Filter: cfg.Catalog.Path != "", Sync: true}, nil
	case FlowFilterCopy:
		return Stages{Recursive: true, Filter: true, Copy: true}, nil
	case FlowConvert:
		return Stages{Convert: true}, nil
	case FlowFull:
		return Stages{
			Recursive: true,
			Filter:    cfg.Catalog.Path != "",
			Copy:      cfg.CopyDir != "",
			Convert:   true,
			Sync:      true,
		}, nil
	default:
		return Stages{}, fmt.Errorf("unknown flow %q", f)
	}
}

// Deps holds the collaborators a run needs. Converter is required when the
// flow converts and Store when it syncs. Ledger is optional.
type Deps struct {
	FS        afero.Fs
	Converter convert.Converter
	Store     blobstore.Store
	Ledger    *ledger.Store
	Logger    *zap.Logger
}

// Summary reports what each stage did.
type Summary struct {
	Flow       Flow
	RunID      int64
	Indexed    int
	Collisions []corpus.Collision
	Selected   int
	Absent     []string
	Copy       corpus.CopyResult
	Conversion *convert.BatchResult
	Sync       *upload.Report
}

// Err aggregates per-document failures from conversion and sync, including
// keys missing from the post-upload listing. Nil means every document made it.
func (s Summary) Err() error {
	var merr *multierror.Error
	if s.Conversion != nil {
		for _, f := range s.Conversion.Failures.Entries() {
			merr = multierror.Append(merr, f.Err)
		}
	}
	if s.Sync != nil {
		if err := s.Sync.Err(); err != nil {
			merr = multierror.Append(merr, err)
		}
		if len(s.Sync.Missing) > 0 {
			merr = multierror.Append(merr, fmt.Errorf("%w: %d keys missing from container listing", upload.ErrUpload, len(s.Sync.Missing)))
		}
	}
	if s.Copy.Missing > 0 {
		merr = multierror.Append(merr, fmt.Errorf("%d documents could not be copied", s.Copy.Missing))
	}
	return merr.ErrorOrNil()
}

// Run executes flow with cfg. Fatal conditions (unreadable corpus root,
// malformed catalog, unavailable output directory, failed listing) end the
// run with an error. Per-document failures do not; inspect Summary.Err.
func Run(ctx context.Context, flow Flow, cfg types.PipelineConfig, deps Deps, w io.Writer) (Summary, error) {
	sum := Summary{Flow: flow}
	stages, err := flow.Stages(cfg)
	if err != nil {
		return sum, err
	}
	if stages.Convert && deps.Converter == nil {
		return sum, errors.New("conversion stage requires a converter")
	}
	if stages.Sync && deps.Store == nil {
		return sum, errors.New("sync stage requires a blob store")
	}
	if stages.Copy && cfg.CopyDir == "" {
		return sum, errors.New("copy stage requires a copy directory")
	}
	delim, err := delimiter(cfg.Index.Delimiter)
	if err != nil {
		return sum, err
	}
	if deps.FS == nil {
		deps.FS = afero.NewOsFs()
	}
	logger := logging.OrNop(deps.Logger)

	r := &runner{cfg: cfg, deps: deps, logger: logger, w: w, delim: delim}
	r.begin(ctx, flow)
	err = r.run(ctx, stages, &sum)
	sum.RunID = r.runID
	r.finish(ctx, &sum, err)
	return sum, err
}

type runner struct {
	cfg    types.PipelineConfig
	deps   Deps
	logger *zap.Logger
	w      io.Writer
	delim  byte
	runID  int64
}

func (r *runner) run(ctx context.Context, st Stages, sum *Summary) error {
	var docs []types.Document

	if st.Recursive {
		idx, collisions, err := corpus.Build(r.deps.FS, r.cfg.Index.Root, corpus.IndexOptions{Delimiter: r.delim, Logger: r.logger})
		if err != nil {
			return err
		}
		sum.Indexed = len(idx)
		sum.Collisions = collisions
		fmt.Fprintf(r.w, "Indexed %d documents under %s (%d collisions)\n", len(idx), r.cfg.Index.Root, len(collisions))

		if st.Filter {
			wanted, err := catalog.LoadSet(r.cfg.Catalog.Path, r.cfg.Catalog.Mode)
			if err != nil {
				return err
			}
			sum.Absent = filter.Absent(idx, wanted)
			idx = filter.Apply(idx, wanted)
			fmt.Fprintf(r.w, "Selected %d of %d catalog identifiers (%d not in corpus)\n", len(idx), wanted.Len(), len(sum.Absent))
			if len(sum.Absent) > 0 {
				r.logger.Info("catalog identifiers absent from corpus", zap.Strings("ids", sum.Absent))
			}
		}
		sum.Selected = len(idx)
		docs = idx.Documents()
	} else if r.cfg.Conversion.RetryReport != "" {
		paths, err := convert.ReadReport(r.cfg.Conversion.RetryReport)
		if err != nil {
			return err
		}
		docs = corpus.PathDocuments(paths, r.delim)
		sum.Indexed = len(docs)
		sum.Selected = len(docs)
		fmt.Fprintf(r.w, "Retrying %d documents from %s\n", len(docs), r.cfg.Conversion.RetryReport)
	} else {
		var err error
		docs, err = corpus.FolderDocuments(r.deps.FS, r.cfg.Index.Root, r.delim)
		if err != nil {
			return err
		}
		sum.Indexed = len(docs)
		sum.Selected = len(docs)
		fmt.Fprintf(r.w, "Found %d documents in %s\n", len(docs), r.cfg.Index.Root)
	}

	if st.Copy {
		paths := make([]string, len(docs))
		for i, d := range docs {
			paths[i] = d.Path
		}
		res, err := corpus.CopyFiles(r.deps.FS, paths, r.cfg.CopyDir, r.w)
		sum.Copy = res
		if err != nil {
			return err
		}
		fmt.Fprintf(r.w, "Copied %d documents to %s\n", res.Copied, r.cfg.CopyDir)
	}

	if st.Convert {
		res, err := convert.Batch(ctx, r.deps.Converter, docs, convert.BatchOptions{
			OutputDir:  r.cfg.Conversion.OutputDir,
			ErrorsDir:  r.cfg.Conversion.ErrorsDir,
			SourceExts: r.cfg.Conversion.SourceExts,
			Workers:    r.cfg.Conversion.Workers,
			Logger:     r.logger,
		}, r.w)
		sum.Conversion = &res
		r.recordConversions(ctx, res)
		if err != nil {
			return err
		}
		docs = res.Documents()
	}

	if st.Sync {
		if r.cfg.Sync.CreateContainer {
			if err := r.deps.Store.EnsureContainer(ctx); err != nil {
				return err
			}
		}
		rep, err := upload.Sync(ctx, r.deps.Store, docs, upload.Options{
			Workers: r.cfg.Sync.Workers,
			Logger:  r.logger,
		}, r.w)
		sum.Sync = &rep
		r.recordUploads(ctx, rep)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) begin(ctx context.Context, flow Flow) {
	if r.deps.Ledger == nil {
		return
	}
	id, err := r.deps.Ledger.BeginRun(ctx, string(flow))
	if err != nil {
		r.logger.Warn("ledger unavailable for this run", zap.Error(err))
		r.deps.Ledger = nil
		return
	}
	r.runID = id
}

// Ledger writes use a context detached from cancellation so an interrupted
// run still records what it did.
func (r *runner) recordConversions(ctx context.Context, res convert.BatchResult) {
	if r.deps.Ledger == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, o := range res.Outcomes {
		if err := r.deps.Ledger.RecordConversion(ctx, r.runID, o.Document, o.Dest, o.Status, o.Err); err != nil {
			r.logger.Warn("ledger write failed", zap.Error(err))
			return
		}
	}
}

func (r *runner) recordUploads(ctx context.Context, rep upload.Report) {
	if r.deps.Ledger == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, it := range rep.Items {
		if err := r.deps.Ledger.RecordUpload(ctx, r.runID, it.Key, it.Path, it.Status, it.Err); err != nil {
			r.logger.Warn("ledger write failed", zap.Error(err))
			return
		}
	}
}

func (r *runner) finish(ctx context.Context, sum *Summary, runErr error) {
	if r.deps.Ledger == nil {
		return
	}
	c := ledger.Counts{Indexed: sum.Indexed, Selected: sum.Selected}
	if sum.Conversion != nil {
		c.Converted = sum.Conversion.Converted
		c.Failed += sum.Conversion.Failed
	}
	if sum.Sync != nil {
		c.Uploaded = sum.Sync.Uploaded
		c.Failed += sum.Sync.Failed
	}
	if err := r.deps.Ledger.FinishRun(context.WithoutCancel(ctx), r.runID, c, runErr); err != nil {
		r.logger.Warn("ledger write failed", zap.Error(err))
	}
}

func delimiter(s string) (byte, error) {
	switch len(s) {
	case 0:
		return corpus.DefaultDelimiter, nil
	case 1:
		return s[0], nil
	default:
		return 0, fmt.Errorf("identifier delimiter must be a single character, got %q", s)
	}
}
