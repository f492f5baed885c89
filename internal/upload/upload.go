// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package upload syncs a document set to a blob store keyed by identifier.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/digesto/internal/blobstore"
	"github.com/pdiddy/digesto/internal/logging"
	"github.com/pdiddy/digesto/pkg/types"
)

// ErrUpload marks a single document that could not be uploaded.
var ErrUpload = errors.New("upload failed")

// Options configures Sync.
type Options struct {
	// Workers bounds concurrent uploads. Values below 1 mean 1.
	Workers int

	// SkipListing disables the post-upload listing and reconciliation.
	SkipListing bool

	Logger *zap.Logger
}

// Item is the outcome of uploading one document.
type Item struct {
	Key    string
	Path   string
	Status types.UploadStatus
	Err    error
}

// Report summarizes a sync.
type Report struct {
	// Items holds one entry per document, in input order.
	Items []Item

	Uploaded int
	Failed   int

	// Listing is the container contents after the uploads.
	Listing []string

	// Missing holds intended keys absent from Listing, sorted.
	Missing []string
}

// Err aggregates every per-document upload failure, or returns nil.
func (r Report) Err() error {
	var merr *multierror.Error
	for _, it := range r.Items {
		if it.Err != nil {
			merr = multierror.Append(merr, it.Err)
		}
	}
	return merr.ErrorOrNil()
}

// Sync uploads every document under its identifier, replacing any object
// already stored there. A failure for one document is recorded and the rest
// continue. After the uploads the container is listed and each blob name is
// printed to w. A listing failure is returned as an error.
func Sync(ctx context.Context, store blobstore.Store, docs []types.Document, opts Options, w io.Writer) (Report, error) {
	logger := logging.OrNop(opts.Logger)
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		report Report
		mu     sync.Mutex
	)
	items := make([]*Item, len(docs))

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
			it := uploadOne(gctx, store, d)
			mu.Lock()
			if it.Err != nil {
				fmt.Fprintf(w, "failed:   %s (%v)\n", it.Key, it.Err)
				logger.Debug("upload failed", zap.String("key", it.Key), zap.Error(it.Err))
			} else {
				fmt.Fprintf(w, "uploaded: %s\n", it.Key)
			}
			mu.Unlock()
			items[i] = &it
			return nil
		})
	}
	_ = g.Wait() // failures are captured per document

	for _, it := range items {
		if it == nil {
			continue
		}
		report.Items = append(report.Items, *it)
		if it.Status == types.UploadDone {
			report.Uploaded++
		} else {
			report.Failed++
		}
	}
	fmt.Fprintf(w, "\nUpload summary: %d uploaded, %d failed (total: %d)\n", report.Uploaded, report.Failed, len(docs))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if opts.SkipListing {
		return report, nil
	}

	listing, err := store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("listing container: %w", err)
	}
	sort.Strings(listing)
	report.Listing = listing
	fmt.Fprintf(w, "\nContainer contents (%d blobs):\n", len(listing))
	for _, name := range listing {
		fmt.Fprintf(w, "  %s\n", name)
	}

	report.Missing = reconcile(report.Items, listing)
	if len(report.Missing) > 0 {
		logger.Warn("uploaded keys missing from container listing", zap.Strings("keys", report.Missing))
	}
	return report, nil
}

func uploadOne(ctx context.Context, store blobstore.Store, d types.Document) Item {
	it := Item{Key: d.ID, Path: d.Path, Status: types.UploadFailed}
	f, err := os.Open(d.Path)
	if err != nil {
		it.Err = fmt.Errorf("%w: %s: %v", ErrUpload, d.ID, err)
		return it
	}
	defer f.Close()
	if err := store.Upload(ctx, d.ID, f); err != nil {
		it.Err = fmt.Errorf("%w: %s: %v", ErrUpload, d.ID, err)
		return it
	}
	it.Status = types.UploadDone
	return it
}

// reconcile returns the sorted keys that were intended for upload but are
// absent from listing. Failed uploads count as intended.
func reconcile(items []Item, listing []string) []string {
	present := make(map[string]struct{}, len(listing))
	for _, name := range listing {
		present[name] = struct{}{}
	}
	seen := make(map[string]struct{})
	var missing []string
	for _, it := range items {
		if _, ok := present[it.Key]; ok {
			continue
		}
		if _, dup := seen[it.Key]; dup {
			continue
		}
		seen[it.Key] = struct{}{}
		missing = append(missing, it.Key)
	}
	sort.Strings(missing)
	return missing
}
