// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/digesto/internal/blobstore"
	"github.com/pdiddy/digesto/pkg/types"
)

// flakyStore fails uploads for chosen keys and can hide keys from List.
type flakyStore struct {
	*blobstore.MemStore
	fail    map[string]bool
	hide    map[string]bool
	listErr error
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemStore: blobstore.NewMemStore(), fail: map[string]bool{}, hide: map[string]bool{}}
}

func (s *flakyStore) Upload(ctx context.Context, key string, body io.ReadSeekCloser) error {
	if s.fail[key] {
		return errors.New("503 server busy")
	}
	return s.MemStore.Upload(ctx, key, body)
}

func (s *flakyStore) List(ctx context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	names, err := s.MemStore.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if !s.hide[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

func writeDocs(t *testing.T, contents map[string]string) []types.Document {
	t.Helper()
	dir := t.TempDir()
	var docs []types.Document
	for _, id := range []string{"case1", "case2", "case3"} {
		body, ok := contents[id]
		if !ok {
			continue
		}
		p := filepath.Join(dir, id+".txt")
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		docs = append(docs, types.Document{ID: id, Path: p})
	}
	return docs
}

func TestSync_UploadsKeyedByIdentifier(t *testing.T) {
	docs := writeDocs(t, map[string]string{"case1": "one", "case2": "two"})
	store := blobstore.NewMemStore()
	var out bytes.Buffer

	report, err := Sync(context.Background(), store, docs, Options{}, &out)
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, 2, report.Uploaded)
	assert.Equal(t, []string{"case1", "case2"}, report.Listing)
	assert.Empty(t, report.Missing)

	got, err := store.Get(context.Background(), "case2")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	assert.Contains(t, out.String(), "uploaded: case1")
	assert.Contains(t, out.String(), "Container contents (2 blobs)")
}

func TestSync_RepeatedRunOverwrites(t *testing.T) {
	docs := writeDocs(t, map[string]string{"case1": "v1"})
	store := blobstore.NewMemStore()

	_, err := Sync(context.Background(), store, docs, Options{}, io.Discard)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(docs[0].Path, []byte("v2"), 0o644))
	report, err := Sync(context.Background(), store, docs, Options{}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []string{"case1"}, report.Listing)
	got, err := store.Get(context.Background(), "case1")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
}

func TestSync_FailureIsolation(t *testing.T) {
	docs := writeDocs(t, map[string]string{"case1": "a", "case2": "b", "case3": "c"})
	store := newFlakyStore()
	store.fail["case2"] = true

	report, err := Sync(context.Background(), store, docs, Options{Workers: 2}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Uploaded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Items, 3)
	assert.Equal(t, types.UploadFailed, report.Items[1].Status)
	assert.ErrorIs(t, report.Err(), ErrUpload)
	assert.Equal(t, []string{"case2"}, report.Missing)
}

func TestSync_MissingSourceFile(t *testing.T) {
	docs := []types.Document{{ID: "gone", Path: filepath.Join(t.TempDir(), "gone.txt")}}
	report, err := Sync(context.Background(), blobstore.NewMemStore(), docs, Options{}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Err(), ErrUpload)
}

func TestSync_ReconcileHiddenKey(t *testing.T) {
	docs := writeDocs(t, map[string]string{"case1": "a", "case3": "c"})
	store := newFlakyStore()
	store.hide["case3"] = true

	report, err := Sync(context.Background(), store, docs, Options{}, io.Discard)
	require.NoError(t, err)
	assert.NoError(t, report.Err())
	assert.Equal(t, []string{"case3"}, report.Missing)
}

func TestSync_ListingFailure(t *testing.T) {
	docs := writeDocs(t, map[string]string{"case1": "a"})
	store := newFlakyStore()
	store.listErr = errors.New("forbidden")

	report, err := Sync(context.Background(), store, docs, Options{}, io.Discard)
	assert.ErrorContains(t, err, "forbidden")
	assert.Equal(t, 1, report.Uploaded)
}

func TestSync_SkipListing(t *testing.T) {
	docs := writeDocs(t, map[string]string{"case1": "a"})
	store := newFlakyStore()
	store.listErr = errors.New("not called")

	report, err := Sync(context.Background(), store, docs, Options{SkipListing: true}, io.Discard)
	require.NoError(t, err)
	assert.Nil(t, report.Listing)
}

func TestSync_Cancelled(t *testing.T) {
	docs := writeDocs(t, map[string]string{"case1": "a", "case2": "b"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := blobstore.NewMemStore()
	report, err := Sync(ctx, store, docs, Options{}, io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Items)
	assert.Zero(t, store.Uploads())
}

func TestReportErr_NilWhenClean(t *testing.T) {
	assert.NoError(t, Report{Items: []Item{{Key: "a", Status: types.UploadDone}}}.Err())
}
