// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/digesto/internal/blobstore"
	"github.com/pdiddy/digesto/internal/catalog"
	"github.com/pdiddy/digesto/internal/convert"
	"github.com/pdiddy/digesto/internal/corpus"
	"github.com/pdiddy/digesto/internal/ledger"
	"github.com/pdiddy/digesto/internal/secrets"
	"github.com/pdiddy/digesto/internal/upload"
	"github.com/pdiddy/digesto/pkg/types"
)

// textConverter writes "plain:<base>" for every source.
var textConverter = convert.ConverterFunc(func(_ context.Context, src, dst string) convert.Result {
	err := os.WriteFile(dst, []byte("plain:"+filepath.Base(src)), 0o644)
	return convert.Result{Source: src, Dest: dst, Err: err}
})

type fixture struct {
	root, out, errs, catalog string
}

func newFixture(t *testing.T, files map[string]string, labels []string) fixture {
	t.Helper()
	base := t.TempDir()
	f := fixture{
		root: filepath.Join(base, "corpus"),
		out:  filepath.Join(base, "txt"),
		errs: filepath.Join(base, "errors"),
	}
	for name, body := range files {
		p := filepath.Join(f.root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	if labels != nil {
		f.catalog = filepath.Join(base, "catalog.json")
		quoted := make([]string, len(labels))
		for i, l := range labels {
			quoted[i] = `"` + l + `"`
		}
		body := `{"ref-1": {"gold labels": [` + strings.Join(quoted, ", ") + `]}}`
		require.NoError(t, os.WriteFile(f.catalog, []byte(body), 0o644))
	}
	return f
}

func (f fixture) config() types.PipelineConfig {
	return types.PipelineConfig{
		Index:      types.IndexConfig{Root: f.root},
		Catalog:    types.CatalogConfig{Path: f.catalog},
		Conversion: types.ConversionConfig{OutputDir: f.out, ErrorsDir: f.errs},
	}
}

func TestRun_FullFlowEndToEnd(t *testing.T) {
	f := newFixture(t, map[string]string{
		"case1.rtf": "{\\rtf1 one}",
		"case2.rtf": "{\\rtf1 two}",
		"case1.pdf": "%PDF",
	}, []string{"case1", "case3"})
	store := blobstore.NewMemStore()
	var out bytes.Buffer

	sum, err := Run(context.Background(), FlowFull, f.config(), Deps{Converter: textConverter, Store: store}, &out)
	require.NoError(t, err)
	require.NoError(t, sum.Err())

	assert.Equal(t, 2, sum.Indexed)
	assert.Equal(t, 1, sum.Selected)
	assert.Equal(t, []string{"case3"}, sum.Absent)
	require.Len(t, sum.Collisions, 1)
	assert.Equal(t, filepath.Join(f.root, "case1.rtf"), sum.Collisions[0].Current)

	entries, err := os.ReadDir(f.out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "case1.txt", entries[0].Name())

	names, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"case1"}, names)
	got, err := store.Get(context.Background(), "case1")
	require.NoError(t, err)
	assert.Equal(t, "plain:case1.rtf", string(got))

	report, err := convert.ReadReport(filepath.Join(f.errs, convert.ReportFile))
	require.NoError(t, err)
	assert.Empty(t, report)
}

func TestRun_FullFlowWithFailures(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.rtf": "x",
		"b.rtf": "x",
		"c.rtf": "x",
	}, nil)
	failB := convert.ConverterFunc(func(ctx context.Context, src, dst string) convert.Result {
		if filepath.Base(src) == "b.rtf" {
			return convert.Result{Source: src, Err: errors.New("unreadable rtf")}
		}
		return textConverter(ctx, src, dst)
	})
	store := blobstore.NewMemStore()

	sum, err := Run(context.Background(), FlowFull, f.config(), Deps{Converter: failB, Store: store}, io.Discard)
	require.NoError(t, err)
	assert.ErrorIs(t, sum.Err(), convert.ErrConversion)
	assert.Equal(t, 2, sum.Conversion.Converted)
	assert.Equal(t, 1, sum.Conversion.Failed)

	names, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, names)

	report, err := convert.ReadReport(filepath.Join(f.errs, convert.ReportFile))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(f.root, "b.rtf")}, report)
}

func TestRun_UploadFlow(t *testing.T) {
	f := newFixture(t, map[string]string{
		"2019/T-001-19.rtf": "one",
		"2020/T-002-20.txt": "two",
	}, nil)
	store := blobstore.NewMemStore()

	sum, err := Run(context.Background(), FlowUpload, f.config(), Deps{Store: store}, io.Discard)
	require.NoError(t, err)
	assert.Nil(t, sum.Conversion)
	require.NotNil(t, sum.Sync)
	assert.Equal(t, 2, sum.Sync.Uploaded)

	names, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"T-001-19", "T-002-20"}, names)
}

func TestRun_FilterCopyFlow(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a/case1.rtf": "one",
		"b/case2.rtf": "two",
	}, []string{"case2"})
	cfg := f.config()
	cfg.CopyDir = filepath.Join(t.TempDir(), "subset")
	var out bytes.Buffer

	sum, err := Run(context.Background(), FlowFilterCopy, cfg, Deps{}, &out)
	require.NoError(t, err)
	assert.Equal(t, corpus.CopyResult{Copied: 1}, sum.Copy)
	assert.FileExists(t, filepath.Join(cfg.CopyDir, "case2.rtf"))
	assert.NoFileExists(t, filepath.Join(cfg.CopyDir, "case1.rtf"))
	assert.Contains(t, out.String(), "copied: case2.rtf")
}

func TestRun_ConvertFlowIsFlat(t *testing.T) {
	f := newFixture(t, map[string]string{
		"top.rtf":         "x",
		"nested/deep.rtf": "x",
	}, nil)

	sum, err := Run(context.Background(), FlowConvert, f.config(), Deps{Converter: textConverter}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Indexed)
	if diff := cmp.Diff(map[string]string{"top": filepath.Join(f.out, "top.txt")}, sum.Conversion.Outputs); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_FatalConditions(t *testing.T) {
	f := newFixture(t, map[string]string{"a.rtf": "x"}, nil)
	badCatalog := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(badCatalog, []byte("{not json"), 0o644))

	tests := []struct {
		name   string
		flow   Flow
		mutate func(*types.PipelineConfig)
		deps   Deps
		target error
		msg    string
	}{
		{name: "unknown flow", flow: "sideways", msg: "unknown flow"},
		{name: "missing root", flow: FlowUpload, deps: Deps{Store: blobstore.NewMemStore()},
			mutate: func(c *types.PipelineConfig) { c.Index.Root = filepath.Join(f.root, "nope") },
			target: corpus.ErrFilesystemUnavailable},
		{name: "malformed catalog", flow: FlowFilterCopy,
			mutate: func(c *types.PipelineConfig) { c.Catalog.Path = badCatalog; c.CopyDir = t.TempDir() },
			target: catalog.ErrCatalogParse},
		{name: "no converter", flow: FlowConvert, msg: "requires a converter"},
		{name: "no store", flow: FlowUpload, msg: "requires a blob store"},
		{name: "no copy dir", flow: FlowFilterCopy, msg: "requires a copy directory"},
		{name: "bad delimiter", flow: FlowUpload, deps: Deps{Store: blobstore.NewMemStore()},
			mutate: func(c *types.PipelineConfig) { c.Index.Delimiter = "--" },
			msg:    "single character"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := f.config()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			_, err := Run(context.Background(), tt.flow, cfg, tt.deps, io.Discard)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestRun_RecordsLedger(t *testing.T) {
	f := newFixture(t, map[string]string{"case1.rtf": "x", "case2.rtf": "x"}, nil)
	lg, err := ledger.Open(types.LedgerConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	defer lg.Close()

	sum, err := Run(context.Background(), FlowFull, f.config(),
		Deps{Converter: textConverter, Store: blobstore.NewMemStore(), Ledger: lg}, io.Discard)
	require.NoError(t, err)
	require.NotZero(t, sum.RunID)

	run, err := lg.GetRun(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, "full", run.Flow)
	assert.Equal(t, ledger.Counts{Indexed: 2, Selected: 2, Converted: 2, Uploaded: 2}, run.Counts)

	path, err := lg.ExportYAML(context.Background(), sum.RunID, "")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "case2")
}

func TestRun_CreateContainer(t *testing.T) {
	f := newFixture(t, map[string]string{"case1.txt": "x"}, nil)
	cfg := f.config()
	cfg.Sync.CreateContainer = true
	store := &ensureStore{MemStore: blobstore.NewMemStore()}

	_, err := Run(context.Background(), FlowUpload, cfg, Deps{Store: store}, io.Discard)
	require.NoError(t, err)
	assert.True(t, store.ensured)
}

type ensureStore struct {
	*blobstore.MemStore
	ensured bool
}

func (s *ensureStore) EnsureContainer(context.Context) error {
	s.ensured = true
	return nil
}

func TestSummaryErr_MissingKeys(t *testing.T) {
	sum := Summary{Sync: &upload.Report{Missing: []string{"case9"}}}
	assert.Error(t, sum.Err())
	assert.NoError(t, Summary{}.Err())
}

func TestOpenStore_DryRun(t *testing.T) {
	s, err := OpenStore(types.SyncConfig{DryRun: true}, secrets.Storage{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &blobstore.MemStore{}, s)

	_, err = OpenStore(types.SyncConfig{AccountURL: "https://acct.blob.core.windows.net"}, secrets.Storage{}, nil)
	assert.Error(t, err, "container required")
}

func TestOpenConverter_UnsupportedBackend(t *testing.T) {
	_, _, err := OpenConverter(context.Background(), types.ConversionConfig{Backend: "word"}, nil)
	assert.ErrorContains(t, err, "unsupported conversion backend")
}

func TestFlowStages(t *testing.T) {
	cfg := types.PipelineConfig{Catalog: types.CatalogConfig{Path: "c.json"}}
	st, err := FlowFull.Stages(cfg)
	require.NoError(t, err)
	assert.Equal(t, Stages{Recursive: true, Filter: true, Convert: true, Sync: true}, st)

	st, err = FlowUpload.Stages(types.PipelineConfig{})
	require.NoError(t, err)
	assert.Equal(t, Stages{Recursive: true, Sync: true}, st)
}

func TestRun_ConvertRetriesFailureReport(t *testing.T) {
	f := newFixture(t, map[string]string{"a.rtf": "x", "b.rtf": "x"}, nil)
	flaky := true
	conv := convert.ConverterFunc(func(ctx context.Context, src, dst string) convert.Result {
		if flaky && filepath.Base(src) == "b.rtf" {
			return convert.Result{Source: src, Err: errors.New("locked")}
		}
		return textConverter(ctx, src, dst)
	})

	sum, err := Run(context.Background(), FlowConvert, f.config(), Deps{Converter: conv}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Conversion.Failed)

	flaky = false
	cfg := f.config()
	cfg.Conversion.RetryReport = sum.Conversion.ReportPath
	sum, err = Run(context.Background(), FlowConvert, cfg, Deps{Converter: conv}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Indexed)
	assert.Equal(t, 1, sum.Conversion.Converted)
	assert.NoError(t, sum.Err())
	assert.FileExists(t, filepath.Join(f.out, "b.txt"))
}
