// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/digesto/internal/blobstore"
	"github.com/pdiddy/digesto/internal/container"
	"github.com/pdiddy/digesto/internal/convert"
	"github.com/pdiddy/digesto/internal/logging"
	"github.com/pdiddy/digesto/internal/secrets"
	"github.com/pdiddy/digesto/pkg/types"
)

// OpenConverter builds the converter for cfg.Backend. The returned close
// function releases backend resources and must be called once the batch is done.
func OpenConverter(ctx context.Context, cfg types.ConversionConfig, logger *zap.Logger) (convert.Converter, func() error, error) {
	logger = logging.OrNop(logger)
	switch cfg.Backend {
	case types.BackendPandoc, "":
		rt, err := container.DetectRuntime()
		if err != nil {
			return nil, nil, err
		}
		ext, err := convert.NewPandocExtractor(rt)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using pandoc backend", zap.String("runtime", rt.Name()))
		return convert.FromExtractor(ext), func() error { return nil }, nil
	case types.BackendSoffice:
		ec, err := convert.OpenEditor(ctx, convert.NewSofficeEditor(cfg.SofficeBin))
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using soffice backend", zap.String("bin", cfg.SofficeBin))
		return ec, ec.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported conversion backend %q: use %s or %s",
			cfg.Backend, types.BackendPandoc, types.BackendSoffice)
	}
}

// OpenStore builds the blob store for cfg. A dry run gets an in-memory store.
func OpenStore(cfg types.SyncConfig, creds secrets.Storage, logger *zap.Logger) (blobstore.Store, error) {
	if cfg.DryRun {
		return blobstore.NewMemStore(), nil
	}
	store, err := blobstore.NewAzureStore(blobstore.AzureConfig{
		AccountURL:            cfg.AccountURL,
		Container:             cfg.Container,
		UseDevelopmentStorage: cfg.UseDevelopmentStorage,
		AccountName:           creds.AccountName,
		AccountKey:            creds.AccountKey,
		SASToken:              creds.SASToken,
	}, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}
