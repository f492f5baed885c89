// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"go.uber.org/zap"

	"github.com/pdiddy/digesto/internal/httputil"
	"github.com/pdiddy/digesto/internal/logging"
)

const (
	// Well-known Azurite development account.
	devStorageURL     = "http://127.0.0.1:10000/devstoreaccount1"
	devStorageAccount = "devstoreaccount1"
	devStorageKey     = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// AzureConfig selects the container and how to authenticate to it.
type AzureConfig struct {
	// AccountURL is the service endpoint, e.g. https://<account>.blob.core.windows.net.
	AccountURL string

	// Container is the blob container name.
	Container string

	// UseDevelopmentStorage targets a local Azurite emulator.
	UseDevelopmentStorage bool

	// AccountKey enables shared-key auth. The account name is taken from
	// the AccountURL host when AccountName is empty.
	AccountName string
	AccountKey  string

	// SASToken enables SAS auth.
	SASToken string
}

// containerAPI is the subset of container operations AzureStore uses.
type containerAPI interface {
	Create(ctx context.Context) error
	BlockBlob(name string) blockBlobAPI
	ListPager() listPager
}

// blockBlobAPI is the subset of block blob operations AzureStore uses.
type blockBlobAPI interface {
	Upload(ctx context.Context, body io.ReadSeekCloser) error
	Download(ctx context.Context) (io.ReadCloser, error)
}

// listPager pages through a flat blob listing.
type listPager interface {
	More() bool
	NextPage(ctx context.Context) (container.ListBlobsFlatResponse, error)
}

// AzureStore implements Store for one Azure Blob Storage container.
type AzureStore struct {
	client containerAPI
	name   string
	logger *zap.Logger
}

// NewAzureStore creates a store for cfg.Container. Credentials are picked in
// order: development storage, shared key, SAS token, then the ambient
// DefaultAzureCredential chain.
func NewAzureStore(cfg AzureConfig, logger *zap.Logger) (*AzureStore, error) {
	if cfg.Container == "" {
		return nil, errors.New("container name is required")
	}
	client, err := createContainerClient(cfg, clientOptions(logging.OrNop(logger)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	return newAzureStoreWithClient(client, cfg.Container, logger), nil
}

func newAzureStoreWithClient(client containerAPI, name string, logger *zap.Logger) *AzureStore {
	return &AzureStore{client: client, name: name, logger: logging.OrNop(logger)}
}

// EnsureContainer creates the container, treating "already exists" as success.
func (s *AzureStore) EnsureContainer(ctx context.Context) error {
	err := s.client.Create(ctx)
	if err == nil {
		s.logger.Info("created container", zap.String("container", s.name))
		return nil
	}
	if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil
	}
	return fmt.Errorf("failed to create container %s: %w", s.name, err)
}

// Upload writes body as a block blob named key, replacing any existing blob.
func (s *AzureStore) Upload(ctx context.Context, key string, body io.ReadSeekCloser) error {
	if body == nil {
		return errors.New("body cannot be nil")
	}
	if err := s.client.BlockBlob(key).Upload(ctx, body); err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", key, err)
	}
	return nil
}

// List returns every blob name in the container.
func (s *AzureStore) List(ctx context.Context) ([]string, error) {
	var names []string
	pager := s.client.ListPager()
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs in %s: %w", s.name, err)
		}
		if resp.Segment == nil {
			continue
		}
		for _, item := range resp.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

// Get downloads the blob named key.
func (s *AzureStore) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := s.client.BlockBlob(key).Download(ctx)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to download blob %s: %w", key, err)
	}
	defer body.Close()
	return io.ReadAll(body)
}

// clientOptions hands 429 and 503 to the throttling transport, which honors
// Retry-After. Those codes are removed from the SDK retry policy, so the
// transport replaces its throttling handling instead of stacking on it. The
// SDK keeps retrying 408, 500, 502 and 504.
func clientOptions(logger *zap.Logger) *container.ClientOptions {
	return &container.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: &httputil.Transport{Logger: logger},
			Retry: policy.RetryOptions{
				StatusCodes: []int{
					http.StatusRequestTimeout,
					http.StatusInternalServerError,
					http.StatusBadGateway,
					http.StatusGatewayTimeout,
				},
			},
		},
	}
}

func createContainerClient(cfg AzureConfig, opts *container.ClientOptions) (containerAPI, error) {
	accountURL := cfg.AccountURL
	accountName, accountKey := cfg.AccountName, cfg.AccountKey
	if cfg.UseDevelopmentStorage {
		accountURL = devStorageURL
		accountName, accountKey = devStorageAccount, devStorageKey
	}
	if accountURL == "" {
		return nil, errors.New("account URL is required")
	}
	containerURL := strings.TrimRight(accountURL, "/") + "/" + url.PathEscape(cfg.Container)

	var (
		client *container.Client
		err    error
	)
	switch {
	case accountKey != "":
		if accountName == "" {
			accountName, err = accountFromURL(accountURL)
			if err != nil {
				return nil, err
			}
		}
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(accountName, accountKey)
		if err != nil {
			return nil, fmt.Errorf("invalid shared key: %w", err)
		}
		client, err = container.NewClientWithSharedKeyCredential(containerURL, cred, opts)
	case cfg.SASToken != "":
		client, err = container.NewClientWithNoCredential(containerURL+"?"+strings.TrimPrefix(cfg.SASToken, "?"), opts)
	default:
		var cred azcore.TokenCredential
		cred, err = azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("acquiring default Azure credential: %w", err)
		}
		client, err = container.NewClient(containerURL, cred, opts)
	}
	if err != nil {
		return nil, err
	}
	return &azContainer{client: client}, nil
}

// accountFromURL returns the first host label of an account URL.
func accountFromURL(accountURL string) (string, error) {
	u, err := url.Parse(accountURL)
	if err != nil {
		return "", fmt.Errorf("parsing account URL %q: %w", accountURL, err)
	}
	host := u.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i], nil
	}
	return "", fmt.Errorf("cannot derive account name from %q", accountURL)
}

// azContainer adapts *container.Client to containerAPI.
type azContainer struct {
	client *container.Client
}

func (c *azContainer) Create(ctx context.Context) error {
	_, err := c.client.Create(ctx, nil)
	return err
}

func (c *azContainer) BlockBlob(name string) blockBlobAPI {
	return &azBlockBlob{client: c.client.NewBlockBlobClient(name)}
}

func (c *azContainer) ListPager() listPager {
	return c.client.NewListBlobsFlatPager(nil)
}

// azBlockBlob adapts *blockblob.Client to blockBlobAPI.
type azBlockBlob struct {
	client *blockblob.Client
}

func (b *azBlockBlob) Upload(ctx context.Context, body io.ReadSeekCloser) error {
	_, err := b.client.Upload(ctx, body, nil)
	return err
}

func (b *azBlockBlob) Download(ctx context.Context) (io.ReadCloser, error) {
	resp, err := b.client.DownloadStream(ctx, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
