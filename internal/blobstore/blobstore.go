// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package blobstore is the key-addressed object store the corpus is synced
// to. AzureStore talks to Azure Blob Storage; MemStore keeps objects in
// memory for tests and dry runs.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// ErrNotFound reports a key with no object behind it.
var ErrNotFound = errors.New("object not found")

// Store is a single blob container. Upload replaces any object already
// stored under key.
type Store interface {
	// EnsureContainer creates the container when it does not exist.
	EnsureContainer(ctx context.Context) error

	// Upload stores body under key.
	Upload(ctx context.Context, key string, body io.ReadSeekCloser) error

	// List returns the names of all objects in the container.
	List(ctx context.Context) ([]string, error)

	// Get returns the content stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

// EnsureContainer is a no-op; the in-memory container always exists.
func (m *MemStore) EnsureContainer(context.Context) error { return nil }

// Upload stores the whole body under key, replacing any earlier object.
func (m *MemStore) Upload(ctx context.Context, key string, body io.ReadSeekCloser) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("reading body for %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.uploads++
	return nil
}

// List returns every stored key in lexical order.
func (m *MemStore) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.objects))
	for k := range m.objects {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

// Get returns a copy of the object at key, or ErrNotFound.
func (m *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

// Uploads returns the number of successful Upload calls.
func (m *MemStore) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}
