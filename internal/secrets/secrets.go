// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads storage credentials from a directory of plain-text
// files. Each file is one secret: the filename is the key name and the
// trimmed contents are the value.
//
// Recognized keys: azure-storage-account, azure-storage-account-key,
// azure-storage-sas-token.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/pdiddy/digesto/internal/logging"
)

const (
	KeyStorageAccount    = "azure-storage-account"
	KeyStorageAccountKey = "azure-storage-account-key"
	KeyStorageSASToken   = "azure-storage-sas-token"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(fsys afero.Fs, dir string, logger *zap.Logger) (map[string]string, error) {
	logger = logging.OrNop(logger)
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := afero.ReadFile(fsys, filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Storage holds the blob storage credentials found in a secrets map.
type Storage struct {
	AccountName string
	AccountKey  string
	SASToken    string
}

// StorageCredentials picks the storage keys out of a loaded secrets map.
func StorageCredentials(secrets map[string]string) Storage {
	return Storage{
		AccountName: secrets[KeyStorageAccount],
		AccountKey:  secrets[KeyStorageAccountKey],
		SASToken:    secrets[KeyStorageSASToken],
	}
}
