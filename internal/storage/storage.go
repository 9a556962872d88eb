// Package storage keeps datasets and result documents in object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/panda-miner/pkg/config"
	apperrors "github.com/panda-miner/pkg/errors"
)

// Storage defines the interface for object storage operations.
type Storage interface {
	// Upload uploads data from reader to the specified key.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// UploadFile uploads a local file to the specified key.
	UploadFile(ctx context.Context, key string, localPath string) error

	// Download opens the object at key. Missing objects yield a NOT_FOUND
	// error.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete deletes the object at the specified key.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns the URL for the specified key (if applicable).
	GetURL(key string) string
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeCOS   StorageType = "cos"
)

// NewStorage creates a new Storage instance based on the configuration.
func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch StorageType(cfg.Type) {
	case StorageTypeCOS:
		return NewCOSStorage(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}

// ValidateConfig validates the storage configuration.
func ValidateConfig(cfg *config.StorageConfig) error {
	if cfg == nil {
		return apperrors.New(apperrors.CodeConfigError, "storage config is nil")
	}

	switch StorageType(cfg.Type) {
	case "", StorageTypeLocal:
		if cfg.LocalPath == "" {
			return apperrors.New(apperrors.CodeConfigError, "local storage path is required")
		}
	case StorageTypeCOS:
		if cfg.Bucket == "" {
			return apperrors.New(apperrors.CodeConfigError, "COS bucket is required")
		}
		if cfg.Region == "" {
			return apperrors.New(apperrors.CodeConfigError, "COS region is required")
		}
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return apperrors.New(apperrors.CodeConfigError, "COS credentials are required")
		}
	default:
		return apperrors.New(apperrors.CodeConfigError, fmt.Sprintf("unsupported storage type: %s", cfg.Type))
	}

	return nil
}

// CleanKey normalizes an object key and rejects keys escaping the bucket
// root.
func CleanKey(key string) (string, error) {
	k := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(key, "\\", "/")), "/")
	if k == "" || k == "." {
		return "", apperrors.New(apperrors.CodeInvalidInput, "empty storage key")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", apperrors.New(apperrors.CodeInvalidInput, "storage key escapes root: "+key)
		}
	}
	return k, nil
}
