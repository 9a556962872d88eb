package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/panda-miner/pkg/errors"
)

// LocalStorage implements Storage on the local filesystem.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "./storage"
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to create storage directory", err)
	}

	return &LocalStorage{basePath: basePath}, nil
}

// Upload writes reader to key. The object appears atomically: readers see
// either the old content or the new one.
func (s *LocalStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to create directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to create file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to write file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to close file", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to move file into place", err)
	}

	return nil
}

// UploadFile uploads a local file to the specified key.
func (s *LocalStorage) UploadFile(ctx context.Context, key string, localPath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.Wrap(apperrors.CodeNotFound, "source file not found: "+localPath, err)
		}
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to open source file", err)
	}
	defer src.Close()

	return s.Upload(ctx, key, src)
}

// Download opens the object at key.
func (s *LocalStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.New(apperrors.CodeNotFound, "object not found: "+key)
		}
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to open file", err)
	}

	return file, nil
}

// Delete deletes the object at the specified key. Deleting a missing
// object is not an error.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to delete file", err)
	}

	return nil
}

// Exists checks if an object exists at the specified key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fullPath, err := s.fullPath(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.CodeStorageError, "failed to check file existence", err)
	}

	return !info.IsDir(), nil
}

// GetURL returns the file path for local storage.
func (s *LocalStorage) GetURL(key string) string {
	p, err := s.fullPath(key)
	if err != nil {
		return ""
	}
	return p
}

// GetBasePath returns the base path for the local storage.
func (s *LocalStorage) GetBasePath() string {
	return s.basePath
}

func (s *LocalStorage) fullPath(key string) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(k)), nil
}

var _ Storage = (*LocalStorage)(nil)
