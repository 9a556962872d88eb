package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tencentyun/cos-go-sdk-v5"

	apperrors "github.com/panda-miner/pkg/errors"
)

// COSConfig holds COS-specific configuration.
type COSConfig struct {
	Bucket    string
	Region    string
	SecretID  string
	SecretKey string
	Domain    string // e.g., "myqcloud.com"
	Scheme    string // e.g., "https" or "http"
}

// COSStorage implements Storage on Tencent Cloud COS.
type COSStorage struct {
	client    *cos.Client
	bucketURL *url.URL
}

// NewCOSStorage creates a new COSStorage instance.
func NewCOSStorage(cfg *COSConfig) (*COSStorage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, apperrors.New(apperrors.CodeConfigError, "bucket and region are required for COS storage")
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, apperrors.New(apperrors.CodeConfigError, "credentials are required for COS storage")
	}

	domain := cfg.Domain
	if domain == "" {
		domain = "myqcloud.com"
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	bucketURL, err := url.Parse(fmt.Sprintf("%s://%s.cos.%s.%s", scheme, cfg.Bucket, cfg.Region, domain))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to parse bucket URL", err)
	}

	return newCOSStorage(bucketURL, cfg.SecretID, cfg.SecretKey), nil
}

func newCOSStorage(bucketURL *url.URL, secretID, secretKey string) *COSStorage {
	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  secretID,
			SecretKey: secretKey,
		},
	})
	return &COSStorage{client: client, bucketURL: bucketURL}
}

// Upload uploads data from reader to the specified key.
func (s *COSStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	k, err := CleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.Object.Put(ctx, k, reader, nil); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to upload to COS", err)
	}
	return nil
}

// UploadFile uploads a local file to the specified key.
func (s *COSStorage) UploadFile(ctx context.Context, key string, localPath string) error {
	k, err := CleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.Object.PutFromFile(ctx, k, localPath, nil); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to upload file to COS", err)
	}
	return nil
}

// Download opens the object at key.
func (s *COSStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	k, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Object.Get(ctx, k, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, "object not found: "+key, err)
		}
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to download from COS", err)
	}
	return resp.Body, nil
}

// Delete deletes the object at the specified key.
func (s *COSStorage) Delete(ctx context.Context, key string) error {
	k, err := CleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.Object.Delete(ctx, k, nil); err != nil && !cos.IsNotFoundError(err) {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to delete from COS", err)
	}
	return nil
}

// Exists checks if an object exists at the specified key.
func (s *COSStorage) Exists(ctx context.Context, key string) (bool, error) {
	k, err := CleanKey(key)
	if err != nil {
		return false, err
	}
	ok, err := s.client.Object.IsExist(ctx, k)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeStorageError, "failed to check existence in COS", err)
	}
	return ok, nil
}

// GetURL returns the public URL for the specified key.
func (s *COSStorage) GetURL(key string) string {
	k, err := CleanKey(key)
	if err != nil {
		return ""
	}
	return s.bucketURL.String() + "/" + k
}

var _ Storage = (*COSStorage)(nil)
