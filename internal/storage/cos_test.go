package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panda-miner/pkg/config"
	apperrors "github.com/panda-miner/pkg/errors"
)

func TestNewCOSStorage_Validation(t *testing.T) {
	tests := []struct {
		name   string
		cfg    COSConfig
		errMsg string
	}{
		{"MissingBucket", COSConfig{Region: "ap-guangzhou", SecretID: "id", SecretKey: "key"}, "bucket and region are required"},
		{"MissingRegion", COSConfig{Bucket: "b", SecretID: "id", SecretKey: "key"}, "bucket and region are required"},
		{"MissingCredentials", COSConfig{Bucket: "b", Region: "ap-guangzhou"}, "credentials are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewCOSStorage(&tt.cfg)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCOSStorage_GetURL(t *testing.T) {
	s, err := NewCOSStorage(&COSConfig{
		Bucket:    "datasets-1250000000",
		Region:    "ap-guangzhou",
		SecretID:  "id",
		SecretKey: "key",
	})
	require.NoError(t, err)

	assert.Equal(t,
		"https://datasets-1250000000.cos.ap-guangzhou.myqcloud.com/retail/retail.dat.gz",
		s.GetURL("/retail/retail.dat.gz"))
}

// fakeBucket is an in-memory object store speaking just enough of the COS
// REST API for Put, Get, Head and Delete.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		b.objects[key] = data
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := b.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				io.WriteString(w, `<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(data)
		}
	case http.MethodDelete:
		delete(b.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeCOS(t *testing.T) (*COSStorage, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: make(map[string][]byte)}
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	s := newCOSStorage(u, "id", "key")
	s.client.Conf.EnableCRC = false
	return s, bucket
}

func TestCOSStorage_RoundTrip(t *testing.T) {
	s, bucket := newFakeCOS(t)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "retail/retail.dat", strings.NewReader("1 2\n")))
	assert.Equal(t, []byte("1 2\n"), bucket.objects["retail/retail.dat"])

	ok, err := s.Exists(ctx, "retail/retail.dat")
	require.NoError(t, err)
	assert.True(t, ok)

	r, err := s.Download(ctx, "retail/retail.dat")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	assert.Equal(t, "1 2\n", string(data))

	require.NoError(t, s.Delete(ctx, "retail/retail.dat"))
	ok, err = s.Exists(ctx, "retail/retail.dat")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCOSStorage_DownloadMissing(t *testing.T) {
	s, _ := newFakeCOS(t)

	_, err := s.Download(context.Background(), "missing.dat")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestNewStorage(t *testing.T) {
	t.Run("Local", func(t *testing.T) {
		s, err := NewStorage(&config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, s)
	})

	t.Run("DefaultsToLocal", func(t *testing.T) {
		s, err := NewStorage(&config.StorageConfig{LocalPath: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, s)
	})

	t.Run("COS", func(t *testing.T) {
		s, err := NewStorage(&config.StorageConfig{
			Type:      "cos",
			Bucket:    "b",
			Region:    "ap-shanghai",
			SecretID:  "id",
			SecretKey: "key",
		})
		require.NoError(t, err)
		assert.IsType(t, &COSStorage{}, s)
	})
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *config.StorageConfig
		errMsg string
	}{
		{"Nil", nil, "storage config is nil"},
		{"Unsupported", &config.StorageConfig{Type: "s3"}, "unsupported storage type"},
		{"LocalNoPath", &config.StorageConfig{Type: "local"}, "local storage path is required"},
		{"COSNoBucket", &config.StorageConfig{Type: "cos", Region: "r", SecretID: "i", SecretKey: "k"}, "COS bucket is required"},
		{"COSNoRegion", &config.StorageConfig{Type: "cos", Bucket: "b", SecretID: "i", SecretKey: "k"}, "COS region is required"},
		{"COSNoCreds", &config.StorageConfig{Type: "cos", Bucket: "b", Region: "r"}, "COS credentials are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
		})
	}
}
