// Package compression wraps dataset and result streams in gzip or zstd.
package compression

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Type represents the compression algorithm used.
type Type uint8

const (
	// TypeNone represents no compression
	TypeNone Type = iota
	// TypeGzip uses gzip compression
	TypeGzip
	// TypeZstd uses zstd compression
	TypeZstd
)

// String returns the algorithm name.
func (t Type) String() string {
	switch t {
	case TypeGzip:
		return "gzip"
	case TypeZstd:
		return "zstd"
	default:
		return "none"
	}
}

// Ext returns the conventional file suffix, including the dot.
func (t Type) Ext() string {
	switch t {
	case TypeGzip:
		return ".gz"
	case TypeZstd:
		return ".zst"
	default:
		return ""
	}
}

// Level represents the compression level.
type Level int

const (
	// LevelFastest prioritizes speed over compression ratio
	LevelFastest Level = 1
	// LevelDefault balances speed and compression ratio
	LevelDefault Level = 3
	// LevelBest prioritizes compression ratio over speed
	LevelBest Level = 9
)

// ParseType maps a name ("gzip", "gz", "zstd", "zst", "none") to a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "none":
		return TypeNone, nil
	case "gzip", "gz":
		return TypeGzip, nil
	case "zstd", "zst":
		return TypeZstd, nil
	default:
		return TypeNone, fmt.Errorf("unknown compression type: %q", s)
	}
}

// TypeFromPath infers the compression from a file suffix.
func TypeFromPath(path string) Type {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return TypeGzip
	case ".zst", ".zstd":
		return TypeZstd
	default:
		return TypeNone
	}
}

// TrimExt strips a compression suffix, so "retail.dat.gz" becomes
// "retail.dat".
func TrimExt(path string) string {
	if TypeFromPath(path) == TypeNone {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// DetectType detects the compression type from magic bytes.
func DetectType(header []byte) Type {
	if len(header) >= 4 && header[0] == 0x28 && header[1] == 0xb5 && header[2] == 0x2f && header[3] == 0xfd {
		return TypeZstd
	}
	if len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b {
		return TypeGzip
	}
	return TypeNone
}

// NewReader sniffs the first bytes of r and returns a reader yielding the
// decompressed stream together with the detected type.
func NewReader(r io.Reader) (io.ReadCloser, Type, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(4)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, TypeNone, fmt.Errorf("failed to read header: %w", err)
	}

	t := DetectType(header)
	switch t {
	case TypeGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, t, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, t, nil
	case TypeZstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, t, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return dec.IOReadCloser(), t, nil
	default:
		return io.NopCloser(br), t, nil
	}
}

// NewWriter wraps w in a compressing writer. Close flushes the compressed
// stream but does not close w.
func NewWriter(w io.Writer, t Type, level Level) (io.WriteCloser, error) {
	switch t {
	case TypeGzip:
		gzLevel := gzip.DefaultCompression
		switch level {
		case LevelFastest:
			gzLevel = gzip.BestSpeed
		case LevelBest:
			gzLevel = gzip.BestCompression
		}
		gz, err := gzip.NewWriterLevel(w, gzLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		return gz, nil
	case TypeZstd:
		zLevel := zstd.SpeedDefault
		switch level {
		case LevelFastest:
			zLevel = zstd.SpeedFastest
		case LevelBest:
			zLevel = zstd.SpeedBestCompression
		}
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zLevel))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return enc, nil
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Compress compresses data in one shot.
func Compress(data []byte, t Type, level Level) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, t, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write %s data: %w", t, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s writer: %w", t, err)
	}
	return buf.Bytes(), nil
}

// AutoDecompress detects the compression type and decompresses data.
// Uncompressed input is returned unchanged.
func AutoDecompress(data []byte) ([]byte, error) {
	r, _, err := NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
