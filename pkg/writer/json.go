// Package writer encodes result documents as JSON, optionally compressed.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/panda-miner/pkg/compression"
)

// JSONWriter writes values of T as JSON, through the configured
// compression.
type JSONWriter[T any] struct {
	// Indent specifies the indentation for pretty printing.
	// Empty string means compact output.
	Indent string
	// Compression wraps the JSON stream. TypeNone writes plain JSON.
	Compression compression.Type
	Level       compression.Level
}

// NewJSONWriter creates a new JSON writer with compact, uncompressed output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Level: compression.LevelDefault}
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  ", Level: compression.LevelDefault}
}

// NewCompressedJSONWriter creates a compact JSON writer wrapped in t.
func NewCompressedJSONWriter[T any](t compression.Type) *JSONWriter[T] {
	return &JSONWriter[T]{Compression: t, Level: compression.LevelDefault}
}

// ForPath returns a writer whose compression matches the suffix of path:
// ".gz" selects gzip, ".zst" zstd, anything else plain pretty JSON.
func ForPath[T any](path string) *JSONWriter[T] {
	t := compression.TypeFromPath(path)
	if t == compression.TypeNone {
		return NewPrettyJSONWriter[T]()
	}
	return NewCompressedJSONWriter[T](t)
}

// Write writes the data as JSON to the writer.
func (w *JSONWriter[T]) Write(data T, writer io.Writer) error {
	cw, err := compression.NewWriter(writer, w.Compression, w.Level)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cw)
	if w.Indent != "" {
		encoder.SetIndent("", w.Indent)
	}
	if err := encoder.Encode(data); err != nil {
		cw.Close()
		return fmt.Errorf("failed to encode data: %w", err)
	}
	return cw.Close()
}

// WriteToFile writes the data to a file, creating parent directories.
func (w *JSONWriter[T]) WriteToFile(data T, path string) error {
	_, err := w.WriteToFileWithStats(data, path)
	return err
}

// WriteResult contains statistics about the written file.
type WriteResult struct {
	Path           string
	Compression    compression.Type
	CompressedSize int64
}

// WriteToFileWithStats writes the file and reports its on-disk size.
func (w *JSONWriter[T]) WriteToFileWithStats(data T, path string) (*WriteResult, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := w.Write(data, file); err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	return &WriteResult{Path: path, Compression: w.Compression, CompressedSize: info.Size()}, nil
}

// Read decodes a JSON document of T, detecting the compression from the
// stream itself.
func Read[T any](r io.Reader) (T, error) {
	var out T
	rc, _, err := compression.NewReader(r)
	if err != nil {
		return out, err
	}
	defer rc.Close()

	if err := json.NewDecoder(rc).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode data: %w", err)
	}
	return out, nil
}

// ReadFile decodes a JSON document of T from path.
func ReadFile[T any](path string) (T, error) {
	file, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return Read[T](file)
}
