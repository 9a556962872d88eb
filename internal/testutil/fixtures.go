// Package testutil provides dataset fixtures for tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/panda-miner/pkg/compression"
)

// Groceries is a small basket dataset with one dominant tile
// {bread milk eggs} over the first three transactions.
const Groceries = "bread milk eggs\nbread milk eggs\nbread milk eggs\nbread milk\nbeer chips\nbeer chips\n"

// Tile returns n transactions that all contain items.
func Tile(n int, items ...string) [][]string {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = append([]string(nil), items...)
	}
	return rows
}

// Concat joins groups of transactions in order.
func Concat(groups ...[][]string) [][]string {
	var rows [][]string
	for _, g := range groups {
		rows = append(rows, g...)
	}
	return rows
}

// Basket renders transactions in FIMI basket layout.
func Basket(rows [][]string) string {
	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(strings.Join(row, " "))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Matrix renders transactions as a 0/1 CSV whose header lists the items in
// first-seen order.
func Matrix(rows [][]string) string {
	var columns []string
	index := make(map[string]int)
	for _, row := range rows {
		for _, item := range row {
			if _, ok := index[item]; !ok {
				index[item] = len(columns)
				columns = append(columns, item)
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(columns, ","))
	sb.WriteByte('\n')
	cells := make([]string, len(columns))
	for _, row := range rows {
		for i := range cells {
			cells[i] = "0"
		}
		for _, item := range row {
			cells[index[item]] = "1"
		}
		sb.WriteString(strings.Join(cells, ","))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// WriteFile writes content to name inside a fresh temp directory, compressed
// as the name's suffix says, and returns the path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	data := []byte(content)
	if typ := compression.TypeFromPath(name); typ != compression.TypeNone {
		var err error
		data, err = compression.Compress(data, typ, compression.LevelDefault)
		if err != nil {
			t.Fatalf("failed to compress fixture %s: %v", name, err)
		}
	}

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
	return path
}
