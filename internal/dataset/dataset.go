// Package dataset loads transaction datasets into the tiling core.
package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/panda-miner/pkg/compression"
	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/tiling"
)

// Dataset is a parsed transaction-by-item table.
type Dataset struct {
	Name         string
	Format       model.DatasetFormat
	Compression  compression.Type
	Transactions *tiling.TransactionList[string]
	// Items lists the distinct items in first-seen order.
	Items []string
}

// Summary describes the shape of the dataset.
func (d *Dataset) Summary() model.DatasetSummary {
	s := model.DatasetSummary{
		Name:         d.Name,
		Transactions: d.Transactions.Len(),
		Items:        len(d.Items),
		Elements:     d.Transactions.ElCount,
	}
	if cells := s.Transactions * s.Items; cells > 0 {
		s.Density = float64(s.Elements) / float64(cells)
	}
	return s
}

// Parser turns a decompressed stream into a Dataset.
type Parser interface {
	Parse(ctx context.Context, r io.Reader) (*Dataset, error)
	Format() model.DatasetFormat
}

// ParserOptions holds options shared by all parsers.
type ParserOptions struct {
	// StrictMode fails on malformed lines instead of skipping them.
	StrictMode bool
	// MaxTransactions stops reading after this many rows; 0 means no limit.
	MaxTransactions int
	// KeepEmpty keeps rows without items. They still occupy a TrID.
	KeepEmpty bool
}

// DefaultParserOptions returns default parser options.
func DefaultParserOptions() *ParserOptions {
	return &ParserOptions{}
}

// NewParser returns the parser for format.
func NewParser(format model.DatasetFormat, opts *ParserOptions) Parser {
	if opts == nil {
		opts = DefaultParserOptions()
	}
	if format == model.FormatMatrix {
		return NewMatrixParser(opts)
	}
	return NewBasketParser(opts)
}

// FormatFromPath infers the layout from the file name, looking through a
// compression suffix: "retail.dat.gz" is a basket, "zoo.csv.zst" a matrix.
func FormatFromPath(path string) model.DatasetFormat {
	return model.ParseDatasetFormat(filepath.Ext(compression.TrimExt(path)))
}

// Read decompresses r if needed and parses it with the parser for format.
func Read(ctx context.Context, r io.Reader, name string, format model.DatasetFormat, opts *ParserOptions) (*Dataset, error) {
	rc, ctype, err := compression.NewReader(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatasetParse, "failed to open dataset stream", err)
	}
	defer rc.Close()

	ds, err := NewParser(format, opts).Parse(ctx, rc)
	if err != nil {
		return nil, err
	}
	ds.Name = name
	ds.Compression = ctype

	if ds.Transactions.Len() == 0 || ds.Transactions.ElCount == 0 {
		return ds, apperrors.New(apperrors.CodeEmptyDataset, fmt.Sprintf("dataset %q has no items", name))
	}
	return ds, nil
}

// Load opens path and parses it. An empty format is inferred from the file
// name.
func Load(ctx context.Context, path string, format model.DatasetFormat, opts *ParserOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, "dataset not found: "+path, err)
		}
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "failed to open dataset", err)
	}
	defer f.Close()

	if format == "" {
		format = FormatFromPath(path)
	}
	return Read(ctx, f, filepath.Base(path), format, opts)
}

// builder accumulates rows and the first-seen item order.
type builder struct {
	opts  *ParserOptions
	list  *tiling.TransactionList[string]
	seen  map[string]struct{}
	items []string
}

func newBuilder(opts *ParserOptions) *builder {
	return &builder{
		opts: opts,
		list: tiling.NewTransactionList[string](),
		seen: make(map[string]struct{}),
	}
}

// add appends one row with duplicates removed. It reports false once the
// row limit is reached.
func (b *builder) add(row []string) bool {
	if b.opts.MaxTransactions > 0 && b.list.Len() >= b.opts.MaxTransactions {
		return false
	}
	if len(row) == 0 && !b.opts.KeepEmpty {
		return true
	}

	uniq := row[:0:0]
	inRow := make(map[string]struct{}, len(row))
	for _, item := range row {
		if _, dup := inRow[item]; dup {
			continue
		}
		inRow[item] = struct{}{}
		uniq = append(uniq, item)
		if _, ok := b.seen[item]; !ok {
			b.seen[item] = struct{}{}
			b.items = append(b.items, item)
		}
	}
	b.list.AddTransaction(uniq)
	return true
}

func (b *builder) dataset(format model.DatasetFormat) *Dataset {
	return &Dataset{Format: format, Transactions: b.list, Items: b.items}
}

func parseError(line int, msg string) error {
	return apperrors.New(apperrors.CodeDatasetParse, fmt.Sprintf("line %d: %s", line, msg))
}
