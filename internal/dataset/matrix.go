package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
)

// MatrixParser reads a binary matrix: a CSV header naming the items and one
// 0/1 row per transaction. "true"/"false", "y"/"n" and empty cells are
// also accepted.
type MatrixParser struct {
	opts *ParserOptions
}

// NewMatrixParser creates a matrix parser.
func NewMatrixParser(opts *ParserOptions) *MatrixParser {
	if opts == nil {
		opts = DefaultParserOptions()
	}
	return &MatrixParser{opts: opts}
}

// Format implements Parser.
func (p *MatrixParser) Format() model.DatasetFormat { return model.FormatMatrix }

// Parse implements Parser.
func (p *MatrixParser) Parse(ctx context.Context, r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return newBuilder(p.opts).dataset(model.FormatMatrix), nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatasetParse, "failed to read matrix header", err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, parseError(1, fmt.Sprintf("column %d has no name", i+1))
		}
		columns[i] = name
	}

	b := newBuilder(p.opts)
	row := make([]string, 0, len(columns))
	lineNum := 1

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if lineNum%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && !p.opts.StrictMode {
				continue
			}
			return nil, apperrors.Wrap(apperrors.CodeDatasetParse, "failed to read matrix row", err)
		}

		if len(record) != len(columns) {
			if p.opts.StrictMode {
				return nil, parseError(lineNum, fmt.Sprintf("expected %d cells, got %d", len(columns), len(record)))
			}
			continue
		}

		row = row[:0]
		valid := true
		for i, cell := range record {
			set, ok := parseCell(cell)
			if !ok {
				valid = false
				if p.opts.StrictMode {
					return nil, parseError(lineNum, fmt.Sprintf("column %q: invalid cell %q", columns[i], cell))
				}
				break
			}
			if set {
				row = append(row, columns[i])
			}
		}
		if !valid {
			continue
		}
		if !b.add(row) {
			break
		}
	}

	return b.dataset(model.FormatMatrix), nil
}

func parseCell(s string) (set, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "y", "yes", "x":
		return true, true
	case "0", "false", "f", "n", "no", "":
		return false, true
	default:
		return false, false
	}
}
