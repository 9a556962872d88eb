package dataset

import (
	"bufio"
	"context"
	"io"
	"strings"

	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
)

// maxLineSize bounds a single basket line.
const maxLineSize = 16 << 20

// BasketParser reads the FIMI layout: one transaction per line, items
// separated by whitespace or commas, '#' starting a comment.
type BasketParser struct {
	opts *ParserOptions
}

// NewBasketParser creates a basket parser.
func NewBasketParser(opts *ParserOptions) *BasketParser {
	if opts == nil {
		opts = DefaultParserOptions()
	}
	return &BasketParser{opts: opts}
}

// Format implements Parser.
func (p *BasketParser) Format() model.DatasetFormat { return model.FormatBasket }

// Parse implements Parser.
func (p *BasketParser) Parse(ctx context.Context, r io.Reader) (*Dataset, error) {
	b := newBuilder(p.opts)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNum := 0

	for scanner.Scan() {
		if lineNum%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		lineNum++

		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			if strings.TrimSpace(line[:i]) == "" {
				continue
			}
			line = line[:i]
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\r'
		})
		if !b.add(fields) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return nil, parseError(lineNum+1, "line exceeds 16MiB")
		}
		return nil, apperrors.Wrap(apperrors.CodeDatasetParse, "failed to read basket data", err)
	}

	return b.dataset(model.FormatBasket), nil
}
