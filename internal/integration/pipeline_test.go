package integration

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panda-miner/internal/dataset"
	"github.com/panda-miner/internal/formatter"
	"github.com/panda-miner/internal/miner"
	"github.com/panda-miner/internal/testutil"
	"github.com/panda-miner/pkg/compression"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/utils"
	"github.com/panda-miner/pkg/writer"
)

var (
	tileA = []string{"a1", "a2", "a3", "a4", "a5"}
	tileB = []string{"b1", "b2", "b3", "b4"}
)

// planted holds two disjoint tiles and ten singleton rows.
func planted() [][]string {
	var singles [][]string
	for _, item := range []string{"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7", "x8", "x9"} {
		singles = append(singles, []string{item})
	}
	return testutil.Concat(testutil.Tile(20, tileA...), testutil.Tile(15, tileB...), singles)
}

func span(from, to int) []int {
	ids := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		ids = append(ids, i)
	}
	return ids
}

func TestFullMiningPipeline(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		render func([][]string) string
		format model.DatasetFormat
		ctype  compression.Type
	}{
		{"Basket", "planted.dat", testutil.Basket, model.FormatBasket, compression.TypeNone},
		{"BasketZstd", "planted.dat.zst", testutil.Basket, model.FormatBasket, compression.TypeZstd},
		{"MatrixGzip", "planted.csv.gz", testutil.Matrix, model.FormatMatrix, compression.TypeGzip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			path := testutil.WriteFile(t, tt.file, tt.render(planted()))

			// Step 1: Load the dataset
			ds, err := dataset.Load(ctx, path, "", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.format, ds.Format)
			assert.Equal(t, tt.ctype, ds.Compression)
			assert.Equal(t, 45, ds.Summary().Transactions)
			assert.Equal(t, 19, ds.Summary().Items)
			assert.Equal(t, 170, ds.Summary().Elements)

			// Step 2: Mine
			m := miner.NewPandaMiner(miner.DefaultConfig())
			result, err := m.Mine(ctx, ds, model.MiningParams{})
			require.NoError(t, err)

			require.Len(t, result.Patterns, 2)
			assert.ElementsMatch(t, tileA, result.Patterns[0].Items)
			assert.Equal(t, span(0, 20), result.Patterns[0].Transactions)
			assert.ElementsMatch(t, tileB, result.Patterns[1].Items)
			assert.Equal(t, span(20, 35), result.Patterns[1].Transactions)
			assert.Equal(t, 170.0, result.InitialCost)
			assert.Equal(t, 54.0, result.FinalCost)
			assert.Equal(t, 10, result.ResidualCount)

			// Step 3: Format
			var logs bytes.Buffer
			formatter.NewRegistry().Format(formatter.ViewPatterns, result, utils.NewLogrusLogger(utils.LevelInfo, &logs, "text"))
			assert.Contains(t, logs.String(), "=== Patterns ===")
			assert.Contains(t, logs.String(), "a1")

			// Step 4: Write and read back
			out := filepath.Join(t.TempDir(), "result.json.zst")
			require.NoError(t, writer.ForPath[*model.MiningResult](out).WriteToFile(result, out))
			back, err := writer.ReadFile[*model.MiningResult](out)
			require.NoError(t, err)
			assert.Equal(t, result.Patterns, back.Patterns)
			assert.Equal(t, result.FinalCost, back.FinalCost)
		})
	}
}

func TestMiningPipeline_NoiseTolerance(t *testing.T) {
	ctx := context.Background()
	rows := testutil.Concat(testutil.Tile(9, "a", "b", "c"), testutil.Tile(1, "a", "b"))
	path := testutil.WriteFile(t, "noisy.dat", testutil.Basket(rows))

	ds, err := dataset.Load(ctx, path, "", nil)
	require.NoError(t, err)
	m := miner.NewPandaMiner(miner.DefaultConfig())

	strict, err := m.Mine(ctx, ds, model.MiningParams{MaxK: 5})
	require.NoError(t, err)
	require.Len(t, strict.Patterns, 1)
	assert.Equal(t, []string{"a", "b"}, strict.Patterns[0].Items)
	assert.Len(t, strict.Patterns[0].Transactions, 10)
	assert.Zero(t, strict.Patterns[0].FalsePositives)
	assert.Equal(t, 9, strict.ResidualCount)

	loose, err := m.Mine(ctx, ds, model.MiningParams{MaxK: 5, MaxRowNoise: 0.4, MaxColumnNoise: 0.4})
	require.NoError(t, err)
	require.Len(t, loose.Patterns, 1)
	assert.Len(t, loose.Patterns[0].Transactions, 10)
	assert.Equal(t, 1, loose.Patterns[0].FalsePositives)
	assert.Zero(t, loose.ResidualCount)
}

func TestSweepPipeline(t *testing.T) {
	ctx := context.Background()
	rows := testutil.Concat(testutil.Tile(9, "a", "b", "c"), testutil.Tile(1, "a", "b"))
	ds, err := dataset.Load(ctx, testutil.WriteFile(t, "noisy.dat", testutil.Basket(rows)), "", nil)
	require.NoError(t, err)

	sweep, err := miner.Sweep(ctx, miner.NewPandaMiner(miner.DefaultConfig()), ds, miner.SweepOptions{
		RowNoise:    []float64{0, 0.4},
		ColumnNoise: []float64{0, 0.4},
		Workers:     2,
		Base:        model.MiningParams{MaxK: 5},
	})
	require.NoError(t, err)
	require.Len(t, sweep.Entries, 4)

	best, ok := sweep.Best()
	require.True(t, ok)
	for _, e := range sweep.Entries {
		assert.Empty(t, e.Error)
		assert.LessOrEqual(t, best.FinalCost, e.FinalCost)
	}

	var logs bytes.Buffer
	formatter.FormatSweep(sweep, utils.NewLogrusLogger(utils.LevelInfo, &logs, "text"))
	assert.Contains(t, logs.String(), "Best:")
}
