package tiling

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abDataset() *TransactionList[string] {
	return newList([]string{"A", "B"}, []string{"A", "B"}, []string{"A", "B"}, []string{"C"})
}

// tiles plants n disjoint 3x5 blocks.
func tiles(n int) *TransactionList[string] {
	l := NewTransactionList[string]()
	for b := 0; b < n; b++ {
		row := []string{string(rune('a' + 3*b)), string(rune('b' + 3*b)), string(rune('c' + 3*b))}
		for r := 0; r < 5; r++ {
			l.AddTransaction(row)
		}
	}
	return l
}

func queueOf[T comparable](items ...T) *ItemQueue[T] {
	q := &ItemQueue[T]{}
	for _, item := range items {
		q.Push(item)
	}
	return q
}

func TestFindCore(t *testing.T) {
	t.Run("dense rows", func(t *testing.T) {
		s := NewResultState(abDataset(), nil)
		core, queue := FindCore(s)

		assert.Equal(t, []string{"A"}, core.Items())
		assert.Equal(t, []int{0, 1, 2}, core.TransactionIDs())
		assert.Equal(t, []string{"B"}, queue.Items())
	})

	t.Run("single transaction", func(t *testing.T) {
		s := NewResultState(newList([]string{"X"}), nil)
		core, queue := FindCore(s)

		assert.Equal(t, []string{"X"}, core.Items())
		assert.Equal(t, []int{0}, core.TransactionIDs())
		assert.Zero(t, queue.Len())

		extended := ExtendCore(s, core, queue, 0, 0)
		assert.Equal(t, []string{"X"}, extended.Items())
		assert.Equal(t, []int{0}, extended.TransactionIDs())
	})

	t.Run("rare item is deferred", func(t *testing.T) {
		ds := newList([]string{"A", "B", "Z"}, []string{"A", "B"}, []string{"A", "B"}, []string{"A", "B"})
		s := NewResultState(ds, nil)
		core, queue := FindCore(s)

		assert.Equal(t, []string{"A"}, core.Items())
		assert.Equal(t, []int{0, 1, 2, 3}, core.TransactionIDs())
		assert.Equal(t, []string{"B", "Z"}, queue.Items())
	})

	t.Run("seed covers every row with the seed item", func(t *testing.T) {
		ds := newList([]string{"A", "B"}, []string{"A", "B"}, []string{"A", "B"}, []string{"A"}, []string{"A"})
		s := NewResultState(ds, nil)
		core, queue := FindCore(s)

		assert.Equal(t, []string{"A"}, core.Items())
		assert.Equal(t, []int{0, 1, 2, 3, 4}, core.TransactionIDs())
		assert.Equal(t, []string{"B"}, queue.Items())
		assert.Zero(t, s.Dataset.CalcPatternFalsePositives(core))
	})

	t.Run("deferred items keep frequency order", func(t *testing.T) {
		ds := newList(
			[]string{"D", "C", "B", "A"},
			[]string{"C", "A", "B"},
			[]string{"B", "A"},
			[]string{"A"},
		)
		s := NewResultState(ds, nil)
		core, queue := FindCore(s)

		assert.Equal(t, []string{"A"}, core.Items())
		assert.Equal(t, []int{0, 1, 2, 3}, core.TransactionIDs())
		assert.Equal(t, []string{"B", "C", "D"}, queue.Items())
	})

	t.Run("empty residual", func(t *testing.T) {
		s := NewResultState(NewTransactionList[string](), nil)
		core, queue := FindCore(s)
		assert.Zero(t, core.ItemCount())
		assert.Zero(t, queue.Len())
	})
}

func TestExtendCore_PopsQueueInOrder(t *testing.T) {
	// Z only fits once B has joined: alone with A the row lacking Z is too
	// sparse.
	ds := newList(
		[]string{"A", "B", "Z"},
		[]string{"A", "B", "Z"},
		[]string{"A", "B", "Z"},
		[]string{"A", "B"},
	)

	t.Run("queue from FindCore", func(t *testing.T) {
		s := NewResultState(ds, nil)
		core, queue := FindCore(s)
		require.Equal(t, []string{"A"}, core.Items())
		require.Equal(t, []string{"B", "Z"}, queue.Items())

		out := ExtendCore(s, core, queue, 0.4, 0.4)
		assert.Equal(t, []string{"A", "B", "Z"}, out.Items())
		assert.Equal(t, 4, out.TransactionCount())
		assert.Equal(t, 8.0, s.TryAddPattern(out))
		assert.Zero(t, queue.Len())
	})

	t.Run("rejected front item is dropped", func(t *testing.T) {
		s := NewResultState(ds, nil)
		core := NewPattern([]string{"A"}, 0, 1, 2, 3)

		out := ExtendCore(s, core, queueOf("Z", "B"), 0.4, 0.4)
		assert.Equal(t, []string{"A", "B"}, out.Items())
		assert.Equal(t, 4, out.TransactionCount())
	})
}

func TestExtendCore_NoiseTolerance(t *testing.T) {
	// Ten rows of {1,2,3}; the last one lacks 3.
	ds := NewTransactionList[int]()
	for i := 0; i < 9; i++ {
		ds.AddTransaction([]int{1, 2, 3})
	}
	ds.AddTransaction([]int{1, 2})

	s := NewResultState(ds, nil)
	core, queue := FindCore(s)
	require.Equal(t, []int{1}, core.Items())
	require.Equal(t, 10, core.TransactionCount())
	require.Equal(t, []int{2, 3}, queue.Items())

	strict := ExtendCore(s, core.Clone(), queueOf(queue.Items()...), 0, 0)
	assert.Equal(t, []int{1, 2}, strict.Items())
	assert.Equal(t, 10, strict.TransactionCount())

	loose := ExtendCore(s, core.Clone(), queueOf(queue.Items()...), 0.4, 0.2)
	assert.Equal(t, []int{1, 2, 3}, loose.Items())
	assert.Equal(t, 10, loose.TransactionCount())
	assert.Equal(t, 1, ds.CalcPatternFalsePositives(loose))
}

func TestExtendCore_AddsDeferredItem(t *testing.T) {
	// Z is rare in the residual seed row but present in most rows once more
	// transactions join the tile.
	ds := newList(
		[]string{"A", "B", "Z"},
		[]string{"A", "B", "Z"},
		[]string{"A", "B", "Z"},
		[]string{"A", "B"},
		[]string{"A", "B"},
		[]string{"A", "B", "Z"},
	)
	s := NewResultState(ds, nil)
	core := NewPattern([]string{"A", "B"}, 0, 1, 2, 3, 4, 5)
	queue := &ItemQueue[string]{}
	queue.Push("Z")

	out := ExtendCore(s, core, queue, 0.34, 0.34)

	assert.Equal(t, []string{"A", "B", "Z"}, out.Items())
	assert.Equal(t, 6, out.TransactionCount())
	assert.LessOrEqual(t, s.TryAddPattern(out), s.TryAddPattern(core))
}

func TestExtendCore_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 40; i++ {
		ds := randomList(rng, 30, 10, 0.45)
		if ds.ElCount == 0 {
			continue
		}
		row, col := rng.Float64()*0.5, rng.Float64()*0.5
		s := NewResultState(ds, nil)

		core, queue := FindCore(s)
		before := s.TryAddPattern(core)
		out := ExtendCore(s, core, queue, row, col)

		assert.LessOrEqual(t, s.TryAddPattern(out), before, "extension must not raise cost")
		assert.True(t, NotTooNoisy(ds, out, row, col), "extended core must satisfy noise bounds")
	}
}

func TestPanda_Scenarios(t *testing.T) {
	t.Run("three AB rows and a C row", func(t *testing.T) {
		ds := abDataset()
		res, err := Run(context.Background(), ds, Config[string]{MaxK: 2})
		require.NoError(t, err)

		require.Len(t, res.Patterns, 1)
		assert.Equal(t, []string{"A", "B"}, res.Patterns[0].Items())
		assert.Equal(t, []int{0, 1, 2}, res.Patterns[0].TransactionIDs())
		assert.Equal(t, StopNoImprovement, res.Reason)
		assert.Equal(t, 1, res.ResidualCount, "C stays unexplained")
		assert.Equal(t, 7.0, res.InitialCost)
		assert.Equal(t, 6.0, res.FinalCost)
		assert.Equal(t, []float64{6}, res.Costs)
		assert.Equal(t, []int{0}, res.FalsePositives)
		assert.Equal(t, [][]int{{3, 3}}, res.Supports)
		assert.Equal(t, 6, res.TotalArea)
		assert.Equal(t, 4, res.Rows)

		assert.Len(t, Panda(2, ds, 0, 0), 1)
	})

	t.Run("single transaction", func(t *testing.T) {
		assert.Empty(t, Panda(5, newList([]string{"X"}), 0, 0))
	})

	t.Run("zero rows", func(t *testing.T) {
		res, err := Run(context.Background(), NewTransactionList[string](), Config[string]{MaxK: 3})
		require.NoError(t, err)
		assert.Empty(t, res.Patterns)
		assert.Equal(t, StopEmpty, res.Reason)
		assert.Zero(t, res.Iterations)
	})

	t.Run("rows without items", func(t *testing.T) {
		assert.Empty(t, Panda(3, newList[string](nil, nil), 0, 0))
	})

	t.Run("zero budget", func(t *testing.T) {
		res, err := Run(context.Background(), abDataset(), Config[string]{})
		require.NoError(t, err)
		assert.Empty(t, res.Patterns)
		assert.Equal(t, StopBudget, res.Reason)
		assert.Empty(t, Panda(-1, abDataset(), 0, 0))
	})
}

func TestPanda_Budget(t *testing.T) {
	ds := tiles(3)

	res, err := Run(context.Background(), ds, Config[string]{MaxK: 2})
	require.NoError(t, err)
	assert.Len(t, res.Patterns, 2)
	assert.Equal(t, StopBudget, res.Reason)
	assert.Equal(t, []string{"a", "b", "c"}, res.Patterns[0].Items())
	assert.Equal(t, []string{"d", "e", "f"}, res.Patterns[1].Items())

	res, err = Run(context.Background(), ds, Config[string]{MaxK: 10})
	require.NoError(t, err)
	assert.Len(t, res.Patterns, 3)
	assert.Equal(t, StopExplained, res.Reason)
	assert.Zero(t, res.ResidualCount)
	assert.Equal(t, 3*(3+5.0), res.FinalCost)
}

func TestPanda_NoisyTile(t *testing.T) {
	ds := NewTransactionList[int]()
	for i := 0; i < 9; i++ {
		ds.AddTransaction([]int{1, 2, 3})
	}
	ds.AddTransaction([]int{1, 2})

	strict, err := Run(context.Background(), ds, Config[int]{MaxK: 5})
	require.NoError(t, err)
	require.Len(t, strict.Patterns, 1)
	assert.Equal(t, []int{1, 2}, strict.Patterns[0].Items())
	assert.Equal(t, 10, strict.Patterns[0].TransactionCount())
	assert.Equal(t, StopNoImprovement, strict.Reason)
	assert.Equal(t, 21.0, strict.FinalCost)
	assert.Equal(t, 9, strict.ResidualCount)

	loose, err := Run(context.Background(), ds, Config[int]{MaxK: 5, MaxRowNoise: 0.4, MaxColumnNoise: 0.4})
	require.NoError(t, err)
	require.Len(t, loose.Patterns, 1)
	assert.Equal(t, 10, loose.Patterns[0].TransactionCount())
	assert.Equal(t, StopExplained, loose.Reason)
	assert.Equal(t, []int{1}, loose.FalsePositives)
	assert.Equal(t, 14.0, loose.FinalCost)
}

func TestPanda_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 30; i++ {
		ds := randomList(rng, 40, 12, 0.35)
		maxK := 1 + rng.Intn(6)
		row, col := rng.Float64()*0.5, rng.Float64()*0.5
		elCount := ds.ElCount

		var residuals []int
		res, err := Run(context.Background(), ds, Config[int]{
			MaxK:           maxK,
			MaxRowNoise:    row,
			MaxColumnNoise: col,
			Observer: func(c Commit[int]) {
				residuals = append(residuals, c.Residual)
			},
		})
		require.NoError(t, err)

		assert.LessOrEqual(t, len(res.Patterns), maxK)
		assert.LessOrEqual(t, res.FinalCost, res.InitialCost)
		assert.Equal(t, elCount, ds.ElCount, "input dataset must not change")
		for _, p := range res.Patterns {
			assert.True(t, NotTooNoisy(ds, p, row, col))
		}
		prev := elCount
		for _, r := range residuals {
			assert.Less(t, r, prev, "each commit must shrink the residual")
			prev = r
		}
	}
}

func TestPanda_TypedCost(t *testing.T) {
	ds := tiles(2)
	model, err := NewCostModel(CostModelTyped, ds)
	require.NoError(t, err)

	res, err := Run(context.Background(), ds, Config[string]{MaxK: 5, CostModel: model})
	require.NoError(t, err)
	assert.Equal(t, CostModelTyped, res.Model)
	assert.Len(t, res.Patterns, 2)
	assert.Less(t, res.FinalCost, res.InitialCost)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, tiles(2), Config[string]{MaxK: 5})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Patterns)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config[int]{MaxK: 3, MaxRowNoise: 0.2}.Validate())
	assert.ErrorIs(t, Config[int]{MaxK: -1}.Validate(), ErrInvalidMaxK)
	assert.ErrorIs(t, Config[int]{MaxColumnNoise: 1}.Validate(), ErrInvalidNoise)
}

func TestStopReason_String(t *testing.T) {
	assert.Equal(t, "budget_exhausted", StopBudget.String())
	assert.Equal(t, "no_improvement", StopNoImprovement.String())
	assert.Equal(t, "fully_explained", StopExplained.String())
	assert.Equal(t, "empty_dataset", StopEmpty.String())
	assert.Equal(t, "unknown", StopReason(99).String())
}
