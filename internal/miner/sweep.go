package miner

import (
	"context"
	"fmt"
	"sort"

	"github.com/panda-miner/internal/dataset"
	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/parallel"
	"github.com/panda-miner/pkg/tiling"
)

// SweepOptions is the grid explored by Sweep.
type SweepOptions struct {
	RowNoise    []float64
	ColumnNoise []float64
	// Workers bounds the number of concurrent runs.
	Workers int
	// Base supplies budget, cost model and timeout for every grid point.
	Base model.MiningParams
}

// GridPoint is one (row noise, column noise) pair.
type GridPoint struct {
	MaxRowNoise    float64
	MaxColumnNoise float64
}

// Grid returns the cartesian product of the row and column grids, with
// duplicates removed. An empty axis contributes a single zero.
func (o SweepOptions) Grid() []GridPoint {
	rows, cols := o.RowNoise, o.ColumnNoise
	if len(rows) == 0 {
		rows = []float64{0}
	}
	if len(cols) == 0 {
		cols = []float64{0}
	}

	seen := make(map[GridPoint]struct{}, len(rows)*len(cols))
	grid := make([]GridPoint, 0, len(rows)*len(cols))
	for _, r := range rows {
		for _, c := range cols {
			p := GridPoint{MaxRowNoise: r, MaxColumnNoise: c}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			grid = append(grid, p)
		}
	}
	return grid
}

// Sweep mines ds once per grid point in parallel and ranks the outcomes by
// final cost, lowest first. Failed points are kept, ranked last, with their
// error message. Each run owns its search state; the dataset is shared
// read-only.
func Sweep(ctx context.Context, m Miner, ds *dataset.Dataset, opts SweepOptions) (*model.SweepResult, error) {
	grid := opts.Grid()
	for _, p := range grid {
		if err := tiling.ValidateNoise(p.MaxRowNoise, p.MaxColumnNoise); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidInput,
				fmt.Sprintf("sweep point (%v, %v)", p.MaxRowNoise, p.MaxColumnNoise), err)
		}
	}

	pool := parallel.NewWorkerPool[GridPoint, *model.MiningResult](
		parallel.DefaultPoolConfig().WithWorkers(opts.Workers))
	runs := pool.ExecuteFunc(ctx, grid, func(ctx context.Context, p GridPoint) (*model.MiningResult, error) {
		params := opts.Base
		params.MaxRowNoise = p.MaxRowNoise
		params.MaxColumnNoise = p.MaxColumnNoise
		return m.Mine(ctx, ds, params)
	})

	out := &model.SweepResult{
		Dataset: ds.Summary(),
		Entries: make([]model.SweepEntry, 0, len(runs)),
	}
	for _, run := range runs {
		entry := model.SweepEntry{
			MaxRowNoise:    run.Input.MaxRowNoise,
			MaxColumnNoise: run.Input.MaxColumnNoise,
		}
		if run.Result != nil {
			entry.Patterns = len(run.Result.Patterns)
			entry.FinalCost = run.Result.FinalCost
			entry.Coverage = run.Result.Coverage()
			entry.StopReason = run.Result.StopReason
		}
		if run.Error != nil {
			entry.Error = run.Error.Error()
		}
		out.Entries = append(out.Entries, entry)
	}
	RankEntries(out.Entries)

	if err := ctx.Err(); err != nil {
		return out, classify(err)
	}
	return out, nil
}

// RankEntries orders successful entries by final cost, then by fewer
// patterns, then by lower noise. Failed entries go last.
func RankEntries(entries []model.SweepEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.Error == "") != (b.Error == "") {
			return a.Error == ""
		}
		if a.FinalCost != b.FinalCost {
			return a.FinalCost < b.FinalCost
		}
		if a.Patterns != b.Patterns {
			return a.Patterns < b.Patterns
		}
		if a.MaxRowNoise != b.MaxRowNoise {
			return a.MaxRowNoise < b.MaxRowNoise
		}
		return a.MaxColumnNoise < b.MaxColumnNoise
	})
}
