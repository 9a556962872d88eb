package tiling

import (
	"context"
	"fmt"
)

// FindCore seeds a core pattern from the first row of the frequency sorted
// residual dataset. The seed is that row's most frequent item together with
// every residual transaction containing it. The remaining items of the row
// are tried in order: the candidate adds the item and drops every residual
// transaction containing it. A candidate that does not cost more replaces the
// core, otherwise the item is deferred to the returned queue in first-row
// order.
//
// The residual dataset must hold at least one item.
func FindCore[T comparable](state *ResultState[T]) (*Pattern[T], *ItemQueue[T]) {
	queue := &ItemQueue[T]{}
	state.SortResidualDataset()

	core := NewPattern[T](nil)
	if state.Residual.Len() == 0 || state.Residual.Transactions[0].Len() == 0 {
		return core, queue
	}

	firstRow := state.Residual.Transactions[0].Items
	seed := firstRow[0]
	core.AddItem(seed)
	for _, tr := range state.Residual.Transactions {
		if tr.Includes(seed) {
			core.AddTransaction(tr.TrID)
		}
	}

	currentCost := state.TryAddPattern(core)

	for _, item := range firstRow[1:] {
		if core.HasItem(item) {
			continue
		}
		candidate := core.Clone()
		candidate.AddItem(item)
		for _, tr := range state.Residual.Transactions {
			if tr.Includes(item) {
				candidate.RemoveTransaction(tr.TrID)
			}
		}

		if cost := state.TryAddPattern(candidate); cost <= currentCost {
			core = candidate
			currentCost = cost
		} else {
			queue.Push(item)
		}
	}

	return core, queue
}

// ExtendCore grows core until a fixed point. Each round first tries every
// transaction of the original dataset not yet covered, then pops deferred
// items until one is accepted. A candidate is accepted when it passes
// NotTooNoisy against the original dataset and does not increase the cost.
// Rejected items are dropped from the queue for good.
func ExtendCore[T comparable](state *ResultState[T], core *Pattern[T], queue *ItemQueue[T], maxRowNoise, maxColumnNoise float64) *Pattern[T] {
	if queue == nil {
		queue = &ItemQueue[T]{}
	}
	index := state.Index()

	for addedItem := true; addedItem; {
		currentCost := state.TryAddPattern(core)

		for trID := 0; trID < state.Dataset.Len(); trID++ {
			if core.HasTransaction(trID) {
				continue
			}
			candidate := core.Clone()
			candidate.AddTransaction(trID)

			if !index.NotTooNoisy(candidate, maxRowNoise, maxColumnNoise) {
				continue
			}
			if cost := state.TryAddPattern(candidate); cost <= currentCost {
				core = candidate
				currentCost = cost
			}
		}

		addedItem = false

		for queue.Len() > 0 {
			item, _ := queue.Pop()
			candidate := core.Clone()
			if !candidate.AddItem(item) {
				continue
			}

			if !index.NotTooNoisy(candidate, maxRowNoise, maxColumnNoise) {
				continue
			}
			if cost := state.TryAddPattern(candidate); cost <= currentCost {
				core = candidate
				addedItem = true
				break
			}
		}
	}

	return core
}

// StopReason tells why Run returned.
type StopReason int

const (
	// StopBudget means the pattern budget was used up.
	StopBudget StopReason = iota
	// StopNoImprovement means the best extended core would raise the cost.
	StopNoImprovement
	// StopExplained means the residual dataset became empty.
	StopExplained
	// StopEmpty means the dataset had no items to explain.
	StopEmpty
)

func (r StopReason) String() string {
	switch r {
	case StopBudget:
		return "budget_exhausted"
	case StopNoImprovement:
		return "no_improvement"
	case StopExplained:
		return "fully_explained"
	case StopEmpty:
		return "empty_dataset"
	default:
		return "unknown"
	}
}

// Logger receives debug output from Run. utils.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...interface{})
}

// Commit describes one accepted pattern.
type Commit[T comparable] struct {
	Iteration      int
	Pattern        *Pattern[T]
	FalsePositives int
	Cost           float64
	Residual       int
}

// Config controls Run.
type Config[T comparable] struct {
	MaxK           int
	MaxRowNoise    float64
	MaxColumnNoise float64
	// CostModel defaults to SizeCost.
	CostModel CostModel
	Logger    Logger
	// Observer is called after every commit.
	Observer func(Commit[T])
}

// Validate checks the budget and the noise tolerances.
func (c Config[T]) Validate() error {
	if c.MaxK < 0 {
		return ErrInvalidMaxK
	}
	return ValidateNoise(c.MaxRowNoise, c.MaxColumnNoise)
}

// Result is the outcome of Run.
type Result[T comparable] struct {
	Patterns       PatternList[T]
	FalsePositives []int
	Costs          []float64
	InitialCost    float64
	FinalCost      float64
	ResidualCount  int
	Iterations     int
	Reason         StopReason
	Model          string

	// Supports holds, per pattern and in item order, how many transactions
	// of the original dataset contain each item.
	Supports [][]int
	// TotalArea sums the pattern areas; overlapping cells count once per
	// pattern.
	TotalArea int
	// Rows is the number of transactions in the original dataset.
	Rows int
}

// Run executes the PANDA search over dataset. dataset is not modified.
// ctx is checked between iterations; on cancellation the patterns committed
// so far are returned together with the context error.
func Run[T comparable](ctx context.Context, dataset *TransactionList[T], cfg Config[T]) (*Result[T], error) {
	state := NewResultState(dataset, cfg.CostModel)
	res := &Result[T]{
		InitialCost: state.CurrentCost(),
		Reason:      StopBudget,
		Model:       state.Model().Name(),
	}

	if dataset.Len() == 0 || dataset.ElCount == 0 {
		res.Reason = StopEmpty
		return finish(res, state), nil
	}

	for i := 0; i < cfg.MaxK; i++ {
		if err := ctx.Err(); err != nil {
			return finish(res, state), fmt.Errorf("panda: iteration %d: %w", i, err)
		}
		res.Iterations++

		core, queue := FindCore(state)
		core = ExtendCore(state, core, queue, cfg.MaxRowNoise, cfg.MaxColumnNoise)

		cost := state.TryAddPattern(core)
		if state.CurrentCost() < cost {
			if cfg.Logger != nil {
				cfg.Logger.Debug("iteration %d: core %v raises cost %.2f -> %.2f, stopping",
					i, core, state.CurrentCost(), cost)
			}
			res.Reason = StopNoImprovement
			break
		}

		state.AddPattern(core)
		if cfg.Logger != nil {
			cfg.Logger.Debug("iteration %d: committed %dx%d tile, cost %.2f, residual %d",
				i, core.ItemCount(), core.TransactionCount(), cost, state.Residual.ElCount)
		}
		if cfg.Observer != nil {
			fps := state.FalsePositives()
			cfg.Observer(Commit[T]{
				Iteration:      i,
				Pattern:        core,
				FalsePositives: fps[len(fps)-1],
				Cost:           cost,
				Residual:       state.Residual.ElCount,
			})
		}

		if state.Residual.ElCount == 0 {
			res.Reason = StopExplained
			break
		}
	}

	return finish(res, state), nil
}

func finish[T comparable](res *Result[T], state *ResultState[T]) *Result[T] {
	res.Patterns = state.Patterns
	res.FalsePositives = state.FalsePositives()
	res.Costs = state.Costs()
	res.FinalCost = state.CurrentCost()
	res.ResidualCount = state.Residual.ElCount
	res.TotalArea = state.Patterns.TotalArea()

	index := state.Index()
	res.Rows = index.Rows()
	res.Supports = make([][]int, len(state.Patterns))
	for i, p := range state.Patterns {
		support := make([]int, 0, p.ItemCount())
		for _, item := range p.items {
			support = append(support, index.Support(item))
		}
		res.Supports[i] = support
	}
	return res
}

// Panda returns at most maxK patterns that greedily reduce the description
// cost of dataset under the given row and column noise tolerances, using
// SizeCost.
func Panda[T comparable](maxK int, dataset *TransactionList[T], maxRowNoise, maxColumnNoise float64) PatternList[T] {
	res, _ := Run(context.Background(), dataset, Config[T]{
		MaxK:           maxK,
		MaxRowNoise:    maxRowNoise,
		MaxColumnNoise: maxColumnNoise,
	})
	return res.Patterns
}
