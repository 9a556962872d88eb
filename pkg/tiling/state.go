package tiling

// ResultState owns one search: the original dataset, a residual copy with
// committed footprints erased, the committed patterns and the running cost.
//
//	J = Σ PatternCost(|I|,|T|) + NoiseCost(Σ FP + residual.ElCount)
//
// False positives are counted against the original dataset; the residual
// element count stands for the cells no pattern explains.
type ResultState[T comparable] struct {
	Dataset  *TransactionList[T]
	Residual *TransactionList[T]
	Patterns PatternList[T]

	index *Index[T]
	model CostModel
	cost  float64
	fp    []int
	costs []float64
}

// NewResultState starts a search over dataset. A nil model selects SizeCost.
func NewResultState[T comparable](dataset *TransactionList[T], model CostModel) *ResultState[T] {
	if model == nil {
		model = SizeCost{}
	}
	return &ResultState[T]{
		Dataset:  dataset,
		Residual: dataset.Clone(),
		index:    NewIndex(dataset),
		model:    model,
		cost:     model.NoiseCost(dataset.ElCount),
	}
}

// SortResidualDataset reorders the residual list with SortByFreq.
func (s *ResultState[T]) SortResidualDataset() {
	s.Residual.SortByFreq()
}

// TryAddPattern returns the total cost after committing p, without
// committing it. AddPattern(p) leaves the state at exactly this cost.
func (s *ResultState[T]) TryAddPattern(p *Pattern[T]) float64 {
	explained := s.Residual.ElCount - s.Residual.TryRemovePattern(p)
	return s.cost +
		s.model.PatternCost(p.ItemCount(), p.TransactionCount()) +
		s.model.NoiseCost(s.index.FalsePositives(p)) -
		s.model.NoiseCost(explained)
}

// AddPattern commits p and erases its footprint from the residual dataset.
func (s *ResultState[T]) AddPattern(p *Pattern[T]) {
	s.cost = s.TryAddPattern(p)
	s.fp = append(s.fp, s.index.FalsePositives(p))
	s.costs = append(s.costs, s.cost)
	s.Residual.RemovePattern(p)
	s.Patterns = append(s.Patterns, p)
}

// CurrentCost returns the cost of the committed pattern set. With no
// patterns it is the cost of leaving every cell unexplained.
func (s *ResultState[T]) CurrentCost() float64 {
	return s.cost
}

// Index returns the vertical index of the original dataset.
func (s *ResultState[T]) Index() *Index[T] {
	return s.index
}

// Model returns the cost model in use.
func (s *ResultState[T]) Model() CostModel {
	return s.model
}

// FalsePositives returns the false positive count of every committed
// pattern, in commit order.
func (s *ResultState[T]) FalsePositives() []int {
	return s.fp
}

// Costs returns the total cost after every commit, in commit order.
func (s *ResultState[T]) Costs() []float64 {
	return s.costs
}
