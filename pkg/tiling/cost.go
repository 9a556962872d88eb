package tiling

import (
	"fmt"
	"math"
	"strings"
)

// CostModel prices a tiling. The total cost of a pattern set is the sum of
// PatternCost over all patterns plus NoiseCost of every false positive and
// every cell left unexplained in the residual dataset. Both functions must be
// additive in their arguments so that ResultState can update the total
// incrementally.
type CostModel interface {
	Name() string
	PatternCost(items, transactions int) float64
	NoiseCost(cells int) float64
}

// Cost model names accepted by NewCostModel.
const (
	CostModelSize  = "size"
	CostModelTyped = "typed"
)

// SizeCost charges one unit per item and per transaction of a pattern and
// one unit per noisy cell.
type SizeCost struct{}

func (SizeCost) Name() string { return CostModelSize }

func (SizeCost) PatternCost(items, transactions int) float64 {
	return float64(items + transactions)
}

func (SizeCost) NoiseCost(cells int) float64 {
	return float64(cells)
}

// TypedCost charges the bits needed to name each item and transaction of a
// pattern, and the bits of one (item, transaction) coordinate per noisy cell.
type TypedCost struct {
	ItemBits        float64
	TransactionBits float64
}

// NewTypedCost sizes a TypedCost for a dataset with the given number of
// distinct items and transactions.
func NewTypedCost(items, transactions int) TypedCost {
	return TypedCost{
		ItemBits:        bits(items),
		TransactionBits: bits(transactions),
	}
}

func bits(n int) float64 {
	return math.Max(1, math.Log2(float64(n)))
}

func (c TypedCost) Name() string { return CostModelTyped }

func (c TypedCost) PatternCost(items, transactions int) float64 {
	return float64(items)*c.ItemBits + float64(transactions)*c.TransactionBits
}

func (c TypedCost) NoiseCost(cells int) float64 {
	return float64(cells) * (c.ItemBits + c.TransactionBits)
}

// NewCostModel returns the named cost model sized for dataset.
func NewCostModel[T comparable](name string, dataset *TransactionList[T]) (CostModel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CostModelSize:
		return SizeCost{}, nil
	case CostModelTyped:
		return NewTypedCost(len(dataset.ItemsFreq()), dataset.Len()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCostModel, name)
	}
}

// CostModelNames lists the accepted cost model names.
func CostModelNames() []string {
	return []string{CostModelSize, CostModelTyped}
}
