package tiling

import "math"

// NotTooNoisy reports whether p is dense enough in dataset. Every item of p
// must occur in at least (1-maxColumnNoise)*|T| of p's transactions, and
// every transaction of p must contain at least (1-maxRowNoise)*|I| of p's
// items. dataset is expected to be the original, not the residual, list.
func NotTooNoisy[T comparable](dataset *TransactionList[T], p *Pattern[T], maxRowNoise, maxColumnNoise float64) bool {
	ok := true

	minColumn := (1 - maxColumnNoise) * float64(p.TransactionCount())
	for _, item := range p.items {
		columnSum := 0
		it := p.Transactions.Iterator()
		for it.HasNext() {
			if tr := dataset.Get(int(it.Next())); tr != nil && tr.Includes(item) {
				columnSum++
			}
		}
		ok = ok && float64(columnSum) >= minColumn
	}

	minRow := (1 - maxRowNoise) * float64(p.ItemCount())
	it := p.Transactions.Iterator()
	for it.HasNext() {
		tr := dataset.Get(int(it.Next()))
		rowSum := 0
		for _, item := range p.items {
			if tr != nil && tr.Includes(item) {
				rowSum++
			}
		}
		ok = ok && float64(rowSum) >= minRow
	}

	return ok
}

// ValidateNoise checks that both tolerances lie in [0,1).
func ValidateNoise(maxRowNoise, maxColumnNoise float64) error {
	for _, v := range []float64{maxRowNoise, maxColumnNoise} {
		if math.IsNaN(v) || v < 0 || v >= 1 {
			return ErrInvalidNoise
		}
	}
	return nil
}
