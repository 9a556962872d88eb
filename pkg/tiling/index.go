package tiling

import "github.com/RoaringBitmap/roaring"

// Index is a vertical view of a TransactionList: for every item, the bitmap
// of TrIDs whose transaction contains it. It is built once over the original
// dataset and answers density queries without scanning rows.
type Index[T comparable] struct {
	columns map[T]*roaring.Bitmap
	rows    int
}

// NewIndex builds the vertical index of list.
func NewIndex[T comparable](list *TransactionList[T]) *Index[T] {
	idx := &Index[T]{
		columns: make(map[T]*roaring.Bitmap),
		rows:    list.Len(),
	}
	for _, tr := range list.Transactions {
		for _, item := range tr.Items {
			col, ok := idx.columns[item]
			if !ok {
				col = roaring.New()
				idx.columns[item] = col
			}
			col.Add(uint32(tr.TrID))
		}
	}
	for _, col := range idx.columns {
		col.RunOptimize()
	}
	return idx
}

// Rows returns the number of indexed transactions.
func (x *Index[T]) Rows() int { return x.rows }

// Items returns the number of distinct items.
func (x *Index[T]) Items() int { return len(x.columns) }

// Support returns the number of transactions containing item.
func (x *Index[T]) Support(item T) int {
	col, ok := x.columns[item]
	if !ok {
		return 0
	}
	return int(col.GetCardinality())
}

// ColumnSum returns how many of the transactions in trIDs contain item.
func (x *Index[T]) ColumnSum(item T, trIDs *roaring.Bitmap) int {
	col, ok := x.columns[item]
	if !ok {
		return 0
	}
	return int(col.AndCardinality(trIDs))
}

// RowSums returns, for every transaction of p, how many items of p it
// contains.
func (x *Index[T]) RowSums(p *Pattern[T]) map[uint32]int {
	sums := make(map[uint32]int, p.TransactionCount())
	it := p.Transactions.Iterator()
	for it.HasNext() {
		sums[it.Next()] = 0
	}
	for _, item := range p.items {
		col, ok := x.columns[item]
		if !ok {
			continue
		}
		hit := roaring.And(col, p.Transactions).Iterator()
		for hit.HasNext() {
			sums[hit.Next()]++
		}
	}
	return sums
}

// FalsePositives counts the cells of p absent from the indexed list.
func (x *Index[T]) FalsePositives(p *Pattern[T]) int {
	present := 0
	for _, item := range p.items {
		present += x.ColumnSum(item, p.Transactions)
	}
	return p.Area() - present
}

// NotTooNoisy is the index-backed equivalent of the package level
// NotTooNoisy.
func (x *Index[T]) NotTooNoisy(p *Pattern[T], maxRowNoise, maxColumnNoise float64) bool {
	minColumn := (1 - maxColumnNoise) * float64(p.TransactionCount())
	for _, item := range p.items {
		if float64(x.ColumnSum(item, p.Transactions)) < minColumn {
			return false
		}
	}

	minRow := (1 - maxRowNoise) * float64(p.ItemCount())
	for _, sum := range x.RowSums(p) {
		if float64(sum) < minRow {
			return false
		}
	}
	return true
}
