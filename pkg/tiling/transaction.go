package tiling

import "slices"

// Transaction is one row of a dataset.
type Transaction[T comparable] struct {
	// Items is the ordered item sequence of the row.
	Items []T
	// TrID identifies the row inside the list that assigned it. It never
	// changes after insertion, even when Items is rewritten.
	TrID int
}

// Includes reports whether item occurs in the transaction.
func (t *Transaction[T]) Includes(item T) bool {
	return slices.Contains(t.Items, item)
}

// Len returns the number of items in the transaction.
func (t *Transaction[T]) Len() int {
	return len(t.Items)
}

func (t *Transaction[T]) clone() *Transaction[T] {
	return &Transaction[T]{Items: slices.Clone(t.Items), TrID: t.TrID}
}

// TransactionList is an ordered collection of transactions. ElCount always
// equals the sum of all item sequence lengths.
type TransactionList[T comparable] struct {
	Transactions []*Transaction[T]
	ElCount      int

	// pos maps a TrID to the current position of its transaction.
	pos []int
}

// NewTransactionList creates an empty list.
func NewTransactionList[T comparable]() *TransactionList[T] {
	return &TransactionList[T]{}
}

// AddTransaction appends a row and assigns it the next TrID. The items are
// copied.
func (l *TransactionList[T]) AddTransaction(items []T) *Transaction[T] {
	tr := &Transaction[T]{Items: slices.Clone(items), TrID: len(l.Transactions)}
	l.pos = append(l.pos, len(l.Transactions))
	l.Transactions = append(l.Transactions, tr)
	l.ElCount += len(items)
	return tr
}

// Len returns the number of transactions.
func (l *TransactionList[T]) Len() int {
	return len(l.Transactions)
}

// Get returns the transaction with the given TrID, or nil.
func (l *TransactionList[T]) Get(trID int) *Transaction[T] {
	if trID < 0 || trID >= len(l.pos) {
		return nil
	}
	return l.Transactions[l.pos[trID]]
}

// Clone returns a deep copy of the list.
func (l *TransactionList[T]) Clone() *TransactionList[T] {
	out := &TransactionList[T]{
		Transactions: make([]*Transaction[T], len(l.Transactions)),
		ElCount:      l.ElCount,
		pos:          slices.Clone(l.pos),
	}
	for i, tr := range l.Transactions {
		out.Transactions[i] = tr.clone()
	}
	return out
}

// RemovePattern erases the footprint of p: every transaction listed in p
// loses the items of p. Kept items retain their relative order.
func (l *TransactionList[T]) RemovePattern(p *Pattern[T]) {
	it := p.Transactions.Iterator()
	for it.HasNext() {
		tr := l.Get(int(it.Next()))
		if tr == nil {
			continue
		}
		kept := tr.Items[:0]
		for _, item := range tr.Items {
			if !p.HasItem(item) {
				kept = append(kept, item)
			}
		}
		l.ElCount -= len(tr.Items) - len(kept)
		clear(tr.Items[len(kept):])
		tr.Items = kept
	}
}

// TryRemovePattern returns the ElCount RemovePattern(p) would leave behind
// without modifying the list.
func (l *TransactionList[T]) TryRemovePattern(p *Pattern[T]) int {
	count := l.ElCount
	it := p.Transactions.Iterator()
	for it.HasNext() {
		tr := l.Get(int(it.Next()))
		if tr == nil {
			continue
		}
		for _, item := range tr.Items {
			if p.HasItem(item) {
				count--
			}
		}
	}
	return count
}

// CalcPatternFalsePositives counts the cells of p's item by transaction cross
// product that are absent from this list.
func (l *TransactionList[T]) CalcPatternFalsePositives(p *Pattern[T]) int {
	falsePositives := 0
	it := p.Transactions.Iterator()
	for it.HasNext() {
		tr := l.Get(int(it.Next()))
		for _, item := range p.items {
			if tr == nil || !tr.Includes(item) {
				falsePositives++
			}
		}
	}
	return falsePositives
}

// ItemsFreq returns the number of occurrences of every item.
func (l *TransactionList[T]) ItemsFreq() map[T]int {
	freq := make(map[T]int)
	for _, tr := range l.Transactions {
		for _, item := range tr.Items {
			freq[item]++
		}
	}
	return freq
}

// SortByFreq orders the items of every transaction by descending frequency
// and then the transactions by descending sum of item frequencies. Both sorts
// are stable.
func (l *TransactionList[T]) SortByFreq() {
	freq := l.ItemsFreq()

	weight := make(map[*Transaction[T]]int, len(l.Transactions))
	for _, tr := range l.Transactions {
		slices.SortStableFunc(tr.Items, func(a, b T) int {
			return freq[b] - freq[a]
		})
		sum := 0
		for _, item := range tr.Items {
			sum += freq[item]
		}
		weight[tr] = sum
	}

	slices.SortStableFunc(l.Transactions, func(a, b *Transaction[T]) int {
		return weight[b] - weight[a]
	})
	for i, tr := range l.Transactions {
		l.pos[tr.TrID] = i
	}
}
