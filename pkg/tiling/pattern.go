package tiling

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring"
)

// Pattern is a tile: a set of items paired with a set of transaction ids.
// Items keep their insertion order.
type Pattern[T comparable] struct {
	items   []T
	itemSet map[T]struct{}

	// Transactions holds the TrIDs covered by the tile.
	Transactions *roaring.Bitmap
}

// NewPattern creates a pattern over the given items and transaction ids.
func NewPattern[T comparable](items []T, trIDs ...int) *Pattern[T] {
	p := &Pattern[T]{
		itemSet:      make(map[T]struct{}, len(items)),
		Transactions: roaring.New(),
	}
	for _, item := range items {
		p.AddItem(item)
	}
	for _, id := range trIDs {
		p.AddTransaction(id)
	}
	return p
}

// AddItem inserts item and reports whether it was new.
func (p *Pattern[T]) AddItem(item T) bool {
	if _, ok := p.itemSet[item]; ok {
		return false
	}
	p.itemSet[item] = struct{}{}
	p.items = append(p.items, item)
	return true
}

// AddTransaction inserts a transaction id.
func (p *Pattern[T]) AddTransaction(trID int) {
	p.Transactions.Add(uint32(trID))
}

// RemoveTransaction deletes a transaction id.
func (p *Pattern[T]) RemoveTransaction(trID int) {
	p.Transactions.Remove(uint32(trID))
}

// HasItem reports whether item belongs to the pattern.
func (p *Pattern[T]) HasItem(item T) bool {
	_, ok := p.itemSet[item]
	return ok
}

// HasTransaction reports whether trID belongs to the pattern.
func (p *Pattern[T]) HasTransaction(trID int) bool {
	return trID >= 0 && p.Transactions.Contains(uint32(trID))
}

// Items returns a copy of the item set in insertion order.
func (p *Pattern[T]) Items() []T {
	return slices.Clone(p.items)
}

// TransactionIDs returns the transaction ids in ascending order.
func (p *Pattern[T]) TransactionIDs() []int {
	ids := make([]int, 0, p.Transactions.GetCardinality())
	it := p.Transactions.Iterator()
	for it.HasNext() {
		ids = append(ids, int(it.Next()))
	}
	return ids
}

// ItemCount returns |I|.
func (p *Pattern[T]) ItemCount() int {
	return len(p.items)
}

// TransactionCount returns |T|.
func (p *Pattern[T]) TransactionCount() int {
	return int(p.Transactions.GetCardinality())
}

// Area returns the number of cells covered, |I| * |T|.
func (p *Pattern[T]) Area() int {
	return p.ItemCount() * p.TransactionCount()
}

// Clone returns an independent copy.
func (p *Pattern[T]) Clone() *Pattern[T] {
	out := &Pattern[T]{
		items:        slices.Clone(p.items),
		itemSet:      make(map[T]struct{}, len(p.itemSet)),
		Transactions: p.Transactions.Clone(),
	}
	for item := range p.itemSet {
		out.itemSet[item] = struct{}{}
	}
	return out
}

func (p *Pattern[T]) String() string {
	return fmt.Sprintf("{items:%v transactions:%v}", p.items, p.TransactionIDs())
}

// PatternList is the ordered sequence of committed patterns.
type PatternList[T comparable] []*Pattern[T]

// Len returns the number of patterns.
func (pl PatternList[T]) Len() int {
	return len(pl)
}

// TotalArea sums the areas of all patterns. Overlapping cells are counted
// once per pattern.
func (pl PatternList[T]) TotalArea() int {
	total := 0
	for _, p := range pl {
		total += p.Area()
	}
	return total
}

// ItemQueue is a FIFO of items deferred during core discovery.
type ItemQueue[T any] struct {
	items []T
}

// Push appends item to the back of the queue.
func (q *ItemQueue[T]) Push(item T) {
	q.items = append(q.items, item)
}

// Pop removes and returns the front item.
func (q *ItemQueue[T]) Pop() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of queued items.
func (q *ItemQueue[T]) Len() int {
	return len(q.items)
}

// Items returns the queued items front to back.
func (q *ItemQueue[T]) Items() []T {
	return slices.Clone(q.items)
}
