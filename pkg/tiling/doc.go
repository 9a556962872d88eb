// Package tiling implements PANDA, a greedy search for approximate tiles in
// binary transaction data.
//
// A tile (Pattern) pairs a set of items with a set of transactions and claims
// that the items approximately occur in all of those transactions. Panda
// repeatedly seeds a core tile from the densest residual row (FindCore),
// grows it along both dimensions under row and column noise tolerances
// (ExtendCore), and commits it when doing so does not increase the total
// description cost tracked by a ResultState.
//
// Usage:
//
//	ds := tiling.NewTransactionList[string]()
//	ds.AddTransaction([]string{"bread", "milk"})
//	ds.AddTransaction([]string{"bread", "milk", "eggs"})
//
//	patterns := tiling.Panda(10, ds, 0.2, 0.2)
//
// Run exposes the same search with a context, a pluggable CostModel and a
// per-commit observer, and reports why the search stopped.
//
// The search is single threaded. A ResultState must not be shared between
// goroutines; independent searches over the same original dataset are safe
// because the original list is never mutated.
package tiling
