package tiling_test

import (
	"fmt"

	"github.com/panda-miner/pkg/tiling"
)

func ExamplePanda() {
	ds := tiling.NewTransactionList[string]()
	ds.AddTransaction([]string{"bread", "milk"})
	ds.AddTransaction([]string{"bread", "milk"})
	ds.AddTransaction([]string{"milk", "bread"})
	ds.AddTransaction([]string{"eggs"})

	for _, p := range tiling.Panda(2, ds, 0, 0) {
		fmt.Println(p)
	}
	// Output:
	// {items:[bread milk] transactions:[0 1 2]}
}
