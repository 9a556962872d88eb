package main

import "github.com/panda-miner/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
