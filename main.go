package main

import (
	"fmt"
	"os"

	"github.com/kilianp07/rebalance/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rebalance:", err)
		os.Exit(1)
	}
}
