package main

import (
	"os"

	"github.com/marketgraph/marketgraph/cmd/marketgraph"
)

func main() {
	if err := marketgraph.Execute(); err != nil {
		os.Exit(1)
	}
}
