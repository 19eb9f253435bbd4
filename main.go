package main

import (
	"os"

	"github.com/mxpack/mxpack/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
