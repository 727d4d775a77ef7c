// Package main provides the entry point for the fuzzidx CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/fuzzidx/cmd/fuzzidx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
