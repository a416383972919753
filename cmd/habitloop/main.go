// Command habitloop is the entry point for the HabitLoop habit tracker and
// its retrieval-augmented wellness coach. It provides a CLI interface (via
// Cobra) and an HTTP server exposing the REST API.
package main

import (
	"fmt"
	"os"

	"github.com/habitloop/habitloop/cmd/habitloop/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
