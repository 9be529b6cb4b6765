// Command voxloop-runner is the Campaign Runner process: it wires the
// Persistence Port, Softswitch Client, Speech Recognition Gateway,
// Objection Registry, and Call Controller into a running Campaign Runner
// and serves it until terminated.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
