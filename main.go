// Package main is the entry point for the capturescope agent.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/capturescope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
