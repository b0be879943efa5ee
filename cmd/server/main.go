// Package main implements the entry point for the Lexis API server, which
// schedules vocabulary reviews and accounts for learning streaks and rewards.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
