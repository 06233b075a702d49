// ABOUTME: Entry point for pi-modes: adaptive mode control for a coding assistant
// ABOUTME: Builds the cobra command tree and exits non-zero on error

package main

import (
	"fmt"
	"os"

	pilog "github.com/mauromedda/pi-modes/internal/log"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	err := newRootCmd().Execute()
	_ = pilog.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
