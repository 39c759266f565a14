package main

import (
	"fmt"
	"os"
)

// Set at link time with -ldflags "-X main.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func buildInfo() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", Version, Commit, Date)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
