// Package cli provides the command-line interface for StockQA
package cli

import (
	"context"
	"os"
)

// Version is stamped at build time with -ldflags.
var Version = "0.1.0"

// Run starts the CLI application
func Run(ctx context.Context) {
	rootCmd := NewRootCmd()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
