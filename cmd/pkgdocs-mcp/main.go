// Package main provides the entry point for the pkgdocs-mcp CLI.
package main

import (
	"os"

	"github.com/pkgdocs-mcp/pkgdocs-mcp/cmd/pkgdocs-mcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
