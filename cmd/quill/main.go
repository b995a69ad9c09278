// Quill: structured memory MCP server for AI coding agents.
//
// Usage:
//
//	quill serve     # Start MCP server (stdio transport)
//	quill export    # Dump all records and relationships as JSON
//	quill stats     # Show database statistics
//	quill version   # Print the version
//	quill update    # Update to the latest release
package main

import (
	"os"

	"github.com/quill-mcp/quill/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
