// Package cli implements the quill CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quill-mcp/quill/internal/store"
)

var dataDir string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Structured memory MCP server for AI coding agents",
	Long: "Quill is an MCP server that gives AI coding agents persistent,\n" +
		"searchable memory: notes, checkpoints, checklists, and a relationship\n" +
		"graph, backed by SQLite.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "",
		"Data directory (default: $QUILL_DATA_DIR or ~/.quill)")
}

func storeConfig() store.Config {
	if dataDir != "" {
		return store.Config{DataDir: dataDir}
	}
	return store.DefaultConfig()
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
