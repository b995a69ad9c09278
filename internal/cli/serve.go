package cli

import (
	"fmt"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/quill-mcp/quill/internal/server"
	"github.com/quill-mcp/quill/internal/updater"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		Long: "Start the MCP server on stdio. All protocol traffic uses stdout,\n" +
			"so diagnostics go to stderr. Add quill to your AI tool's MCP config:\n\n" +
			"  {\n" +
			"    \"mcpServers\": {\n" +
			"      \"quill\": { \"command\": \"quill\", \"args\": [\"serve\"] }\n" +
			"    }\n" +
			"  }",
		RunE: runServe,
	}

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	s, cleanup, err := server.New(storeConfig())
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// stdout carries the MCP transport, so the notice goes to stderr.
	go func() {
		if result := updater.CheckVersion(server.Version); result.UpdateAvailable {
			fmt.Fprintf(os.Stderr, "quill v%s is available (running v%s), run `quill update`\n",
				result.LatestVersion, result.CurrentVersion)
		}
	}()

	return mcpserver.ServeStdio(s)
}
