package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quill-mcp/quill/internal/server"
	"github.com/quill-mcp/quill/internal/updater"
)

func init() {
	checkOnly := false

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update quill to the latest release",
		Long: "Check GitHub for a newer release and replace the current binary\n" +
			"in place. Restart any running MCP server to pick up the new version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := updater.CheckVersion(server.Version)
			if !result.UpdateAvailable {
				fmt.Fprintf(os.Stderr, "quill v%s is up to date\n", server.Version)
				return nil
			}

			fmt.Fprintf(os.Stderr, "quill v%s -> v%s\n", result.CurrentVersion, result.LatestVersion)
			if checkOnly {
				fmt.Fprintf(os.Stderr, "release notes: %s\n", result.ReleaseURL)
				return nil
			}

			if err := updater.SelfUpdate(server.Version); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "updated to v%s, restart quill to use it\n", result.LatestVersion)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "only check for a newer release, do not install")
	RootCmd.AddCommand(cmd)
}
