package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quill-mcp/quill/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the quill version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("quill v%s\n", server.Version)
		},
	}

	RootCmd.AddCommand(cmd)
}
