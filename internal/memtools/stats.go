package memtools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quill-mcp/quill/internal/engine"
	"github.com/quill-mcp/quill/internal/record"
)

// StatsTool handles the mem_stats MCP tool.
type StatsTool struct {
	eng *engine.Engine
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(eng *engine.Engine) *StatsTool {
	return &StatsTool{eng: eng}
}

// Definition returns the MCP tool definition for mem_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_stats",
		mcp.WithDescription("Show aggregate record counts per kind and workspace, plus relationship and overflow totals."),
	)
}

// Handle processes the mem_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.eng.Stats(ctx)
	if err != nil {
		return errResult("stats", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Records: %d\n", stats.TotalRecords)
	fmt.Fprintf(&b, "Relationships: %d\n", stats.TotalEdges)
	fmt.Fprintf(&b, "Overflow sets: %d\n", stats.TotalOverflow)

	if len(stats.ByKind) > 0 {
		b.WriteString("\nBy kind:\n")
		kinds := make([]string, 0, len(stats.ByKind))
		for k := range stats.ByKind {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(&b, "  %s: %d\n", k, stats.ByKind[record.Kind(k)])
		}
	}

	if len(stats.Workspaces) > 0 {
		fmt.Fprintf(&b, "\nWorkspaces: %s\n", strings.Join(stats.Workspaces, ", "))
	}

	return mcp.NewToolResultText(b.String()), nil
}
