package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quill-mcp/quill/internal/engine"
	"github.com/quill-mcp/quill/internal/store"
)

// SearchTool handles the mem_search MCP tool.
type SearchTool struct {
	eng *engine.Engine
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(eng *engine.Engine) *SearchTool {
	return &SearchTool{eng: eng}
}

// Definition returns the MCP tool definition for mem_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_search",
		mcp.WithDescription(
			"Search persistent memory with relevance ranking (text match + recency + access frequency). "+
				"Structured filters can be embedded in the query as field:value tokens, e.g. "+
				"'kind:checklist tag:auth login flow'. Results over the token budget are offloaded "+
				"and returned as a bounded preview plus an overflow handle (see mem_overflow_get).",
		),
		mcp.WithString("query",
			mcp.Description("Search query: free text plus optional kind:/status:/priority:/tag: filters. Empty returns recent records."),
		),
		mcp.WithString("workspace",
			mcp.Description("Workspace to search (default: default; empty string searches all workspaces)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10, max: 50)"),
		),
		mcp.WithNumber("token_budget",
			mcp.Description("Token ceiling for the response; over-budget results are truncated and offloaded"),
		),
		mcp.WithString("temporal",
			mcp.Description("Recency weighting: default, aggressive, gentle, or none"),
		),
		mcp.WithString("sort_by",
			mcp.Description("Explicit sort when temporal=none: created, modified, or accessed"),
		),
		mcp.WithBoolean("include_archived",
			mcp.Description("Include archived records (default: false)"),
		),
	)
}

// Handle processes the mem_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := t.eng.Search(ctx, engine.SearchRequest{
		Query:           req.GetString("query", ""),
		Workspace:       req.GetString("workspace", "default"),
		MaxResults:      intArg(req, "limit", 0),
		TokenBudget:     intArg(req, "token_budget", 0),
		Temporal:        engine.TemporalMode(req.GetString("temporal", "")),
		SortBy:          sortHint(req.GetString("sort_by", "")),
		IncludeArchived: boolArg(req, "include_archived", false),
	})
	if err != nil {
		return errResult("search", err), nil
	}

	if len(resp.Items) == 0 {
		return mcp.NewToolResultText("No records found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d records (showing %d):\n\n", resp.TotalCount, len(resp.Items))
	for i, r := range resp.Items {
		fmt.Fprintf(&b, "[%d] %s (%s, score %.2f)\n    %s\n", i+1, r.ID, r.Kind, r.Score, truncate(r.Body, 300))
		if len(r.Tags) > 0 {
			fmt.Fprintf(&b, "    tags: %s\n", strings.Join(r.Tags, ", "))
		}
		b.WriteString("\n")
	}

	if resp.Truncated {
		b.WriteString("Result set exceeded the token budget and was truncated.\n")
		if resp.OverflowHandle != nil {
			fmt.Fprintf(&b, "Full result set: mem_overflow_get with handle %q (%d items)\n",
				resp.OverflowHandle.ID, resp.OverflowHandle.ItemCount)
		}
	}
	if resp.Warning != "" {
		fmt.Fprintf(&b, "Warning: %s\n", resp.Warning)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func sortHint(s string) store.OrderHint {
	switch s {
	case "modified":
		return store.OrderModifiedDesc
	case "accessed":
		return store.OrderAccessedDesc
	case "created":
		return store.OrderCreatedDesc
	}
	return ""
}

// ─── OverflowTool ───────────────────────────────────────────────────────────

// OverflowTool handles the mem_overflow_get MCP tool.
type OverflowTool struct {
	eng *engine.Engine
}

// NewOverflowTool creates an OverflowTool.
func NewOverflowTool(eng *engine.Engine) *OverflowTool {
	return &OverflowTool{eng: eng}
}

// Definition returns the MCP tool definition for mem_overflow_get.
func (t *OverflowTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_overflow_get",
		mcp.WithDescription(
			"Retrieve a full result set that was offloaded because it exceeded a token budget. "+
				"The handle comes from a truncated mem_search response.",
		),
		mcp.WithString("handle",
			mcp.Required(),
			mcp.Description("Exact overflow handle, e.g. search-1714070400000-a1b2c3d4"),
		),
	)
}

// Handle processes the mem_overflow_get tool call.
func (t *OverflowTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle := req.GetString("handle", "")
	if handle == "" {
		return mcp.NewToolResultError("'handle' is required"), nil
	}

	h, items, err := t.eng.Overflow(ctx, handle)
	if err != nil {
		return errResult("overflow get", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Overflow set %s (%s, %d items, offloaded %s):\n\n",
		h.ID, h.Category, h.ItemCount, h.CreatedAt.Format("2006-01-02 15:04:05"))
	for i, r := range items {
		fmt.Fprintf(&b, "[%d] %s (%s)\n    %s\n\n", i+1, r.ID, r.Kind, truncate(r.Body, 300))
	}
	return mcp.NewToolResultText(b.String()), nil
}
