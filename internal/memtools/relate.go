package memtools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quill-mcp/quill/internal/engine"
	"github.com/quill-mcp/quill/internal/record"
)

// ─── LinkTool ───────────────────────────────────────────────────────────────

// LinkTool handles the mem_link MCP tool.
type LinkTool struct {
	eng *engine.Engine
}

// NewLinkTool creates a LinkTool with the given engine.
func NewLinkTool(eng *engine.Engine) *LinkTool {
	return &LinkTool{eng: eng}
}

// Definition returns the MCP tool definition for mem_link.
func (t *LinkTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_link",
		mcp.WithDescription(
			"Create a typed directed relationship between two records. "+
				"Re-linking the same pair with the same type overwrites the metadata instead of duplicating the edge. "+
				"Common types: relates_to, blocks, depends_on, supersedes, part_of.",
		),
		mcp.WithString("from_id",
			mcp.Required(),
			mcp.Description("Source record ID"),
		),
		mcp.WithString("to_id",
			mcp.Required(),
			mcp.Description("Target record ID"),
		),
		mcp.WithString("type",
			mcp.Description("Relationship type (default: relates_to)"),
		),
		mcp.WithString("metadata",
			mcp.Description("Optional JSON object of string key/value context for the edge"),
		),
	)
}

// Handle processes the mem_link tool call.
func (t *LinkTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fromID := req.GetString("from_id", "")
	toID := req.GetString("to_id", "")
	if fromID == "" {
		return mcp.NewToolResultError("'from_id' is required"), nil
	}
	if toID == "" {
		return mcp.NewToolResultError("'to_id' is required"), nil
	}

	var metadata map[string]string
	if raw := req.GetString("metadata", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("'metadata' must be a JSON object of strings: %v", err)), nil
		}
	}

	rel, err := t.eng.Link(ctx, fromID, toID, req.GetString("type", ""), metadata)
	if err != nil {
		return errResult("link", err), nil
	}

	return mcp.NewToolResultText(
		fmt.Sprintf("Relationship created: %s -> %s (%s)", rel.FromID, rel.ToID, rel.Type),
	), nil
}

// ─── ConnectionsTool ────────────────────────────────────────────────────────

// ConnectionsTool handles the mem_connections MCP tool: direction-filtered
// neighbor lookup plus bounded breadth-first expansion.
type ConnectionsTool struct {
	eng *engine.Engine
}

// NewConnectionsTool creates a ConnectionsTool with the given engine.
func NewConnectionsTool(eng *engine.Engine) *ConnectionsTool {
	return &ConnectionsTool{eng: eng}
}

// Definition returns the MCP tool definition for mem_connections.
func (t *ConnectionsTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_connections",
		mcp.WithDescription(
			"Find records connected to a record. With depth 1 (default) lists direct relationships "+
				"filtered by direction; with a larger depth walks the graph breadth-first up to that "+
				"many hops and reports, for every reached record, its directly connected ids.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Record ID to start from"),
		),
		mcp.WithString("direction",
			mcp.Description("Edge direction filter: outgoing, incoming, or both (default: both)"),
		),
		mcp.WithNumber("depth",
			mcp.Description("Hop bound for graph expansion (default: 1, max: 5). 0 returns only the start id."),
		),
	)
}

// Handle processes the mem_connections tool call.
func (t *ConnectionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	dir, err := record.ParseDirection(req.GetString("direction", ""))
	if err != nil {
		return errResult("connections", err), nil
	}

	depth := intArg(req, "depth", 1)
	if depth > 1 || depth == 0 {
		return t.handleExpand(ctx, id, depth)
	}

	rels, err := t.eng.Neighbors(ctx, id, dir)
	if err != nil {
		return errResult("connections", err), nil
	}
	if len(rels) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Record %s has no %s relationships.", id, dir)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Relationships of %s (%s):\n\n", id, dir)
	for _, rel := range rels {
		arrow := "->"
		other := rel.ToID
		if rel.ToID == id {
			arrow = "<-"
			other = rel.FromID
		}
		fmt.Fprintf(&b, "  %s %s %s (%s)\n", id, arrow, other, rel.Type)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *ConnectionsTool) handleExpand(ctx context.Context, id string, depth int) (*mcp.CallToolResult, error) {
	graph, err := t.eng.Expand(ctx, id, depth)
	if err != nil {
		return errResult("connections", err), nil
	}

	// Stable output order for agents diffing results across calls.
	ids := make([]string, 0, len(graph))
	for nodeID := range graph {
		ids = append(ids, nodeID)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "Graph around %s (%d records within %d hops):\n\n", id, len(graph), depth)
	for _, nodeID := range ids {
		connected := graph[nodeID]
		if len(connected) == 0 {
			fmt.Fprintf(&b, "  %s: (no neighbors listed)\n", nodeID)
			continue
		}
		fmt.Fprintf(&b, "  %s: %s\n", nodeID, strings.Join(connected, ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}
