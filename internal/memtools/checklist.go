package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quill-mcp/quill/internal/engine"
)

// ChecklistTool handles the mem_checklist MCP tool.
type ChecklistTool struct {
	eng *engine.Engine
}

// NewChecklistTool creates a ChecklistTool with the given engine.
func NewChecklistTool(eng *engine.Engine) *ChecklistTool {
	return &ChecklistTool{eng: eng}
}

// Definition returns the MCP tool definition for mem_checklist.
func (t *ChecklistTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_checklist",
		mcp.WithDescription(
			"Create a checklist with an ordered list of items. Completion state is tracked per "+
				"item (mem_checklist_check) and progress is always derived from the items, never stored. "+
				"Checklists can nest under a parent checklist to form a tree.",
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("What this checklist is for"),
		),
		mcp.WithString("items",
			mcp.Required(),
			mcp.Description("Comma-separated item descriptions, in order"),
		),
		mcp.WithString("parent_checklist_id",
			mcp.Description("Optional parent checklist forming a tree"),
		),
		mcp.WithString("workspace",
			mcp.Description("Workspace partition key (default: default)"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags"),
		),
	)
}

// Handle processes the mem_checklist tool call.
func (t *ChecklistTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := req.GetString("body", "")
	if body == "" {
		return mcp.NewToolResultError("'body' is required"), nil
	}
	items := listArg(req, "items")
	if len(items) == 0 {
		return mcp.NewToolResultError("'items' is required"), nil
	}

	r, err := t.eng.CreateChecklist(ctx, body, items,
		req.GetString("parent_checklist_id", ""),
		req.GetString("workspace", "default"),
		listArg(req, "tags"),
	)
	if err != nil {
		return errResult("checklist", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Checklist %s created with %d items:\n", r.ID, len(r.Checklist.Items))
	for i, item := range r.Checklist.Items {
		fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, item.ID, item.Content)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── ChecklistCheckTool ─────────────────────────────────────────────────────

// ChecklistCheckTool handles the mem_checklist_check MCP tool.
type ChecklistCheckTool struct {
	eng *engine.Engine
}

// NewChecklistCheckTool creates a ChecklistCheckTool.
func NewChecklistCheckTool(eng *engine.Engine) *ChecklistCheckTool {
	return &ChecklistCheckTool{eng: eng}
}

// Definition returns the MCP tool definition for mem_checklist_check.
func (t *ChecklistCheckTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_checklist_check",
		mcp.WithDescription(
			"Mark a checklist item complete or incomplete and get the checklist's derived progress.",
		),
		mcp.WithString("checklist_id",
			mcp.Required(),
			mcp.Description("Checklist record ID"),
		),
		mcp.WithString("item_id",
			mcp.Required(),
			mcp.Description("Item ID within the checklist"),
		),
		mcp.WithBoolean("completed",
			mcp.Description("Completion flag to set (default: true)"),
		),
	)
}

// Handle processes the mem_checklist_check tool call.
func (t *ChecklistCheckTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	checklistID := req.GetString("checklist_id", "")
	itemID := req.GetString("item_id", "")
	if checklistID == "" {
		return mcp.NewToolResultError("'checklist_id' is required"), nil
	}
	if itemID == "" {
		return mcp.NewToolResultError("'item_id' is required"), nil
	}

	progress, err := t.eng.UpdateChecklistItem(ctx, checklistID, itemID, boolArg(req, "completed", true))
	if err != nil {
		return errResult("checklist check", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Checklist %s: %s, %.1f%% complete",
		checklistID, progress.Status, progress.CompletionPercentage,
	)), nil
}
