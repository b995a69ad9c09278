package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quill-mcp/quill/internal/engine"
	"github.com/quill-mcp/quill/internal/record"
)

// SaveTool handles the mem_save MCP tool.
type SaveTool struct {
	eng *engine.Engine
}

// NewSaveTool creates a SaveTool with the given engine.
func NewSaveTool(eng *engine.Engine) *SaveTool {
	return &SaveTool{eng: eng}
}

// Definition returns the MCP tool definition for mem_save.
func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_save",
		mcp.WithDescription(
			"Save a note to persistent memory. Call this PROACTIVELY after significant work: "+
				"record technical debt you noticed, insights you gained, and work notes worth keeping. "+
				"Checkpoints and checklists have their own tools (mem_checkpoint, mem_checklist).",
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Record kind: technical_debt, insight, or work_note"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Free text content of the note"),
		),
		mcp.WithString("workspace",
			mcp.Description("Workspace partition key (default: default)"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags"),
		),
		mcp.WithString("status",
			mcp.Description("Optional status string, used only as a search filter"),
		),
		mcp.WithString("priority",
			mcp.Description("Optional priority string, used only as a search filter"),
		),
	)
}

// Handle processes the mem_save tool call.
func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kindStr := req.GetString("kind", "")
	if kindStr == "" {
		return mcp.NewToolResultError("'kind' is required"), nil
	}
	body := req.GetString("body", "")
	if body == "" {
		return mcp.NewToolResultError("'body' is required"), nil
	}

	kind, err := record.ParseKind(kindStr)
	if err != nil {
		return errResult("save", err), nil
	}

	r, err := t.eng.Save(ctx, engine.SaveParams{
		Kind:      kind,
		Body:      body,
		Workspace: req.GetString("workspace", "default"),
		Tags:      listArg(req, "tags"),
		Status:    req.GetString("status", ""),
		Priority:  req.GetString("priority", ""),
	})
	if err != nil {
		return errResult("save", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Saved %s %s in workspace %q", r.Kind, r.ID, r.Workspace)), nil
}
