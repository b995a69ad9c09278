package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quill-mcp/quill/internal/engine"
)

// GetTool handles the mem_get MCP tool.
type GetTool struct {
	eng *engine.Engine
}

// NewGetTool creates a GetTool with the given engine.
func NewGetTool(eng *engine.Engine) *GetTool {
	return &GetTool{eng: eng}
}

// Definition returns the MCP tool definition for mem_get.
func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_get",
		mcp.WithDescription(
			"Retrieve a single record by ID with its full body. Archived records are retrievable "+
				"by id even though default search excludes them.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Record ID"),
		),
	)
}

// Handle processes the mem_get tool call.
func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	r, err := t.eng.Get(ctx, id)
	if err != nil {
		return errResult("get", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) in workspace %q\n", r.ID, r.Kind, r.Workspace)
	fmt.Fprintf(&b, "Created: %s | Modified: %s | Accessed %d times\n",
		r.CreatedAt.Format("2006-01-02 15:04:05"),
		r.ModifiedAt.Format("2006-01-02 15:04:05"),
		r.AccessCount)
	if len(r.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(r.Tags, ", "))
	}
	if r.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", r.Status)
	}
	if r.Priority != "" {
		fmt.Fprintf(&b, "Priority: %s\n", r.Priority)
	}
	if r.Archived {
		b.WriteString("ARCHIVED\n")
	}
	fmt.Fprintf(&b, "\n%s\n", r.Body)

	if r.Checkpoint != nil {
		fmt.Fprintf(&b, "\nSession: %s, sequence %d\n", r.Checkpoint.SessionID, r.Checkpoint.SequenceNumber)
		if len(r.Checkpoint.ActiveFiles) > 0 {
			fmt.Fprintf(&b, "Active files: %s\n", strings.Join(r.Checkpoint.ActiveFiles, ", "))
		}
	}
	if r.Checklist != nil {
		progress := engine.Progress(r.Checklist)
		fmt.Fprintf(&b, "\n%s (%.1f%%)\n", progress.Status, progress.CompletionPercentage)
		for i, item := range r.Checklist.Items {
			mark := " "
			if item.IsCompleted {
				mark = "x"
			}
			fmt.Fprintf(&b, "  %d. [%s] %s (%s)\n", i+1, mark, item.Content, item.ID)
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}

// ─── ArchiveTool ────────────────────────────────────────────────────────────

// ArchiveTool handles the mem_archive MCP tool.
type ArchiveTool struct {
	eng *engine.Engine
}

// NewArchiveTool creates an ArchiveTool.
func NewArchiveTool(eng *engine.Engine) *ArchiveTool {
	return &ArchiveTool{eng: eng}
}

// Definition returns the MCP tool definition for mem_archive.
func (t *ArchiveTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_archive",
		mcp.WithDescription(
			"Archive or unarchive a record. Archived records drop out of default search but "+
				"remain retrievable by id and keep their relationships.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Record ID"),
		),
		mcp.WithBoolean("archived",
			mcp.Description("Target archived state (default: true)"),
		),
	)
}

// Handle processes the mem_archive tool call.
func (t *ArchiveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	archived := boolArg(req, "archived", true)
	if err := t.eng.SetArchived(ctx, id, archived); err != nil {
		return errResult("archive", err), nil
	}

	state := "archived"
	if !archived {
		state = "unarchived"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Record %s %s", id, state)), nil
}

// ─── DeleteTool ─────────────────────────────────────────────────────────────

// DeleteTool handles the mem_delete MCP tool.
type DeleteTool struct {
	eng *engine.Engine
}

// NewDeleteTool creates a DeleteTool.
func NewDeleteTool(eng *engine.Engine) *DeleteTool {
	return &DeleteTool{eng: eng}
}

// Definition returns the MCP tool definition for mem_delete.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_delete",
		mcp.WithDescription(
			"Permanently delete a record. Relationships to and from the record are deleted with it. "+
				"Prefer mem_archive unless the record is actually wrong.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Record ID"),
		),
	)
}

// Handle processes the mem_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	if err := t.eng.Delete(ctx, id); err != nil {
		return errResult("delete", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Record %s deleted (with its relationships)", id)), nil
}
