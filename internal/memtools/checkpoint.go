package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quill-mcp/quill/internal/engine"
)

// CheckpointTool handles the mem_checkpoint MCP tool.
type CheckpointTool struct {
	eng *engine.Engine
}

// NewCheckpointTool creates a CheckpointTool with the given engine.
func NewCheckpointTool(eng *engine.Engine) *CheckpointTool {
	return &CheckpointTool{eng: eng}
}

// Definition returns the MCP tool definition for mem_checkpoint.
func (t *CheckpointTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_checkpoint",
		mcp.WithDescription(
			"Save a session checkpoint: a snapshot of where the work stands. Each checkpoint gets "+
				"the next sequence number for its session, starting at 1. Omit session_id to start "+
				"a new session; reuse the returned session_id to continue one.",
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Checkpoint content: current state, what was done, what comes next"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session to append to (default: a freshly generated session)"),
		),
		mcp.WithString("active_files",
			mcp.Description("Comma-separated list of files currently being worked on"),
		),
		mcp.WithString("workspace",
			mcp.Description("Workspace partition key (default: default)"),
		),
	)
}

// Handle processes the mem_checkpoint tool call.
func (t *CheckpointTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	res, err := t.eng.SaveCheckpoint(ctx,
		content,
		req.GetString("session_id", ""),
		listArg(req, "active_files"),
		req.GetString("workspace", "default"),
	)
	if err != nil {
		return errResult("checkpoint", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Checkpoint %d saved for session %s\nID: %s",
		res.SequenceNumber, res.SessionID, res.ID,
	)), nil
}

// ─── CheckpointLatestTool ───────────────────────────────────────────────────

// CheckpointLatestTool handles the mem_checkpoint_latest MCP tool.
type CheckpointLatestTool struct {
	eng *engine.Engine
}

// NewCheckpointLatestTool creates a CheckpointLatestTool.
func NewCheckpointLatestTool(eng *engine.Engine) *CheckpointLatestTool {
	return &CheckpointLatestTool{eng: eng}
}

// Definition returns the MCP tool definition for mem_checkpoint_latest.
func (t *CheckpointLatestTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_checkpoint_latest",
		mcp.WithDescription(
			"Retrieve the most recent checkpoint for a session. Use this at session start to "+
				"pick up where the previous session left off.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session identifier"),
		),
	)
}

// Handle processes the mem_checkpoint_latest tool call.
func (t *CheckpointLatestTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}

	r, err := t.eng.LatestCheckpoint(ctx, sessionID)
	if err != nil {
		return errResult("checkpoint latest", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Checkpoint %d of session %s (saved %s):\n\n%s\n",
		r.Checkpoint.SequenceNumber, r.Checkpoint.SessionID,
		r.CreatedAt.Format("2006-01-02 15:04:05"), r.Body)
	if len(r.Checkpoint.ActiveFiles) > 0 {
		fmt.Fprintf(&b, "\nActive files: %s\n", strings.Join(r.Checkpoint.ActiveFiles, ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}
