// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it opens the store, builds the engine,
// and injects it into the tool handlers. No business logic lives here.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/quill-mcp/quill/internal/engine"
	"github.com/quill-mcp/quill/internal/ident"
	"github.com/quill-mcp/quill/internal/memtools"
	"github.com/quill-mcp/quill/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all memory tools
// registered. This is the single place where dependencies are resolved.
//
// The returned cleanup function closes the store's database connection
// and must be called on shutdown (typically via defer). It is always
// non-nil and safe to call.
func New(cfg store.Config) (*server.MCPServer, func(), error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, noop, fmt.Errorf("opening store: %w", err)
	}
	cleanup := func() { _ = st.Close() }

	eng := engine.New(st, ident.New(), engine.DefaultConfig())

	s := server.NewMCPServer(
		"quill",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)
	registerTools(s, eng)

	return s, cleanup, nil
}

// noop is the default cleanup when the store never opened.
func noop() {}

// registerTools registers all 13 memory MCP tools with the server.
func registerTools(s *server.MCPServer, eng *engine.Engine) {
	// --- Save & retrieve ---
	saveTool := memtools.NewSaveTool(eng)
	s.AddTool(saveTool.Definition(), saveTool.Handle)

	searchTool := memtools.NewSearchTool(eng)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	getTool := memtools.NewGetTool(eng)
	s.AddTool(getTool.Definition(), getTool.Handle)

	overflowTool := memtools.NewOverflowTool(eng)
	s.AddTool(overflowTool.Definition(), overflowTool.Handle)

	// --- Management ---
	archiveTool := memtools.NewArchiveTool(eng)
	s.AddTool(archiveTool.Definition(), archiveTool.Handle)

	deleteTool := memtools.NewDeleteTool(eng)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	// --- Knowledge graph ---
	linkTool := memtools.NewLinkTool(eng)
	s.AddTool(linkTool.Definition(), linkTool.Handle)

	connectionsTool := memtools.NewConnectionsTool(eng)
	s.AddTool(connectionsTool.Definition(), connectionsTool.Handle)

	// --- Session sequencing ---
	checkpointTool := memtools.NewCheckpointTool(eng)
	s.AddTool(checkpointTool.Definition(), checkpointTool.Handle)

	checkpointLatestTool := memtools.NewCheckpointLatestTool(eng)
	s.AddTool(checkpointLatestTool.Definition(), checkpointLatestTool.Handle)

	// --- Checklists ---
	checklistTool := memtools.NewChecklistTool(eng)
	s.AddTool(checklistTool.Definition(), checklistTool.Handle)

	checklistCheckTool := memtools.NewChecklistCheckTool(eng)
	s.AddTool(checklistCheckTool.Definition(), checklistCheckTool.Handle)

	// --- Statistics ---
	statsTool := memtools.NewStatsTool(eng)
	s.AddTool(statsTool.Definition(), statsTool.Handle)
}

// serverInstructions returns the system instructions that tell the AI
// how to use Quill effectively.
func serverInstructions() string {
	return `You have access to Quill, a persistent structured memory MCP server
for coding sessions. Memory survives between conversations; use it to build
project knowledge over time.

## Record Kinds
- checkpoint: session state snapshots (save via mem_checkpoint, NOT mem_save)
- checklist: multi-step task lists (save via mem_checklist, NOT mem_save)
- technical_debt: known shortcuts, workarounds, things to fix later
- insight: discoveries, gotchas, architectural decisions, learned constraints
- work_note: everything else worth remembering

## When to Save (call mem_save PROACTIVELY)
- Architectural decisions or tradeoffs made
- Bug root causes: what was wrong, why, how it was fixed
- New patterns or conventions established
- Shortcuts taken under time pressure (kind=technical_debt)
- Important discoveries, gotchas, or edge cases (kind=insight)

## When to Search (call mem_search)
- At the start of a new session to recover context
- Before making decisions (check if prior decisions exist)
- When encountering familiar errors or patterns

Search supports inline filters in the query string:
  kind:insight status:open priority:high tag:auth session:<id> archived:true
Free text outside filters is matched full-text against record bodies.
Results are ranked by text relevance, recency, and access frequency. Use the
temporal parameter to tune recency: aggressive (recent work), gentle
(long-lived knowledge), none (pure store order).

Pass token_budget to cap response size. When results are truncated, the
response includes an overflow handle; fetch the complete set later with
mem_overflow_get if you need it.

## Session Checkpoints
1. Call mem_checkpoint at natural stopping points with a summary of where
   you are, what is done, and what comes next. Include active_files.
2. Checkpoints in the same session_id are numbered sequentially.
3. At session start, call mem_checkpoint_latest with the prior session_id
   to resume exactly where the last window left off.

## Checklists
1. Create with mem_checklist (body + comma-separated items).
2. Mark items done with mem_checklist_check as you complete them.
3. Progress and status are computed from item state; re-fetch with mem_get
   to see current completion.

## Relationships
Connect records into a knowledge graph with mem_link:
- Common types: relates_to, caused_by, supersedes, implements, depends_on
- Explore connections with mem_connections (depth > 1 walks the graph)
- After a bug fix, link it to the decision that caused it (caused_by)
- When a new decision replaces an old one, link supersedes and archive the old

## Hygiene
- Prefer mem_archive over mem_delete; archived records stay retrievable
  by id and keep their relationships, but drop out of default search.
- Use workspaces to keep per-project memory separate.
- Call mem_stats to see what has accumulated.`
}
