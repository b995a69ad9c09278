package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quill-mcp/quill/internal/record"
	"github.com/quill-mcp/quill/internal/store"
)

// CheckpointResult is the upward saveCheckpoint contract.
type CheckpointResult struct {
	ID             string `json:"id"`
	SessionID      string `json:"session_id"`
	SequenceNumber int    `json:"sequence_number"`
}

// SaveCheckpoint persists a checkpoint with the next sequence number for
// its session, starting at 1. The ordinal is derived from the store's
// checkpoint count for the session (the store is the source of truth, so
// sequencing survives process restarts) while a per-session mutex
// serializes concurrent in-process writers. An empty sessionID starts a
// fresh session.
func (e *Engine) SaveCheckpoint(ctx context.Context, content, sessionID string, activeFiles []string, workspace string) (*CheckpointResult, error) {
	if content == "" {
		return nil, &record.ValidationError{Field: "content", Reason: "required"}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := e.store.CountCheckpoints(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("engine: next sequence for %s: %w", sessionID, err)
	}
	seq := n + 1

	now := time.Now().UTC()
	r := &record.Record{
		ID:         e.ids.Generate(""),
		Kind:       record.KindCheckpoint,
		Body:       content,
		Workspace:  workspace,
		CreatedAt:  now,
		ModifiedAt: now,
		Checkpoint: &record.CheckpointPayload{
			SessionID:      sessionID,
			SequenceNumber: seq,
			ActiveFiles:    activeFiles,
		},
	}
	if err := e.store.Insert(ctx, r); err != nil {
		return nil, err
	}

	return &CheckpointResult{ID: r.ID, SessionID: sessionID, SequenceNumber: seq}, nil
}

// LatestCheckpoint returns the highest-sequence checkpoint for a session.
func (e *Engine) LatestCheckpoint(ctx context.Context, sessionID string) (*record.Record, error) {
	if sessionID == "" {
		return nil, &record.ValidationError{Field: "session_id", Reason: "required"}
	}
	return e.store.LatestCheckpoint(ctx, sessionID)
}

// ─── Checklists ──────────────────────────────────────────────────────────────

// ChecklistProgress is the derived completion state of a checklist.
// It is computed from the item list at read time, never stored, so it
// cannot drift from the items it summarizes.
type ChecklistProgress struct {
	CompletedItems       int     `json:"completed_items"`
	TotalItems           int     `json:"total_items"`
	CompletionPercentage float64 `json:"completion_percentage"`
	Status               string  `json:"status"`
}

// CompletionPercentage is completed/total*100, 0 for an empty checklist.
func CompletionPercentage(p *record.ChecklistPayload) float64 {
	total := len(p.Items)
	if total == 0 {
		return 0
	}
	completed := 0
	for _, it := range p.Items {
		if it.IsCompleted {
			completed++
		}
	}
	return float64(completed) / float64(total) * 100
}

// Progress derives the full completion state of a checklist payload.
func Progress(p *record.ChecklistPayload) ChecklistProgress {
	total := len(p.Items)
	completed := 0
	for _, it := range p.Items {
		if it.IsCompleted {
			completed++
		}
	}

	var status string
	switch {
	case total == 0 || completed == 0:
		status = "Not Started"
	case completed == total:
		status = "Completed"
	default:
		status = fmt.Sprintf("In Progress (%d/%d)", completed, total)
	}

	return ChecklistProgress{
		CompletedItems:       completed,
		TotalItems:           total,
		CompletionPercentage: CompletionPercentage(p),
		Status:               status,
	}
}

// CreateChecklist persists a new checklist with an initial item list.
// An optional parent forms a tree; the parent must already exist and be a
// checklist, which makes cycles impossible.
func (e *Engine) CreateChecklist(ctx context.Context, body string, items []string, parentID, workspace string, tags []string) (*record.Record, error) {
	if body == "" {
		return nil, &record.ValidationError{Field: "body", Reason: "required"}
	}

	if parentID != "" {
		parent, err := e.store.GetByID(ctx, parentID)
		if err != nil {
			if record.IsNotFound(err) {
				return nil, &record.NotFoundError{Op: "create checklist", ID: parentID, Side: "parent"}
			}
			return nil, err
		}
		if parent.Kind != record.KindChecklist {
			return nil, &record.ValidationError{Field: "parent_checklist_id", Reason: "parent is not a checklist"}
		}
	}

	payload := &record.ChecklistPayload{ParentChecklistID: parentID}
	for _, content := range items {
		payload.Items = append(payload.Items, record.ChecklistItem{
			ID:      e.ids.Generate(""),
			Content: content,
		})
	}

	now := time.Now().UTC()
	r := &record.Record{
		ID:         e.ids.Generate(""),
		Kind:       record.KindChecklist,
		Body:       body,
		Workspace:  workspace,
		Tags:       tags,
		CreatedAt:  now,
		ModifiedAt: now,
		Checklist:  payload,
	}
	if err := e.store.Insert(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateChecklistItem flips one item's completion flag in place and
// returns the derived progress. Un-completing an item clears its
// completion timestamp.
func (e *Engine) UpdateChecklistItem(ctx context.Context, checklistID, itemID string, isCompleted bool) (*ChecklistProgress, error) {
	r, err := e.store.GetByID(ctx, checklistID)
	if err != nil {
		return nil, err
	}
	if r.Kind != record.KindChecklist || r.Checklist == nil {
		return nil, &record.ValidationError{Field: "checklist_id", Reason: fmt.Sprintf("record %s is a %s, not a checklist", checklistID, r.Kind)}
	}

	found := false
	for i := range r.Checklist.Items {
		if r.Checklist.Items[i].ID != itemID {
			continue
		}
		found = true
		r.Checklist.Items[i].IsCompleted = isCompleted
		if isCompleted {
			now := time.Now().UTC()
			r.Checklist.Items[i].CompletedAt = &now
		} else {
			r.Checklist.Items[i].CompletedAt = nil
		}
		break
	}
	if !found {
		return nil, &record.NotFoundError{Op: "update checklist item", ID: itemID, Side: "item"}
	}

	if err := e.store.UpdateFields(ctx, checklistID, store.Fields{Checklist: r.Checklist}); err != nil {
		return nil, err
	}

	progress := Progress(r.Checklist)
	return &progress, nil
}
