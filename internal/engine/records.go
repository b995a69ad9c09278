package engine

import (
	"context"
	"time"

	"github.com/quill-mcp/quill/internal/record"
	"github.com/quill-mcp/quill/internal/store"
)

// SaveParams holds the input for creating a plain record (technical debt,
// insight, work note). Checkpoints and checklists have dedicated
// constructors that assign their structured payloads.
type SaveParams struct {
	Kind      record.Kind
	Body      string
	Workspace string
	Tags      []string
	Status    string
	Priority  string
}

// Save creates a new record. The id is assigned here and never changes.
func (e *Engine) Save(ctx context.Context, p SaveParams) (*record.Record, error) {
	if p.Body == "" {
		return nil, &record.ValidationError{Field: "body", Reason: "required"}
	}
	switch p.Kind {
	case record.KindTechnicalDebt, record.KindInsight, record.KindWorkNote:
	case record.KindCheckpoint, record.KindChecklist:
		return nil, &record.ValidationError{Field: "kind", Reason: string(p.Kind) + " records have a dedicated save operation"}
	default:
		return nil, &record.ValidationError{Field: "kind", Reason: "unknown kind"}
	}

	now := time.Now().UTC()
	r := &record.Record{
		ID:         e.ids.Generate(""),
		Kind:       p.Kind,
		Body:       p.Body,
		Workspace:  p.Workspace,
		Tags:       p.Tags,
		Status:     p.Status,
		Priority:   p.Priority,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := e.store.Insert(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Get retrieves a record by id. Archived records are retrievable by id
// even though default search excludes them. A successful read bumps the
// record's access count, best-effort, after the read itself succeeds.
func (e *Engine) Get(ctx context.Context, id string) (*record.Record, error) {
	r, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ctx.Err() == nil {
		if err := e.store.BumpAccess(ctx, []string{id}, time.Now()); err != nil {
			logf("WARNING: engine: access bump failed for %s: %v", id, err)
		}
	}
	return r, nil
}

// SetArchived archives or unarchives a record. Archived records drop out
// of default search but stay retrievable by id.
func (e *Engine) SetArchived(ctx context.Context, id string, archived bool) error {
	return e.store.UpdateFields(ctx, id, store.Fields{Archived: &archived})
}

// Delete removes a record; its incident relationships cascade.
func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.store.Delete(ctx, id)
}

// Stats returns aggregate store statistics.
func (e *Engine) Stats(ctx context.Context) (*store.Stats, error) {
	return e.store.Stats(ctx)
}

// Export dumps every record and relationship.
func (e *Engine) Export(ctx context.Context) (*store.Export, error) {
	return e.store.ExportAll(ctx)
}
