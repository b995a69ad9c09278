// Package store provides the record storage interface and its SQLite
// implementation.
//
// The engine consumes storage only through the Store interface: simple
// predicate queries, partial field updates, and an optional full-text
// search that callers may fall back from on any error. Nothing above this
// package encodes assumptions about which physical store is behind it.
package store

import (
	"context"
	"time"

	"github.com/quill-mcp/quill/internal/record"
)

// Predicate is a conjunction of simple filters applied by Query.
// Zero-valued fields are ignored.
type Predicate struct {
	Kinds           []record.Kind
	Status          string
	Priority        string
	Tags            []string // record must carry every listed tag
	TextSubstring   string   // case-insensitive match over body and tags
	SessionID       string   // checkpoint payload session filter
	IncludeArchived bool
}

// OrderHint selects the sort order of Query results.
type OrderHint string

const (
	OrderCreatedDesc  OrderHint = "created_desc"
	OrderModifiedDesc OrderHint = "modified_desc"
	OrderAccessedDesc OrderHint = "accessed_desc"
)

// Fields holds a partial update. Nil pointers leave the column untouched.
// Every update stamps modified_at; kind and id are immutable.
type Fields struct {
	Body     *string
	Status   *string
	Priority *string
	Tags     *[]string
	Archived *bool

	// Checklist is the only payload that mutates in place (item
	// completion flips); checkpoints are write-once.
	Checklist *record.ChecklistPayload
}

// Match is a full-text search hit with the engine-supplied rank.
// SQLite FTS5 ranks are negative (more negative = better match).
type Match struct {
	Record record.Record
	Rank   float64
}

// Stats holds aggregate store statistics.
type Stats struct {
	TotalRecords  int                 `json:"total_records"`
	TotalEdges    int                 `json:"total_edges"`
	TotalOverflow int                 `json:"total_overflow_sets"`
	ByKind        map[record.Kind]int `json:"by_kind"`
	Workspaces    []string            `json:"workspaces"`
}

// Export is the full serializable dump of the store.
type Export struct {
	Version       string                `json:"version"`
	ExportedAt    time.Time             `json:"exported_at"`
	Records       []record.Record       `json:"records"`
	Relationships []record.Relationship `json:"relationships"`
}

// Store is the narrow contract the engine requires from durable storage.
// All blocking operations take a context and abort before any write when
// the context is cancelled.
type Store interface {
	// Insert persists a new record. The record's id must be unique.
	Insert(ctx context.Context, r *record.Record) error

	// GetByID retrieves a record by id. Archived records are returned;
	// a missing id yields a NotFoundError.
	GetByID(ctx context.Context, id string) (*record.Record, error)

	// Query returns records in one workspace matching the predicate,
	// ordered by the hint, up to limit (0 means no limit). An empty
	// workspace queries across all workspaces.
	Query(ctx context.Context, workspace string, p Predicate, order OrderHint, limit int) ([]record.Record, error)

	// UpdateFields applies a partial update to an existing record.
	UpdateFields(ctx context.Context, id string, f Fields) error

	// Delete removes a record and cascades to its incident relationships.
	Delete(ctx context.Context, id string) error

	// FullTextSearch runs an engine-ranked text query. Callers treat any
	// error as "capability unavailable" and fall back to Query with a
	// substring predicate.
	FullTextSearch(ctx context.Context, query, workspace string, limit int) ([]Match, error)

	// BumpAccess increments access_count and stamps last_accessed_at on
	// each id. Best-effort from the caller's perspective.
	BumpAccess(ctx context.Context, ids []string, at time.Time) error

	// PutRelationship upserts an edge on its (from, to, type) key,
	// overwriting metadata on conflict.
	PutRelationship(ctx context.Context, rel record.Relationship) error

	// Relationships returns edges incident to id, filtered by direction.
	Relationships(ctx context.Context, id string, dir record.Direction) ([]record.Relationship, error)

	// CountCheckpoints returns how many checkpoints exist for a session.
	CountCheckpoints(ctx context.Context, sessionID string) (int, error)

	// LatestCheckpoint returns the highest-sequence checkpoint for a
	// session, or a NotFoundError when the session has none.
	LatestCheckpoint(ctx context.Context, sessionID string) (*record.Record, error)

	// PutOverflow persists a full result set under a write-once handle.
	PutOverflow(ctx context.Context, h record.OverflowHandle, items []record.Record) error

	// GetOverflow reads back an offloaded result set by exact handle.
	GetOverflow(ctx context.Context, handle string) (*record.OverflowHandle, []record.Record, error)

	// Stats returns aggregate counts.
	Stats(ctx context.Context) (*Stats, error)

	// ExportAll dumps every record and relationship.
	ExportAll(ctx context.Context) (*Export, error)

	Close() error
}
