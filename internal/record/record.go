// Package record defines the persisted knowledge unit and its kind-specific
// payloads.
//
// A Record is a tagged variant: the Kind enum selects which payload is
// meaningful, and payloads are decoded explicitly at the store boundary,
// never via open-ended runtime type dispatch.
package record

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the closed category tag of a Record.
type Kind string

const (
	KindCheckpoint    Kind = "checkpoint"
	KindChecklist     Kind = "checklist"
	KindTechnicalDebt Kind = "technical_debt"
	KindInsight       Kind = "insight"
	KindWorkNote      Kind = "work_note"
)

// Kinds lists every valid kind in a stable order.
var Kinds = []Kind{KindCheckpoint, KindChecklist, KindTechnicalDebt, KindInsight, KindWorkNote}

// ParseKind validates a kind string, accepting case-insensitive input.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range Kinds {
		if k == valid {
			return k, nil
		}
	}
	return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", s)}
}

// Record is the persisted unit. The id is assigned once at creation and
// never reassigned; kind is immutable after creation.
type Record struct {
	ID             string     `json:"id"`
	Kind           Kind       `json:"kind"`
	Body           string     `json:"body"`
	Workspace      string     `json:"workspace"`
	Tags           []string   `json:"tags,omitempty"`
	Status         string     `json:"status,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ModifiedAt     time.Time  `json:"modified_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	AccessCount    int        `json:"access_count"`
	Archived       bool       `json:"archived"`

	// Exactly one of these is non-nil, selected by Kind. Records whose
	// kind has no structured fields carry neither.
	Checkpoint *CheckpointPayload `json:"checkpoint,omitempty"`
	Checklist  *ChecklistPayload  `json:"checklist,omitempty"`
}

// CheckpointPayload holds the structured fields of a checkpoint record.
// Checkpoints are created once and never mutated.
type CheckpointPayload struct {
	SessionID      string   `json:"session_id"`
	SequenceNumber int      `json:"sequence_number"`
	ActiveFiles    []string `json:"active_files,omitempty"`
}

// ChecklistItem is one entry in a checklist's ordered item sequence.
type ChecklistItem struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ChecklistPayload holds the structured fields of a checklist record.
// Completion percentage and status are derived from Items at read time,
// never stored.
type ChecklistPayload struct {
	Items             []ChecklistItem `json:"items"`
	ParentChecklistID string          `json:"parent_checklist_id,omitempty"`
}

// Relationship is a directed typed edge between two records.
// The (FromID, ToID, Type) triple is unique; re-creating the same triple
// overwrites Metadata rather than duplicating the edge.
type Relationship struct {
	FromID    string            `json:"from_id"`
	ToID      string            `json:"to_id"`
	Type      string            `json:"type"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Direction filters relationship lookups relative to a record.
type Direction string

const (
	DirOutgoing Direction = "outgoing"
	DirIncoming Direction = "incoming"
	DirBoth     Direction = "both"
)

// ParseDirection validates a direction string, defaulting empty to Both.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirOutgoing:
		return DirOutgoing, nil
	case DirIncoming:
		return DirIncoming, nil
	case DirBoth, "":
		return DirBoth, nil
	}
	return "", &ValidationError{Field: "direction", Reason: "must be outgoing, incoming, or both"}
}

// OverflowHandle points at a persisted full result set that exceeded a
// token budget. Write-once; readable by exact handle only.
type OverflowHandle struct {
	Category  string    `json:"category"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ItemCount int       `json:"item_count"`
}
