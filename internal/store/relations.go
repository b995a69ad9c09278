package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quill-mcp/quill/internal/record"
)

// PutRelationship upserts an edge on its (from, to, type) key. Both
// endpoints must exist; the foreign keys reject dangling edges, but the
// engine validates first so it can name the missing side.
func (s *SQLiteStore) PutRelationship(ctx context.Context, rel record.Relationship) error {
	var meta *string
	if len(rel.Metadata) > 0 {
		b, err := json.Marshal(rel.Metadata)
		if err != nil {
			return fmt.Errorf("store: put relationship: encode metadata: %w", err)
		}
		v := string(b)
		meta = &v
	}

	createdAt := rel.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relationships (from_id, to_id, type, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(from_id, to_id, type) DO UPDATE SET metadata = excluded.metadata`,
		rel.FromID, rel.ToID, rel.Type, meta, createdAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("store: put relationship %s->%s (%s): %w", rel.FromID, rel.ToID, rel.Type, err)
	}
	return nil
}

// Relationships returns edges incident to id, filtered by direction,
// oldest first.
func (s *SQLiteStore) Relationships(ctx context.Context, id string, dir record.Direction) ([]record.Relationship, error) {
	q := `SELECT from_id, to_id, type, metadata, created_at FROM relationships WHERE `
	var args []any
	switch dir {
	case record.DirOutgoing:
		q += "from_id = ?"
		args = append(args, id)
	case record.DirIncoming:
		q += "to_id = ?"
		args = append(args, id)
	default:
		q += "(from_id = ? OR to_id = ?)"
		args = append(args, id, id)
	}
	q += " ORDER BY created_at ASC, from_id, to_id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: relationships for %s: %w", id, err)
	}
	defer rows.Close()

	var out []record.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("store: relationships for %s: %w", id, err)
		}
		out = append(out, *rel)
	}
	return out, rows.Err()
}

func scanRelationship(rows *sql.Rows) (*record.Relationship, error) {
	var (
		rel       record.Relationship
		meta      sql.NullString
		createdAt string
	)
	if err := rows.Scan(&rel.FromID, &rel.ToID, &rel.Type, &meta, &createdAt); err != nil {
		return nil, err
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &rel.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	t, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	rel.CreatedAt = t
	return &rel, nil
}

// ─── Checkpoints ─────────────────────────────────────────────────────────────

// CountCheckpoints returns the number of checkpoints stored for a session.
// The store is the source of truth for sequence numbers: deriving the next
// ordinal from this count survives process restarts.
func (s *SQLiteStore) CountCheckpoints(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records
		 WHERE kind = ? AND json_extract(payload, '$.session_id') = ?`,
		string(record.KindCheckpoint), sessionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count checkpoints for %s: %w", sessionID, err)
	}
	return n, nil
}

// LatestCheckpoint returns the highest-sequence checkpoint for a session.
func (s *SQLiteStore) LatestCheckpoint(ctx context.Context, sessionID string) (*record.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE kind = ? AND json_extract(payload, '$.session_id') = ?
		 ORDER BY json_extract(payload, '$.sequence_number') DESC
		 LIMIT 1`,
		string(record.KindCheckpoint), sessionID,
	)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &record.NotFoundError{Op: "latest checkpoint", ID: sessionID, Side: "session"}
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest checkpoint for %s: %w", sessionID, err)
	}
	return r, nil
}
