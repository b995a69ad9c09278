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

// PutOverflow persists a full result set under a write-once handle.
// Re-using a handle is rejected: handles are content-addressed pointers,
// never updated in place.
func (s *SQLiteStore) PutOverflow(ctx context.Context, h record.OverflowHandle, items []record.Record) error {
	body, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("store: put overflow %s: encode items: %w", h.ID, err)
	}

	createdAt := h.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO overflow_sets (handle, category, item_count, items, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		h.ID, h.Category, h.ItemCount, string(body), createdAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("store: put overflow %s: %w", h.ID, err)
	}
	return nil
}

// GetOverflow reads back an offloaded result set by exact handle. There is
// no querying inside an offloaded set.
func (s *SQLiteStore) GetOverflow(ctx context.Context, handle string) (*record.OverflowHandle, []record.Record, error) {
	var (
		h         record.OverflowHandle
		body      string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT handle, category, item_count, items, created_at
		 FROM overflow_sets WHERE handle = ?`, handle,
	).Scan(&h.ID, &h.Category, &h.ItemCount, &body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, &record.NotFoundError{Op: "get overflow", ID: handle, Side: "handle"}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: get overflow %s: %w", handle, err)
	}

	if h.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, nil, fmt.Errorf("store: get overflow %s: decode created_at: %w", handle, err)
	}

	var items []record.Record
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, nil, fmt.Errorf("store: get overflow %s: decode items: %w", handle, err)
	}
	return &h, items, nil
}
