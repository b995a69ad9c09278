package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quill-mcp/quill/internal/record"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeFormat is the canonical column format. RFC3339Nano keeps
// sub-second precision so created_at tiebreaks stay meaningful.
const timeFormat = time.RFC3339Nano

// Config holds SQLite store configuration.
type Config struct {
	DataDir string
}

// DefaultConfig returns the default store configuration. The data
// directory can be overridden with QUILL_DATA_DIR.
func DefaultConfig() Config {
	if dir := os.Getenv("QUILL_DATA_DIR"); dir != "" {
		return Config{DataDir: dir}
	}
	home, _ := os.UserHomeDir()
	return Config{DataDir: filepath.Join(home, ".quill")}
}

// SQLiteStore implements Store using SQLite with FTS5.
type SQLiteStore struct {
	db *sql.DB
}

// compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// Open creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func Open(cfg Config) (*SQLiteStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w: %w", record.ErrStoreUnavailable, err)
	}

	db, err := openDB("sqlite", filepath.Join(cfg.DataDir, "quill.db"))
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w: %w", record.ErrStoreUnavailable, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: pragma %q: %w: %w", p, record.ErrStoreUnavailable, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w: %w", record.ErrStoreUnavailable, err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id               TEXT PRIMARY KEY,
			kind             TEXT NOT NULL,
			body             TEXT NOT NULL,
			workspace        TEXT NOT NULL,
			tags             TEXT NOT NULL DEFAULT '[]',
			status           TEXT,
			priority         TEXT,
			payload          TEXT,
			created_at       TEXT NOT NULL,
			modified_at      TEXT NOT NULL,
			last_accessed_at TEXT,
			access_count     INTEGER NOT NULL DEFAULT 0,
			archived         INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_rec_workspace ON records(workspace);
		CREATE INDEX IF NOT EXISTS idx_rec_kind      ON records(kind);
		CREATE INDEX IF NOT EXISTS idx_rec_created   ON records(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_rec_archived  ON records(archived);
		CREATE INDEX IF NOT EXISTS idx_rec_session   ON records(kind, json_extract(payload, '$.session_id'));

		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			body,
			tags,
			content='records',
			content_rowid='rowid'
		);

		CREATE TABLE IF NOT EXISTS relationships (
			from_id    TEXT NOT NULL,
			to_id      TEXT NOT NULL,
			type       TEXT NOT NULL,
			metadata   TEXT,
			created_at TEXT NOT NULL,
			PRIMARY KEY (from_id, to_id, type),
			FOREIGN KEY (from_id) REFERENCES records(id) ON DELETE CASCADE,
			FOREIGN KEY (to_id)   REFERENCES records(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_edge_from ON relationships(from_id);
		CREATE INDEX IF NOT EXISTS idx_edge_to   ON relationships(to_id);

		CREATE TABLE IF NOT EXISTS overflow_sets (
			handle     TEXT PRIMARY KEY,
			category   TEXT NOT NULL,
			item_count INTEGER NOT NULL,
			items      TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS sync triggers (idempotent: only created once)
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='rec_fts_insert'",
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		triggers := `
			CREATE TRIGGER rec_fts_insert AFTER INSERT ON records BEGIN
				INSERT INTO records_fts(rowid, body, tags)
				VALUES (new.rowid, new.body, new.tags);
			END;

			CREATE TRIGGER rec_fts_delete AFTER DELETE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, body, tags)
				VALUES ('delete', old.rowid, old.body, old.tags);
			END;

			CREATE TRIGGER rec_fts_update AFTER UPDATE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, body, tags)
				VALUES ('delete', old.rowid, old.body, old.tags);
				INSERT INTO records_fts(rowid, body, tags)
				VALUES (new.rowid, new.body, new.tags);
			END;
		`
		if _, err := s.db.Exec(triggers); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	return nil
}

// ─── Records ─────────────────────────────────────────────────────────────────

// Insert persists a new record.
func (s *SQLiteStore) Insert(ctx context.Context, r *record.Record) error {
	tags, err := json.Marshal(tagsOrEmpty(r.Tags))
	if err != nil {
		return fmt.Errorf("store: insert %s: encode tags: %w", r.ID, err)
	}
	payload, err := encodePayload(r)
	if err != nil {
		return fmt.Errorf("store: insert %s: %w", r.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, kind, body, workspace, tags, status, priority, payload,
		                      created_at, modified_at, last_accessed_at, access_count, archived)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Kind), r.Body, r.Workspace, string(tags),
		nullable(r.Status), nullable(r.Priority), payload,
		r.CreatedAt.UTC().Format(timeFormat),
		r.ModifiedAt.UTC().Format(timeFormat),
		nullableTime(r.LastAccessedAt),
		r.AccessCount, boolInt(r.Archived),
	)
	if err != nil {
		return fmt.Errorf("store: insert %s: %w", r.ID, err)
	}
	return nil
}

const recordColumns = `id, kind, body, workspace, tags, status, priority, payload,
	created_at, modified_at, last_accessed_at, access_count, archived`

// GetByID retrieves a record by id, including archived records.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*record.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &record.NotFoundError{Op: "get", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	return r, nil
}

// Query returns records matching the predicate.
func (s *SQLiteStore) Query(ctx context.Context, workspace string, p Predicate, order OrderHint, limit int) ([]record.Record, error) {
	var (
		where = []string{"1=1"}
		args  []any
	)

	if workspace != "" {
		where = append(where, "workspace = ?")
		args = append(args, workspace)
	}
	if !p.IncludeArchived {
		where = append(where, "archived = 0")
	}
	if len(p.Kinds) > 0 {
		ph := make([]string, len(p.Kinds))
		for i, k := range p.Kinds {
			ph[i] = "?"
			args = append(args, string(k))
		}
		where = append(where, "kind IN ("+strings.Join(ph, ", ")+")")
	}
	if p.Status != "" {
		where = append(where, "status = ?")
		args = append(args, p.Status)
	}
	if p.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, p.Priority)
	}
	for _, tag := range p.Tags {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(records.tags) WHERE json_each.value = ?)")
		args = append(args, tag)
	}
	if p.TextSubstring != "" {
		where = append(where, "(instr(lower(body), lower(?)) > 0 OR instr(lower(tags), lower(?)) > 0)")
		args = append(args, p.TextSubstring, p.TextSubstring)
	}
	if p.SessionID != "" {
		where = append(where, "kind = ? AND json_extract(payload, '$.session_id') = ?")
		args = append(args, string(record.KindCheckpoint), p.SessionID)
	}

	q := `SELECT ` + recordColumns + ` FROM records WHERE ` + strings.Join(where, " AND ")
	switch order {
	case OrderModifiedDesc:
		q += " ORDER BY modified_at DESC, id DESC"
	case OrderAccessedDesc:
		q += " ORDER BY access_count DESC, created_at DESC"
	default:
		q += " ORDER BY created_at DESC, id DESC"
	}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: query: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateFields applies a partial update and stamps modified_at.
func (s *SQLiteStore) UpdateFields(ctx context.Context, id string, f Fields) error {
	set := []string{"modified_at = ?"}
	args := []any{time.Now().UTC().Format(timeFormat)}

	if f.Body != nil {
		set = append(set, "body = ?")
		args = append(args, *f.Body)
	}
	if f.Status != nil {
		set = append(set, "status = ?")
		args = append(args, nullable(*f.Status))
	}
	if f.Priority != nil {
		set = append(set, "priority = ?")
		args = append(args, nullable(*f.Priority))
	}
	if f.Tags != nil {
		tags, err := json.Marshal(tagsOrEmpty(*f.Tags))
		if err != nil {
			return fmt.Errorf("store: update %s: encode tags: %w", id, err)
		}
		set = append(set, "tags = ?")
		args = append(args, string(tags))
	}
	if f.Archived != nil {
		set = append(set, "archived = ?")
		args = append(args, boolInt(*f.Archived))
	}
	if f.Checklist != nil {
		payload, err := json.Marshal(f.Checklist)
		if err != nil {
			return fmt.Errorf("store: update %s: encode payload: %w", id, err)
		}
		set = append(set, "payload = ?")
		args = append(args, string(payload))
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("store: update %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &record.NotFoundError{Op: "update", ID: id}
	}
	return nil
}

// Delete removes a record; incident relationships cascade via foreign keys.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &record.NotFoundError{Op: "delete", ID: id}
	}
	return nil
}

// FullTextSearch runs an FTS5 query ranked by bm25. Errors signal that the
// capability is unavailable; callers fall back to substring Query.
func (s *SQLiteStore) FullTextSearch(ctx context.Context, query, workspace string, limit int) ([]Match, error) {
	fts := sanitizeFTS(query)
	if fts == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT ` + prefixColumns("r") + `, f.rank
		FROM records_fts f
		JOIN records r ON r.rowid = f.rowid
		WHERE records_fts MATCH ?
	`
	args := []any{fts}
	if workspace != "" {
		q += " AND r.workspace = ?"
		args = append(args, workspace)
	}
	q += " ORDER BY f.rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: fts: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("store: fts: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// BumpAccess increments access counters. Concurrent bumps on the same
// record may race at the caller level; the counter is approximate
// analytics, not a correctness-critical value.
func (s *SQLiteStore) BumpAccess(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	ph := make([]string, len(ids))
	args := []any{at.UTC().Format(timeFormat)}
	for i, id := range ids {
		ph[i] = "?"
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE records
		 SET access_count = access_count + 1, last_accessed_at = ?
		 WHERE id IN (`+strings.Join(ph, ", ")+`)`, args...)
	if err != nil {
		return fmt.Errorf("store: bump access: %w", err)
	}
	return nil
}

// ─── Stats / Export ──────────────────────────────────────────────────────────

// Stats returns aggregate counts across the store.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByKind: make(map[record.Kind]int)}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&st.TotalRecords); err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	_ = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM relationships").Scan(&st.TotalEdges)
	_ = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM overflow_sets").Scan(&st.TotalOverflow)

	rows, err := s.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM records GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		st.ByKind[record.Kind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	wsRows, err := s.db.QueryContext(ctx,
		"SELECT workspace FROM records GROUP BY workspace ORDER BY MAX(created_at) DESC")
	if err != nil {
		return st, nil
	}
	defer wsRows.Close()
	for wsRows.Next() {
		var ws string
		if err := wsRows.Scan(&ws); err == nil {
			st.Workspaces = append(st.Workspaces, ws)
		}
	}
	return st, nil
}

// ExportAll dumps every record and relationship in creation order.
func (s *SQLiteStore) ExportAll(ctx context.Context) (*Export, error) {
	out := &Export{Version: "1", ExportedAt: time.Now().UTC()}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: export records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: export records: %w", err)
		}
		out.Records = append(out.Records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	relRows, err := s.db.QueryContext(ctx,
		`SELECT from_id, to_id, type, metadata, created_at FROM relationships ORDER BY created_at, from_id`)
	if err != nil {
		return nil, fmt.Errorf("store: export relationships: %w", err)
	}
	defer relRows.Close()
	for relRows.Next() {
		rel, err := scanRelationship(relRows)
		if err != nil {
			return nil, fmt.Errorf("store: export relationships: %w", err)
		}
		out.Relationships = append(out.Relationships, *rel)
	}
	return out, relRows.Err()
}

// ─── Scan helpers ────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

// recordRow holds the raw column values of one records row before decoding.
type recordRow struct {
	r                         record.Record
	kind, tags                string
	status, priority, payload sql.NullString
	createdAt, modifiedAt     string
	lastAccessedAt            sql.NullString
	archived                  int
}

func (rr *recordRow) dests() []any {
	return []any{
		&rr.r.ID, &rr.kind, &rr.r.Body, &rr.r.Workspace, &rr.tags,
		&rr.status, &rr.priority, &rr.payload,
		&rr.createdAt, &rr.modifiedAt, &rr.lastAccessedAt,
		&rr.r.AccessCount, &rr.archived,
	}
}

func (rr *recordRow) decode() (*record.Record, error) {
	r := &rr.r
	r.Kind = record.Kind(rr.kind)
	r.Status = rr.status.String
	r.Priority = rr.priority.String
	r.Archived = rr.archived != 0

	if err := json.Unmarshal([]byte(rr.tags), &r.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if len(r.Tags) == 0 {
		r.Tags = nil
	}

	var err error
	if r.CreatedAt, err = time.Parse(timeFormat, rr.createdAt); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	if r.ModifiedAt, err = time.Parse(timeFormat, rr.modifiedAt); err != nil {
		return nil, fmt.Errorf("decode modified_at: %w", err)
	}
	if rr.lastAccessedAt.Valid {
		t, err := time.Parse(timeFormat, rr.lastAccessedAt.String)
		if err != nil {
			return nil, fmt.Errorf("decode last_accessed_at: %w", err)
		}
		r.LastAccessedAt = &t
	}

	if rr.payload.Valid && rr.payload.String != "" {
		if err := decodePayload(r, []byte(rr.payload.String)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func scanRecord(row rowScanner) (*record.Record, error) {
	var rr recordRow
	if err := row.Scan(rr.dests()...); err != nil {
		return nil, err
	}
	return rr.decode()
}

func scanMatch(rows *sql.Rows) (*Match, error) {
	var (
		rr   recordRow
		rank float64
	)
	if err := rows.Scan(append(rr.dests(), &rank)...); err != nil {
		return nil, err
	}
	r, err := rr.decode()
	if err != nil {
		return nil, err
	}
	return &Match{Record: *r, Rank: rank}, nil
}

// encodePayload serializes the kind-specific payload, enforcing that the
// payload matches the record's kind.
func encodePayload(r *record.Record) (any, error) {
	switch {
	case r.Checkpoint != nil:
		if r.Kind != record.KindCheckpoint {
			return nil, fmt.Errorf("checkpoint payload on %s record", r.Kind)
		}
		b, err := json.Marshal(r.Checkpoint)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return string(b), nil
	case r.Checklist != nil:
		if r.Kind != record.KindChecklist {
			return nil, fmt.Errorf("checklist payload on %s record", r.Kind)
		}
		b, err := json.Marshal(r.Checklist)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return string(b), nil
	default:
		return nil, nil
	}
}

// decodePayload deserializes the payload column into the variant selected
// by the record's kind. Unknown kinds keep the payload undecoded rather
// than failing the read.
func decodePayload(r *record.Record, raw []byte) error {
	switch r.Kind {
	case record.KindCheckpoint:
		var p record.CheckpointPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decode checkpoint payload: %w", err)
		}
		r.Checkpoint = &p
	case record.KindChecklist:
		var p record.ChecklistPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decode checklist payload: %w", err)
		}
		r.Checklist = &p
	}
	return nil
}

func prefixColumns(alias string) string {
	cols := strings.Split(recordColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(timeFormat)
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// sanitizeFTS wraps each word in quotes for safe FTS5 queries.
// "fix auth bug" → `"fix" "auth" "bug"`
func sanitizeFTS(query string) string {
	var words []string
	for _, w := range strings.Fields(query) {
		w = strings.ReplaceAll(w, `"`, "")
		if w == "" {
			continue
		}
		words = append(words, `"`+w+`"`)
	}
	return strings.Join(words, " ")
}
