package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quill-mcp/quill/internal/engine"
	"github.com/quill-mcp/quill/internal/ident"
	"github.com/quill-mcp/quill/internal/record"
	"github.com/quill-mcp/quill/internal/store"
)

// newTestEngine creates an engine over a temp-dir SQLite store.
func newTestEngine(t *testing.T) (*engine.Engine, *store.SQLiteStore) {
	t.Helper()
	s, err := store.Open(store.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return engine.New(s, ident.New(), engine.DefaultConfig()), s
}

func mustSave(t *testing.T, e *engine.Engine, kind record.Kind, body string) *record.Record {
	t.Helper()
	r, err := e.Save(context.Background(), engine.SaveParams{
		Kind:      kind,
		Body:      body,
		Workspace: "default",
	})
	if err != nil {
		t.Fatalf("save %q: %v", body, err)
	}
	return r
}

// ─── Save / Get ─────────────────────────────────────────────────────────────

func TestSave_RejectsStructuredKinds(t *testing.T) {
	e, _ := newTestEngine(t)

	for _, kind := range []record.Kind{record.KindCheckpoint, record.KindChecklist} {
		_, err := e.Save(context.Background(), engine.SaveParams{Kind: kind, Body: "x"})
		var ve *record.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Save(%s) err = %v, want ValidationError", kind, err)
		}
	}
}

func TestSave_RequiresBody(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Save(context.Background(), engine.SaveParams{Kind: record.KindInsight})
	var ve *record.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestGet_BumpsAccessCount(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	r := mustSave(t, e, record.KindInsight, "frequently read")

	if _, err := e.Get(ctx, r.ID); err != nil {
		t.Fatalf("first get: %v", err)
	}
	got, err := e.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	// The bump lands after the read, so the second get sees the first bump.
	if got.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", got.AccessCount)
	}
}

func TestArchive_HidesFromSearchButNotGet(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	r := mustSave(t, e, record.KindInsight, "retired decision")
	if err := e.SetArchived(ctx, r.ID, true); err != nil {
		t.Fatalf("SetArchived: %v", err)
	}

	resp, err := e.Search(ctx, engine.SearchRequest{Workspace: "default"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalCount != 0 {
		t.Errorf("archived record surfaced in default search, TotalCount = %d", resp.TotalCount)
	}

	if _, err := e.Get(ctx, r.ID); err != nil {
		t.Errorf("archived record not retrievable by id: %v", err)
	}

	resp, err = e.Search(ctx, engine.SearchRequest{Workspace: "default", IncludeArchived: true})
	if err != nil {
		t.Fatalf("Search include archived: %v", err)
	}
	if resp.TotalCount != 1 {
		t.Errorf("IncludeArchived TotalCount = %d, want 1", resp.TotalCount)
	}
}

// ─── Search ─────────────────────────────────────────────────────────────────

func TestSearch_FreeTextRanksMatchesOnly(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	hit1 := mustSave(t, e, record.KindInsight, "login rate limiting uses a token bucket")
	hit2 := mustSave(t, e, record.KindWorkNote, "reworked the login form validation")
	mustSave(t, e, record.KindWorkNote, "database migration for invoices")

	resp, err := e.Search(ctx, engine.SearchRequest{Query: "login", Workspace: "default"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalCount != 2 {
		t.Fatalf("TotalCount = %d, want 2", resp.TotalCount)
	}
	ids := map[string]bool{}
	for _, it := range resp.Items {
		ids[it.ID] = true
	}
	if !ids[hit1.ID] || !ids[hit2.ID] {
		t.Errorf("results %v missing a login record", ids)
	}
}

func TestSearch_InlineFilters(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	debt, err := e.Save(ctx, engine.SaveParams{
		Kind: record.KindTechnicalDebt, Body: "auth middleware skips rate limit",
		Workspace: "default", Status: "open", Priority: "high", Tags: []string{"auth"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Save(ctx, engine.SaveParams{
		Kind: record.KindInsight, Body: "auth flows use oidc",
		Workspace: "default", Tags: []string{"auth"},
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := e.Search(ctx, engine.SearchRequest{
		Query:     "kind:technical_debt status:open tag:auth",
		Workspace: "default",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalCount != 1 || resp.Items[0].ID != debt.ID {
		t.Fatalf("filtered search returned %d results, want just the open debt", resp.TotalCount)
	}
}

func TestSearch_MaxResultsCapsItemsNotTotal(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustSave(t, e, record.KindWorkNote, "caching layer note")
	}

	resp, err := e.Search(ctx, engine.SearchRequest{Query: "caching", Workspace: "default", MaxResults: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Errorf("Items = %d, want 2", len(resp.Items))
	}
	if resp.TotalCount != 5 {
		t.Errorf("TotalCount = %d, want 5 (full match count, not the page)", resp.TotalCount)
	}
}

func TestSearch_EmptyQueryReturnsRecent(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	mustSave(t, e, record.KindWorkNote, "first")
	last := mustSave(t, e, record.KindWorkNote, "second")

	resp, err := e.Search(ctx, engine.SearchRequest{Workspace: "default", Temporal: engine.TemporalNone})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalCount != 2 {
		t.Fatalf("TotalCount = %d, want 2", resp.TotalCount)
	}
	if resp.Items[0].ID != last.ID {
		t.Errorf("first item = %s, want newest record %s", resp.Items[0].ID, last.ID)
	}
}

func TestSearch_RecencyBreaksTies(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	// Two identical-text records, one much older. Equal text and frequency
	// terms leave recency to decide the order.
	old := &record.Record{
		ID: "old-rec", Kind: record.KindInsight, Body: "deploy pipeline caching",
		Workspace:  "default",
		CreatedAt:  time.Now().UTC().Add(-30 * 24 * time.Hour),
		ModifiedAt: time.Now().UTC().Add(-30 * 24 * time.Hour),
	}
	if err := s.Insert(ctx, old); err != nil {
		t.Fatal(err)
	}
	fresh := mustSave(t, e, record.KindInsight, "deploy pipeline caching")

	resp, err := e.Search(ctx, engine.SearchRequest{Query: "deploy pipeline", Workspace: "default"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalCount != 2 {
		t.Fatalf("TotalCount = %d, want 2", resp.TotalCount)
	}
	if resp.Items[0].ID != fresh.ID {
		t.Errorf("ranked %s first, want the fresh record", resp.Items[0].ID)
	}
	if resp.Items[0].Score <= resp.Items[1].Score {
		t.Errorf("scores not descending: %.4f then %.4f", resp.Items[0].Score, resp.Items[1].Score)
	}
}

func TestSearch_TemporalNoneSortsByExplicitField(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	// The older record matches the query far more strongly, so full-text
	// rank alone would put it first.
	old := &record.Record{
		ID: "old-strong", Kind: record.KindInsight,
		Body:       "cache invalidation cache warming cache eviction policy",
		Workspace:  "default",
		CreatedAt:  time.Now().UTC().Add(-30 * 24 * time.Hour),
		ModifiedAt: time.Now().UTC().Add(-30 * 24 * time.Hour),
	}
	if err := s.Insert(ctx, old); err != nil {
		t.Fatal(err)
	}
	fresh := mustSave(t, e, record.KindInsight, "notes on the cache layer")

	resp, err := e.Search(ctx, engine.SearchRequest{
		Query:     "cache",
		Workspace: "default",
		Temporal:  engine.TemporalNone,
		SortBy:    store.OrderCreatedDesc,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalCount != 2 {
		t.Fatalf("TotalCount = %d, want 2", resp.TotalCount)
	}
	if resp.Items[0].ID != fresh.ID {
		t.Errorf("first item %s, want the newest record %s", resp.Items[0].ID, fresh.ID)
	}
}

func TestSearch_FallsBackWhenFTSUnavailable(t *testing.T) {
	e, _ := newTestEngineWith(t, func(s store.Store) store.Store {
		return &failingStore{Store: s, failFTS: true}
	})
	ctx := context.Background()

	r := mustSave(t, e, record.KindInsight, "substring fallback target")

	resp, err := e.Search(ctx, engine.SearchRequest{Query: "fallback", Workspace: "default"})
	if err != nil {
		t.Fatalf("Search should degrade, not fail: %v", err)
	}
	if resp.TotalCount != 1 || resp.Items[0].ID != r.ID {
		t.Fatalf("fallback search returned %d results, want 1", resp.TotalCount)
	}
}

// ─── Budget shaping ─────────────────────────────────────────────────────────

func TestShape_UnconstrainedWhenNoBudget(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustSave(t, e, record.KindWorkNote, "some body text for the budget test")
	}

	resp, err := e.Search(ctx, engine.SearchRequest{Workspace: "default"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Truncated || resp.OverflowHandle != nil {
		t.Error("no budget given, nothing should be truncated or offloaded")
	}
	if len(resp.Items) != 3 {
		t.Errorf("Items = %d, want 3", len(resp.Items))
	}
}

func TestShape_TruncatesAndOffloads(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	long := make([]byte, 400)
	for i := range long {
		long[i] = 'x'
	}
	for i := 0; i < 5; i++ {
		mustSave(t, e, record.KindWorkNote, "budgeted resultset "+string(long))
	}

	resp, err := e.Search(ctx, engine.SearchRequest{
		Query:       "budgeted",
		Workspace:   "default",
		TokenBudget: 250, // each record costs ~100 tokens; five cannot fit
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !resp.Truncated {
		t.Fatal("expected truncation under a tight budget")
	}
	if len(resp.Items) >= 5 {
		t.Fatalf("Items = %d, want fewer than the full 5", len(resp.Items))
	}
	if resp.OverflowHandle == nil {
		t.Fatal("truncated response missing overflow handle")
	}
	if resp.OverflowHandle.ItemCount != 5 {
		t.Errorf("overflow ItemCount = %d, want the full 5", resp.OverflowHandle.ItemCount)
	}

	// The offloaded set holds the complete ranked list.
	h, items, err := e.Overflow(ctx, resp.OverflowHandle.ID)
	if err != nil {
		t.Fatalf("Overflow: %v", err)
	}
	if h.Category != "search" {
		t.Errorf("handle category = %q, want search", h.Category)
	}
	if len(items) != 5 {
		t.Errorf("offloaded %d items, want 5", len(items))
	}
	// And the preview is a strict prefix of it.
	for i, it := range resp.Items {
		if items[i].ID != it.ID {
			t.Errorf("preview item %d = %s, offloaded order has %s", i, it.ID, items[i].ID)
		}
	}
}

func TestShape_OffloadFailureDegradesSoftly(t *testing.T) {
	e, _ := newTestEngineWith(t, func(s store.Store) store.Store {
		return &failingStore{Store: s, failOverflow: true}
	})
	ctx := context.Background()

	long := make([]byte, 400)
	for i := range long {
		long[i] = 'y'
	}
	for i := 0; i < 5; i++ {
		mustSave(t, e, record.KindWorkNote, "softfail resultset "+string(long))
	}

	resp, err := e.Search(ctx, engine.SearchRequest{
		Query:       "softfail",
		Workspace:   "default",
		TokenBudget: 250,
	})
	if err != nil {
		t.Fatalf("Search must not fail when only the offload fails: %v", err)
	}
	if !resp.Truncated {
		t.Fatal("expected truncation")
	}
	if resp.OverflowHandle != nil {
		t.Error("failed offload must not produce a handle")
	}
	if resp.Warning == "" {
		t.Error("failed offload must surface a warning")
	}
}

func TestEstimateTokens_Minimum(t *testing.T) {
	n := engine.EstimateTokens(&record.Record{ID: "x"})
	if n < 1 {
		t.Errorf("EstimateTokens = %d, want at least 1", n)
	}
}

// ─── Graph ──────────────────────────────────────────────────────────────────

func TestLink_DefaultsTypeAndUpserts(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	a := mustSave(t, e, record.KindInsight, "a")
	b := mustSave(t, e, record.KindInsight, "b")

	rel, err := e.Link(ctx, a.ID, b.ID, "", nil)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if rel.Type != "relates_to" {
		t.Errorf("Type = %q, want relates_to", rel.Type)
	}

	if _, err := e.Link(ctx, a.ID, b.ID, "relates_to", map[string]string{"note": "updated"}); err != nil {
		t.Fatalf("re-link: %v", err)
	}

	rels, err := e.Neighbors(ctx, a.ID, record.DirOutgoing)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("edges = %d, want 1 after idempotent re-link", len(rels))
	}
	if rels[0].Metadata["note"] != "updated" {
		t.Errorf("metadata = %v, want overwritten", rels[0].Metadata)
	}
}

func TestLink_SelfAndMissingEndpoints(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	a := mustSave(t, e, record.KindInsight, "a")

	_, err := e.Link(ctx, a.ID, a.ID, "", nil)
	var ve *record.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("self-link err = %v, want ValidationError", err)
	}

	_, err = e.Link(ctx, a.ID, "ghost", "", nil)
	var nf *record.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("missing endpoint err = %v, want NotFoundError", err)
	}
	if nf.Side != "to" {
		t.Errorf("Side = %q, want to", nf.Side)
	}
}

func TestExpand_DepthAndCycles(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// a → b → c → a forms a cycle.
	a := mustSave(t, e, record.KindInsight, "a")
	b := mustSave(t, e, record.KindInsight, "b")
	c := mustSave(t, e, record.KindInsight, "c")
	for _, pair := range [][2]string{{a.ID, b.ID}, {b.ID, c.ID}, {c.ID, a.ID}} {
		if _, err := e.Link(ctx, pair[0], pair[1], "", nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := e.Expand(ctx, a.ID, 0)
	if err != nil {
		t.Fatalf("Expand depth 0: %v", err)
	}
	if len(got) != 1 || len(got[a.ID]) != 0 {
		t.Errorf("depth 0 = %v, want only the start with no neighbors", got)
	}

	got, err = e.Expand(ctx, a.ID, 1)
	if err != nil {
		t.Fatalf("Expand depth 1: %v", err)
	}
	// One hop from a reaches both b (outgoing) and c (incoming).
	if len(got[a.ID]) != 2 {
		t.Errorf("a's neighbors = %v, want b and c", got[a.ID])
	}
	if len(got[b.ID]) != 0 || len(got[c.ID]) != 0 {
		t.Error("frontier nodes at the depth bound must list no neighbors")
	}

	// The cycle must terminate at any depth.
	got, err = e.Expand(ctx, a.ID, 5)
	if err != nil {
		t.Fatalf("Expand depth 5: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("cycle expansion visited %d nodes, want 3", len(got))
	}
}

func TestExpand_ParallelEdgesListNeighborOnce(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	a := mustSave(t, e, record.KindInsight, "node a")
	b := mustSave(t, e, record.KindInsight, "node b")

	// Two edge types in one direction plus a reciprocal edge still mean a
	// single connected id.
	for _, typ := range []string{"relates_to", "blocks"} {
		if _, err := e.Link(ctx, a.ID, b.ID, typ, nil); err != nil {
			t.Fatalf("link %s: %v", typ, err)
		}
	}
	if _, err := e.Link(ctx, b.ID, a.ID, "references", nil); err != nil {
		t.Fatalf("link back: %v", err)
	}

	got, err := e.Expand(ctx, a.ID, 1)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if neighbors := got[a.ID]; len(neighbors) != 1 || neighbors[0] != b.ID {
		t.Errorf("a's neighbors = %v, want exactly [%s]", neighbors, b.ID)
	}
}

// ─── Checkpoints ────────────────────────────────────────────────────────────

func TestSaveCheckpoint_SequencesPerSession(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		res, err := e.SaveCheckpoint(ctx, "progress", "sess-a", nil, "default")
		if err != nil {
			t.Fatalf("SaveCheckpoint %d: %v", want, err)
		}
		if res.SequenceNumber != want {
			t.Errorf("SequenceNumber = %d, want %d", res.SequenceNumber, want)
		}
	}

	// A different session starts back at 1.
	res, err := e.SaveCheckpoint(ctx, "fresh", "sess-b", nil, "default")
	if err != nil {
		t.Fatalf("SaveCheckpoint other session: %v", err)
	}
	if res.SequenceNumber != 1 {
		t.Errorf("other session SequenceNumber = %d, want 1", res.SequenceNumber)
	}
}

func TestSaveCheckpoint_GeneratesSessionID(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.SaveCheckpoint(context.Background(), "start", "", nil, "default")
	if err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if res.SessionID == "" {
		t.Fatal("empty session id not replaced")
	}
	if res.SequenceNumber != 1 {
		t.Errorf("SequenceNumber = %d, want 1", res.SequenceNumber)
	}
}

func TestLatestCheckpoint_ReturnsHighestSequence(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	e.SaveCheckpoint(ctx, "one", "sess-x", nil, "default")
	e.SaveCheckpoint(ctx, "two", "sess-x", []string{"main.go"}, "default")

	latest, err := e.LatestCheckpoint(ctx, "sess-x")
	if err != nil {
		t.Fatalf("LatestCheckpoint: %v", err)
	}
	if latest.Body != "two" {
		t.Errorf("Body = %q, want the second checkpoint", latest.Body)
	}
	if latest.Checkpoint.SequenceNumber != 2 {
		t.Errorf("SequenceNumber = %d, want 2", latest.Checkpoint.SequenceNumber)
	}
}

// ─── Checklists ─────────────────────────────────────────────────────────────

func TestChecklist_ProgressDerivation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	cl, err := e.CreateChecklist(ctx, "release steps",
		[]string{"bump version", "tag", "build", "publish"}, "", "default", nil)
	if err != nil {
		t.Fatalf("CreateChecklist: %v", err)
	}
	if len(cl.Checklist.Items) != 4 {
		t.Fatalf("items = %d, want 4", len(cl.Checklist.Items))
	}

	p := engine.Progress(cl.Checklist)
	if p.Status != "Not Started" || p.CompletionPercentage != 0 {
		t.Errorf("fresh checklist progress = %+v, want Not Started at 0%%", p)
	}

	for i := 0; i < 2; i++ {
		var err error
		p2, err := e.UpdateChecklistItem(ctx, cl.ID, cl.Checklist.Items[i].ID, true)
		if err != nil {
			t.Fatalf("check item %d: %v", i, err)
		}
		if i == 1 {
			if p2.CompletionPercentage != 50.0 {
				t.Errorf("CompletionPercentage = %.1f, want 50.0", p2.CompletionPercentage)
			}
			if p2.Status != "In Progress (2/4)" {
				t.Errorf("Status = %q, want In Progress (2/4)", p2.Status)
			}
		}
	}

	// Complete the rest.
	var last *engine.ChecklistProgress
	for i := 2; i < 4; i++ {
		var err error
		last, err = e.UpdateChecklistItem(ctx, cl.ID, cl.Checklist.Items[i].ID, true)
		if err != nil {
			t.Fatal(err)
		}
	}
	if last.Status != "Completed" || last.CompletionPercentage != 100.0 {
		t.Errorf("final progress = %+v, want Completed at 100%%", last)
	}
}

func TestChecklist_UncheckClearsTimestamp(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	cl, err := e.CreateChecklist(ctx, "steps", []string{"only"}, "", "default", nil)
	if err != nil {
		t.Fatal(err)
	}
	item := cl.Checklist.Items[0].ID

	if _, err := e.UpdateChecklistItem(ctx, cl.ID, item, true); err != nil {
		t.Fatal(err)
	}
	if _, err := e.UpdateChecklistItem(ctx, cl.ID, item, false); err != nil {
		t.Fatal(err)
	}

	got, err := e.Get(ctx, cl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Checklist.Items[0].IsCompleted {
		t.Error("item still completed after uncheck")
	}
	if got.Checklist.Items[0].CompletedAt != nil {
		t.Error("CompletedAt not cleared on uncheck")
	}
}

func TestChecklist_ParentMustBeChecklist(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	note := mustSave(t, e, record.KindWorkNote, "not a checklist")

	_, err := e.CreateChecklist(ctx, "child", []string{"x"}, note.ID, "default", nil)
	var ve *record.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("non-checklist parent err = %v, want ValidationError", err)
	}

	_, err = e.CreateChecklist(ctx, "child", []string{"x"}, "ghost", "default", nil)
	var nf *record.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("missing parent err = %v, want NotFoundError", err)
	}
	if nf.Side != "parent" {
		t.Errorf("Side = %q, want parent", nf.Side)
	}
}

func TestUpdateChecklistItem_WrongKindAndMissingItem(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	note := mustSave(t, e, record.KindWorkNote, "plain note")
	_, err := e.UpdateChecklistItem(ctx, note.ID, "whatever", true)
	var ve *record.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("wrong kind err = %v, want ValidationError", err)
	}

	cl, err := e.CreateChecklist(ctx, "steps", []string{"a"}, "", "default", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.UpdateChecklistItem(ctx, cl.ID, "missing-item", true)
	var nf *record.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("missing item err = %v, want NotFoundError", err)
	}
	if nf.Side != "item" {
		t.Errorf("Side = %q, want item", nf.Side)
	}
}

// ─── Test doubles ───────────────────────────────────────────────────────────

// newTestEngineWith wraps the temp store before handing it to the engine.
func newTestEngineWith(t *testing.T, wrap func(store.Store) store.Store) (*engine.Engine, store.Store) {
	t.Helper()
	s, err := store.Open(store.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	wrapped := wrap(s)
	return engine.New(wrapped, ident.New(), engine.DefaultConfig()), wrapped
}

// failingStore injects failures into selected capabilities while delegating
// everything else to a real store.
type failingStore struct {
	store.Store
	failFTS      bool
	failOverflow bool
}

func (f *failingStore) FullTextSearch(ctx context.Context, query, workspace string, limit int) ([]store.Match, error) {
	if f.failFTS {
		return nil, errors.New("fts disabled")
	}
	return f.Store.FullTextSearch(ctx, query, workspace, limit)
}

func (f *failingStore) PutOverflow(ctx context.Context, h record.OverflowHandle, items []record.Record) error {
	if f.failOverflow {
		return errors.New("offload disabled")
	}
	return f.Store.PutOverflow(ctx, h, items)
}
