package engine

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/quill-mcp/quill/internal/record"
	"github.com/quill-mcp/quill/internal/store"
)

// TemporalMode selects how strongly recency influences ranking.
type TemporalMode string

const (
	TemporalDefault    TemporalMode = ""
	TemporalAggressive TemporalMode = "aggressive"
	TemporalGentle     TemporalMode = "gentle"
	TemporalNone       TemporalMode = "none"
)

// substringScore is the flat text-match strength assigned to substring
// fallback hits; full-text hits get 1.0.
const substringScore = 0.7

// SearchRequest is the upward search contract.
type SearchRequest struct {
	Query           string
	Workspace       string
	Kinds           []record.Kind
	Status          string
	Priority        string
	Tags            []string
	MaxResults      int
	TokenBudget     int
	Temporal        TemporalMode
	SortBy          store.OrderHint // used when Temporal is "none"
	IncludeArchived bool
}

// ScoredRecord pairs a record with its relevance score.
type ScoredRecord struct {
	record.Record
	Score float64 `json:"score"`

	// textScore is the raw text-match strength before weighting: 1.0 for
	// full-text hits, a flat constant for substring hits, 0 when the
	// query had no free text.
	textScore float64
}

// SearchResponse is the shaped search result. Items are a strict
// score-order prefix of the ranked candidate list.
type SearchResponse struct {
	Items          []ScoredRecord
	TotalCount     int
	Truncated      bool
	OverflowHandle *record.OverflowHandle
	Warning        string
}

// Search ranks matching records and shapes them under the token budget.
//
// Structured field:value tokens inside the query become store predicates;
// the remaining free text goes through full-text search with a substring
// fallback. Access counts on returned records are bumped after the ranked
// list is finalized, best-effort, so a search never observes its own side
// effects.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	freeText, pred := e.parseQuery(req.Query)

	pred.IncludeArchived = pred.IncludeArchived || req.IncludeArchived
	pred.Kinds = append(pred.Kinds, req.Kinds...)
	if req.Status != "" {
		pred.Status = req.Status
	}
	if req.Priority != "" {
		pred.Priority = req.Priority
	}
	pred.Tags = append(pred.Tags, req.Tags...)

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = e.cfg.DefaultMaxResults
	}
	if maxResults > e.cfg.MaxResults {
		maxResults = e.cfg.MaxResults
	}
	if maxResults < 1 {
		maxResults = 1
	}

	candidates, err := e.candidates(ctx, freeText, req.Workspace, pred, req.SortBy)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range candidates {
		candidates[i].Score = e.score(&candidates[i], req.Temporal, now)
	}

	if req.Temporal == TemporalNone {
		// Mode "none" sorts purely by the explicit sort field. The
		// full-text path returns candidates in rank order, so the hint
		// must be applied here rather than trusted from the store.
		sortByHint(candidates, req.SortBy)
	} else {
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Score != candidates[j].Score {
				return candidates[i].Score > candidates[j].Score
			}
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		})
	}

	totalCount := len(candidates)
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	shaped := e.Shape(ctx, "search", candidates, req.TokenBudget)

	resp := &SearchResponse{
		Items:          shaped.Items,
		TotalCount:     totalCount,
		Truncated:      shaped.Truncated,
		OverflowHandle: shaped.Handle,
		Warning:        shaped.Warning,
	}

	// Side effect only after the ranked list is final, and never on a
	// cancelled request.
	if ctx.Err() == nil && len(resp.Items) > 0 {
		ids := make([]string, len(resp.Items))
		for i, it := range resp.Items {
			ids[i] = it.ID
		}
		if err := e.store.BumpAccess(ctx, ids, now); err != nil {
			logf("WARNING: engine: access bump failed for %d records: %v", len(ids), err)
		}
	}

	return resp, nil
}

// parseQuery extracts field:value tokens into a predicate and returns the
// remaining free text. Unknown filter fields are ignored, not errors.
func (e *Engine) parseQuery(query string) (string, store.Predicate) {
	var (
		pred store.Predicate
		text []string
	)
	for _, tok := range strings.Fields(query) {
		field, value, ok := strings.Cut(tok, ":")
		if !ok || value == "" {
			text = append(text, tok)
			continue
		}
		switch strings.ToLower(field) {
		case "kind", "type":
			if k, err := record.ParseKind(value); err == nil {
				pred.Kinds = append(pred.Kinds, k)
			}
		case "status":
			pred.Status = value
		case "priority":
			pred.Priority = value
		case "tag":
			pred.Tags = append(pred.Tags, value)
		case "session":
			pred.SessionID = value
		case "archived":
			pred.IncludeArchived = strings.EqualFold(value, "true")
		default:
			// Unknown filter field: drop the token entirely.
		}
	}
	return strings.Join(text, " "), pred
}

// candidates fetches the pre-ranking candidate set. Free text prefers the
// store's full-text engine and degrades to a substring predicate on any
// error; an empty query returns everything matching the predicate ordered
// by recency.
func (e *Engine) candidates(ctx context.Context, freeText, workspace string, pred store.Predicate, sortBy store.OrderHint) ([]ScoredRecord, error) {
	order := sortBy
	if order == "" {
		order = store.OrderCreatedDesc
	}

	if freeText == "" {
		recs, err := e.store.Query(ctx, workspace, pred, order, e.cfg.CandidateLimit)
		if err != nil {
			return nil, err
		}
		out := make([]ScoredRecord, len(recs))
		for i, r := range recs {
			out[i] = ScoredRecord{Record: r}
		}
		return out, nil
	}

	matches, err := e.store.FullTextSearch(ctx, freeText, workspace, e.cfg.CandidateLimit)
	if err == nil {
		var out []ScoredRecord
		for _, m := range matches {
			if !pred.IncludeArchived && m.Record.Archived {
				continue
			}
			if !matchesPredicate(m.Record, pred) {
				continue
			}
			out = append(out, ScoredRecord{Record: m.Record, textScore: 1.0})
		}
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	logf("WARNING: engine: full-text search unavailable, using substring fallback: %v", err)

	sub := pred
	sub.TextSubstring = freeText
	recs, err := e.store.Query(ctx, workspace, sub, order, e.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredRecord, len(recs))
	for i, r := range recs {
		out[i] = ScoredRecord{Record: r, textScore: substringScore}
	}
	return out, nil
}

// sortByHint orders records newest-first on the field the hint names,
// defaulting to creation time.
func sortByHint(items []ScoredRecord, order store.OrderHint) {
	key := func(r *ScoredRecord) time.Time {
		switch order {
		case store.OrderModifiedDesc:
			return r.ModifiedAt
		case store.OrderAccessedDesc:
			if r.LastAccessedAt != nil {
				return *r.LastAccessedAt
			}
			return time.Time{}
		default:
			return r.CreatedAt
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return key(&items[i]).After(key(&items[j]))
	})
}

// matchesPredicate applies structured filters to full-text hits, which the
// store returned unfiltered.
func matchesPredicate(r record.Record, p store.Predicate) bool {
	if len(p.Kinds) > 0 {
		found := false
		for _, k := range p.Kinds {
			if r.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p.Status != "" && r.Status != p.Status {
		return false
	}
	if p.Priority != "" && r.Priority != p.Priority {
		return false
	}
	for _, tag := range p.Tags {
		found := false
		for _, have := range r.Tags {
			if have == tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p.SessionID != "" {
		if r.Checkpoint == nil || r.Checkpoint.SessionID != p.SessionID {
			return false
		}
	}
	return true
}

// score combines text-match strength, recency decay, and access frequency.
func (e *Engine) score(r *ScoredRecord, mode TemporalMode, now time.Time) float64 {
	text, recency, freq := e.weightsFor(mode)

	ref := r.CreatedAt
	if e.cfg.RecencyFromModified {
		ref = r.ModifiedAt
	}
	ageDays := now.Sub(ref).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	decay := math.Exp(-ageDays * math.Ln2 / e.cfg.HalfLifeDays)

	frequency := 0.0
	if r.AccessCount > 0 {
		frequency = math.Log(float64(r.AccessCount)+1) / math.Log(100)
		if frequency > 1 {
			frequency = 1
		}
	}

	return text*r.textScore + recency*decay + freq*frequency
}

// weightsFor scales the recency weight for the temporal mode. "none"
// disables the recency term entirely.
func (e *Engine) weightsFor(mode TemporalMode) (text, recency, freq float64) {
	text = e.cfg.TextWeight
	recency = e.cfg.RecencyWeight
	freq = e.cfg.FrequencyWeight
	switch mode {
	case TemporalAggressive:
		recency *= 2
	case TemporalGentle:
		recency *= 0.5
	case TemporalNone:
		recency = 0
	}
	return text, recency, freq
}
