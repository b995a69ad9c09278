package engine

import (
	"context"
	"time"

	"github.com/quill-mcp/quill/internal/record"
)

// charsPerToken is the serialized-size approximation: one token per four
// characters of the canonical field subset. Deterministic and cheap; an
// estimate, not an encoder run.
const charsPerToken = 4

// ShapedResult is the output of budget shaping. Items are always a strict
// prefix of the input in the same order: anything omitted scored no higher
// than what was kept.
type ShapedResult struct {
	Items     []ScoredRecord
	Truncated bool
	Handle    *record.OverflowHandle
	Warning   string
}

// EstimateTokens approximates the serialized token cost of one record.
func EstimateTokens(r *record.Record) int {
	chars := len(r.ID) + len(r.Kind) + len(r.Body) + len(r.Workspace) +
		len(r.Status) + len(r.Priority)
	for _, t := range r.Tags {
		chars += len(t) + 2
	}
	n := chars / charsPerToken
	if n < 1 {
		n = 1
	}
	return n
}

// Shape truncates a ranked list to fit a token budget. A budget of zero
// or less means unconstrained. When the list does not fit, a fixed share
// of the budget (cfg.DataShare) is given to item data (the rest is
// reserved for envelope overhead) and the full ranked list is persisted
// out-of-band under a fresh overflow handle.
//
// An offload write failure degrades softly: the truncated preview is still
// returned, without a handle, and the condition surfaces as a warning.
func (e *Engine) Shape(ctx context.Context, category string, ranked []ScoredRecord, tokenBudget int) ShapedResult {
	if tokenBudget <= 0 || len(ranked) == 0 {
		return ShapedResult{Items: ranked}
	}

	total := 0
	costs := make([]int, len(ranked))
	for i := range ranked {
		costs[i] = EstimateTokens(&ranked[i].Record)
		total += costs[i]
	}
	if total <= tokenBudget {
		return ShapedResult{Items: ranked}
	}

	// Greedy prefix selection: ranking order, not a knapsack optimum,
	// determines what is kept.
	dataBudget := int(float64(tokenBudget) * e.cfg.DataShare)
	kept := 0
	used := 0
	for i := range ranked {
		if used+costs[i] > dataBudget {
			break
		}
		used += costs[i]
		kept++
	}

	res := ShapedResult{Items: ranked[:kept], Truncated: kept < len(ranked)}
	if !res.Truncated {
		return res
	}

	full := make([]record.Record, len(ranked))
	for i := range ranked {
		full[i] = ranked[i].Record
	}
	handle := record.OverflowHandle{
		Category:  category,
		ID:        e.ids.Handle(category),
		CreatedAt: time.Now().UTC(),
		ItemCount: len(full),
	}
	if err := e.store.PutOverflow(ctx, handle, full); err != nil {
		logf("WARNING: engine: overflow offload failed for %s: %v", handle.ID, err)
		res.Warning = "result set exceeded the token budget and the overflow offload failed; omitted items are unavailable"
		return res
	}
	res.Handle = &handle
	return res
}

// Overflow reads back a persisted full result set by exact handle.
func (e *Engine) Overflow(ctx context.Context, handle string) (*record.OverflowHandle, []record.Record, error) {
	return e.store.GetOverflow(ctx, handle)
}
