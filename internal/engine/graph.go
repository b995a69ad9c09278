package engine

import (
	"context"
	"time"

	"github.com/quill-mcp/quill/internal/record"
)

// defaultRelationType applies when a link names no type.
const defaultRelationType = "relates_to"

// maxExpandDepth bounds breadth-first expansion.
const maxExpandDepth = 5

// Link creates a directed typed edge between two existing records. It is
// idempotent on the (from, to, type) key: re-linking overwrites metadata
// without duplicating the edge. A missing endpoint fails with a
// NotFoundError naming the missing side.
func (e *Engine) Link(ctx context.Context, fromID, toID, relType string, metadata map[string]string) (*record.Relationship, error) {
	if fromID == toID {
		return nil, &record.ValidationError{Field: "to_id", Reason: "cannot link a record to itself"}
	}
	if relType == "" {
		relType = defaultRelationType
	}

	if _, err := e.store.GetByID(ctx, fromID); err != nil {
		if record.IsNotFound(err) {
			return nil, &record.NotFoundError{Op: "link", ID: fromID, Side: "from"}
		}
		return nil, err
	}
	if _, err := e.store.GetByID(ctx, toID); err != nil {
		if record.IsNotFound(err) {
			return nil, &record.NotFoundError{Op: "link", ID: toID, Side: "to"}
		}
		return nil, err
	}

	rel := record.Relationship{
		FromID:    fromID,
		ToID:      toID,
		Type:      relType,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.PutRelationship(ctx, rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// Neighbors returns the relationships incident to a record, filtered by
// direction.
func (e *Engine) Neighbors(ctx context.Context, id string, dir record.Direction) ([]record.Relationship, error) {
	if _, err := e.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return e.store.Relationships(ctx, id, dir)
}

// Expand performs a breadth-first walk of the relationship graph up to
// maxDepth hops from id. The visited set guarantees termination even when
// edges form a cycle. The result maps every visited id to the ids directly
// connected to it; ids at the depth bound are present with no neighbors.
// Depth 0 returns only the starting id. There is no weighting or
// shortest-path semantics, purely reachability within a hop bound.
func (e *Engine) Expand(ctx context.Context, id string, maxDepth int) (map[string][]string, error) {
	if maxDepth < 0 {
		maxDepth = 0
	}
	if maxDepth > maxExpandDepth {
		maxDepth = maxExpandDepth
	}

	if _, err := e.store.GetByID(ctx, id); err != nil {
		return nil, err
	}

	type queueItem struct {
		id    string
		depth int
	}

	result := map[string][]string{id: {}}
	visited := map[string]bool{id: true}
	queue := []queueItem{{id: id, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			continue
		}

		rels, err := e.store.Relationships(ctx, current.id, record.DirBoth)
		if err != nil {
			return nil, err
		}

		// Multiple edges between the same pair (different types, or
		// reciprocal links) still mean one connected id.
		seen := make(map[string]bool, len(rels))
		for _, rel := range rels {
			other := rel.ToID
			if other == current.id {
				other = rel.FromID
			}

			if !seen[other] {
				seen[other] = true
				result[current.id] = append(result[current.id], other)
			}

			if visited[other] {
				continue
			}
			visited[other] = true
			if _, ok := result[other]; !ok {
				result[other] = []string{}
			}
			queue = append(queue, queueItem{id: other, depth: current.depth + 1})
		}
	}

	return result, nil
}
