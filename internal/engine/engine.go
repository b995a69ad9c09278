// Package engine implements the retrieval, ranking, and response-shaping
// core of quill.
//
// It sits between the MCP tool layer and the record store: relevance
// scoring (text match + recency decay + access frequency), token-budget
// truncation with overflow offload, relationship graph traversal, and the
// monotonic sequencing used by checkpoints and checklists. The engine owns
// derivation only; durable state belongs to the store.
package engine

import (
	"log"
	"sync"

	"github.com/quill-mcp/quill/internal/ident"
	"github.com/quill-mcp/quill/internal/store"
)

// logf is a package-level var to allow test injection.
var logf = log.Printf

// Config holds engine tuning parameters.
type Config struct {
	// DefaultMaxResults applies when a search names no limit; MaxResults
	// caps any requested limit.
	DefaultMaxResults int
	MaxResults        int

	// CandidateLimit bounds how many candidates are fetched for ranking.
	CandidateLimit int

	// DataShare is the fraction of a token budget available to item data;
	// the remainder is reserved for envelope and summary overhead.
	DataShare float64

	// HalfLifeDays controls the recency decay term.
	HalfLifeDays float64

	// RecencyFromModified scores recency from modified_at instead of
	// created_at.
	RecencyFromModified bool

	// Base weights for the relevance score. Temporal modes scale the
	// recency weight (see weightsFor).
	TextWeight      float64
	RecencyWeight   float64
	FrequencyWeight float64
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		DefaultMaxResults: 10,
		MaxResults:        50,
		CandidateLimit:    200,
		DataShare:         0.7,
		HalfLifeDays:      7,
		TextWeight:        0.5,
		RecencyWeight:     0.3,
		FrequencyWeight:   0.2,
	}
}

// Engine is the retrieval and shaping core. One engine instance serves all
// concurrent requests of a workspace database; the only in-process lock is
// the per-session sequence guard.
type Engine struct {
	store store.Store
	ids   *ident.Generator
	cfg   Config

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// New creates an Engine over the given store.
func New(st store.Store, ids *ident.Generator, cfg Config) *Engine {
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = 10
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 200
	}
	if cfg.DataShare <= 0 || cfg.DataShare > 1 {
		cfg.DataShare = 0.7
	}
	if cfg.HalfLifeDays <= 0 {
		cfg.HalfLifeDays = 7
	}
	return &Engine{
		store:    st,
		ids:      ids,
		cfg:      cfg,
		sessions: make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing sequence assignment for one
// session key. Sequence correctness across processes relies on the store
// being the source of truth; this lock only serializes in-process writers.
func (e *Engine) sessionLock(sessionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.sessions[sessionID]
	if !ok {
		l = &sync.Mutex{}
		e.sessions[sessionID] = l
	}
	return l
}
