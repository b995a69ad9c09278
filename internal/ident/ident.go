// Package ident generates sortable record identifiers and overflow handles.
//
// Identifiers are ULIDs: a millisecond timestamp plus monotonic entropy,
// so lexicographic string order equals creation order without a separate
// index scan. Clock skew across processes is an accepted limitation.
package ident

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces unique, lexicographically sortable identifiers.
// Safe for concurrent use: the entropy source is serialized behind a lock,
// so two calls in the same millisecond still yield strictly increasing ids.
type Generator struct {
	entropy *ulid.LockedMonotonicReader
}

// New creates a Generator backed by crypto/rand monotonic entropy.
func New() *Generator {
	return &Generator{
		entropy: &ulid.LockedMonotonicReader{
			MonotonicReader: ulid.Monotonic(rand.Reader, 0),
		},
	}
}

// Generate returns a new identifier, optionally prepended with prefix.
// Generation cannot fail; within one process ids are unique and
// non-decreasing as long as the host clock is non-decreasing.
func (g *Generator) Generate(prefix string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return prefix + id.String()
}

// Handle returns an opaque overflow handle of the form
// {category}-{timestamp}-{random}. Handles are write-once pointers to
// persisted result sets and are never queried, only read back verbatim.
func (g *Generator) Handle(category string) string {
	var salt [4]byte
	_, _ = rand.Read(salt[:])
	return fmt.Sprintf("%s-%d-%s", category, time.Now().UnixMilli(), hex.EncodeToString(salt[:]))
}
