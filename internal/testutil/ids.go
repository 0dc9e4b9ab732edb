package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable transition IDs ("<prefix>-0001",
// "<prefix>-0002", ...).
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with the same generator produces byte-identical history.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. If prefix is empty, "t" is used.
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "t"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements engine.IDGenerator.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
