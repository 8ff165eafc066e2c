package testutil

import (
	"fmt"
	"sync"
)

// SequentialTokenGenerator returns "<prefix>-0001", "<prefix>-0002", ...
//
// Transaction IDs are primary keys, so unlike a fixed token every call must
// yield a new value. The same scenario with a fresh generator produces
// byte-identical traces.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialTokenGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialTokenGenerator creates a generator. An empty prefix uses
// "txn".
func NewSequentialTokenGenerator(prefix string) *SequentialTokenGenerator {
	if prefix == "" {
		prefix = "txn"
	}
	return &SequentialTokenGenerator{prefix: prefix}
}

// Generate returns the next token.
//
// Implements revisionable.TokenGenerator.
func (g *SequentialTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialTokenGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
