package core

import (
	"sync"

	"github.com/jabolina/go-bus/pkg/bus/types"
)

// Entry is one committed value recorded by Storage, keyed by the node
// identity that produced it.
type Entry struct {
	Sender    types.Sender
	Timestamp uint64
	Content   types.Content
}

// Storage is the peer's commit log: every delivered node's content is
// appended here, in delivery order, so a Query-style read can dump the
// full history without going back through the (by-then-empty) queue.
// Deliberately a plain in-memory slice, not a pool or shared-memory
// arena — an externally-addressable allocator behind the node handle is
// out of scope for a single-process core.
type Storage struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewStorage returns an empty commit log.
func NewStorage() *Storage {
	return &Storage{}
}

// Set appends one committed entry.
func (s *Storage) Set(sender types.Sender, timestamp uint64, content types.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{Sender: sender, Timestamp: timestamp, Content: content})
}

// Get returns every entry committed so far, in delivery order.
func (s *Storage) Get() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len reports how many entries the log currently holds.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
