package diag

import (
	"errors"
	"fmt"
	"sync"

	"github.com/speedwagon-io/envstream/internal/model"
)

// DefaultCapacity matches the number of entries that comfortably fit into one
// telemetry frame next to the snapshots.
const DefaultCapacity = 21

var (
	ErrRingFull     = errors.New("diagnostic ring is full")
	ErrRingInactive = errors.New("diagnostic ring is inactive")
)

// Ring is a bounded FIFO of diagnostic entries. A push into a full ring fails
// instead of evicting older entries. A new ring is active.
type Ring struct {
	mu       sync.Mutex
	entries  []model.DiagnosticEntry
	capacity int
	inactive bool
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic(fmt.Sprintf("diag: ring capacity must be positive, got %d", capacity))
	}
	return &Ring{
		entries:  make([]model.DiagnosticEntry, 0, capacity),
		capacity: capacity,
	}
}

func (r *Ring) Push(entry model.DiagnosticEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inactive {
		return ErrRingInactive
	}
	if len(r.entries) >= r.capacity {
		return ErrRingFull
	}
	r.entries = append(r.entries, entry)
	return nil
}

// Drain removes and returns every buffered entry in arrival order.
// The result is never nil.
func (r *Ring) Drain() []model.DiagnosticEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.entries
	r.entries = make([]model.DiagnosticEntry, 0, r.capacity)
	return out
}

// Flush discards every buffered entry and reports how many were dropped.
func (r *Ring) Flush() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

// SetActive gates Push. Deactivating flushes in the same critical section, so
// no entry can be accepted between the two. It reports how many were flushed.
func (r *Ring) SetActive(active bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inactive = !active
	if active {
		return 0
	}
	return r.flushLocked()
}

func (r *Ring) flushLocked() int {
	n := len(r.entries)
	clear(r.entries)
	r.entries = r.entries[:0]
	return n
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Ring) Cap() int {
	return r.capacity
}
