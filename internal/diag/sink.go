package diag

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/speedwagon-io/envstream/internal/model"
)

// DropCounter is notified every time an entry is rejected by a full ring.
type DropCounter interface {
	DiagnosticDropped()
}

// Sink buffers diagnostic entries for streaming consumers. Entries are only
// accepted while the sink is active; deactivation discards whatever is buffered.
//
// log must not be routed back into this sink: it receives the local drop notes.
type Sink struct {
	log     *slog.Logger
	ring    *Ring
	drops   DropCounter
	now     func() time.Time
	active  atomic.Bool
	dropped atomic.Uint64

	attachMu sync.Mutex
	attached int
}

func NewSink(log *slog.Logger, capacity int, drops DropCounter) *Sink {
	ring := NewRing(capacity)
	ring.SetActive(false)

	return &Sink{
		log:   log.With(slog.String("component", "diag")),
		ring:  ring,
		drops: drops,
		now:   time.Now,
	}
}

// Record buffers entry if the sink is active. It never blocks on consumers.
func (s *Sink) Record(entry model.DiagnosticEntry) {
	if !s.active.Load() {
		return
	}

	if entry.Timestamp == 0 {
		entry.Timestamp = uint64(s.now().Unix())
	}

	err := s.ring.Push(entry)
	if errors.Is(err, ErrRingInactive) {
		return
	}
	if err != nil {
		s.dropped.Add(1)
		if s.drops != nil {
			s.drops.DiagnosticDropped()
		}
		s.log.Warn("failed to buffer diagnostic entry",
			slog.String("level", entry.Level),
			slog.String("source", entry.Source),
			slog.Int("capacity", s.ring.Cap()),
		)
	}
}

// Drain returns and removes all buffered entries in arrival order.
func (s *Sink) Drain() []model.DiagnosticEntry {
	return s.ring.Drain()
}

func (s *Sink) SetActive(active bool) {
	if active {
		s.ring.SetActive(true)
		s.active.Store(true)
		s.log.Info("remote diagnostics enabled")
		return
	}

	s.active.Store(false)
	flushed := s.ring.SetActive(false)
	s.log.Info("remote diagnostics disabled", slog.Int("flushed", flushed))
}

func (s *Sink) Active() bool {
	return s.active.Load()
}

// Attach activates the sink for a new streaming consumer. Detach deactivates it
// once the last consumer has gone.
func (s *Sink) Attach() {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()

	s.attached++
	if s.attached == 1 {
		s.SetActive(true)
	}
}

func (s *Sink) Detach() {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()

	if s.attached == 0 {
		return
	}
	s.attached--
	if s.attached == 0 {
		s.SetActive(false)
	}
}

func (s *Sink) Len() int {
	return s.ring.Len()
}

// Dropped is the number of entries rejected since creation.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}
