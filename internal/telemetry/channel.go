package telemetry

import (
	"context"
	"sync"

	"github.com/speedwagon-io/envstream/internal/model"
)

// DefaultCapacity is the number of snapshot sets Publish can queue before it blocks.
const DefaultCapacity = 2

// Channel hands the latest snapshot set from the sampling loop to consumers.
//
// Publish queues into a small bounded buffer and blocks while it is full. Any
// consumer call drains the buffer into a single cached value, so a consumer that
// falls behind only ever sees the newest set, never a backlog. Each Subscription
// tracks the version it last consumed; Latest ignores versions entirely.
//
// The queue is only ever received from while mu is held, so sets are stored in
// publication order.
type Channel struct {
	queue  chan []model.SensorSnapshot
	notify chan struct{}

	mu      sync.Mutex
	latest  []model.SensorSnapshot
	version uint64
	wake    chan struct{}
}

// NewChannel returns a channel queueing up to capacity sets. A non-positive
// capacity selects DefaultCapacity.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{
		queue:  make(chan []model.SensorSnapshot, capacity),
		notify: make(chan struct{}, 1),
		latest: []model.SensorSnapshot{},
		wake:   make(chan struct{}),
	}
}

// Publish stores snaps for consumers, blocking until a slot is free or ctx is done.
// The caller must not mutate snaps afterwards.
func (c *Channel) Publish(ctx context.Context, snaps []model.SensorSnapshot) error {
	if snaps == nil {
		snaps = []model.SensorSnapshot{}
	}

	select {
	case c.queue <- snaps:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

// Latest never blocks. It returns the newest published set, the previously cached
// set when nothing new arrived, or an empty set before the first publication.
func (c *Channel) Latest() []model.SensorSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drainLocked()
	return model.CloneSnapshots(c.latest)
}

// Pending reports how many published sets are queued and not yet taken.
func (c *Channel) Pending() int {
	return len(c.queue)
}

// Version is incremented every time a published set is taken from the queue.
func (c *Channel) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Subscribe returns a cursor that only observes sets taken after this call.
func (c *Channel) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Subscription{ch: c, seen: c.version}
}

func (c *Channel) drainLocked() {
	for {
		select {
		case snaps := <-c.queue:
			c.storeLocked(snaps)
		default:
			return
		}
	}
}

func (c *Channel) storeLocked(snaps []model.SensorSnapshot) {
	c.latest = snaps
	c.version++
	close(c.wake)
	c.wake = make(chan struct{})
}

// Subscription is one consumer's view of a Channel. It is not safe for
// concurrent use by several goroutines.
type Subscription struct {
	ch   *Channel
	seen uint64
}

// Recv blocks until a set newer than the last one returned by this subscription
// is available, and returns the newest one.
func (s *Subscription) Recv(ctx context.Context) ([]model.SensorSnapshot, error) {
	c := s.ch
	for {
		c.mu.Lock()
		c.drainLocked()
		if c.version > s.seen {
			s.seen = c.version
			out := model.CloneSnapshots(c.latest)
			c.mu.Unlock()
			return out, nil
		}
		wake := c.wake
		c.mu.Unlock()

		select {
		case <-c.notify:
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
