package httpd

import (
	"context"
	"fmt"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

type HealthChecker interface {
	Name() string
	Check(ctx context.Context) (Status, string)
}

// PublishTracker is implemented by the sampling loop.
type PublishTracker interface {
	LastPublish() time.Time
	Interval() time.Duration
}

// SamplerHealthChecker reports degraded when no snapshot set was published
// within the last three polling intervals.
type SamplerHealthChecker struct {
	tracker PublishTracker
	now     func() time.Time
}

func NewSamplerHealthChecker(tracker PublishTracker) *SamplerHealthChecker {
	return &SamplerHealthChecker{tracker: tracker, now: time.Now}
}

func (c *SamplerHealthChecker) Name() string {
	return "sampler"
}

func (c *SamplerHealthChecker) Check(ctx context.Context) (Status, string) {
	last := c.tracker.LastPublish()
	if last.IsZero() {
		return StatusDegraded, "no snapshots published yet"
	}

	age := c.now().Sub(last)
	if age > 3*c.tracker.Interval() {
		return StatusDegraded, fmt.Sprintf("last publication %s ago", age.Truncate(time.Millisecond))
	}

	return StatusHealthy, ""
}

// SlotCounter is implemented by the WebSocket acceptor.
type SlotCounter interface {
	InUse() (used, limit int)
}

type StreamHealthChecker struct {
	slots SlotCounter
}

func NewStreamHealthChecker(slots SlotCounter) *StreamHealthChecker {
	return &StreamHealthChecker{slots: slots}
}

func (c *StreamHealthChecker) Name() string {
	return "stream"
}

func (c *StreamHealthChecker) Check(ctx context.Context) (Status, string) {
	used, limit := c.slots.InUse()
	msg := fmt.Sprintf("%d/%d connections", used, limit)
	if used >= limit {
		return StatusDegraded, msg
	}
	return StatusHealthy, msg
}
