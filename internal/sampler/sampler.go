package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/speedwagon-io/envstream/internal/metrics"
	"github.com/speedwagon-io/envstream/internal/model"
	"github.com/speedwagon-io/envstream/internal/sensor"
)

var ErrInvalidInterval = errors.New("polling interval must be positive")

// Publisher receives every accepted snapshot set. Publish may block to apply
// backpressure.
type Publisher interface {
	Publish(ctx context.Context, snaps []model.SensorSnapshot) error
}

type Options struct {
	Interval time.Duration
	// ReferenceType is the sensor type that must be present for a cycle to be
	// published.
	ReferenceType     string
	LowLightThreshold float32
}

type Sampler struct {
	log       *slog.Logger
	sensors   []sensor.Sensor
	publisher Publisher
	metrics   *metrics.Metrics
	opts      Options
	now       func() time.Time

	lastPublish atomic.Int64
}

func New(
	log *slog.Logger,
	sensors []sensor.Sensor,
	publisher Publisher,
	opts Options,
	m *metrics.Metrics,
) (*Sampler, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, opts.Interval)
	}

	return &Sampler{
		log:       log.With(slog.String("component", "sampler")),
		sensors:   sensors,
		publisher: publisher,
		metrics:   m,
		opts:      opts,
		now:       time.Now,
	}, nil
}

// Run samples until ctx is cancelled or a sensor fails. A sensor failure is
// returned as is; cancellation returns nil.
func (s *Sampler) Run(ctx context.Context) error {
	s.log.Info("starting sampler",
		slog.Int("sensors", len(s.sensors)),
		slog.Duration("interval", s.opts.Interval),
		slog.String("reference_type", s.opts.ReferenceType),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("context cancelled, stopping sampler")
			return nil
		case <-timer.C:
		}

		if _, err := s.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				s.log.Info("context cancelled, stopping sampler")
				return nil
			}
			return err
		}

		timer.Reset(s.opts.Interval)
	}
}

// Cycle runs one measure/read pass over every sensor and publishes the result
// unless no reference sensor is registered. It reports whether it published.
func (s *Sampler) Cycle(ctx context.Context) (bool, error) {
	s.log.Debug("reading sensors", slog.Int64("at", s.now().Unix()))

	for _, sn := range s.sensors {
		if err := sn.Measure(ctx); err != nil {
			return false, fmt.Errorf("sensor %q measure: %w", sn.Name(), err)
		}
	}

	for _, sn := range s.sensors {
		if err := sn.Read(ctx); err != nil {
			return false, fmt.Errorf("sensor %q read: %w", sn.Name(), err)
		}
	}

	snaps := make([]model.SensorSnapshot, 0, len(s.sensors))
	for _, sn := range s.sensors {
		snaps = append(snaps, sn.Snapshot())
	}

	if !s.checkReference(snaps) {
		s.metrics.CycleSkipped()
		return false, nil
	}

	start := s.now()
	if err := s.publisher.Publish(ctx, snaps); err != nil {
		return false, fmt.Errorf("failed to publish snapshots: %w", err)
	}
	at := s.now()

	s.lastPublish.Store(at.UnixNano())
	s.metrics.CyclePublished(at.Sub(start), at)

	return true, nil
}

// checkReference reports whether snaps may be published. It warns, without
// rejecting, when the average reference reading is below the threshold.
func (s *Sampler) checkReference(snaps []model.SensorSnapshot) bool {
	var (
		sum   float32
		count int
		found bool
	)

	for _, snap := range snaps {
		if snap.Type != s.opts.ReferenceType {
			continue
		}
		found = true

		r, ok := snap.Reading(s.opts.ReferenceType)
		if !ok {
			readings := snap.Readings()
			if len(readings) == 0 {
				continue
			}
			r = readings[0]
		}
		sum += r.Value
		count++
	}

	if !found {
		s.log.Error(fmt.Sprintf("no %s sensor found", s.opts.ReferenceType))
		return false
	}

	if count > 0 {
		avg := sum / float32(count)
		if avg < s.opts.LowLightThreshold {
			s.log.Warn(fmt.Sprintf("%s is too low", s.opts.ReferenceType),
				slog.Float64("value", float64(avg)),
				slog.Float64("threshold", float64(s.opts.LowLightThreshold)),
			)
		}
	}

	return true
}

// LastPublish returns the time of the last successful publication, or the zero
// time if nothing was published yet.
func (s *Sampler) LastPublish() time.Time {
	ns := s.lastPublish.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *Sampler) Interval() time.Duration {
	return s.opts.Interval
}
