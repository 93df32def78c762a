// Package sensor holds the sensor capability interface and the drivers that
// can be configured for a device.
package sensor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/speedwagon-io/envstream/internal/config"
	"github.com/speedwagon-io/envstream/internal/model"
)

// Sensor is driven by the sampling loop: Measure triggers a conversion, Read
// collects the converted values into the sensor's snapshot.
type Sensor interface {
	Init(ctx context.Context) error
	Measure(ctx context.Context) error
	Read(ctx context.Context) error
	// Snapshot returns a copy of the last values read.
	Snapshot() model.SensorSnapshot
	Name() string
}

func New(log *slog.Logger, cfg config.SensorConfig) (Sensor, error) {
	switch cfg.Driver {
	case config.DriverStatic, "":
		return NewStaticSensor(cfg), nil
	case config.DriverHTTP:
		return NewHTTPSensor(log, cfg), nil
	case config.DriverFile:
		return NewFileSensor(log, cfg), nil
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", cfg.Driver)
	}
}

// Build creates every configured sensor in registration order.
func Build(log *slog.Logger, dev *config.DeviceConfig) ([]Sensor, error) {
	sensors := make([]Sensor, 0, len(dev.Sensors))
	for _, sc := range dev.Sensors {
		s, err := New(log, sc)
		if err != nil {
			return nil, fmt.Errorf("sensor %q: %w", sc.Name, err)
		}
		sensors = append(sensors, s)
	}
	return sensors, nil
}

// InitAll initializes sensors in order and stops at the first failure.
func InitAll(ctx context.Context, sensors []Sensor) error {
	for _, s := range sensors {
		if err := s.Init(ctx); err != nil {
			return fmt.Errorf("failed to init sensor %q: %w", s.Name(), err)
		}
	}
	return nil
}

func scaled(v, scale float64) float32 {
	if scale == 0 {
		scale = 1
	}
	return float32(v * scale)
}
