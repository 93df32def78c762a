package sensor

import (
	"context"
	"math/rand"

	"github.com/speedwagon-io/envstream/internal/config"
	"github.com/speedwagon-io/envstream/internal/model"
)

// StaticSensor reports configured values, optionally with uniform jitter.
// It stands in for hardware on bench setups.
type StaticSensor struct {
	fields []config.FieldConfig
	data   model.SensorSnapshot
}

func NewStaticSensor(cfg config.SensorConfig) *StaticSensor {
	return &StaticSensor{
		fields: cfg.Fields,
		data:   model.NewSnapshot(cfg.Name, cfg.Type, cfg.Location),
	}
}

func (s *StaticSensor) Init(ctx context.Context) error {
	return nil
}

func (s *StaticSensor) Measure(ctx context.Context) error {
	return nil
}

func (s *StaticSensor) Read(ctx context.Context) error {
	for _, f := range s.fields {
		v := f.Value
		if f.Jitter > 0 {
			v += f.Jitter * (2*rand.Float32() - 1)
		}
		s.data.Push(f.Target, v, f.Unit)
	}
	return nil
}

func (s *StaticSensor) Snapshot() model.SensorSnapshot {
	return s.data.Clone()
}

func (s *StaticSensor) Name() string {
	return s.data.Name
}
