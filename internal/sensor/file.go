package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/speedwagon-io/envstream/internal/config"
	"github.com/speedwagon-io/envstream/internal/model"
)

// FileSensor reads one numeric value per file from a directory, the layout
// used by Linux IIO and hwmon drivers (e.g. in_illuminance_raw, temp1_input).
// The kernel driver converts on read, so Measure only re-checks that the
// files are still present.
type FileSensor struct {
	log    *slog.Logger
	dir    string
	fields []config.FieldConfig
	data   model.SensorSnapshot
}

func NewFileSensor(log *slog.Logger, cfg config.SensorConfig) *FileSensor {
	return &FileSensor{
		log:    log.With(slog.String("component", "sensor"), slog.String("sensor", cfg.Name)),
		dir:    cfg.Dir,
		fields: cfg.Fields,
		data:   model.NewSnapshot(cfg.Name, cfg.Type, cfg.Location),
	}
}

func (s *FileSensor) Name() string {
	return s.data.Name
}

func (s *FileSensor) Snapshot() model.SensorSnapshot {
	return s.data.Clone()
}

func (s *FileSensor) Init(ctx context.Context) error {
	for _, f := range s.fields {
		path := filepath.Join(s.dir, f.Source)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	s.log.Debug("file sensor ready", slog.String("dir", s.dir), slog.Int("fields", len(s.fields)))
	return nil
}

func (s *FileSensor) Measure(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *FileSensor) Read(ctx context.Context) error {
	for _, f := range s.fields {
		path := filepath.Join(s.dir, f.Source)
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		s.data.Push(f.Target, scaled(v, f.Scale), f.Unit)
	}
	return nil
}
