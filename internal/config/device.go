package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverStatic = "static"
	DriverHTTP   = "http"
	DriverFile   = "file"
)

// DeviceConfig lists the sensors attached to the device in registration order.
type DeviceConfig struct {
	Location string         `yaml:"location" env-default:"inside"`
	Sensors  []SensorConfig `yaml:"sensors"`
}

type SensorConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Location string `yaml:"location,omitempty"`
	Driver   string `yaml:"driver"`

	// http driver
	URL        string        `yaml:"url,omitempty"`
	TriggerURL string        `yaml:"trigger_url,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`

	// file driver
	Dir string `yaml:"dir,omitempty"`

	Fields []FieldConfig `yaml:"fields"`
}

// FieldConfig maps one source value to a reading. Source is a JSON key for the
// http driver and a file name for the file driver; Value and Jitter are only
// used by the static driver.
type FieldConfig struct {
	Source string  `yaml:"source,omitempty"`
	Target string  `yaml:"target"`
	Unit   string  `yaml:"unit,omitempty"`
	Scale  float64 `yaml:"scale,omitempty"`
	Value  float32 `yaml:"value,omitempty"`
	Jitter float32 `yaml:"jitter,omitempty"`
}

func MustLoadDevice(configPath string) *DeviceConfig {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("device config file not found: " + configPath)
	}

	cfg, err := LoadDevice(configPath)
	if err != nil {
		panic("failed to read device config: " + err.Error())
	}

	return cfg
}

func LoadDevice(configPath string) (*DeviceConfig, error) {
	var cfg DeviceConfig
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (d *DeviceConfig) ApplyDefaults() {
	for i := range d.Sensors {
		s := &d.Sensors[i]
		if s.Location == "" {
			s.Location = d.Location
		}
		if s.Driver == "" {
			s.Driver = DriverStatic
		}
		if s.Timeout == 0 {
			s.Timeout = 2 * time.Second
		}
		for j := range s.Fields {
			f := &s.Fields[j]
			if f.Source == "" {
				f.Source = f.Target
			}
			if f.Scale == 0 {
				f.Scale = 1
			}
		}
	}
}

func (d *DeviceConfig) Validate() error {
	if len(d.Sensors) == 0 {
		return errors.New("at least one sensor is required")
	}

	var errs []error
	seen := make(map[string]bool, len(d.Sensors))

	for i, s := range d.Sensors {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sensors[%d]: name is required", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("sensor %q: duplicate name", s.Name))
		}
		seen[s.Name] = true

		if len(s.Fields) == 0 {
			errs = append(errs, fmt.Errorf("sensor %q: at least one field is required", s.Name))
		}
		for j, f := range s.Fields {
			if f.Target == "" {
				errs = append(errs, fmt.Errorf("sensor %q: fields[%d]: target is required", s.Name, j))
			}
		}

		switch s.Driver {
		case DriverStatic:
		case DriverHTTP:
			if s.URL == "" {
				errs = append(errs, fmt.Errorf("sensor %q: url is required for the http driver", s.Name))
			}
		case DriverFile:
			if s.Dir == "" {
				errs = append(errs, fmt.Errorf("sensor %q: dir is required for the file driver", s.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("sensor %q: unknown driver %q", s.Name, s.Driver))
		}
	}

	return errors.Join(errs...)
}
