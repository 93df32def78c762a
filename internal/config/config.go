package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string            `yaml:"env" env:"ENVSTREAM_ENV" env-default:"prod"`
	Device      DeviceRef         `yaml:"device"`
	Sampler     SamplerConfig     `yaml:"sampler"`
	HTTP        HTTPConfig        `yaml:"http"`
	Stream      StreamConfig      `yaml:"stream"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Log         LogConfig         `yaml:"log"`
}

type DeviceRef struct {
	ID         string `yaml:"id" env:"ENVSTREAM_DEVICE_ID" env-default:"envstream"`
	ConfigPath string `yaml:"config_path" env:"ENVSTREAM_DEVICE_CONFIG" env-required:"true"`
}

type SamplerConfig struct {
	Interval          time.Duration `yaml:"interval" env:"ENVSTREAM_SAMPLER_INTERVAL" env-default:"1s"`
	ReferenceType     string        `yaml:"reference_type" env-default:"illuminance"`
	LowLightThreshold float32       `yaml:"low_light_threshold" env-default:"100"`
}

type HTTPConfig struct {
	Address      string        `yaml:"address" env:"ENVSTREAM_HTTP_ADDRESS" env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"5s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"10s"`
}

type StreamConfig struct {
	MaxConnections  int `yaml:"max_connections" env-default:"2"`
	MaxFrameSize    int `yaml:"max_frame_size" env-default:"4096"`
	ChannelCapacity int `yaml:"channel_capacity" env-default:"2"`
}

type DiagnosticsConfig struct {
	Capacity int    `yaml:"capacity" env-default:"21"`
	Level    string `yaml:"level" env-default:"debug"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"ENVSTREAM_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env-default:"json"`
}

func MustLoad(configPath string) *Config {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		panic("failed to read config: " + err.Error())
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Sampler.Interval <= 0 {
		errs = append(errs, fmt.Errorf("sampler.interval must be positive, got %s", c.Sampler.Interval))
	}
	if c.Sampler.ReferenceType == "" {
		errs = append(errs, errors.New("sampler.reference_type is required"))
	}
	if c.Stream.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("stream.max_connections must be positive, got %d", c.Stream.MaxConnections))
	}
	if c.Stream.MaxFrameSize <= 0 {
		errs = append(errs, fmt.Errorf("stream.max_frame_size must be positive, got %d", c.Stream.MaxFrameSize))
	}
	if c.Stream.ChannelCapacity <= 0 {
		errs = append(errs, fmt.Errorf("stream.channel_capacity must be positive, got %d", c.Stream.ChannelCapacity))
	}
	if c.Diagnostics.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("diagnostics.capacity must be positive, got %d", c.Diagnostics.Capacity))
	}

	return errors.Join(errs...)
}
