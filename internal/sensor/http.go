package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/speedwagon-io/envstream/internal/config"
	"github.com/speedwagon-io/envstream/internal/lib/logger/sl"
	"github.com/speedwagon-io/envstream/internal/model"
)

// HTTPSensor reads a JSON object from a sidecar that owns the physical
// transducer. When a trigger URL is configured, Measure POSTs to it to start a
// conversion.
type HTTPSensor struct {
	log        *slog.Logger
	url        string
	triggerURL string
	fields     []config.FieldConfig
	client     *http.Client
	data       model.SensorSnapshot
}

func NewHTTPSensor(log *slog.Logger, cfg config.SensorConfig) *HTTPSensor {
	return &HTTPSensor{
		log:        log.With(slog.String("component", "sensor"), slog.String("sensor", cfg.Name)),
		url:        cfg.URL,
		triggerURL: cfg.TriggerURL,
		fields:     cfg.Fields,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		data: model.NewSnapshot(cfg.Name, cfg.Type, cfg.Location),
	}
}

func (s *HTTPSensor) Name() string {
	return s.data.Name
}

func (s *HTTPSensor) Snapshot() model.SensorSnapshot {
	return s.data.Clone()
}

// Init probes the endpoint once so a misconfigured sensor fails at startup.
func (s *HTTPSensor) Init(ctx context.Context) error {
	if _, err := s.fetch(ctx); err != nil {
		return err
	}
	return nil
}

func (s *HTTPSensor) Measure(ctx context.Context) error {
	if s.triggerURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.triggerURL, bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("failed to create trigger request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute trigger request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected trigger status code: %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPSensor) Read(ctx context.Context) error {
	raw, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	for _, f := range s.fields {
		rawValue, exists := raw[f.Source]
		if !exists {
			return fmt.Errorf("field %q not found in response", f.Source)
		}

		v, err := s.toFloat(rawValue)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Source, err)
		}
		s.data.Push(f.Target, scaled(v, f.Scale), f.Unit)
	}

	return nil
}

func (s *HTTPSensor) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPSensor) fetch(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return raw, nil
}

func (s *HTTPSensor) toFloat(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			s.log.Debug("failed to parse float", slog.String("value", val), sl.Err(err))
			return 0, fmt.Errorf("not a number: %q", val)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("value is null")
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}
