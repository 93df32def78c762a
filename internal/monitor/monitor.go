package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/speedwagon-io/envstream/internal/lib/logger/sl"
	"github.com/speedwagon-io/envstream/internal/model"
	"github.com/speedwagon-io/envstream/internal/wire"
)

type Options struct {
	URL          string
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// MaxRetries bounds consecutive failed connections. Zero retries forever.
	MaxRetries   int
	MaxFrameSize int64
}

// Monitor prints every telemetry message received from a streaming endpoint
// and reconnects whenever the connection drops.
type Monitor struct {
	log     *slog.Logger
	out     io.Writer
	opts    Options
	backoff *Backoff
}

func New(log *slog.Logger, out io.Writer, opts Options) *Monitor {
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = 1 << 20
	}

	return &Monitor{
		log:     log.With(slog.String("component", "monitor"), slog.String("url", opts.URL)),
		out:     out,
		opts:    opts,
		backoff: NewBackoff(opts.InitialDelay, opts.MaxDelay, opts.MaxRetries),
	}
}

// Run keeps a connection open until ctx is cancelled. It returns an error only
// when the retry limit is exhausted.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		received, err := m.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if received > 0 {
			m.backoff.Delivered()
		}

		delay, ok := m.backoff.Failed()
		if !ok {
			return fmt.Errorf("giving up after %d retries: %w", m.opts.MaxRetries, err)
		}

		m.log.Warn("connection lost, reconnecting",
			slog.Int("attempt", m.backoff.Failures()),
			slog.Duration("delay", delay),
			sl.Err(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (m *Monitor) session(ctx context.Context) (int, error) {
	c, _, err := websocket.Dial(ctx, m.opts.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to connect: %w", err)
	}
	defer c.CloseNow()

	c.SetReadLimit(m.opts.MaxFrameSize)
	m.log.Info("connected")
	fmt.Fprintf(m.out, "Connected to %s\n", m.opts.URL)

	received := 0
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return received, fmt.Errorf("failed to read message: %w", err)
		}
		received++

		if typ != websocket.MessageBinary {
			m.log.Warn("unexpected text message", slog.Int("size", len(data)))
			continue
		}

		msg, err := wire.Decode(data)
		if err != nil && !errors.Is(err, wire.ErrStatus) {
			m.log.Warn("failed to decode message", sl.Err(err))
			continue
		}

		Print(m.out, msg)
	}
}

// Print writes msg in a human readable form.
func Print(w io.Writer, msg *model.TelemetryMessage) {
	if msg.Status != model.StatusOK {
		fmt.Fprintf(w, "Error: %s\n", msg.Status)
		return
	}

	for _, s := range msg.Snapshots {
		fmt.Fprintf(w, "Sensor name: %s\n", s.Name)
		fmt.Fprintf(w, "Sensor type: %s\n", s.Type)
		fmt.Fprintf(w, "Sensor location: %s\n", s.Location)
		for _, r := range s.Readings() {
			fmt.Fprintf(w, "Value name: %s\n", r.Name)
			fmt.Fprintf(w, "Value: %g\n", r.Value)
			fmt.Fprintf(w, "Unit: %s\n", r.Unit)
		}
	}

	for _, e := range msg.Diagnostics {
		ts := time.Unix(int64(e.Timestamp), 0).UTC().Format(time.RFC3339)
		if e.Source != "" {
			fmt.Fprintf(w, "%s [%s] %s: %s\n", ts, e.Level, e.Source, e.Message)
		} else {
			fmt.Fprintf(w, "%s [%s] %s\n", ts, e.Level, e.Message)
		}
	}
}
