package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/speedwagon-io/envstream/internal/diag"
	"github.com/speedwagon-io/envstream/internal/lib/logger/sl"
	"github.com/speedwagon-io/envstream/internal/metrics"
	"github.com/speedwagon-io/envstream/internal/model"
	"github.com/speedwagon-io/envstream/internal/telemetry"
	"github.com/speedwagon-io/envstream/internal/wire"
)

type inboundResult struct {
	frame FrameType
	n     int
	err   error
}

type outboundResult struct {
	snaps []model.SensorSnapshot
	err   error
}

// session drives one connection. Each iteration acts on whichever of the
// inbound frame or the fresh snapshot set is ready first; the other stays
// pending in its goroutine until a later iteration takes it.
type session struct {
	id      string
	log     *slog.Logger
	conn    Conn
	sub     *telemetry.Subscription
	sink    *diag.Sink
	metrics *metrics.Metrics
	bufSize int
	frames  uint64
}

func newSession(
	log *slog.Logger,
	conn Conn,
	sub *telemetry.Subscription,
	sink *diag.Sink,
	m *metrics.Metrics,
	bufSize int,
) *session {
	id := uuid.NewString()
	return &session{
		id:      id,
		log:     log.With(slog.String("session_id", id)),
		conn:    conn,
		sub:     sub,
		sink:    sink,
		metrics: m,
		bufSize: bufSize,
	}
}

func (s *session) run(ctx context.Context) error {
	s.sink.Attach()
	defer s.sink.Detach()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		if err := s.conn.Close(); err != nil {
			s.log.Debug("failed to close connection", sl.Err(err))
		}
		cancel()
		wg.Wait()
	}()

	inbound := make(chan inboundResult)
	outbound := make(chan outboundResult)

	wg.Add(2)
	go func() {
		defer wg.Done()
		s.receiveLoop(ctx, inbound)
	}()
	go func() {
		defer wg.Done()
		s.awaitLoop(ctx, outbound)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case in := <-inbound:
			if in.err != nil {
				return fmt.Errorf("failed to receive frame: %w", in.err)
			}
			s.frames++
			s.metrics.Frame(metrics.DirectionInbound)
			s.log.Debug("frame received",
				slog.String("type", in.frame.String()),
				slog.Int("size", in.n),
				slog.Uint64("frames", s.frames),
			)
			if !in.frame.HoldsOpen() {
				s.log.Info("closing connection", slog.String("reason", in.frame.String()))
				return nil
			}

		case out := <-outbound:
			if out.err != nil {
				return fmt.Errorf("failed to await snapshots: %w", out.err)
			}
			if err := s.send(ctx, out.snaps); err != nil {
				return err
			}
		}
	}
}

func (s *session) send(ctx context.Context, snaps []model.SensorSnapshot) error {
	msg := model.NewTelemetryMessage(snaps, s.sink.Drain())

	payload, err := wire.Encode(msg)
	if err != nil {
		s.log.Error("failed to encode telemetry message", sl.Err(err))
		if payload, err = wire.EncodeError(); err != nil {
			return fmt.Errorf("failed to encode error message: %w", err)
		}
	}

	if err := s.conn.Send(ctx, FrameBinary, payload); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}

	s.frames++
	s.metrics.Frame(metrics.DirectionOutbound)
	s.metrics.MessageSent(len(payload))
	s.log.Debug("frame sent",
		slog.Int("sensors", len(msg.Snapshots)),
		slog.Int("diagnostics", len(msg.Diagnostics)),
		slog.Int("size", len(payload)),
		slog.Uint64("frames", s.frames),
	)

	return nil
}

func (s *session) receiveLoop(ctx context.Context, out chan<- inboundResult) {
	buf := make([]byte, s.bufSize)
	for {
		frame, n, err := s.conn.Recv(ctx, buf)
		select {
		case out <- inboundResult{frame: frame, n: n, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil || !frame.HoldsOpen() {
			return
		}
	}
}

func (s *session) awaitLoop(ctx context.Context, out chan<- outboundResult) {
	for {
		snaps, err := s.sub.Recv(ctx)
		select {
		case out <- outboundResult{snaps: snaps, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}
