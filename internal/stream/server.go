package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/speedwagon-io/envstream/internal/diag"
	"github.com/speedwagon-io/envstream/internal/lib/logger/sl"
	"github.com/speedwagon-io/envstream/internal/metrics"
	"github.com/speedwagon-io/envstream/internal/telemetry"
)

const (
	DefaultFrameSize = 4096
	acceptRetryDelay = 100 * time.Millisecond
)

// Server accepts streaming connections and runs one session per connection.
type Server struct {
	log       *slog.Logger
	acceptor  Acceptor
	channel   *telemetry.Channel
	sink      *diag.Sink
	metrics   *metrics.Metrics
	frameSize int

	wg     sync.WaitGroup
	active atomic.Int32
}

func NewServer(
	log *slog.Logger,
	acceptor Acceptor,
	channel *telemetry.Channel,
	sink *diag.Sink,
	m *metrics.Metrics,
	frameSize int,
) *Server {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}

	return &Server{
		log:       log.With(slog.String("component", "stream")),
		acceptor:  acceptor,
		channel:   channel,
		sink:      sink,
		metrics:   m,
		frameSize: frameSize,
	}
}

// Run accepts connections until ctx is cancelled or the acceptor is closed,
// then waits for open sessions to finish.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("stream server started")
	defer s.wg.Wait()

	for {
		conn, err := s.acceptor.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrAcceptorClosed) {
				s.log.Info("stream server stopped")
				return nil
			}

			s.log.Error("failed to accept connection", sl.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(acceptRetryDelay):
			}
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(ctx, conn)
		}()
	}
}

func (s *Server) serve(ctx context.Context, conn Conn) {
	sess := newSession(s.log, conn, s.channel.Subscribe(), s.sink, s.metrics, s.frameSize)

	s.active.Add(1)
	s.metrics.ConnectionOpened()
	sess.log.Info("connection opened", slog.Int("active", int(s.active.Load())))

	defer func() {
		s.active.Add(-1)
		s.metrics.ConnectionClosed()
		sess.log.Info("connection closed",
			slog.Uint64("frames", sess.frames),
			slog.Int("active", int(s.active.Load())),
		)
	}()

	if err := sess.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		sess.log.Error("connection failed", sl.Err(err))
	}
}

// Active returns the number of open sessions.
func (s *Server) Active() int {
	return int(s.active.Load())
}
