package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/speedwagon-io/envstream/internal/lib/logger/sl"
)

// WebSocketAcceptor upgrades HTTP requests to WebSocket connections and hands
// them to Accept. The HTTP handler goroutine is held until the connection is
// closed, so at most maxConns connections exist at any time.
type WebSocketAcceptor struct {
	log      *slog.Logger
	conns    chan *wsConn
	slots    chan struct{}
	maxFrame int64
	opts     *websocket.AcceptOptions

	closeOnce sync.Once
	closed    chan struct{}
}

func NewWebSocketAcceptor(log *slog.Logger, maxConns, maxFrame int) *WebSocketAcceptor {
	if maxConns <= 0 {
		maxConns = 1
	}
	if maxFrame <= 0 {
		maxFrame = DefaultFrameSize
	}

	return &WebSocketAcceptor{
		log:      log.With(slog.String("component", "ws_acceptor")),
		conns:    make(chan *wsConn),
		slots:    make(chan struct{}, maxConns),
		maxFrame: int64(maxFrame),
		opts:     &websocket.AcceptOptions{CompressionMode: websocket.CompressionDisabled},
		closed:   make(chan struct{}),
	}
}

func (a *WebSocketAcceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case a.slots <- struct{}{}:
	default:
		a.log.Warn("rejecting connection, limit reached",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Int("limit", cap(a.slots)),
		)
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	defer func() { <-a.slots }()

	// Server read/write timeouts would otherwise apply to the hijacked socket.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	c, err := websocket.Accept(w, r, a.opts)
	if err != nil {
		a.log.Error("failed to upgrade connection", sl.Err(err))
		return
	}
	c.SetReadLimit(a.maxFrame)

	conn := &wsConn{c: c, done: make(chan struct{})}

	select {
	case a.conns <- conn:
	case <-a.closed:
		c.Close(websocket.StatusGoingAway, "server shutting down")
		return
	case <-r.Context().Done():
		c.CloseNow()
		return
	}

	a.log.Debug("connection handed off", slog.String("remote_addr", r.RemoteAddr))
	<-conn.done
}

func (a *WebSocketAcceptor) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-a.conns:
		return c, nil
	case <-a.closed:
		return nil, ErrAcceptorClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops handing off new connections. Open connections are not affected.
func (a *WebSocketAcceptor) Close() error {
	a.closeOnce.Do(func() { close(a.closed) })
	return nil
}

// InUse returns the number of occupied connection slots and the limit.
func (a *WebSocketAcceptor) InUse() (int, int) {
	return len(a.slots), cap(a.slots)
}

type wsConn struct {
	c         *websocket.Conn
	closeOnce sync.Once
	done      chan struct{}
}

// Recv maps WebSocket messages onto frames. Control frames and fragmentation
// are handled by the transport, so only text, binary and close are reported.
func (w *wsConn) Recv(ctx context.Context, buf []byte) (FrameType, int, error) {
	typ, data, err := w.c.Read(ctx)
	if err != nil {
		if websocket.CloseStatus(err) != -1 {
			return FrameClose, 0, nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return FrameSocketClose, 0, nil
		}
		return 0, 0, err
	}

	n := copy(buf, data)
	if typ == websocket.MessageText {
		return FrameText, n, nil
	}
	return FrameBinary, n, nil
}

func (w *wsConn) Send(ctx context.Context, frame FrameType, payload []byte) error {
	switch frame {
	case FrameBinary:
		return w.c.Write(ctx, websocket.MessageBinary, payload)
	case FrameText:
		return w.c.Write(ctx, websocket.MessageText, payload)
	case FramePing:
		return w.c.Ping(ctx)
	case FrameClose:
		return w.c.Close(websocket.StatusNormalClosure, string(payload))
	default:
		return fmt.Errorf("unsupported outbound frame %s", frame)
	}
}

func (w *wsConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.c.Close(websocket.StatusNormalClosure, "")
		close(w.done)
	})
	return err
}
