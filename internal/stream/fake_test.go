package stream

import (
	"context"
	"sync"
)

type fakeFrame struct {
	typ     FrameType
	payload []byte
	err     error
}

type fakeConn struct {
	in      chan fakeFrame
	sent    chan []byte
	sendErr error

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan fakeFrame, 8),
		sent:   make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Recv(ctx context.Context, buf []byte) (FrameType, int, error) {
	select {
	case f := <-c.in:
		return f.typ, copy(buf, f.payload), f.err
	case <-c.closed:
		return FrameSocketClose, 0, nil
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}
}

func (c *fakeConn) Send(ctx context.Context, frame FrameType, payload []byte) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	select {
	case c.sent <- append([]byte(nil), payload...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeAcceptor struct {
	conns chan Conn
}

func newFakeAcceptor() *fakeAcceptor {
	return &fakeAcceptor{conns: make(chan Conn)}
}

func (a *fakeAcceptor) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-a.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
