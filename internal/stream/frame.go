package stream

import (
	"context"
	"errors"
)

var ErrAcceptorClosed = errors.New("acceptor closed")

// FrameType classifies a transport frame.
type FrameType uint8

const (
	FrameText FrameType = iota
	FrameBinary
	FrameContinue
	FramePing
	FramePong
	FrameClose
	// FrameSocketClose reports that the underlying socket went away without a
	// close handshake.
	FrameSocketClose
)

func (f FrameType) String() string {
	switch f {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	case FrameContinue:
		return "continue"
	case FramePing:
		return "ping"
	case FramePong:
		return "pong"
	case FrameClose:
		return "close"
	case FrameSocketClose:
		return "socket_close"
	default:
		return "unknown"
	}
}

// HoldsOpen reports whether receiving f keeps the connection alive. Text
// frames are not part of the protocol and end the connection.
func (f FrameType) HoldsOpen() bool {
	switch f {
	case FrameBinary, FrameContinue, FramePing, FramePong:
		return true
	default:
		return false
	}
}

// Conn is a single accepted streaming connection.
type Conn interface {
	// Recv blocks until a frame arrives and copies at most len(buf) bytes of
	// its payload into buf.
	Recv(ctx context.Context, buf []byte) (FrameType, int, error)
	Send(ctx context.Context, frame FrameType, payload []byte) error
	Close() error
}

type Acceptor interface {
	Accept(ctx context.Context) (Conn, error)
}
