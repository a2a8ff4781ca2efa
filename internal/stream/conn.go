package stream

import (
	"context"
	"errors"

	"chart-feed/internal/market"
)

// ErrNormalClosure is returned by Conn.Read when the peer closed the
// connection intentionally. A normal closure does not schedule a retry.
var ErrNormalClosure = errors.New("connection closed normally")

// Conn is one live upstream connection. Read blocks until a message
// arrives, the context is cancelled, or the connection drops.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens a streaming connection for a (symbol, interval) pair.
type Dialer interface {
	Dial(ctx context.Context, symbol string, interval market.Interval) (Conn, error)
}
