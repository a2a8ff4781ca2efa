package ws

import (
	"context"
	"fmt"
	"strings"

	"chart-feed/internal/market"
	"chart-feed/internal/stream"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Client dials the exchange kline stream. Each Dial opens an independent
// connection for one (symbol, interval) pair; lifecycle and reconnects are
// owned by the stream manager.
type Client struct {
	baseURL string
	log     *zap.Logger
}

func New(baseURL string, log *zap.Logger) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

func (c *Client) Dial(ctx context.Context, symbol string, interval market.Interval) (stream.Conn, error) {
	streamName := strings.ToLower(symbol) + "@kline_" + string(interval)
	url := c.baseURL + "/" + streamName
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", streamName, err)
	}
	conn.SetReadLimit(1 << 20)
	if c.log != nil {
		c.log.Debug("kline stream opened", zap.String("stream", streamName))
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.conn.Read(ctx)
	if err != nil {
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			return nil, fmt.Errorf("%w: %v", stream.ErrNormalClosure, err)
		}
		return nil, err
	}
	return data, nil
}

func (w *wsConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "teardown")
}
