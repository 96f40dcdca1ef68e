package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// DefaultReadLimit caps a single inbound frame. History replies carry up to a hundred
// messages, well above the library default of 32 KiB.
const DefaultReadLimit = 1 << 20

// Dialer opens websocket connections to the chat server.
type Dialer struct {
	url       string
	token     string
	readLimit int64
	log       *zerolog.Logger
}

// Option customizes a Dialer.
type Option func(*Dialer)

// WithToken sends token as a bearer credential during the handshake.
func WithToken(token string) Option {
	return func(d *Dialer) { d.token = token }
}

// WithReadLimit overrides DefaultReadLimit.
func WithReadLimit(n int64) Option {
	return func(d *Dialer) {
		if n > 0 {
			d.readLimit = n
		}
	}
}

// NewDialer builds a dialer for url, e.g. ws://localhost:8080/ws.
func NewDialer(url string, logger *zerolog.Logger, opts ...Option) *Dialer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	d := &Dialer{url: url, readLimit: DefaultReadLimit, log: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ core.Dialer = (*Dialer)(nil)

// Dial performs the websocket handshake.
func (d *Dialer) Dial(ctx context.Context) (core.Conn, error) {
	var opts *websocket.DialOptions
	if d.token != "" {
		header := stdhttp.Header{}
		header.Set("Authorization", "Bearer "+d.token)
		opts = &websocket.DialOptions{HTTPHeader: header}
	}

	conn, resp, err := websocket.Dial(ctx, d.url, opts)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.url, err)
	}
	conn.SetReadLimit(d.readLimit)
	d.log.Debug().Str("url", d.url).Msg("ws connected")
	return &Conn{conn: conn, log: d.log}, nil
}

// Conn is a JSON frame connection over websocket.
type Conn struct {
	conn *websocket.Conn
	log  *zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ core.Conn = (*Conn)(nil)

// Send writes one frame.
func (c *Conn) Send(ctx context.Context, frame proto.Frame) error {
	if err := wsjson.Write(ctx, c.conn, frame); err != nil {
		return fmt.Errorf("write %s: %w", frame.Event, err)
	}
	return nil
}

// Receive blocks until the next frame arrives. A clean close by the server is
// reported as io.EOF.
func (c *Conn) Receive(ctx context.Context) (proto.Frame, error) {
	var frame proto.Frame
	if err := wsjson.Read(ctx, c.conn, &frame); err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return proto.Frame{}, io.EOF
		}
		if !errors.Is(err, context.Canceled) {
			c.log.Warn().Err(err).Msg("read ws frame")
		}
		return proto.Frame{}, err
	}
	return frame, nil
}

// Close sends a normal closure. Repeated calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close(websocket.StatusNormalClosure, "bye")
	})
	return c.closeErr
}
