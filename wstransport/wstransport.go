// Package wstransport adapts github.com/gorilla/websocket to the
// hrana.WSConn/hrana.WSDialer collaborator interfaces, and exposes a
// Dial convenience constructor returning a ready *hrana.Client.
package wstransport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mickamy/hrana-go"
)

// Conn adapts a *websocket.Conn to hrana.WSConn.
type Conn struct {
	ws *websocket.Conn
}

func (c *Conn) ReadMessage() (binary bool, data []byte, err error) {
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		return false, nil, err
	}
	return mt == websocket.BinaryMessage, data, nil
}

func (c *Conn) WriteMessage(binary bool, data []byte) error {
	mt := websocket.TextMessage
	if binary {
		mt = websocket.BinaryMessage
	}
	return c.ws.WriteMessage(mt, data)
}

func (c *Conn) Close() error { return c.ws.Close() }

// Dialer adapts gorilla's websocket.Dialer to hrana.WSDialer.
type Dialer struct {
	Dialer          websocket.Dialer
	HandshakeHeader http.Header
}

func (d Dialer) Dial(ctx context.Context, url string, subprotocols []string) (hrana.WSConn, string, error) {
	dialer := d.Dialer
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}
	dialer.Subprotocols = subprotocols

	ws, resp, err := dialer.DialContext(ctx, url, d.HandshakeHeader)
	if err != nil {
		if resp != nil {
			return nil, "", fmt.Errorf("wstransport: dial %s: %w (status %s)", url, err, resp.Status)
		}
		return nil, "", fmt.Errorf("wstransport: dial %s: %w", url, err)
	}
	return &Conn{ws: ws}, ws.Subprotocol(), nil
}

// Option configures Dial.
type Option func(*options)

type options struct {
	jwt     string
	mode    hrana.IntMode
	dialer  websocket.Dialer
	headers http.Header
}

// WithJWT sets the bearer token sent in the hello handshake.
func WithJWT(jwt string) Option {
	return func(o *options) { o.jwt = jwt }
}

// WithIntMode selects how 64-bit integers are surfaced to the caller.
func WithIntMode(mode hrana.IntMode) Option {
	return func(o *options) { o.mode = mode }
}

// Dial connects to a Hrana server at a ws:// or wss:// url and returns a
// ready *hrana.Client.
func Dial(ctx context.Context, url string, opts ...Option) (*hrana.Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	d := Dialer{Dialer: o.dialer, HandshakeHeader: o.headers}
	transport, err := hrana.DialWS(ctx, d, url, o.jwt, o.mode)
	if err != nil {
		return nil, err
	}
	client := hrana.NewClient(transport, o.mode)
	if _, err := client.Ready(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
