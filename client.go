package hrana

import (
	"context"
	"sync"

	"github.com/mickamy/hrana-go/internal/ids"
)

// Client is the top-level handle to a negotiated Hrana connection. It
// owns the id spaces shared across every stream (stream ids, SQL-cache
// ids, cursor ids) and the single underlying Transport, whether that is
// a WebSocket or an HTTP baton pipeline. Obtain one via wstransport.Dial
// or httptransport.Dial rather than constructing it directly.
type Client struct {
	transport Transport
	mode      IntMode

	streamIDs *ids.Allocator
	sqlIDs    *ids.Allocator
	cursorIDs *ids.Allocator

	mu      sync.Mutex
	streams map[int64]*Stream
	sqls    map[int64]*Sql
	closed  bool
}

// NewClient wraps an already-dialed Transport in a Client. Concrete
// transport packages call this from their own Dial constructors once
// the handshake has started; they do not expose it to end users
// directly.
func NewClient(t Transport, mode IntMode) *Client {
	return &Client{
		transport: t,
		mode:      mode,
		streamIDs: ids.New(),
		sqlIDs:    ids.New(),
		cursorIDs: ids.New(),
		streams:   make(map[int64]*Stream),
		sqls:      make(map[int64]*Sql),
	}
}

// Ready blocks until protocol negotiation with the server completes,
// returning the negotiated version.
func (c *Client) Ready(ctx context.Context) (Version, error) {
	return c.transport.Ready(ctx)
}

// GetVersion reports the negotiated protocol version, and false if
// negotiation has not completed.
func (c *Client) GetVersion() (Version, bool) {
	return c.transport.Version()
}

// OpenStream opens a new interactive SQL stream multiplexed over this
// client's transport.
func (c *Client) OpenStream(ctx context.Context) (*Stream, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, newClosedError("client", nil)
	}
	c.mu.Unlock()

	id := c.streamIDs.Alloc()
	_, err := c.transport.Do(ctx, StreamRequest{Kind: ReqOpenStream, StreamID: id})
	if err != nil {
		c.streamIDs.Free(id)
		return nil, err
	}

	s := newStream(c, id, c.mode)
	s.markOpen()

	c.mu.Lock()
	c.streams[id] = s
	c.mu.Unlock()
	return s, nil
}

// closeStream removes s from the client's bookkeeping and frees its id.
// Called by Stream.Close / Stream.CloseGracefully after the stream has
// transitioned to Closed; it does not itself talk to the transport.
func (c *Client) closeStream(s *Stream) {
	c.mu.Lock()
	delete(c.streams, s.id)
	c.mu.Unlock()
	c.streamIDs.Free(s.id)
}

// StoreSql caches sql server-side under a fresh id, returning a handle
// that can be passed to NewStatementFromSql in place of inlining the
// text on every execution. Requires protocol version >= 2.
func (c *Client) StoreSql(ctx context.Context, sql string) (*Sql, error) {
	v, ok := c.transport.Version()
	if !ok || v < Version2 {
		return nil, &VersionError{Feature: "store_sql", Need: 2, Have: int(v)}
	}

	id := c.sqlIDs.Alloc()
	_, err := c.transport.Do(ctx, StreamRequest{Kind: ReqStoreSql, SQL: sql, SQLID: id, HasSQLID: true})
	if err != nil {
		c.sqlIDs.Free(id)
		return nil, err
	}

	s := &Sql{client: c, id: id}
	c.mu.Lock()
	c.sqls[id] = s
	c.mu.Unlock()
	return s, nil
}

// closeSql releases a server-cached SQL text. Called by Sql.Close.
func (c *Client) closeSql(s *Sql) error {
	c.mu.Lock()
	if s.closed {
		c.mu.Unlock()
		return nil
	}
	s.closed = true
	delete(c.sqls, s.id)
	c.mu.Unlock()

	_, err := c.transport.Do(context.Background(), StreamRequest{Kind: ReqCloseSql, SQLID: s.id, HasSQLID: true})
	c.sqlIDs.Free(s.id)
	return err
}

// Close closes the client's transport and every open stream. It is
// idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	streams := make([]*Stream, 0, len(c.streams))
	for _, s := range c.streams {
		streams = append(streams, s)
	}
	c.mu.Unlock()

	for _, s := range streams {
		_ = s.Close()
	}
	return c.transport.Close()
}

// Closed returns a channel closed once the underlying transport has
// closed.
func (c *Client) Closed() <-chan struct{} {
	return c.transport.Closed()
}

// Err returns the fatal cause of the transport's closure, if any.
func (c *Client) Err() error {
	return c.transport.Err()
}
