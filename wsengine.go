package hrana

import (
	"context"
	"sync"

	"github.com/mickamy/hrana-go/internal/ids"
)

// WSConn is the narrow WebSocket collaborator the engine needs: send
// and receive whole messages, and close. Concrete transports (see
// wstransport.Conn) adapt a real library connection to this interface;
// the engine itself never imports one.
type WSConn interface {
	// ReadMessage blocks for the next message, reporting whether it was
	// a binary frame.
	ReadMessage() (binary bool, data []byte, err error)
	// WriteMessage sends one whole message as a single frame.
	WriteMessage(binary bool, data []byte) error
	Close() error
}

// WSDialer opens a WSConn negotiating subprotocols in order, returning
// the token the server selected (empty if none).
type WSDialer interface {
	Dial(ctx context.Context, url string, subprotocols []string) (conn WSConn, negotiated string, err error)
}

// wsEngine implements Transport over a WSConn, speaking the hello /
// request / response_ok / response_error envelope of spec.md §4.9.
type wsEngine struct {
	conn     WSConn
	version  Version
	encoding Encoding
	mode     IntMode

	reqIDs *ids.Allocator

	readyOnce sync.Once
	readyCh   chan struct{}
	readyErr  error

	mu      sync.Mutex
	pending map[int64]*wsPending
	closed  bool
	closeCh chan struct{}
	fatal   error
}

type wsResult struct {
	resp StreamResponse
	err  error
}

// wsPending tracks, for one outstanding request, both the channel its
// result is delivered on and the RequestKind it was sent as — the
// binary response envelope doesn't repeat the kind on the wire (see
// decodeResponseBodyBinary), so the engine supplies it from here instead
// of a self-describing "type" field.
type wsPending struct {
	ch   chan wsResult
	kind RequestKind
}

// DialWS performs the WebSocket handshake over a connection obtained
// from dialer: subprotocol negotiation, then hello{jwt}, awaiting
// hello_ok or hello_error before returning a ready Transport. Concrete
// transport packages (see wstransport) call this from their own Dial
// constructors after supplying a real WSDialer.
func DialWS(ctx context.Context, dialer WSDialer, url string, jwt string, mode IntMode) (Transport, error) {
	conn, negotiated, err := dialer.Dial(ctx, url, subprotocolTokens())
	if err != nil {
		return nil, &TransportError{Msg: "websocket dial failed", Cause: err}
	}
	version, encoding, ok := lookupSubprotocol(negotiated)
	if !ok {
		_ = conn.Close()
		return nil, newProtocolError("unknown websocket subprotocol %q", negotiated)
	}

	e := &wsEngine{
		conn:     conn,
		version:  version,
		encoding: encoding,
		mode:     mode,
		reqIDs:   ids.New(),
		readyCh:  make(chan struct{}),
		pending:  make(map[int64]*wsPending),
		closeCh:  make(chan struct{}),
	}

	go e.readLoop()

	if e.encoding == EncodingBinary {
		if err := e.writeFrame(encodeHelloBinary(jwt)); err != nil {
			_ = e.closeWith(err)
			return nil, err
		}
	} else {
		hello := jsonHello{Type: "hello"}
		if jwt != "" {
			hello.Jwt = &jwt
		}
		if err := e.sendJSON(hello); err != nil {
			_ = e.closeWith(err)
			return nil, err
		}
	}

	select {
	case <-e.readyCh:
		if e.readyErr != nil {
			return nil, e.readyErr
		}
		return e, nil
	case <-ctx.Done():
		_ = e.closeWith(ctx.Err())
		return nil, ctx.Err()
	}
}

func (e *wsEngine) sendJSON(v any) error {
	b, err := marshalJSON(v)
	if err != nil {
		return err
	}
	return e.writeFrame(b)
}

func (e *wsEngine) writeFrame(b []byte) error {
	if err := e.conn.WriteMessage(e.encoding == EncodingBinary, b); err != nil {
		return &TransportError{Msg: "websocket write failed", Cause: err}
	}
	return nil
}

// readLoop dispatches every inbound message: the first is hello_ok or
// hello_error; every subsequent message is a response_ok/response_error
// correlated by request_id. The wire shape depends on the negotiated
// encoding, matching how sendJSON/writeFrame and Do pick their encode
// path.
func (e *wsEngine) readLoop() {
	if e.encoding == EncodingBinary {
		e.readLoopBinary()
		return
	}
	e.readLoopJSON()
}

func (e *wsEngine) readLoopJSON() {
	helloSeen := false
	for {
		_, data, err := e.conn.ReadMessage()
		if err != nil {
			e.finishReady(&TransportError{Msg: "websocket closed", Cause: err})
			_ = e.closeWith(&TransportError{Msg: "websocket read failed", Cause: err})
			return
		}

		if !helloSeen {
			var probe struct {
				Type string `json:"type"`
			}
			if err := unmarshalJSON(data, &probe); err != nil {
				e.finishReady(err)
				_ = e.closeWith(err)
				return
			}
			switch probe.Type {
			case "hello_ok":
				helloSeen = true
				e.finishReady(nil)
				continue
			case "hello_error":
				var he jsonHelloError
				if err := unmarshalJSON(data, &he); err != nil {
					e.finishReady(err)
					_ = e.closeWith(err)
					return
				}
				err := decodeErrorJSON(he.Error)
				e.finishReady(err)
				_ = e.closeWith(err)
				return
			default:
				err := newProtocolError("expected hello_ok/hello_error, got %q", probe.Type)
				e.finishReady(err)
				_ = e.closeWith(err)
				return
			}
		}

		var ws jsonWSResponse
		if err := unmarshalJSON(data, &ws); err != nil {
			_ = e.closeWith(err)
			return
		}

		switch ws.Type {
		case "response_ok", "response_error":
			e.deliverJSON(ws)
		default:
			_ = e.closeWith(newProtocolError("unexpected message type %q", ws.Type))
			return
		}
	}
}

func (e *wsEngine) readLoopBinary() {
	helloSeen := false
	for {
		_, data, err := e.conn.ReadMessage()
		if err != nil {
			e.finishReady(&TransportError{Msg: "websocket closed", Cause: err})
			_ = e.closeWith(&TransportError{Msg: "websocket read failed", Cause: err})
			return
		}

		msg, err := decodeWSMessageBinary(data)
		if err != nil {
			e.finishReady(err)
			_ = e.closeWith(err)
			return
		}

		if !helloSeen {
			switch msg.typ {
			case wsMsgHelloOK:
				helloSeen = true
				e.finishReady(nil)
				continue
			case wsMsgHelloError:
				re, derr := decodeErrorBinary(msg.errBody)
				if derr != nil {
					e.finishReady(derr)
					_ = e.closeWith(derr)
					return
				}
				e.finishReady(re)
				_ = e.closeWith(re)
				return
			default:
				perr := newProtocolError("expected hello_ok/hello_error, got message type %d", msg.typ)
				e.finishReady(perr)
				_ = e.closeWith(perr)
				return
			}
		}

		switch msg.typ {
		case wsMsgResponseOK, wsMsgResponseErr:
			e.deliverBinary(msg)
		default:
			_ = e.closeWith(newProtocolError("unexpected binary message type %d", msg.typ))
			return
		}
	}
}

func (e *wsEngine) finishReady(err error) {
	e.readyOnce.Do(func() {
		e.readyErr = err
		close(e.readyCh)
	})
}

// takePending removes and returns the pending entry for id, if any.
func (e *wsEngine) takePending(id int64) (*wsPending, bool) {
	e.mu.Lock()
	p, ok := e.pending[id]
	if ok {
		delete(e.pending, id)
	}
	e.mu.Unlock()
	return p, ok
}

func (e *wsEngine) deliverJSON(ws jsonWSResponse) {
	p, ok := e.takePending(ws.RequestID)
	if !ok {
		return // unknown request id; nothing waiting
	}

	if ws.Type == "response_error" {
		var re *ResponseError
		if ws.Error != nil {
			re = decodeErrorJSON(*ws.Error)
		} else {
			re = &ResponseError{Message: "unknown server error"}
		}
		p.ch <- wsResult{err: re}
		return
	}

	resp, err := decodeResponseBodyJSON(requestKindFromString(ws.Response.Type), ws.Response, e.mode)
	p.ch <- wsResult{resp: resp, err: err}
}

func (e *wsEngine) deliverBinary(msg wsBinaryMessage) {
	p, ok := e.takePending(msg.requestID)
	if !ok {
		return // unknown request id; nothing waiting
	}

	if msg.typ == wsMsgResponseErr {
		re, err := decodeErrorBinary(msg.errBody)
		if err != nil {
			p.ch <- wsResult{err: err}
			return
		}
		p.ch <- wsResult{err: re}
		return
	}

	resp, err := decodeResponseBodyBinary(p.kind, msg.response, e.mode)
	p.ch <- wsResult{resp: resp, err: err}
}

// requestKindFromString maps a wire "type" string back to its
// RequestKind, for responses whose kind is only known by this string
// (the engine correlates the actual expected kind separately by
// request-id to catch mismatches, see Do).
func requestKindFromString(s string) RequestKind {
	for k := ReqOpenStream; k <= ReqFetchCursor; k++ {
		if k.String() == s {
			return k
		}
	}
	return -1
}

func (e *wsEngine) Do(ctx context.Context, req StreamRequest) (StreamResponse, error) {
	e.mu.Lock()
	if e.closed {
		err := newClosedError("transport", e.fatal)
		e.mu.Unlock()
		return StreamResponse{}, err
	}
	id := e.reqIDs.Alloc()
	ch := make(chan wsResult, 1)
	e.pending[id] = &wsPending{ch: ch, kind: req.Kind}
	e.mu.Unlock()

	if e.encoding == EncodingBinary {
		b, err := encodeWSRequestBinary(id, req)
		if err != nil {
			e.forget(id)
			return StreamResponse{}, err
		}
		if err := e.writeFrame(b); err != nil {
			e.forget(id)
			return StreamResponse{}, err
		}
	} else {
		body, err := encodeRequestBodyJSON(req)
		if err != nil {
			e.forget(id)
			return StreamResponse{}, err
		}
		if err := e.sendJSON(jsonWSRequest{Type: "request", RequestID: id, Request: body}); err != nil {
			e.forget(id)
			return StreamResponse{}, err
		}
	}

	select {
	case r := <-ch:
		if r.err == nil && r.resp.Kind != req.Kind {
			return StreamResponse{}, newProtocolError("response kind %v does not match request kind %v", r.resp.Kind, req.Kind)
		}
		return r.resp, r.err
	case <-ctx.Done():
		e.forget(id)
		return StreamResponse{}, ctx.Err()
	case <-e.closeCh:
		return StreamResponse{}, newClosedError("transport", e.fatal)
	}
}

func (e *wsEngine) forget(id int64) {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()
	e.reqIDs.Free(id)
}

// OpenCursor is unsupported over the WebSocket transport: cursor
// streaming is an HTTP-only v3 feature per spec.md §4.10.
func (e *wsEngine) OpenCursor(ctx context.Context, streamID, cursorID int64, steps []wireStep) (cursorSource, error) {
	return nil, &VersionError{Feature: "cursor over websocket", Need: -1}
}

func (e *wsEngine) Ready(ctx context.Context) (Version, error) {
	select {
	case <-e.readyCh:
		return e.version, e.readyErr
	case <-ctx.Done():
		return VersionUnknown, ctx.Err()
	}
}

func (e *wsEngine) Version() (Version, bool) {
	select {
	case <-e.readyCh:
		return e.version, e.readyErr == nil
	default:
		return VersionUnknown, false
	}
}

func (e *wsEngine) closeWith(cause error) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.fatal = cause
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	closedErr := newClosedError("transport", cause)
	for _, p := range pending {
		p.ch <- wsResult{err: closedErr}
	}
	close(e.closeCh)
	return e.conn.Close()
}

func (e *wsEngine) Close() error {
	return e.closeWith(nil)
}

func (e *wsEngine) Closed() <-chan struct{} {
	return e.closeCh
}

func (e *wsEngine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatal
}
