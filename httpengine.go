package hrana

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mickamy/hrana-go/internal/queue"
)

// HTTPResponse is the narrow response shape the engine needs back from
// an HTTPDoer call: status, a fully-buffered body (pipeline requests),
// or a streaming body reader (cursor requests).
type HTTPResponse struct {
	Status int

	// Body is the complete response body for a non-streaming call.
	Body []byte

	// Stream, when non-nil, yields successive raw chunks of a streaming
	// cursor response body; Next returns io.EOF (wrapped) once
	// exhausted. Exactly one of Body/Stream is populated per call site.
	Stream interface {
		Next() ([]byte, error)
		Close() error
	}
}

// HTTPDoer is the narrow HTTP collaborator the engine needs: issue one
// request, get back its status and body. Concrete transports (see
// httptransport.Doer) adapt *http.Client to this interface.
type HTTPDoer interface {
	Do(ctx context.Context, method, url string, headers map[string]string, body []byte, streaming bool) (HTTPResponse, error)
}

// httpEngine implements Transport over HTTPDoer, using the version
// probe + pipeline/cursor POST protocol of spec.md §4.10.
type httpEngine struct {
	doer    HTTPDoer
	baseURL string
	jwt     string
	mode    IntMode

	version  Version
	encoding Encoding

	mu      sync.Mutex
	baton   *string
	closed  bool
	closeCh chan struct{}
	fatal   error
}

// httpEndpoint is one candidate version/path/encoding triple probed in
// priority order, per spec.md §6.2.
type httpEndpoint struct {
	versionPath  string
	pipelinePath string
	cursorPath   string // empty if unsupported at this version
	version      Version
	encoding     Encoding
}

var httpEndpoints = []httpEndpoint{
	{versionPath: "v3-protobuf", pipelinePath: "v3-protobuf/pipeline", cursorPath: "v3-protobuf/cursor", version: Version3, encoding: EncodingBinary},
	{versionPath: "v3", pipelinePath: "v3/pipeline", cursorPath: "v3/cursor", version: Version3, encoding: EncodingJSON},
	{versionPath: "v2", pipelinePath: "v2/pipeline", version: Version2, encoding: EncodingJSON},
}

// DialHTTP probes baseURL for the highest-priority supported endpoint
// and returns a ready Transport. Concrete transport packages (see
// httptransport) call this from their own Dial constructors.
func DialHTTP(ctx context.Context, doer HTTPDoer, baseURL, jwt string, mode IntMode) (Transport, error) {
	headers := authHeaders(jwt)

	for _, ep := range httpEndpoints {
		url := baseURL + "/" + ep.versionPath
		resp, err := doer.Do(ctx, "GET", url, headers, nil, false)
		if err != nil {
			continue
		}
		if resp.Status >= 200 && resp.Status < 300 {
			return &httpEngine{
				doer: doer, baseURL: baseURL, jwt: jwt, mode: mode,
				version: ep.version, encoding: ep.encoding,
				closeCh: make(chan struct{}),
			}, nil
		}
	}

	// Fall back to v2/JSON unconditionally, per spec.md §4.10.
	return &httpEngine{
		doer: doer, baseURL: baseURL, jwt: jwt, mode: mode,
		version: Version2, encoding: EncodingJSON,
		closeCh: make(chan struct{}),
	}, nil
}

func authHeaders(jwt string) map[string]string {
	h := map[string]string{}
	if jwt != "" {
		h["Authorization"] = "Bearer " + jwt
	}
	return h
}

func (e *httpEngine) endpoint() httpEndpoint {
	for _, ep := range httpEndpoints {
		if ep.version == e.version && ep.encoding == e.encoding {
			return ep
		}
	}
	return httpEndpoint{versionPath: "v2", pipelinePath: "v2/pipeline", version: Version2, encoding: EncodingJSON}
}

// Do sends req as a single-entry pipeline POST. The spec's "flush
// batches all currently-queued pipeline entries for a stream" batching
// optimization is deliberately not implemented: one POST per request
// keeps ordering and correctness simple at the cost of extra round
// trips (see DESIGN.md).
func (e *httpEngine) Do(ctx context.Context, req StreamRequest) (StreamResponse, error) {
	e.mu.Lock()
	if e.closed {
		err := newClosedError("transport", e.fatal)
		e.mu.Unlock()
		return StreamResponse{}, err
	}
	baton := e.baton
	e.mu.Unlock()

	if e.encoding == EncodingJSON {
		body, err := encodeRequestBodyJSON(req)
		if err != nil {
			return StreamResponse{}, err
		}
		reqBody := jsonPipelineRequest{Baton: baton, Requests: []jsonRequestBody{body}}
		payload, err := marshalJSON(reqBody)
		if err != nil {
			return StreamResponse{}, err
		}

		resp, err := e.post(ctx, e.endpoint().pipelinePath, payload)
		if err != nil {
			return StreamResponse{}, err
		}

		var pr jsonPipelineResponse
		if err := unmarshalJSON(resp, &pr); err != nil {
			_ = e.closeWith(err)
			return StreamResponse{}, err
		}
		e.storeBaton(pr.Baton)

		if len(pr.Results) != 1 {
			err := newProtocolError("pipeline response has %d results, want 1", len(pr.Results))
			_ = e.closeWith(err)
			return StreamResponse{}, err
		}
		entry := pr.Results[0]
		if entry.Type == "error" {
			if entry.Error != nil {
				return StreamResponse{}, decodeErrorJSON(*entry.Error)
			}
			return StreamResponse{}, &ResponseError{Message: "unknown server error"}
		}
		return decodeResponseBodyJSON(req.Kind, entry.Response, e.mode)
	}

	payload, err := encodePipelineRequestBinary(baton, []StreamRequest{req})
	if err != nil {
		return StreamResponse{}, err
	}

	resp, err := e.post(ctx, e.endpoint().pipelinePath, payload)
	if err != nil {
		return StreamResponse{}, err
	}

	newBaton, entries, err := decodePipelineResponseBinary(resp)
	if err != nil {
		_ = e.closeWith(err)
		return StreamResponse{}, err
	}
	e.storeBaton(newBaton)

	if len(entries) != 1 {
		err := newProtocolError("pipeline response has %d results, want 1", len(entries))
		_ = e.closeWith(err)
		return StreamResponse{}, err
	}
	entry := entries[0]
	if entry.errBody != nil {
		re, err := decodeErrorBinary(entry.errBody)
		if err != nil {
			return StreamResponse{}, err
		}
		return StreamResponse{}, re
	}
	return decodeResponseBodyBinary(req.Kind, entry.result, e.mode)
}

func (e *httpEngine) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	url := e.baseURL + "/" + path
	headers := authHeaders(e.jwt)
	contentType := "application/json"
	if e.encoding == EncodingBinary {
		contentType = "application/x-protobuf"
	}
	headers["Content-Type"] = contentType

	resp, err := e.doer.Do(ctx, "POST", url, headers, body, false)
	if err != nil {
		err := &TransportError{Msg: "http request failed", Cause: err}
		_ = e.closeWith(err)
		return nil, err
	}
	if resp.Status >= 400 {
		if respErr := tryDecodeErrorBody(resp.Body); respErr != nil {
			return nil, respErr
		}
		err := &TransportError{Msg: "http request failed", HTTPStatus: resp.Status}
		_ = e.closeWith(err)
		return nil, err
	}
	return resp.Body, nil
}

// tryDecodeErrorBody returns a ResponseError if body is a JSON object
// carrying a non-empty "message" field, or nil otherwise.
func tryDecodeErrorBody(body []byte) *ResponseError {
	var je jsonError
	if err := unmarshalJSON(body, &je); err != nil {
		return nil
	}
	if je.Message == "" {
		return nil
	}
	return decodeErrorJSON(je)
}

func (e *httpEngine) storeBaton(b *string) {
	e.mu.Lock()
	e.baton = b
	e.mu.Unlock()
}

// OpenCursor POSTs to the cursor endpoint (v3 only) and returns a
// source that incrementally parses the streaming, newline- or
// varint-length-framed response body.
func (e *httpEngine) OpenCursor(ctx context.Context, streamID, cursorID int64, steps []wireStep) (cursorSource, error) {
	ep := e.endpoint()
	if ep.cursorPath == "" {
		return nil, &VersionError{Feature: "cursor", Need: 3, Have: int(e.version)}
	}

	e.mu.Lock()
	baton := e.baton
	e.mu.Unlock()

	var payload []byte
	var contentType string
	if e.encoding == EncodingBinary {
		var err error
		payload, err = encodeCursorRequestBinary(baton, steps)
		if err != nil {
			return nil, err
		}
		contentType = "application/x-protobuf"
	} else {
		jb, err := encodeBatchJSON(steps)
		if err != nil {
			return nil, err
		}
		payload, err = marshalJSON(jsonCursorRequest{Baton: baton, Batch: jb})
		if err != nil {
			return nil, err
		}
		contentType = "application/json"
	}

	url := e.baseURL + "/" + ep.cursorPath
	headers := authHeaders(e.jwt)
	headers["Content-Type"] = contentType
	resp, err := e.doer.Do(ctx, "POST", url, headers, payload, true)
	if err != nil {
		err := &TransportError{Msg: "http cursor request failed", Cause: err}
		_ = e.closeWith(err)
		return nil, err
	}
	if resp.Status >= 400 {
		body := resp.Body
		if resp.Stream != nil {
			for {
				chunk, err := resp.Stream.Next()
				if err != nil {
					break
				}
				body = append(body, chunk...)
			}
			_ = resp.Stream.Close()
		}
		if respErr := tryDecodeErrorBody(body); respErr != nil {
			return nil, respErr
		}
		return nil, &TransportError{Msg: "http cursor request failed", HTTPStatus: resp.Status}
	}
	if resp.Stream == nil {
		return nil, newInternalError("http doer returned no stream for streaming request")
	}

	src := &httpCursorSource{
		engine: e, stream: resp.Stream, buf: queue.NewByteQueue(), mode: e.mode,
		binary: e.encoding == EncodingBinary,
	}
	if err := src.readRespBody(); err != nil {
		_ = resp.Stream.Close()
		return nil, err
	}
	return src, nil
}

// httpCursorSource incrementally parses a cursor response body: the
// first message is a CursorRespBody carrying baton/base_url, every
// subsequent message is a CursorEntry. JSON bodies are newline-framed;
// binary bodies are varint-length-framed (spec.md §4.4).
type httpCursorSource struct {
	engine *httpEngine
	stream interface {
		Next() ([]byte, error)
		Close() error
	}
	buf    *queue.ByteQueue
	mode   IntMode
	closed bool

	// binary selects varint-length-framed messages (protobuf endpoint)
	// over newline-delimited JSON messages.
	binary bool
}

func (s *httpCursorSource) readRespBody() error {
	msg, err := s.nextMessage()
	if err != nil {
		return err
	}
	if s.binary {
		baton, err := decodeCursorRespHeaderBinary(msg)
		if err != nil {
			return err
		}
		s.engine.storeBaton(baton)
		return nil
	}
	var rb jsonCursorRespBody
	if err := unmarshalJSON(msg, &rb); err != nil {
		return err
	}
	s.engine.storeBaton(rb.Baton)
	return nil
}

func (s *httpCursorSource) next(ctx context.Context) (CursorEntry, error) {
	msg, err := s.nextMessage()
	if err != nil {
		return CursorEntry{}, err
	}
	if s.binary {
		return decodeCursorEntryBinary(msg, s.mode)
	}
	var je jsonCursorEntry
	if err := unmarshalJSON(msg, &je); err != nil {
		return CursorEntry{}, err
	}
	return decodeCursorEntryJSON(je, s.mode)
}

// nextMessage pulls the next framed message out of the byte queue,
// pulling more chunks from the stream as needed. JSON bodies are
// newline-framed; binary bodies are varint-length-framed.
func (s *httpCursorSource) nextMessage() ([]byte, error) {
	for {
		var msg []byte
		var ok bool
		if s.binary {
			msg, ok = s.takeVarintFramed()
		} else {
			msg, ok = s.takeLine()
		}
		if ok {
			return msg, nil
		}
		chunk, err := s.stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) && s.buf.Len() > 0 {
				return nil, newProtocolError("cursor body ends inside a message")
			}
			return nil, err
		}
		s.buf.Push(chunk)
	}
}

func (s *httpCursorSource) takeLine() ([]byte, bool) {
	view := s.buf.Bytes()
	i := bytes.IndexByte(view, '\n')
	if i < 0 {
		return nil, false
	}
	line := make([]byte, i)
	copy(line, view[:i])
	s.buf.Shift(i + 1)
	return line, true
}

// takeVarintFramed pulls one length-prefixed message off the front of
// the queue: a varint byte length followed by that many content bytes.
// It reports false if the queue doesn't yet hold a complete frame.
func (s *httpCursorSource) takeVarintFramed() ([]byte, bool) {
	view := s.buf.Bytes()
	length, n := protowire.ConsumeVarint(view)
	if n <= 0 {
		return nil, false
	}
	total := n + int(length)
	if len(view) < total {
		return nil, false
	}
	msg := make([]byte, length)
	copy(msg, view[n:total])
	s.buf.Shift(total)
	return msg, true
}

func (s *httpCursorSource) close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}

func (e *httpEngine) Ready(ctx context.Context) (Version, error) {
	return e.version, nil
}

func (e *httpEngine) Version() (Version, bool) {
	return e.version, true
}

func (e *httpEngine) closeWith(cause error) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.fatal = cause
	e.mu.Unlock()
	close(e.closeCh)
	return nil
}

func (e *httpEngine) Close() error {
	return e.closeWith(nil)
}

func (e *httpEngine) Closed() <-chan struct{} {
	return e.closeCh
}

func (e *httpEngine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatal
}
