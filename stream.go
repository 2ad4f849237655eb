package hrana

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/mickamy/hrana-go/internal/queue"
)

// errStreamClosing is the cause reported when a request is rejected
// because the stream is draining its queue during CloseGracefully.
var errStreamClosing = errors.New("stream is closing, no new work accepted")

type streamState int

const (
	streamOpening streamState = iota
	streamOpen
	streamClosing
	streamClosed
)

// Stream is an interactive, stateful SQL session multiplexed over the
// client's transport. Requests submitted to a Stream are serialized:
// at most one is in flight at a time, in FIFO submission order, because
// the server's per-stream SQL connection is stateful (transactions,
// temp state) and cross-request interleaving would break causality.
// At most one Cursor may be open at a time; while open, further
// requests on the stream block until it closes.
type Stream struct {
	client  *Client
	id      int64
	debugID string // opaque correlation id for logging, never sent on the wire

	mu           sync.Mutex
	cond         *sync.Cond
	state        streamState
	closeErr     error
	queue        *queue.FIFO[*pendingOp]
	activeCursor *Cursor
	mode         IntMode
}

type pendingOp struct {
	ctx   context.Context
	req   StreamRequest
	steps []wireStep // populated for ReqOpenCursor only
	done  chan opResult
}

type opResult struct {
	resp StreamResponse
	src  cursorSource
	err  error
}

func newStream(c *Client, id int64, mode IntMode) *Stream {
	s := &Stream{client: c, id: id, debugID: uuid.New().String(), state: streamOpening, mode: mode, queue: queue.NewFIFO[*pendingOp]()}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// ID returns the server-side stream id backing this handle.
func (s *Stream) ID() int64 { return s.id }

// DebugID returns an opaque, process-local identifier for this stream,
// useful for correlating log lines across concurrent streams. It is
// never sent to the server.
func (s *Stream) DebugID() string { return s.debugID }

func (s *Stream) markOpen() {
	s.mu.Lock()
	if s.state == streamOpening {
		s.state = streamOpen
	}
	s.mu.Unlock()
}

// Pending is a handle to a request submitted without waiting for its
// result, letting callers submit several operations back to back and
// collect results afterward while still observing FIFO server-side
// execution order.
type Pending struct {
	done chan opResult
}

// Wait blocks until the submitted operation completes and returns its
// outcome.
func (p *Pending) Wait() (StreamResponse, error) {
	r := <-p.done
	return r.resp, r.err
}

// submit enqueues req for serialized execution and returns a handle the
// caller can Wait on whenever convenient. Enqueueing itself never
// blocks on the network — only on the stream's own queue lock — so
// calling submit repeatedly without waiting preserves submission order.
func (s *Stream) submit(ctx context.Context, req StreamRequest) *Pending {
	op := &pendingOp{ctx: ctx, req: req, done: make(chan opResult, 1)}
	s.enqueue(op)
	return &Pending{done: op.done}
}

// enqueue admits op to the worker's queue unless the stream is closed,
// or closing and op is not the close_stream request itself: once
// CloseGracefully begins, no further caller-submitted work is accepted
// even though the queue keeps draining until the close request runs.
func (s *Stream) enqueue(op *pendingOp) {
	s.mu.Lock()
	switch {
	case s.state == streamClosed:
		err := newClosedError("stream", s.closeErr)
		s.mu.Unlock()
		op.done <- opResult{err: err}
		return
	case s.state == streamClosing && op.req.Kind != ReqCloseStream:
		err := newClosedError("stream", errStreamClosing)
		s.mu.Unlock()
		op.done <- opResult{err: err}
		return
	}
	s.queue.Push(op)
	s.cond.Signal()
	s.mu.Unlock()
}

// run is the stream's single worker goroutine: it pops one operation at
// a time, waits out any active cursor, executes it against the
// transport, and delivers the result.
func (s *Stream) run() {
	for {
		op := s.next()
		if op == nil {
			return // stream closed, queue drained
		}
		s.exec(op)
	}
}

func (s *Stream) next() *pendingOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.state == streamClosed && s.queue.Len() == 0 {
			return nil
		}
		if s.queue.Len() > 0 && s.activeCursor == nil {
			op, _ := s.queue.Pop()
			return op
		}
		s.cond.Wait()
	}
}

func (s *Stream) exec(op *pendingOp) {
	if op.req.Kind == ReqOpenCursor {
		src, err := s.client.transport.OpenCursor(op.ctx, s.id, op.req.CursorID, op.steps)
		if err != nil {
			op.done <- opResult{err: err}
			return
		}
		op.done <- opResult{src: src}
		return
	}
	resp, err := s.client.transport.Do(op.ctx, op.req)
	op.done <- opResult{resp: resp, err: err}
}

// wakeAll broadcasts to the worker, used when the active cursor closes
// or the stream itself transitions state.
func (s *Stream) wakeAll() {
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// requireVersion fails with a VersionError unless the negotiated
// protocol version is at least need.
func (s *Stream) requireVersion(feature string, need int) error {
	v, ok := s.client.transport.Version()
	if !ok {
		return &VersionError{Feature: feature, Need: need}
	}
	if int(v) < need {
		return &VersionError{Feature: feature, Need: need, Have: int(v)}
	}
	return nil
}

// Execute runs stmt and waits for its result.
func (s *Stream) Execute(ctx context.Context, stmt *Statement) (*StmtResult, error) {
	w, err := stmt.toWire(s.client)
	if err != nil {
		return nil, err
	}
	p := s.submit(ctx, StreamRequest{Kind: ReqExecute, StreamID: s.id, Stmt: w})
	resp, err := p.Wait()
	if err != nil {
		return nil, err
	}
	return resp.StmtResult, nil
}

// NewBatch creates an empty Batch bound to this stream.
func (s *Stream) NewBatch() *Batch {
	return &Batch{stream: s}
}

// runBatch is called by Batch.Execute.
func (s *Stream) runBatch(steps []*BatchStep) (*BatchResult, error) {
	wireSteps := make([]wireStep, len(steps))
	for i, st := range steps {
		if st.cond != nil && st.cond.usesAutocommit() {
			if err := s.requireVersion("is_autocommit condition", 3); err != nil {
				return nil, err
			}
		}
		w, err := st.stmt.toWire(s.client)
		if err != nil {
			return nil, err
		}
		wireSteps[i] = wireStep{Cond: st.cond, Stmt: w}
	}
	p := s.submit(context.Background(), StreamRequest{Kind: ReqBatch, StreamID: s.id, Steps: wireSteps})
	resp, err := p.Wait()
	if err != nil {
		return nil, err
	}
	return resp.BatchResult, nil
}

// Describe returns the parameters and columns of stmt without executing
// it. Requires protocol version >= 2.
func (s *Stream) Describe(ctx context.Context, stmt *Statement) (*DescribeResult, error) {
	if err := s.requireVersion("describe", 2); err != nil {
		return nil, err
	}
	req := StreamRequest{Kind: ReqDescribe, StreamID: s.id}
	if stmt.sql != nil {
		if err := stmt.sql.checkUsable(s.client); err != nil {
			return nil, err
		}
		req.HasSQLID = true
		req.SQLID = stmt.sql.id
	} else {
		req.SQL = stmt.text
	}
	p := s.submit(ctx, req)
	resp, err := p.Wait()
	if err != nil {
		return nil, err
	}
	return resp.DescribeResult, nil
}

// Sequence executes a sequence of semicolon-separated SQL statements,
// discarding any rows. Requires protocol version >= 2.
func (s *Stream) Sequence(ctx context.Context, sql string) error {
	if err := s.requireVersion("sequence", 2); err != nil {
		return err
	}
	p := s.submit(ctx, StreamRequest{Kind: ReqSequence, StreamID: s.id, SQL: sql})
	_, err := p.Wait()
	return err
}

// GetAutocommit reports whether the stream's SQL connection is not
// currently inside an explicit transaction. Requires protocol version
// >= 3.
func (s *Stream) GetAutocommit(ctx context.Context) (bool, error) {
	if err := s.requireVersion("get_autocommit", 3); err != nil {
		return false, err
	}
	p := s.submit(ctx, StreamRequest{Kind: ReqGetAutocommit, StreamID: s.id})
	resp, err := p.Wait()
	if err != nil {
		return false, err
	}
	return resp.Autocommit, nil
}

// OpenCursor executes the batch formed by steps as a streaming cursor.
// Requires protocol version >= 3. At most one cursor may be open per
// stream at a time; further stream requests block until it closes.
func (s *Stream) OpenCursor(ctx context.Context, steps []*BatchStep) (*Cursor, error) {
	if err := s.requireVersion("cursor", 3); err != nil {
		return nil, err
	}
	wireSteps := make([]wireStep, len(steps))
	for i, st := range steps {
		if !st.defined {
			return nil, newClientError("cursor step %d has no statement", i)
		}
		w, err := st.stmt.toWire(s.client)
		if err != nil {
			return nil, err
		}
		wireSteps[i] = wireStep{Cond: st.cond, Stmt: w}
	}

	cursorID := s.client.cursorIDs.Alloc()
	op := &pendingOp{ctx: ctx, req: StreamRequest{Kind: ReqOpenCursor, StreamID: s.id, CursorID: cursorID}, steps: wireSteps, done: make(chan opResult, 1)}
	s.enqueue(op)
	r := <-op.done
	if r.err != nil {
		s.client.cursorIDs.Free(cursorID)
		return nil, r.err
	}

	cur := newCursor(&streamCursorSource{stream: s, inner: r.src})
	s.mu.Lock()
	s.activeCursor = cur
	s.mu.Unlock()
	return cur, nil
}

// streamCursorSource wraps a transport cursorSource so that closing it
// also clears the owning stream's activeCursor and wakes the worker.
type streamCursorSource struct {
	stream *Stream
	inner  cursorSource
}

func (c *streamCursorSource) next(ctx context.Context) (CursorEntry, error) {
	return c.inner.next(ctx)
}

func (c *streamCursorSource) close() error {
	err := c.inner.close()
	c.stream.mu.Lock()
	c.stream.activeCursor = nil
	c.stream.mu.Unlock()
	c.stream.wakeAll()
	return err
}

// Close fails every queued operation with a ClosedError and releases the
// stream id immediately. An operation already handed to the transport is
// not interrupted; it completes with the transport's own result.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.state == streamClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = streamClosed
	var pending []*pendingOp
	for {
		op, ok := s.queue.Pop()
		if !ok {
			break
		}
		pending = append(pending, op)
	}
	cur := s.activeCursor
	s.activeCursor = nil
	s.mu.Unlock()

	closedErr := newClosedError("stream", nil)
	for _, op := range pending {
		op.done <- opResult{err: closedErr}
	}
	if cur != nil {
		_ = cur.Close()
	}
	s.wakeAll()

	s.client.closeStream(s)
	return nil
}

// CloseGracefully marks the stream as closing: no new work is accepted,
// queued work drains, then the stream transitions to Closed.
func (s *Stream) CloseGracefully(ctx context.Context) error {
	s.mu.Lock()
	if s.state == streamClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = streamClosing
	s.mu.Unlock()

	// Submit a close_stream request behind everything already queued;
	// once it completes the queue has drained.
	p := s.submit(ctx, StreamRequest{Kind: ReqCloseStream, StreamID: s.id})
	_, err := p.Wait()

	s.mu.Lock()
	s.state = streamClosed
	s.mu.Unlock()
	s.wakeAll()

	s.client.closeStream(s)
	return err
}
