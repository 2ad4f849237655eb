package hrana

import (
	"context"
	"io"
	"sync"
)

// fakeTransport is an in-process Transport double used by stream_test.go
// and batch_test.go to exercise Stream/Batch/Client without a real
// network collaborator. It records requests in arrival order so tests
// can assert on FIFO submission/execution ordering.
type fakeTransport struct {
	mu       sync.Mutex
	version  Version
	seen     []RequestKind
	onDo     func(req StreamRequest) (StreamResponse, error)
	cursors  func(streamID, cursorID int64, steps []wireStep) (cursorSource, error)
	closedCh chan struct{}
}

func newFakeTransport(v Version) *fakeTransport {
	return &fakeTransport{version: v, closedCh: make(chan struct{})}
}

func (f *fakeTransport) Do(ctx context.Context, req StreamRequest) (StreamResponse, error) {
	f.mu.Lock()
	f.seen = append(f.seen, req.Kind)
	f.mu.Unlock()
	if f.onDo != nil {
		return f.onDo(req)
	}
	return StreamResponse{Kind: req.Kind}, nil
}

func (f *fakeTransport) OpenCursor(ctx context.Context, streamID, cursorID int64, steps []wireStep) (cursorSource, error) {
	if f.cursors != nil {
		return f.cursors(streamID, cursorID, steps)
	}
	return &fakeCursorSource{}, nil
}

func (f *fakeTransport) Ready(ctx context.Context) (Version, error) { return f.version, nil }
func (f *fakeTransport) Version() (Version, bool)                   { return f.version, true }
func (f *fakeTransport) Close() error                                { close(f.closedCh); return nil }
func (f *fakeTransport) Closed() <-chan struct{}                     { return f.closedCh }
func (f *fakeTransport) Err() error                                  { return nil }

func (f *fakeTransport) requestKinds() []RequestKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RequestKind, len(f.seen))
	copy(out, f.seen)
	return out
}

// fakeCursorSource yields its entries in order, then io.EOF; with no
// entries it serves tests that only need OpenCursor to succeed.
type fakeCursorSource struct {
	entries []CursorEntry
	i       int
	closed  bool
}

func (c *fakeCursorSource) next(ctx context.Context) (CursorEntry, error) {
	if c.i >= len(c.entries) {
		return CursorEntry{}, io.EOF
	}
	e := c.entries[c.i]
	c.i++
	return e, nil
}

func (c *fakeCursorSource) close() error {
	c.closed = true
	return nil
}
