package hrana

import (
	"context"
	"testing"
	"time"
)

func TestStreamDebugIDsAreDistinct(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(Version3)
	c := NewClient(ft, IntModeBigInt)
	s1 := newStream(c, 1, IntModeBigInt)
	s2 := newStream(c, 2, IntModeBigInt)
	defer func() { _ = s1.Close() }()
	defer func() { _ = s2.Close() }()

	if s1.DebugID() == "" || s2.DebugID() == "" {
		t.Fatal("expected non-empty debug ids")
	}
	if s1.DebugID() == s2.DebugID() {
		t.Fatal("expected distinct debug ids per stream")
	}
}

func TestStreamFIFOSubmissionOrder(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(Version3)
	c := NewClient(ft, IntModeBigInt)
	s := newStream(c, 1, IntModeBigInt)
	s.markOpen()
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	p1 := s.submit(ctx, StreamRequest{Kind: ReqExecute, StreamID: s.id})
	p2 := s.submit(ctx, StreamRequest{Kind: ReqDescribe, StreamID: s.id})
	p3 := s.submit(ctx, StreamRequest{Kind: ReqSequence, StreamID: s.id})

	if _, err := p1.Wait(); err != nil {
		t.Fatalf("p1.Wait: %v", err)
	}
	if _, err := p2.Wait(); err != nil {
		t.Fatalf("p2.Wait: %v", err)
	}
	if _, err := p3.Wait(); err != nil {
		t.Fatalf("p3.Wait: %v", err)
	}

	kinds := ft.requestKinds()
	if len(kinds) != 3 {
		t.Fatalf("got %d requests, want 3", len(kinds))
	}
	want := []RequestKind{ReqExecute, ReqDescribe, ReqSequence}
	for i, k := range kinds {
		if k != want[i] {
			t.Fatalf("request %d kind = %v, want %v", i, k, want[i])
		}
	}
}

func TestStreamRequireVersionRejectsLowVersion(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(Version1)
	c := NewClient(ft, IntModeBigInt)
	s := newStream(c, 1, IntModeBigInt)
	s.markOpen()
	defer func() { _ = s.Close() }()

	_, err := s.GetAutocommit(context.Background())
	if err == nil {
		t.Fatal("expected VersionError for get_autocommit on v1")
	}
	var verr *VersionError
	if !asVersionError(err, &verr) {
		t.Fatalf("expected *VersionError, got %T: %v", err, err)
	}
}

func asVersionError(err error, target **VersionError) bool {
	ve, ok := err.(*VersionError)
	if !ok {
		return false
	}
	*target = ve
	return true
}

func TestStreamCursorBlocksFurtherRequests(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(Version3)
	c := NewClient(ft, IntModeBigInt)
	s := newStream(c, 1, IntModeBigInt)
	s.markOpen()
	defer func() { _ = s.Close() }()

	step := &BatchStep{index: 0}
	if err := step.Run(NewStatement("SELECT 1")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	cur, err := s.OpenCursor(context.Background(), []*BatchStep{step})
	if err != nil {
		t.Fatalf("OpenCursor: %v", err)
	}

	// Submit a request while the cursor is open: it must not complete
	// until the cursor closes.
	p := s.submit(context.Background(), StreamRequest{Kind: ReqExecute, StreamID: s.id})

	select {
	case <-p.done:
		t.Fatal("request completed while cursor was still open")
	case <-time.After(50 * time.Millisecond):
		// expected: still blocked
	}

	if err := cur.Close(); err != nil {
		t.Fatalf("cur.Close: %v", err)
	}

	select {
	case r := <-p.done:
		if r.err != nil {
			t.Fatalf("request after cursor close failed: %v", r.err)
		}
	case <-time.After(time.Second):
		t.Fatal("request did not complete after cursor closed")
	}
}

func TestStreamCloseGracefullyRejectsNewWorkWhileClosing(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(Version3)
	entered := make(chan struct{})
	release := make(chan struct{})
	ft.onDo = func(req StreamRequest) (StreamResponse, error) {
		if req.Kind == ReqCloseStream {
			close(entered)
			<-release
		}
		return StreamResponse{Kind: req.Kind}, nil
	}

	c := NewClient(ft, IntModeBigInt)
	s := newStream(c, 1, IntModeBigInt)
	s.markOpen()

	closeErrCh := make(chan error, 1)
	go func() { closeErrCh <- s.CloseGracefully(context.Background()) }()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("close_stream request never reached the transport")
	}

	// A submission arriving during the closing window (after
	// CloseGracefully's close_stream request is already in flight, before
	// the stream transitions to fully closed) must be rejected, not
	// queued behind the close request.
	p := s.submit(context.Background(), StreamRequest{Kind: ReqExecute, StreamID: s.id})
	_, err := p.Wait()
	if err == nil {
		t.Fatal("expected submission during closing window to fail")
	}
	var cerr *ClosedError
	if ce, ok := err.(*ClosedError); ok {
		cerr = ce
	} else {
		t.Fatalf("expected *ClosedError, got %T: %v", err, err)
	}
	if cerr.Unwrap() != errStreamClosing {
		t.Fatalf("expected cause errStreamClosing, got %v", cerr.Unwrap())
	}

	close(release)
	if err := <-closeErrCh; err != nil {
		t.Fatalf("CloseGracefully: %v", err)
	}
}

func TestStreamExecuteAfterCloseFails(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport(Version3)
	c := NewClient(ft, IntModeBigInt)
	s := newStream(c, 1, IntModeBigInt)
	s.markOpen()

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err := s.Execute(context.Background(), NewStatement("SELECT 1"))
	if err == nil {
		t.Fatal("expected error after stream closed")
	}
}
