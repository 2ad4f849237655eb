package hrana

import "context"

// Transport is the contract the protocol engine (Client, Stream) uses
// to talk to a negotiated Hrana connection, whether backed by a
// WebSocket or an HTTP baton pipeline. The engines in this package
// (returned by DialWS and DialHTTP) implement this against the narrow
// WSConn/WSDialer and HTTPDoer collaborators described in spec.md §6.5,
// which the wstransport and httptransport packages adapt; the core never
// imports a WebSocket or HTTP library directly.
type Transport interface {
	// Do sends req (with Kind and, for stream-scoped kinds, StreamID
	// populated) and returns the decoded response, or a *ResponseError,
	// *TransportError, *ProtocolError, or *ClosedError.
	Do(ctx context.Context, req StreamRequest) (StreamResponse, error)

	// OpenCursor starts a streaming cursor executing steps on behalf of
	// streamID, returning a source that yields CursorEntry values until
	// exhausted or closed.
	OpenCursor(ctx context.Context, streamID, cursorID int64, steps []wireStep) (cursorSource, error)

	// Ready blocks until version/encoding negotiation completes,
	// returning the negotiated version or the fatal negotiation error.
	Ready(ctx context.Context) (Version, error)

	// Version reports the negotiated version, and false if negotiation
	// has not completed yet.
	Version() (Version, bool)

	// Close closes the transport. All pending and future operations
	// fail with a *ClosedError referencing the cause (nil for a manual
	// Close).
	Close() error

	// Closed returns a channel that is closed once the transport has
	// closed, for callers that want to select on it.
	Closed() <-chan struct{}

	// Err returns the fatal cause of closure, or nil if still open or
	// closed manually.
	Err() error
}
