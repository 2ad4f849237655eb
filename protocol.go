package hrana

// Version is the negotiated Hrana protocol version. Higher versions add
// features; see requireVersion call sites throughout this package for
// which operation needs which version.
type Version int

const (
	VersionUnknown Version = 0
	Version1       Version = 1
	Version2       Version = 2
	Version3       Version = 3
)

// Encoding is the wire encoding chosen alongside Version at negotiation
// time.
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingBinary
)

func (e Encoding) String() string {
	if e == EncodingBinary {
		return "binary"
	}
	return "json"
}

// subprotocol pairs a WebSocket subprotocol token with the (version,
// encoding) it selects. Order is preference order, per spec.md §6.1.
type subprotocol struct {
	Token    string
	Version  Version
	Encoding Encoding
}

// subprotocols is the fixed, ordered list of recognized WebSocket
// subprotocol tokens. An empty negotiated selection implies
// (Version1, EncodingJSON); any other unrecognized token is fatal.
var subprotocols = []subprotocol{
	{"hrana3-protobuf", Version3, EncodingBinary},
	{"hrana3", Version3, EncodingJSON},
	{"hrana2", Version2, EncodingJSON},
	{"hrana1", Version1, EncodingJSON},
}

// subprotocolTokens returns the tokens in preference order, for
// advertising during the WebSocket handshake.
func subprotocolTokens() []string {
	toks := make([]string, len(subprotocols))
	for i, s := range subprotocols {
		toks[i] = s.Token
	}
	return toks
}

// lookupSubprotocol resolves a negotiated token to its (version,
// encoding) pair. An empty token resolves to (Version1, EncodingJSON).
func lookupSubprotocol(token string) (Version, Encoding, bool) {
	if token == "" {
		return Version1, EncodingJSON, true
	}
	for _, s := range subprotocols {
		if s.Token == token {
			return s.Version, s.Encoding, true
		}
	}
	return VersionUnknown, EncodingJSON, false
}

// RequestKind discriminates the variant of a StreamRequest / the
// matching StreamResponse it expects.
type RequestKind int

const (
	ReqOpenStream RequestKind = iota
	ReqCloseStream
	ReqExecute
	ReqBatch
	ReqDescribe
	ReqSequence
	ReqStoreSql
	ReqCloseSql
	ReqGetAutocommit
	ReqOpenCursor
	ReqCloseCursor
	ReqFetchCursor
)

func (k RequestKind) String() string {
	switch k {
	case ReqOpenStream:
		return "open_stream"
	case ReqCloseStream:
		return "close_stream"
	case ReqExecute:
		return "execute"
	case ReqBatch:
		return "batch"
	case ReqDescribe:
		return "describe"
	case ReqSequence:
		return "sequence"
	case ReqStoreSql:
		return "store_sql"
	case ReqCloseSql:
		return "close_sql"
	case ReqGetAutocommit:
		return "get_autocommit"
	case ReqOpenCursor:
		return "open_cursor"
	case ReqCloseCursor:
		return "close_cursor"
	case ReqFetchCursor:
		return "fetch_cursor"
	default:
		return "unknown"
	}
}

// wireStatement is the flattened wire shape of a Statement: the text
// xor sql_id reference, the merged positional+named argument lists, and
// want_rows.
type wireStatement struct {
	SQL       string
	SQLID     int64
	HasSQLID  bool
	PosArgs   []Value
	NamedArgs []namedArg
	WantRows  bool
}

// toWire flattens s into its wire shape on behalf of owner. It fails
// with a ClientError if s references a Sql handle that is closed or
// belongs to a different client.
func (s *Statement) toWire(owner *Client) (wireStatement, error) {
	w := wireStatement{PosArgs: s.posArgs, NamedArgs: s.namedArgsSorted(), WantRows: s.wantRows}
	if s.sql != nil {
		if err := s.sql.checkUsable(owner); err != nil {
			return wireStatement{}, err
		}
		w.SQLID = s.sql.id
		w.HasSQLID = true
	} else {
		w.SQL = s.text
	}
	return w, nil
}

// wireStep is the flattened wire shape of a BatchStep.
type wireStep struct {
	Cond *Condition
	Stmt wireStatement
}

// StreamRequest is the transport-agnostic, decoded form of every
// request the client may send on behalf of a stream (or, for
// StoreSql/CloseSql, on behalf of the client itself — StreamID is
// unused for those two kinds).
type StreamRequest struct {
	Kind     RequestKind
	StreamID int64

	// Execute
	Stmt wireStatement

	// Batch / OpenCursor
	Steps []wireStep

	// Describe / Sequence / StoreSql / CloseSql
	SQL      string
	SQLID    int64
	HasSQLID bool

	// OpenCursor / CloseCursor / FetchCursor
	CursorID int64
	MaxCount int64
}

// StreamResponse is the transport-agnostic, decoded form of a
// successful reply to a StreamRequest.
type StreamResponse struct {
	Kind RequestKind

	StmtResult     *StmtResult
	BatchResult    *BatchResult
	DescribeResult *DescribeResult
	Autocommit     bool
}
