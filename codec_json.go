package hrana

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
)

// ---- Value ----

type jsonValue struct {
	Type   string          `json:"type"`
	Value  json.RawMessage `json:"value,omitempty"`
	Base64 string          `json:"base64,omitempty"`
}

func encodeValueJSON(v Value) (jsonValue, error) {
	switch v.kind {
	case KindNull:
		return jsonValue{Type: "null"}, nil
	case KindInteger:
		return jsonValue{Type: "integer", Value: json.RawMessage(strconv.Quote(strconv.FormatInt(v.integer, 10)))}, nil
	case KindFloat:
		b, err := json.Marshal(v.float)
		if err != nil {
			return jsonValue{}, newInternalError("marshal float: %v", err)
		}
		return jsonValue{Type: "float", Value: b}, nil
	case KindText:
		b, err := json.Marshal(v.text)
		if err != nil {
			return jsonValue{}, newInternalError("marshal text: %v", err)
		}
		return jsonValue{Type: "text", Value: b}, nil
	case KindBlob:
		return jsonValue{Type: "blob", Base64: base64.StdEncoding.EncodeToString(v.blob)}, nil
	default:
		return jsonValue{}, newInternalError("unreachable value kind %d", v.kind)
	}
}

func decodeValueJSON(jv jsonValue) (Value, error) {
	switch jv.Type {
	case "null":
		return Null, nil
	case "integer":
		var s string
		if err := json.Unmarshal(jv.Value, &s); err != nil {
			return Value{}, newProtocolError("integer value is not a decimal string: %v", err)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, newRangeError("integer %q does not fit in 64 bits: %v", s, err)
		}
		return Integer(n), nil
	case "float":
		var f float64
		if err := json.Unmarshal(jv.Value, &f); err != nil {
			return Value{}, newProtocolError("float value is not a number: %v", err)
		}
		return Value{kind: KindFloat, float: f}, nil
	case "text":
		var s string
		if err := json.Unmarshal(jv.Value, &s); err != nil {
			return Value{}, newProtocolError("text value is not a string: %v", err)
		}
		return Text(s), nil
	case "blob":
		b, err := base64.StdEncoding.DecodeString(jv.Base64)
		if err != nil {
			return Value{}, newProtocolError("blob base64 is invalid: %v", err)
		}
		return Blob(b), nil
	default:
		// Unknown variant: rejected here with a ProtocolError; the Null
		// returned alongside it carries no decoded value.
		return Null, newProtocolError("unknown value type %q", jv.Type)
	}
}

// ---- Column / decimal helpers ----

type jsonColumn struct {
	Name     *string `json:"name,omitempty"`
	DeclType *string `json:"decltype,omitempty"`
}

func encodeColumnJSON(c Column) jsonColumn {
	jc := jsonColumn{}
	if c.Name != "" {
		jc.Name = &c.Name
	}
	if c.DeclType != "" {
		jc.DeclType = &c.DeclType
	}
	return jc
}

func decodeColumnJSON(jc jsonColumn) Column {
	var c Column
	if jc.Name != nil {
		c.Name = *jc.Name
	}
	if jc.DeclType != nil {
		c.DeclType = *jc.DeclType
	}
	return c
}

func encodeDecimalPtr(v *int64) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatInt(*v, 10)
	return &s
}

func decodeDecimalPtr(s *string) (*int64, error) {
	if s == nil {
		return nil, nil
	}
	n, err := strconv.ParseInt(*s, 10, 64)
	if err != nil {
		return nil, newRangeError("decimal %q does not fit in 64 bits: %v", *s, err)
	}
	return &n, nil
}

// ---- Error ----

type jsonError struct {
	Message string  `json:"message"`
	Code    *string `json:"code,omitempty"`
}

func encodeErrorJSON(e *ResponseError) jsonError {
	je := jsonError{Message: e.Message}
	if e.Code != "" {
		je.Code = &e.Code
	}
	return je
}

func decodeErrorJSON(je jsonError) *ResponseError {
	re := &ResponseError{Message: je.Message}
	if je.Code != nil {
		re.Code = *je.Code
	}
	return re
}

// ---- Condition ----

type jsonCondition struct {
	Type  string          `json:"type"`
	Step  *int            `json:"step,omitempty"`
	Cond  *jsonCondition  `json:"cond,omitempty"`
	Conds []jsonCondition `json:"conds,omitempty"`
}

func encodeConditionJSON(c *Condition) *jsonCondition {
	if c == nil {
		return nil
	}
	switch c.kind {
	case CondOk:
		step := c.step
		return &jsonCondition{Type: "ok", Step: &step}
	case CondError:
		step := c.step
		return &jsonCondition{Type: "error", Step: &step}
	case CondNot:
		return &jsonCondition{Type: "not", Cond: encodeConditionJSON(c.inner)}
	case CondAnd:
		return &jsonCondition{Type: "and", Conds: encodeConditionListJSON(c.children)}
	case CondOr:
		return &jsonCondition{Type: "or", Conds: encodeConditionListJSON(c.children)}
	case CondIsAutocommit:
		return &jsonCondition{Type: "is_autocommit"}
	default:
		return &jsonCondition{Type: "not"} // unreachable in practice; encoder guards upstream
	}
}

func encodeConditionListJSON(cs []Condition) []jsonCondition {
	out := make([]jsonCondition, len(cs))
	for i, c := range cs {
		out[i] = *encodeConditionJSON(&c)
	}
	return out
}

func decodeConditionJSON(jc *jsonCondition) (*Condition, error) {
	if jc == nil {
		return nil, nil
	}
	switch jc.Type {
	case "ok":
		if jc.Step == nil {
			return nil, newProtocolError("ok condition missing step")
		}
		c := Ok(*jc.Step)
		return &c, nil
	case "error":
		if jc.Step == nil {
			return nil, newProtocolError("error condition missing step")
		}
		c := Err(*jc.Step)
		return &c, nil
	case "not":
		inner, err := decodeConditionJSON(jc.Cond)
		if err != nil {
			return nil, err
		}
		if inner == nil {
			return nil, newProtocolError("not condition missing inner condition")
		}
		c := Not(*inner)
		return &c, nil
	case "and", "or":
		children := make([]Condition, len(jc.Conds))
		for i := range jc.Conds {
			ch, err := decodeConditionJSON(&jc.Conds[i])
			if err != nil {
				return nil, err
			}
			children[i] = *ch
		}
		var c Condition
		if jc.Type == "and" {
			c = And(children...)
		} else {
			c = Or(children...)
		}
		return &c, nil
	case "is_autocommit":
		c := IsAutocommit()
		return &c, nil
	default:
		return nil, newProtocolError("unknown condition type %q", jc.Type)
	}
}

// ---- Statement ----

type jsonNamedArg struct {
	Name  string    `json:"name"`
	Value jsonValue `json:"value"`
}

type jsonStatement struct {
	SQL       *string        `json:"sql,omitempty"`
	SQLID     *int64         `json:"sql_id,omitempty"`
	Args      []jsonValue    `json:"args,omitempty"`
	NamedArgs []jsonNamedArg `json:"named_args,omitempty"`
	WantRows  bool           `json:"want_rows"`
}

func encodeStatementJSON(w wireStatement) (jsonStatement, error) {
	js := jsonStatement{WantRows: w.WantRows}
	if w.HasSQLID {
		js.SQLID = &w.SQLID
	} else {
		js.SQL = &w.SQL
	}
	for _, a := range w.PosArgs {
		jv, err := encodeValueJSON(a)
		if err != nil {
			return jsonStatement{}, err
		}
		js.Args = append(js.Args, jv)
	}
	for _, a := range w.NamedArgs {
		jv, err := encodeValueJSON(a.Value)
		if err != nil {
			return jsonStatement{}, err
		}
		js.NamedArgs = append(js.NamedArgs, jsonNamedArg{Name: a.Name, Value: jv})
	}
	return js, nil
}

func decodeStatementJSON(js jsonStatement) (wireStatement, error) {
	w := wireStatement{WantRows: js.WantRows}
	switch {
	case js.SQLID != nil && js.SQL != nil:
		return wireStatement{}, newProtocolError("statement has both sql and sql_id")
	case js.SQLID != nil:
		w.HasSQLID = true
		w.SQLID = *js.SQLID
	case js.SQL != nil:
		w.SQL = *js.SQL
	default:
		return wireStatement{}, newProtocolError("statement has neither sql nor sql_id")
	}
	for _, a := range js.Args {
		v, err := decodeValueJSON(a)
		if err != nil {
			return wireStatement{}, err
		}
		w.PosArgs = append(w.PosArgs, v)
	}
	for _, a := range js.NamedArgs {
		v, err := decodeValueJSON(a.Value)
		if err != nil {
			return wireStatement{}, err
		}
		w.NamedArgs = append(w.NamedArgs, namedArg{Name: a.Name, Value: v})
	}
	return w, nil
}

// ---- Step / Batch ----

type jsonStep struct {
	Condition *jsonCondition `json:"condition,omitempty"`
	Stmt      jsonStatement  `json:"stmt"`
}

func encodeStepJSON(s wireStep) (jsonStep, error) {
	stmt, err := encodeStatementJSON(s.Stmt)
	if err != nil {
		return jsonStep{}, err
	}
	return jsonStep{Condition: encodeConditionJSON(s.Cond), Stmt: stmt}, nil
}

func decodeStepJSON(js jsonStep) (wireStep, error) {
	stmt, err := decodeStatementJSON(js.Stmt)
	if err != nil {
		return wireStep{}, err
	}
	cond, err := decodeConditionJSON(js.Condition)
	if err != nil {
		return wireStep{}, err
	}
	return wireStep{Cond: cond, Stmt: stmt}, nil
}

type jsonBatch struct {
	Steps []jsonStep `json:"steps"`
}

func encodeBatchJSON(steps []wireStep) (jsonBatch, error) {
	jb := jsonBatch{Steps: make([]jsonStep, len(steps))}
	for i, s := range steps {
		js, err := encodeStepJSON(s)
		if err != nil {
			return jsonBatch{}, err
		}
		jb.Steps[i] = js
	}
	return jb, nil
}

// ---- StmtResult ----

type jsonStmtResult struct {
	Cols             []jsonColumn `json:"cols"`
	Rows             [][]jsonValue `json:"rows,omitempty"`
	AffectedRowCount uint64       `json:"affected_row_count"`
	LastInsertRowID  *string      `json:"last_insert_rowid,omitempty"`
}

func encodeStmtResultJSON(r *StmtResult, mode IntMode) (jsonStmtResult, error) {
	jr := jsonStmtResult{
		Cols:             make([]jsonColumn, len(r.Cols)),
		AffectedRowCount: r.AffectedRowCount,
		LastInsertRowID:  encodeDecimalPtr(r.LastInsertRowID),
	}
	for i, c := range r.Cols {
		jr.Cols[i] = encodeColumnJSON(c)
	}
	for _, row := range r.Rows {
		jrow := make([]jsonValue, row.Len())
		for i := 0; i < row.Len(); i++ {
			jv, err := encodeValueJSON(row.Value(i))
			if err != nil {
				return jsonStmtResult{}, err
			}
			jrow[i] = jv
		}
		jr.Rows = append(jr.Rows, jrow)
	}
	return jr, nil
}

func decodeStmtResultJSON(jr jsonStmtResult, mode IntMode) (*StmtResult, error) {
	cols := make([]Column, len(jr.Cols))
	for i, jc := range jr.Cols {
		cols[i] = decodeColumnJSON(jc)
	}
	lastID, err := decodeDecimalPtr(jr.LastInsertRowID)
	if err != nil {
		return nil, err
	}
	r := &StmtResult{Cols: cols, AffectedRowCount: jr.AffectedRowCount, LastInsertRowID: lastID}
	for _, jrow := range jr.Rows {
		values := make([]Value, len(jrow))
		for i, jv := range jrow {
			v, err := decodeValueJSON(jv)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		r.Rows = append(r.Rows, newRow(cols, values, mode))
	}
	return r, nil
}

// ---- DescribeResult ----

type jsonDescribeParam struct {
	Name *string `json:"name,omitempty"`
}

type jsonDescribeResult struct {
	Params     []jsonDescribeParam `json:"params"`
	Cols       []jsonColumn        `json:"cols"`
	IsExplain  bool                `json:"is_explain"`
	IsReadonly bool                `json:"is_readonly"`
}

func encodeDescribeResultJSON(r *DescribeResult) jsonDescribeResult {
	jr := jsonDescribeResult{IsExplain: r.IsExplain, IsReadonly: r.IsReadonly}
	for _, p := range r.Params {
		jp := jsonDescribeParam{}
		if p.Name != "" {
			jp.Name = &p.Name
		}
		jr.Params = append(jr.Params, jp)
	}
	for _, c := range r.Cols {
		jr.Cols = append(jr.Cols, encodeColumnJSON(c))
	}
	return jr
}

func decodeDescribeResultJSON(jr jsonDescribeResult) *DescribeResult {
	r := &DescribeResult{IsExplain: jr.IsExplain, IsReadonly: jr.IsReadonly}
	for _, jp := range jr.Params {
		p := DescribeParam{}
		if jp.Name != nil {
			p.Name = *jp.Name
		}
		r.Params = append(r.Params, p)
	}
	for _, jc := range jr.Cols {
		r.Cols = append(r.Cols, decodeColumnJSON(jc))
	}
	return r
}

// ---- BatchResult ----

type jsonBatchResult struct {
	StepResults []*jsonStmtResult `json:"step_results"`
	StepErrors  []*jsonError      `json:"step_errors"`
}

func encodeBatchResultJSON(r *BatchResult, n int, mode IntMode) (jsonBatchResult, error) {
	jr := jsonBatchResult{
		StepResults: make([]*jsonStmtResult, n),
		StepErrors:  make([]*jsonError, n),
	}
	for i := 0; i < n; i++ {
		if res, ok := r.results[i]; ok {
			enc, err := encodeStmtResultJSON(res, mode)
			if err != nil {
				return jsonBatchResult{}, err
			}
			jr.StepResults[i] = &enc
		}
		if e, ok := r.errs[i]; ok {
			je := encodeErrorJSON(e)
			jr.StepErrors[i] = &je
		}
	}
	return jr, nil
}

func decodeBatchResultJSON(jr jsonBatchResult, mode IntMode) (*BatchResult, error) {
	r := &BatchResult{results: map[int]*StmtResult{}, errs: map[int]*ResponseError{}}
	for i, jres := range jr.StepResults {
		if jres == nil {
			continue
		}
		res, err := decodeStmtResultJSON(*jres, mode)
		if err != nil {
			return nil, err
		}
		r.results[i] = res
	}
	for i, jerr := range jr.StepErrors {
		if jerr == nil {
			continue
		}
		r.errs[i] = decodeErrorJSON(*jerr)
	}
	return r, nil
}

// ---- CursorEntry ----

type jsonCursorEntry struct {
	Type             string       `json:"type"`
	Step             *int         `json:"step,omitempty"`
	Cols             []jsonColumn `json:"cols,omitempty"`
	Row              []jsonValue  `json:"row,omitempty"`
	AffectedRowCount uint64       `json:"affected_row_count,omitempty"`
	LastInsertRowID  *string      `json:"last_insert_rowid,omitempty"`
	Error            *jsonError   `json:"error,omitempty"`
}

func encodeCursorEntryJSON(e CursorEntry) (jsonCursorEntry, error) {
	switch e.kind {
	case CursorStepBegin:
		step := e.step
		cols := make([]jsonColumn, len(e.cols))
		for i, c := range e.cols {
			cols[i] = encodeColumnJSON(c)
		}
		return jsonCursorEntry{Type: "step_begin", Step: &step, Cols: cols}, nil
	case CursorRow:
		row := make([]jsonValue, len(e.values))
		for i, v := range e.values {
			jv, err := encodeValueJSON(v)
			if err != nil {
				return jsonCursorEntry{}, err
			}
			row[i] = jv
		}
		return jsonCursorEntry{Type: "row", Row: row}, nil
	case CursorStepEnd:
		return jsonCursorEntry{
			Type:             "step_end",
			AffectedRowCount: e.affectedRowCount,
			LastInsertRowID:  encodeDecimalPtr(e.lastInsertRowID),
		}, nil
	case CursorStepError:
		step := e.step
		je := encodeErrorJSON(e.err)
		return jsonCursorEntry{Type: "step_error", Step: &step, Error: &je}, nil
	case CursorError:
		je := encodeErrorJSON(e.err)
		return jsonCursorEntry{Type: "error", Error: &je}, nil
	default:
		return jsonCursorEntry{}, newInternalError("unreachable cursor entry kind %d", e.kind)
	}
}

func decodeCursorEntryJSON(je jsonCursorEntry, mode IntMode) (CursorEntry, error) {
	switch je.Type {
	case "step_begin":
		if je.Step == nil {
			return CursorEntry{}, newProtocolError("step_begin missing step")
		}
		cols := make([]Column, len(je.Cols))
		for i, jc := range je.Cols {
			cols[i] = decodeColumnJSON(jc)
		}
		return CursorEntry{kind: CursorStepBegin, step: *je.Step, cols: cols}, nil
	case "row":
		values := make([]Value, len(je.Row))
		for i, jv := range je.Row {
			v, err := decodeValueJSON(jv)
			if err != nil {
				return CursorEntry{}, err
			}
			values[i] = v
		}
		return CursorEntry{kind: CursorRow, values: values, mode: mode}, nil
	case "step_end":
		lastID, err := decodeDecimalPtr(je.LastInsertRowID)
		if err != nil {
			return CursorEntry{}, err
		}
		return CursorEntry{kind: CursorStepEnd, affectedRowCount: je.AffectedRowCount, lastInsertRowID: lastID}, nil
	case "step_error":
		if je.Step == nil || je.Error == nil {
			return CursorEntry{}, newProtocolError("step_error missing step or error")
		}
		return CursorEntry{kind: CursorStepError, step: *je.Step, err: decodeErrorJSON(*je.Error)}, nil
	case "error":
		if je.Error == nil {
			return CursorEntry{}, newProtocolError("error entry missing error")
		}
		return CursorEntry{kind: CursorError, err: decodeErrorJSON(*je.Error)}, nil
	default:
		return CursorEntry{}, newProtocolError("unknown cursor entry type %q", je.Type)
	}
}

// ---- Request / response envelope bodies ----
//
// These flatten StreamRequest/StreamResponse into the per-kind JSON
// shapes of spec.md §6 (open_stream{stream_id}, execute{stream_id,
// stmt}, batch{stream_id, batch}, ...). Encoding picks the fields that
// apply to req.Kind; decoding reads result as a raw message and
// specializes it once the caller knows which kind produced it.

type jsonRequestBody struct {
	Type      string         `json:"type"`
	StreamID  *int64         `json:"stream_id,omitempty"`
	Stmt      *jsonStatement `json:"stmt,omitempty"`
	Batch     *jsonBatch     `json:"batch,omitempty"`
	SQL       *string        `json:"sql,omitempty"`
	SQLID     *int64         `json:"sql_id,omitempty"`
	CursorID  *int64         `json:"cursor_id,omitempty"`
	MaxCount  *int64         `json:"max_count,omitempty"`
}

func encodeRequestBodyJSON(req StreamRequest) (jsonRequestBody, error) {
	jb := jsonRequestBody{Type: req.Kind.String()}
	switch req.Kind {
	case ReqOpenStream, ReqCloseStream, ReqGetAutocommit:
		jb.StreamID = &req.StreamID
	case ReqExecute:
		jb.StreamID = &req.StreamID
		js, err := encodeStatementJSON(req.Stmt)
		if err != nil {
			return jsonRequestBody{}, err
		}
		jb.Stmt = &js
	case ReqBatch:
		jb.StreamID = &req.StreamID
		jbatch, err := encodeBatchJSON(req.Steps)
		if err != nil {
			return jsonRequestBody{}, err
		}
		jb.Batch = &jbatch
	case ReqDescribe, ReqSequence:
		jb.StreamID = &req.StreamID
		if req.HasSQLID {
			jb.SQLID = &req.SQLID
		} else {
			jb.SQL = &req.SQL
		}
	case ReqStoreSql:
		jb.SQLID = &req.SQLID
		jb.SQL = &req.SQL
	case ReqCloseSql:
		jb.SQLID = &req.SQLID
	case ReqOpenCursor:
		jb.StreamID = &req.StreamID
		jb.CursorID = &req.CursorID
		jbatch, err := encodeBatchJSON(req.Steps)
		if err != nil {
			return jsonRequestBody{}, err
		}
		jb.Batch = &jbatch
	case ReqCloseCursor:
		jb.CursorID = &req.CursorID
	case ReqFetchCursor:
		jb.CursorID = &req.CursorID
		jb.MaxCount = &req.MaxCount
	default:
		return jsonRequestBody{}, newInternalError("unreachable request kind %d", req.Kind)
	}
	return jb, nil
}

type jsonResponseBody struct {
	Type       string          `json:"type"`
	Result     json.RawMessage `json:"result,omitempty"`
	Autocommit bool            `json:"is_autocommit,omitempty"`
}

// decodeResponseBodyJSON specializes rb.Result according to kind, which
// the caller already knows from the outstanding request it correlates
// to (the response's own "type" is checked by the engine against kind
// before calling this).
func decodeResponseBodyJSON(kind RequestKind, rb jsonResponseBody, mode IntMode) (StreamResponse, error) {
	resp := StreamResponse{Kind: kind}
	switch kind {
	case ReqOpenStream, ReqCloseStream, ReqStoreSql, ReqCloseSql, ReqCloseCursor:
		// no payload
	case ReqExecute:
		var jr jsonStmtResult
		if err := unmarshalJSON(rb.Result, &jr); err != nil {
			return StreamResponse{}, err
		}
		r, err := decodeStmtResultJSON(jr, mode)
		if err != nil {
			return StreamResponse{}, err
		}
		resp.StmtResult = r
	case ReqBatch:
		var jr jsonBatchResult
		if err := unmarshalJSON(rb.Result, &jr); err != nil {
			return StreamResponse{}, err
		}
		r, err := decodeBatchResultJSON(jr, mode)
		if err != nil {
			return StreamResponse{}, err
		}
		resp.BatchResult = r
	case ReqDescribe:
		var jr jsonDescribeResult
		if err := unmarshalJSON(rb.Result, &jr); err != nil {
			return StreamResponse{}, err
		}
		resp.DescribeResult = decodeDescribeResultJSON(jr)
	case ReqSequence, ReqOpenCursor:
		// no payload beyond ack
	case ReqGetAutocommit:
		resp.Autocommit = rb.Autocommit
	default:
		return StreamResponse{}, newInternalError("unreachable response kind %d", kind)
	}
	return resp, nil
}

// ---- WebSocket envelope ----

type jsonHello struct {
	Type string  `json:"type"`
	Jwt  *string `json:"jwt,omitempty"`
}

type jsonHelloError struct {
	Type  string    `json:"type"`
	Error jsonError `json:"error"`
}

type jsonWSRequest struct {
	Type      string          `json:"type"`
	RequestID int64           `json:"request_id"`
	Request   jsonRequestBody `json:"request"`
}

type jsonWSResponse struct {
	Type      string           `json:"type"`
	RequestID int64            `json:"request_id"`
	Response  jsonResponseBody `json:"response,omitempty"`
	Error     *jsonError       `json:"error,omitempty"`
}

// ---- HTTP pipeline envelope ----

type jsonPipelineRequest struct {
	Baton    *string           `json:"baton,omitempty"`
	Requests []jsonRequestBody `json:"requests"`
}

type jsonPipelineResultEntry struct {
	Type     string           `json:"type"` // "ok" | "error"
	Response jsonResponseBody `json:"response,omitempty"`
	Error    *jsonError       `json:"error,omitempty"`
}

type jsonPipelineResponse struct {
	Baton   *string                   `json:"baton,omitempty"`
	BaseURL *string                   `json:"base_url,omitempty"`
	Results []jsonPipelineResultEntry `json:"results"`
}

type jsonCursorRequest struct {
	Baton *string   `json:"baton,omitempty"`
	Batch jsonBatch `json:"batch"`
}

type jsonCursorRespBody struct {
	Baton   *string `json:"baton,omitempty"`
	BaseURL *string `json:"base_url,omitempty"`
}

// marshalJSON/unmarshalJSON are thin wrappers kept separate so a future
// encoder swap (e.g. a faster JSON library) only touches this file.
func marshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, newInternalError("marshal: %v", err)
	}
	return b, nil
}

func unmarshalJSON(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return newProtocolError("malformed JSON message: %v", err)
	}
	return nil
}
