package hrana

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Binary Value wire tags, per spec.md §4.4: a tagged union where the
// tag number alone discriminates the variant (at most one field is
// ever present).
const (
	binValNull    protowire.Number = 1
	binValInteger protowire.Number = 2
	binValFloat   protowire.Number = 3
	binValText    protowire.Number = 4
	binValBlob    protowire.Number = 5
)

// encodeValueBinary appends v's tagged-union encoding to buf.
func encodeValueBinary(buf []byte, v Value) ([]byte, error) {
	switch v.kind {
	case KindNull:
		buf = protowire.AppendTag(buf, binValNull, protowire.BytesType)
		buf = protowire.AppendVarint(buf, 0)
		return buf, nil
	case KindInteger:
		buf = protowire.AppendTag(buf, binValInteger, protowire.VarintType)
		buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(v.integer))
		return buf, nil
	case KindFloat:
		buf = protowire.AppendTag(buf, binValFloat, protowire.Fixed64Type)
		buf = protowire.AppendFixed64(buf, math.Float64bits(v.float))
		return buf, nil
	case KindText:
		buf = protowire.AppendTag(buf, binValText, protowire.BytesType)
		buf = protowire.AppendBytes(buf, []byte(v.text))
		return buf, nil
	case KindBlob:
		buf = protowire.AppendTag(buf, binValBlob, protowire.BytesType)
		buf = protowire.AppendBytes(buf, v.blob)
		return buf, nil
	default:
		return nil, newInternalError("unreachable value kind %d", v.kind)
	}
}

// decodeValueBinary parses a single tagged field from buf, returning the
// decoded Value and the number of bytes consumed.
func decodeValueBinary(buf []byte) (Value, int, error) {
	num, typ, tagLen := protowire.ConsumeTag(buf)
	if tagLen < 0 {
		return Value{}, 0, newProtocolError("malformed binary value tag: %v", protowire.ParseError(tagLen))
	}
	rest := buf[tagLen:]

	switch num {
	case binValNull:
		_, n := protowire.ConsumeVarint(rest)
		if n < 0 {
			return Value{}, 0, newProtocolError("malformed null value: %v", protowire.ParseError(n))
		}
		return Null, tagLen + n, nil
	case binValInteger:
		if typ != protowire.VarintType {
			return Value{}, 0, newProtocolError("integer value has wrong wire type %d", typ)
		}
		raw, n := protowire.ConsumeVarint(rest)
		if n < 0 {
			return Value{}, 0, newProtocolError("malformed integer value: %v", protowire.ParseError(n))
		}
		return Integer(protowire.DecodeZigZag(raw)), tagLen + n, nil
	case binValFloat:
		if typ != protowire.Fixed64Type {
			return Value{}, 0, newProtocolError("float value has wrong wire type %d", typ)
		}
		bits, n := protowire.ConsumeFixed64(rest)
		if n < 0 {
			return Value{}, 0, newProtocolError("malformed float value: %v", protowire.ParseError(n))
		}
		return Value{kind: KindFloat, float: math.Float64frombits(bits)}, tagLen + n, nil
	case binValText:
		if typ != protowire.BytesType {
			return Value{}, 0, newProtocolError("text value has wrong wire type %d", typ)
		}
		b, n := protowire.ConsumeBytes(rest)
		if n < 0 {
			return Value{}, 0, newProtocolError("malformed text value: %v", protowire.ParseError(n))
		}
		return Text(string(b)), tagLen + n, nil
	case binValBlob:
		if typ != protowire.BytesType {
			return Value{}, 0, newProtocolError("blob value has wrong wire type %d", typ)
		}
		b, n := protowire.ConsumeBytes(rest)
		if n < 0 {
			return Value{}, 0, newProtocolError("malformed blob value: %v", protowire.ParseError(n))
		}
		cp := make([]byte, len(b))
		copy(cp, b)
		return Blob(cp), tagLen + n, nil
	default:
		// Unknown field number: skip by wire type per spec.md §4.4 and
		// surface as a none sentinel for the caller's dispatcher to
		// reject in context.
		n := protowire.ConsumeFieldValue(num, typ, rest)
		if n < 0 {
			return Value{}, 0, newProtocolError("malformed unknown value field: %v", protowire.ParseError(n))
		}
		return Null, tagLen + n, nil
	}
}

// ---- length-delimited message field tags shared by every message type ----
//
// These numbers are this codec's own framing for compound messages
// (Column, Statement, Step, Batch, results, CursorEntry); they are
// independent of the Value tags above, scoped per message type below.

const (
	fColumnName     protowire.Number = 1
	fColumnDeclType protowire.Number = 2

	fStmtSQL      protowire.Number = 1
	fStmtSQLID    protowire.Number = 2
	fStmtPosArg   protowire.Number = 3
	fStmtNamedArg protowire.Number = 4
	fStmtWantRows protowire.Number = 5

	fNamedArgName  protowire.Number = 1
	fNamedArgValue protowire.Number = 2

	fCondType protowire.Number = 1
	fCondStep protowire.Number = 2
	fCondCond protowire.Number = 3
	fCondList protowire.Number = 4

	fStepCond protowire.Number = 1
	fStepStmt protowire.Number = 2

	fResultCol     protowire.Number = 1
	fResultRow     protowire.Number = 2
	fResultAffect  protowire.Number = 3
	fResultLastRow protowire.Number = 4

	fDescribeParam    protowire.Number = 1
	fDescribeCol      protowire.Number = 2
	fDescribeExplain  protowire.Number = 3
	fDescribeReadonly protowire.Number = 4

	fDescParamName protowire.Number = 1

	fBatchResEntry protowire.Number = 1

	fBatchResultOK   protowire.Number = 1
	fBatchResultErr  protowire.Number = 2
	fBatchResultIdx  protowire.Number = 3
	fErrMessage      protowire.Number = 1
	fErrCode         protowire.Number = 2

	fCursorType   protowire.Number = 1
	fCursorStep   protowire.Number = 2
	fCursorCol    protowire.Number = 3
	fCursorVal    protowire.Number = 4
	fCursorAffect protowire.Number = 5
	fCursorLast   protowire.Number = 6
	fCursorErr    protowire.Number = 7
)

func appendSubmessage(buf []byte, num protowire.Number, body []byte) []byte {
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	buf = protowire.AppendVarint(buf, uint64(len(body)))
	return append(buf, body...)
}

func appendVarintField(buf []byte, num protowire.Number, v uint64) []byte {
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, v)
}

func appendBoolField(buf []byte, num protowire.Number, v bool) []byte {
	if !v {
		return buf
	}
	return appendVarintField(buf, num, 1)
}

func appendStringField(buf []byte, num protowire.Number, s string) []byte {
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, []byte(s))
}

// consumeFields walks buf, invoking fn with each field's number, wire
// type, and raw content bytes (content excludes the tag, and for
// varint/fixed fields is the still-encoded form; callers re-parse with
// protowire helpers). Stops and returns an error if buf is malformed.
func consumeFields(buf []byte, fn func(num protowire.Number, typ protowire.Type, content []byte) error) error {
	for len(buf) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(buf)
		if tagLen < 0 {
			return newProtocolError("malformed field tag: %v", protowire.ParseError(tagLen))
		}
		rest := buf[tagLen:]
		n := protowire.ConsumeFieldValue(num, typ, rest)
		if n < 0 {
			return newProtocolError("malformed field value: %v", protowire.ParseError(n))
		}
		if err := fn(num, typ, rest[:n]); err != nil {
			return err
		}
		buf = rest[n:]
	}
	return nil
}

func consumeVarintContent(content []byte) (uint64, error) {
	v, n := protowire.ConsumeVarint(content)
	if n < 0 || n != len(content) {
		return 0, newProtocolError("malformed varint field")
	}
	return v, nil
}

func consumeBytesContent(content []byte) ([]byte, error) {
	b, n := protowire.ConsumeBytes(content)
	if n < 0 || n != len(content) {
		return nil, newProtocolError("malformed length-delimited field")
	}
	return b, nil
}

// ---- Column ----

func encodeColumnBinary(c Column) []byte {
	var buf []byte
	if c.Name != "" {
		buf = appendStringField(buf, fColumnName, c.Name)
	}
	if c.DeclType != "" {
		buf = appendStringField(buf, fColumnDeclType, c.DeclType)
	}
	return buf
}

func decodeColumnBinary(body []byte) (Column, error) {
	var c Column
	err := consumeFields(body, func(num protowire.Number, typ protowire.Type, content []byte) error {
		switch num {
		case fColumnName:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			c.Name = string(b)
		case fColumnDeclType:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			c.DeclType = string(b)
		}
		return nil
	})
	return c, err
}

// ---- Statement ----

func encodeStatementBinary(w wireStatement) ([]byte, error) {
	var buf []byte
	if w.HasSQLID {
		buf = appendVarintField(buf, fStmtSQLID, protowire.EncodeZigZag(w.SQLID))
	} else {
		buf = appendStringField(buf, fStmtSQL, w.SQL)
	}
	for _, a := range w.PosArgs {
		vb, err := encodeValueBinary(nil, a)
		if err != nil {
			return nil, err
		}
		buf = appendSubmessage(buf, fStmtPosArg, vb)
	}
	for _, a := range w.NamedArgs {
		vb, err := encodeValueBinary(nil, a.Value)
		if err != nil {
			return nil, err
		}
		nb := appendStringField(nil, fNamedArgName, a.Name)
		nb = appendSubmessage(nb, fNamedArgValue, vb)
		buf = appendSubmessage(buf, fStmtNamedArg, nb)
	}
	buf = appendBoolField(buf, fStmtWantRows, w.WantRows)
	return buf, nil
}

func decodeStatementBinary(body []byte) (wireStatement, error) {
	var w wireStatement
	var hasSQL bool
	err := consumeFields(body, func(num protowire.Number, typ protowire.Type, content []byte) error {
		switch num {
		case fStmtSQL:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			w.SQL = string(b)
			hasSQL = true
		case fStmtSQLID:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			w.SQLID = protowire.DecodeZigZag(v)
			w.HasSQLID = true
		case fStmtPosArg:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			v, _, err := decodeValueBinary(b)
			if err != nil {
				return err
			}
			w.PosArgs = append(w.PosArgs, v)
		case fStmtNamedArg:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			na, err := decodeNamedArgBinary(b)
			if err != nil {
				return err
			}
			w.NamedArgs = append(w.NamedArgs, na)
		case fStmtWantRows:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			w.WantRows = v != 0
		}
		return nil
	})
	if err != nil {
		return wireStatement{}, err
	}
	if hasSQL && w.HasSQLID {
		return wireStatement{}, newProtocolError("statement has both sql and sql_id")
	}
	if !hasSQL && !w.HasSQLID {
		return wireStatement{}, newProtocolError("statement has neither sql nor sql_id")
	}
	return w, nil
}

func decodeNamedArgBinary(body []byte) (namedArg, error) {
	var na namedArg
	err := consumeFields(body, func(num protowire.Number, typ protowire.Type, content []byte) error {
		switch num {
		case fNamedArgName:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			na.Name = string(b)
		case fNamedArgValue:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			v, _, err := decodeValueBinary(b)
			if err != nil {
				return err
			}
			na.Value = v
		}
		return nil
	})
	return na, err
}

// ---- Condition ----

func encodeConditionBinary(c *Condition) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	var buf []byte
	switch c.kind {
	case CondOk:
		buf = appendVarintField(buf, fCondType, 0) // 0 = ok
		buf = appendVarintField(buf, fCondStep, protowire.EncodeZigZag(int64(c.step)))
	case CondError:
		buf = appendVarintField(buf, fCondType, 1) // 1 = error
		buf = appendVarintField(buf, fCondStep, protowire.EncodeZigZag(int64(c.step)))
	case CondNot:
		buf = appendVarintField(buf, fCondType, 2) // 2 = not
		inner, err := encodeConditionBinary(c.inner)
		if err != nil {
			return nil, err
		}
		buf = appendSubmessage(buf, fCondCond, inner)
	case CondAnd, CondOr:
		if c.kind == CondAnd {
			buf = appendVarintField(buf, fCondType, 3) // 3 = and
		} else {
			buf = appendVarintField(buf, fCondType, 4) // 4 = or
		}
		for _, ch := range c.children {
			cb, err := encodeConditionBinary(&ch)
			if err != nil {
				return nil, err
			}
			buf = appendSubmessage(buf, fCondList, cb)
		}
	case CondIsAutocommit:
		buf = appendVarintField(buf, fCondType, 5) // 5 = is_autocommit
	default:
		return nil, newInternalError("unreachable condition kind %d", c.kind)
	}
	return buf, nil
}

func decodeConditionBinary(body []byte) (*Condition, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var typ uint64
	var haveType bool
	var step int64
	var inner *Condition
	var list []Condition

	err := consumeFields(body, func(num protowire.Number, wt protowire.Type, content []byte) error {
		switch num {
		case fCondType:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			typ, haveType = v, true
		case fCondStep:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			step = protowire.DecodeZigZag(v)
		case fCondCond:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			c, err := decodeConditionBinary(b)
			if err != nil {
				return err
			}
			inner = c
		case fCondList:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			c, err := decodeConditionBinary(b)
			if err != nil {
				return err
			}
			if c != nil {
				list = append(list, *c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !haveType {
		return nil, newProtocolError("condition missing type")
	}

	switch typ {
	case 0:
		c := Ok(int(step))
		return &c, nil
	case 1:
		c := Err(int(step))
		return &c, nil
	case 2:
		if inner == nil {
			return nil, newProtocolError("not condition missing inner condition")
		}
		c := Not(*inner)
		return &c, nil
	case 3:
		c := And(list...)
		return &c, nil
	case 4:
		c := Or(list...)
		return &c, nil
	case 5:
		c := IsAutocommit()
		return &c, nil
	default:
		return nil, newProtocolError("unknown condition type %d", typ)
	}
}

// ---- Step / Batch ----

func encodeStepBinary(s wireStep) ([]byte, error) {
	var buf []byte
	if s.Cond != nil {
		cb, err := encodeConditionBinary(s.Cond)
		if err != nil {
			return nil, err
		}
		buf = appendSubmessage(buf, fStepCond, cb)
	}
	sb, err := encodeStatementBinary(s.Stmt)
	if err != nil {
		return nil, err
	}
	buf = appendSubmessage(buf, fStepStmt, sb)
	return buf, nil
}

func decodeStepBinary(body []byte) (wireStep, error) {
	var s wireStep
	var haveStmt bool
	err := consumeFields(body, func(num protowire.Number, typ protowire.Type, content []byte) error {
		switch num {
		case fStepCond:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			c, err := decodeConditionBinary(b)
			if err != nil {
				return err
			}
			s.Cond = c
		case fStepStmt:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			stmt, err := decodeStatementBinary(b)
			if err != nil {
				return err
			}
			s.Stmt = stmt
			haveStmt = true
		}
		return nil
	})
	if err != nil {
		return wireStep{}, err
	}
	if !haveStmt {
		return wireStep{}, newProtocolError("step missing statement")
	}
	return s, nil
}

func encodeBatchBinary(steps []wireStep) ([]byte, error) {
	var buf []byte
	for _, s := range steps {
		sb, err := encodeStepBinary(s)
		if err != nil {
			return nil, err
		}
		buf = appendSubmessage(buf, fBatchResEntry, sb)
	}
	return buf, nil
}

func decodeBatchBinary(body []byte) ([]wireStep, error) {
	var steps []wireStep
	err := consumeFields(body, func(num protowire.Number, typ protowire.Type, content []byte) error {
		if num != fBatchResEntry {
			return nil
		}
		b, err := consumeBytesContent(content)
		if err != nil {
			return err
		}
		st, err := decodeStepBinary(b)
		if err != nil {
			return err
		}
		steps = append(steps, st)
		return nil
	})
	return steps, err
}

// ---- Error ----

func encodeErrorBinary(e *ResponseError) []byte {
	var buf []byte
	buf = appendStringField(buf, fErrMessage, e.Message)
	if e.Code != "" {
		buf = appendStringField(buf, fErrCode, e.Code)
	}
	return buf
}

func decodeErrorBinary(body []byte) (*ResponseError, error) {
	re := &ResponseError{}
	err := consumeFields(body, func(num protowire.Number, typ protowire.Type, content []byte) error {
		switch num {
		case fErrMessage:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			re.Message = string(b)
		case fErrCode:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			re.Code = string(b)
		}
		return nil
	})
	return re, err
}

// ---- StmtResult ----

func encodeStmtResultBinary(r *StmtResult, mode IntMode) ([]byte, error) {
	var buf []byte
	for _, c := range r.Cols {
		buf = appendSubmessage(buf, fResultCol, encodeColumnBinary(c))
	}
	for _, row := range r.Rows {
		var rb []byte
		for i := 0; i < row.Len(); i++ {
			vb, err := encodeValueBinary(nil, row.Value(i))
			if err != nil {
				return nil, err
			}
			rb = appendSubmessage(rb, protowire.Number(i+1), vb)
		}
		buf = appendSubmessage(buf, fResultRow, rb)
	}
	buf = appendVarintField(buf, fResultAffect, r.AffectedRowCount)
	if r.LastInsertRowID != nil {
		buf = appendVarintField(buf, fResultLastRow, protowire.EncodeZigZag(*r.LastInsertRowID))
	}
	return buf, nil
}

func decodeStmtResultBinary(body []byte, mode IntMode) (*StmtResult, error) {
	r := &StmtResult{}
	var rawRows [][]byte
	err := consumeFields(body, func(num protowire.Number, typ protowire.Type, content []byte) error {
		switch num {
		case fResultCol:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			c, err := decodeColumnBinary(b)
			if err != nil {
				return err
			}
			r.Cols = append(r.Cols, c)
		case fResultRow:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			rawRows = append(rawRows, b)
		case fResultAffect:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			r.AffectedRowCount = v
		case fResultLastRow:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			id := protowire.DecodeZigZag(v)
			r.LastInsertRowID = &id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, rb := range rawRows {
		values := make([]Value, 0, len(r.Cols))
		err := consumeFields(rb, func(num protowire.Number, typ protowire.Type, content []byte) error {
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			v, _, err := decodeValueBinary(b)
			if err != nil {
				return err
			}
			values = append(values, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
		r.Rows = append(r.Rows, newRow(r.Cols, values, mode))
	}
	return r, nil
}

// ---- DescribeResult ----

func encodeDescribeResultBinary(r *DescribeResult) []byte {
	var buf []byte
	for _, p := range r.Params {
		var pb []byte
		if p.Name != "" {
			pb = appendStringField(pb, fDescParamName, p.Name)
		}
		buf = appendSubmessage(buf, fDescribeParam, pb)
	}
	for _, c := range r.Cols {
		buf = appendSubmessage(buf, fDescribeCol, encodeColumnBinary(c))
	}
	buf = appendBoolField(buf, fDescribeExplain, r.IsExplain)
	buf = appendBoolField(buf, fDescribeReadonly, r.IsReadonly)
	return buf
}

func decodeDescribeResultBinary(body []byte) (*DescribeResult, error) {
	r := &DescribeResult{}
	err := consumeFields(body, func(num protowire.Number, typ protowire.Type, content []byte) error {
		switch num {
		case fDescribeParam:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			var p DescribeParam
			err = consumeFields(b, func(n protowire.Number, t protowire.Type, c []byte) error {
				if n == fDescParamName {
					nb, err := consumeBytesContent(c)
					if err != nil {
						return err
					}
					p.Name = string(nb)
				}
				return nil
			})
			if err != nil {
				return err
			}
			r.Params = append(r.Params, p)
		case fDescribeCol:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			c, err := decodeColumnBinary(b)
			if err != nil {
				return err
			}
			r.Cols = append(r.Cols, c)
		case fDescribeExplain:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			r.IsExplain = v != 0
		case fDescribeReadonly:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			r.IsReadonly = v != 0
		}
		return nil
	})
	return r, err
}

// ---- BatchResult ----

func encodeBatchResultBinary(r *BatchResult, n int, mode IntMode) ([]byte, error) {
	var buf []byte
	for i := 0; i < n; i++ {
		var eb []byte
		eb = appendVarintField(eb, fBatchResultIdx, uint64(i))
		if res, ok := r.results[i]; ok {
			rb, err := encodeStmtResultBinary(res, mode)
			if err != nil {
				return nil, err
			}
			eb = appendSubmessage(eb, fBatchResultOK, rb)
		}
		if e, ok := r.errs[i]; ok {
			eb = appendSubmessage(eb, fBatchResultErr, encodeErrorBinary(e))
		}
		buf = appendSubmessage(buf, fBatchResEntry, eb)
	}
	return buf, nil
}

func decodeBatchResultBinary(body []byte, mode IntMode) (*BatchResult, error) {
	r := &BatchResult{results: map[int]*StmtResult{}, errs: map[int]*ResponseError{}}
	err := consumeFields(body, func(num protowire.Number, typ protowire.Type, content []byte) error {
		if num != fBatchResEntry {
			return nil
		}
		eb, err := consumeBytesContent(content)
		if err != nil {
			return err
		}
		var idx int
		var haveIdx bool
		var res *StmtResult
		var respErr *ResponseError
		err = consumeFields(eb, func(n protowire.Number, t protowire.Type, c []byte) error {
			switch n {
			case fBatchResultIdx:
				v, err := consumeVarintContent(c)
				if err != nil {
					return err
				}
				idx, haveIdx = int(v), true
			case fBatchResultOK:
				b, err := consumeBytesContent(c)
				if err != nil {
					return err
				}
				res, err = decodeStmtResultBinary(b, mode)
				if err != nil {
					return err
				}
			case fBatchResultErr:
				b, err := consumeBytesContent(c)
				if err != nil {
					return err
				}
				respErr, err = decodeErrorBinary(b)
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		if !haveIdx {
			return newProtocolError("batch result entry missing index")
		}
		if res != nil {
			r.results[idx] = res
		}
		if respErr != nil {
			r.errs[idx] = respErr
		}
		return nil
	})
	return r, err
}

// ---- CursorEntry ----

func encodeCursorEntryBinary(e CursorEntry) ([]byte, error) {
	var buf []byte
	switch e.kind {
	case CursorStepBegin:
		buf = appendVarintField(buf, fCursorType, 0)
		buf = appendVarintField(buf, fCursorStep, protowire.EncodeZigZag(int64(e.step)))
		for _, c := range e.cols {
			buf = appendSubmessage(buf, fCursorCol, encodeColumnBinary(c))
		}
	case CursorRow:
		buf = appendVarintField(buf, fCursorType, 1)
		for _, v := range e.values {
			vb, err := encodeValueBinary(nil, v)
			if err != nil {
				return nil, err
			}
			buf = appendSubmessage(buf, fCursorVal, vb)
		}
	case CursorStepEnd:
		buf = appendVarintField(buf, fCursorType, 2)
		buf = appendVarintField(buf, fCursorAffect, e.affectedRowCount)
		if e.lastInsertRowID != nil {
			buf = appendVarintField(buf, fCursorLast, protowire.EncodeZigZag(*e.lastInsertRowID))
		}
	case CursorStepError:
		buf = appendVarintField(buf, fCursorType, 3)
		buf = appendVarintField(buf, fCursorStep, protowire.EncodeZigZag(int64(e.step)))
		buf = appendSubmessage(buf, fCursorErr, encodeErrorBinary(e.err))
	case CursorError:
		buf = appendVarintField(buf, fCursorType, 4)
		buf = appendSubmessage(buf, fCursorErr, encodeErrorBinary(e.err))
	default:
		return nil, newInternalError("unreachable cursor entry kind %d", e.kind)
	}
	return buf, nil
}

func decodeCursorEntryBinary(body []byte, mode IntMode) (CursorEntry, error) {
	var typ uint64
	var haveType bool
	var step int64
	var cols []Column
	var values []Value
	var affect uint64
	var lastRow *int64
	var respErr *ResponseError

	err := consumeFields(body, func(num protowire.Number, wt protowire.Type, content []byte) error {
		switch num {
		case fCursorType:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			typ, haveType = v, true
		case fCursorStep:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			step = protowire.DecodeZigZag(v)
		case fCursorCol:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			c, err := decodeColumnBinary(b)
			if err != nil {
				return err
			}
			cols = append(cols, c)
		case fCursorVal:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			v, _, err := decodeValueBinary(b)
			if err != nil {
				return err
			}
			values = append(values, v)
		case fCursorAffect:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			affect = v
		case fCursorLast:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			id := protowire.DecodeZigZag(v)
			lastRow = &id
		case fCursorErr:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			re, err := decodeErrorBinary(b)
			if err != nil {
				return err
			}
			respErr = re
		}
		return nil
	})
	if err != nil {
		return CursorEntry{}, err
	}
	if !haveType {
		return CursorEntry{}, newProtocolError("cursor entry missing type")
	}

	switch typ {
	case 0:
		return CursorEntry{kind: CursorStepBegin, step: int(step), cols: cols}, nil
	case 1:
		return CursorEntry{kind: CursorRow, values: values, mode: mode}, nil
	case 2:
		return CursorEntry{kind: CursorStepEnd, affectedRowCount: affect, lastInsertRowID: lastRow}, nil
	case 3:
		if respErr == nil {
			return CursorEntry{}, newProtocolError("step_error cursor entry missing error")
		}
		return CursorEntry{kind: CursorStepError, step: int(step), err: respErr}, nil
	case 4:
		if respErr == nil {
			return CursorEntry{}, newProtocolError("error cursor entry missing error")
		}
		return CursorEntry{kind: CursorError, err: respErr}, nil
	default:
		return CursorEntry{}, newProtocolError("unknown cursor entry type %d", typ)
	}
}

// ---- Request / response envelope bodies (binary) ----
//
// Mirrors codec_json.go's jsonRequestBody/jsonResponseBody: one flat
// message per StreamRequest/StreamResponse, fields picked by kind. The
// request's own kind has to travel on the wire (fReqKind) since nothing
// else distinguishes, say, open_stream from close_stream; the response
// never repeats it, since the caller already knows what kind of request
// is outstanding for a given correlation id (see wsEngine.pending /
// httpEngine's pipeline bookkeeping).

const (
	fReqKind     protowire.Number = 1
	fReqStreamID protowire.Number = 2
	fReqStmt     protowire.Number = 3
	fReqBatch    protowire.Number = 4
	fReqSQL      protowire.Number = 5
	fReqSQLID    protowire.Number = 6
	fReqCursorID protowire.Number = 7
	fReqMaxCount protowire.Number = 8
)

// encodeRequestBodyBinary is the client-only encode half of the
// request/response envelope codec: the client never needs to decode a
// request (it never receives one).
func encodeRequestBodyBinary(req StreamRequest) ([]byte, error) {
	var buf []byte
	buf = appendVarintField(buf, fReqKind, uint64(req.Kind))
	switch req.Kind {
	case ReqOpenStream, ReqCloseStream, ReqGetAutocommit:
		buf = appendVarintField(buf, fReqStreamID, protowire.EncodeZigZag(req.StreamID))
	case ReqExecute:
		buf = appendVarintField(buf, fReqStreamID, protowire.EncodeZigZag(req.StreamID))
		sb, err := encodeStatementBinary(req.Stmt)
		if err != nil {
			return nil, err
		}
		buf = appendSubmessage(buf, fReqStmt, sb)
	case ReqBatch:
		buf = appendVarintField(buf, fReqStreamID, protowire.EncodeZigZag(req.StreamID))
		bb, err := encodeBatchBinary(req.Steps)
		if err != nil {
			return nil, err
		}
		buf = appendSubmessage(buf, fReqBatch, bb)
	case ReqDescribe, ReqSequence:
		buf = appendVarintField(buf, fReqStreamID, protowire.EncodeZigZag(req.StreamID))
		if req.HasSQLID {
			buf = appendVarintField(buf, fReqSQLID, protowire.EncodeZigZag(req.SQLID))
		} else {
			buf = appendStringField(buf, fReqSQL, req.SQL)
		}
	case ReqStoreSql:
		buf = appendVarintField(buf, fReqSQLID, protowire.EncodeZigZag(req.SQLID))
		buf = appendStringField(buf, fReqSQL, req.SQL)
	case ReqCloseSql:
		buf = appendVarintField(buf, fReqSQLID, protowire.EncodeZigZag(req.SQLID))
	case ReqOpenCursor:
		buf = appendVarintField(buf, fReqStreamID, protowire.EncodeZigZag(req.StreamID))
		buf = appendVarintField(buf, fReqCursorID, protowire.EncodeZigZag(req.CursorID))
		bb, err := encodeBatchBinary(req.Steps)
		if err != nil {
			return nil, err
		}
		buf = appendSubmessage(buf, fReqBatch, bb)
	case ReqCloseCursor:
		buf = appendVarintField(buf, fReqCursorID, protowire.EncodeZigZag(req.CursorID))
	case ReqFetchCursor:
		buf = appendVarintField(buf, fReqCursorID, protowire.EncodeZigZag(req.CursorID))
		buf = appendVarintField(buf, fReqMaxCount, protowire.EncodeZigZag(req.MaxCount))
	default:
		return nil, newInternalError("unreachable request kind %d", req.Kind)
	}
	return buf, nil
}

const (
	fRespResult     protowire.Number = 1
	fRespAutocommit protowire.Number = 2
)

// decodeResponseBodyBinary specializes body according to kind, which the
// caller already knows from the outstanding request it correlates to.
func decodeResponseBodyBinary(kind RequestKind, body []byte, mode IntMode) (StreamResponse, error) {
	resp := StreamResponse{Kind: kind}
	var result []byte
	var haveResult bool
	var autocommit bool
	err := consumeFields(body, func(num protowire.Number, typ protowire.Type, content []byte) error {
		switch num {
		case fRespResult:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			result, haveResult = b, true
		case fRespAutocommit:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			autocommit = v != 0
		}
		return nil
	})
	if err != nil {
		return StreamResponse{}, err
	}

	switch kind {
	case ReqOpenStream, ReqCloseStream, ReqStoreSql, ReqCloseSql, ReqCloseCursor:
		// no payload
	case ReqExecute:
		if !haveResult {
			return StreamResponse{}, newProtocolError("execute response missing result")
		}
		r, err := decodeStmtResultBinary(result, mode)
		if err != nil {
			return StreamResponse{}, err
		}
		resp.StmtResult = r
	case ReqBatch:
		if !haveResult {
			return StreamResponse{}, newProtocolError("batch response missing result")
		}
		r, err := decodeBatchResultBinary(result, mode)
		if err != nil {
			return StreamResponse{}, err
		}
		resp.BatchResult = r
	case ReqDescribe:
		if !haveResult {
			return StreamResponse{}, newProtocolError("describe response missing result")
		}
		r, err := decodeDescribeResultBinary(result)
		if err != nil {
			return StreamResponse{}, err
		}
		resp.DescribeResult = r
	case ReqSequence, ReqOpenCursor:
		// ack only
	case ReqGetAutocommit:
		resp.Autocommit = autocommit
	default:
		return StreamResponse{}, newInternalError("unreachable response kind %d", kind)
	}
	return resp, nil
}

// ---- WebSocket envelope (binary) ----
//
// One WS binary frame carries one message, discriminated by fWsType
// (mirroring the JSON envelope's "type" string): hello / hello_ok /
// hello_error before the connection is ready, then request /
// response_ok / response_error per spec.md §4.9.

const (
	wsMsgHello uint64 = iota
	wsMsgHelloOK
	wsMsgHelloError
	wsMsgRequest
	wsMsgResponseOK
	wsMsgResponseErr
)

const (
	fWsType      protowire.Number = 1
	fWsJwt       protowire.Number = 2
	fWsErr       protowire.Number = 3
	fWsRequestID protowire.Number = 4
	fWsRequest   protowire.Number = 5
	fWsResponse  protowire.Number = 6
)

// encodeHelloBinary builds a hello message, including jwt only if set.
func encodeHelloBinary(jwt string) []byte {
	var buf []byte
	buf = appendVarintField(buf, fWsType, wsMsgHello)
	if jwt != "" {
		buf = appendStringField(buf, fWsJwt, jwt)
	}
	return buf
}

// encodeWSRequestBinary wraps req's encoded body in a request message
// correlated by id.
func encodeWSRequestBinary(id int64, req StreamRequest) ([]byte, error) {
	rb, err := encodeRequestBodyBinary(req)
	if err != nil {
		return nil, err
	}
	var buf []byte
	buf = appendVarintField(buf, fWsType, wsMsgRequest)
	buf = appendVarintField(buf, fWsRequestID, protowire.EncodeZigZag(id))
	buf = appendSubmessage(buf, fWsRequest, rb)
	return buf, nil
}

// wsBinaryMessage is the decoded shape of any inbound WS binary frame;
// which fields are populated depends on typ.
type wsBinaryMessage struct {
	typ       uint64
	jwt       string
	errBody   []byte
	requestID int64
	response  []byte
}

func decodeWSMessageBinary(data []byte) (wsBinaryMessage, error) {
	var m wsBinaryMessage
	var haveType bool
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, content []byte) error {
		switch num {
		case fWsType:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			m.typ, haveType = v, true
		case fWsJwt:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			m.jwt = string(b)
		case fWsErr:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			m.errBody = b
		case fWsRequestID:
			v, err := consumeVarintContent(content)
			if err != nil {
				return err
			}
			m.requestID = protowire.DecodeZigZag(v)
		case fWsResponse:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			m.response = b
		}
		return nil
	})
	if err != nil {
		return wsBinaryMessage{}, err
	}
	if !haveType {
		return wsBinaryMessage{}, newProtocolError("websocket binary message missing type")
	}
	return m, nil
}

// ---- HTTP pipeline envelope (binary) ----
//
// Mirrors jsonPipelineRequest/jsonPipelineResponse/
// jsonPipelineResultEntry: a baton-chained list of request bodies
// POSTed together, answered by a parallel list of ok/error result
// entries.

const (
	fPipeBaton    protowire.Number = 1
	fPipeReqEntry protowire.Number = 2
)

func encodePipelineRequestBinary(baton *string, reqs []StreamRequest) ([]byte, error) {
	var buf []byte
	if baton != nil {
		buf = appendStringField(buf, fPipeBaton, *baton)
	}
	for _, r := range reqs {
		rb, err := encodeRequestBodyBinary(r)
		if err != nil {
			return nil, err
		}
		buf = appendSubmessage(buf, fPipeReqEntry, rb)
	}
	return buf, nil
}

const (
	fPipeEntryOK    protowire.Number = 1
	fPipeEntryErr   protowire.Number = 2
	fPipeRespBaton  protowire.Number = 3
)

// pipelineEntryBinary is one decoded pipeline result entry: exactly one
// of result/errBody is populated.
type pipelineEntryBinary struct {
	result  []byte
	errBody []byte
}

// decodePipelineResponseBinary returns the new baton (nil if absent, an
// empty string if explicitly terminating the chain per spec.md §4.4) and
// one entry per request in the same order they were sent.
func decodePipelineResponseBinary(body []byte) (baton *string, entries []pipelineEntryBinary, err error) {
	err = consumeFields(body, func(num protowire.Number, typ protowire.Type, content []byte) error {
		switch num {
		case fPipeRespBaton:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			s := string(b)
			baton = &s
		case fPipeEntryOK:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			entries = append(entries, pipelineEntryBinary{result: b})
		case fPipeEntryErr:
			b, err := consumeBytesContent(content)
			if err != nil {
				return err
			}
			entries = append(entries, pipelineEntryBinary{errBody: b})
		}
		return nil
	})
	return baton, entries, err
}

// ---- HTTP cursor envelope (binary) ----
//
// The cursor request is a single baton-chained batch submission, the
// same shape as jsonCursorRequest. The response is varint-length-framed
// CursorEntry messages preceded by one header message carrying the next
// baton, per spec.md §4.10; decodeCursorRespHeaderBinary decodes that
// leading header.

const (
	fCursorReqBaton protowire.Number = 1
	fCursorReqBatch protowire.Number = 2
)

func encodeCursorRequestBinary(baton *string, steps []wireStep) ([]byte, error) {
	var buf []byte
	if baton != nil {
		buf = appendStringField(buf, fCursorReqBaton, *baton)
	}
	bb, err := encodeBatchBinary(steps)
	if err != nil {
		return nil, err
	}
	buf = appendSubmessage(buf, fCursorReqBatch, bb)
	return buf, nil
}

const (
	fCursorHdrBaton protowire.Number = 1
)

func decodeCursorRespHeaderBinary(body []byte) (baton *string, err error) {
	err = consumeFields(body, func(num protowire.Number, typ protowire.Type, content []byte) error {
		if num != fCursorHdrBaton {
			return nil
		}
		b, err := consumeBytesContent(content)
		if err != nil {
			return err
		}
		s := string(b)
		baton = &s
		return nil
	})
	return baton, err
}
