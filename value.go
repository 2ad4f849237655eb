package hrana

import (
	"fmt"
	"math"
	"time"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a SQLite-family dynamic value: exactly one of Null, Integer
// (signed 64-bit, exact), Float (IEEE-754 double), Text (UTF-8), or Blob
// (arbitrary bytes).
type Value struct {
	kind    Kind
	integer int64
	float   float64
	text    string
	blob    []byte
}

// Null is the NULL value.
var Null = Value{kind: KindNull}

// Integer constructs an exact 64-bit integer value.
func Integer(v int64) Value { return Value{kind: KindInteger, integer: v} }

// Float constructs a double-precision float value. Panics on NaN/Inf;
// use FloatValue for a validating constructor when the input is not a
// compile-time literal.
func Float(v float64) Value {
	val, err := FloatValue(v)
	if err != nil {
		panic(err)
	}
	return val
}

// FloatValue validates v is finite before constructing a Float value.
func FloatValue(v float64) (Value, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}, newRangeError("non-finite float %v is not representable", v)
	}
	return Value{kind: KindFloat, float: v}, nil
}

// Text constructs a UTF-8 text value.
func Text(v string) Value { return Value{kind: KindText, text: v} }

// Blob constructs a blob value. The byte slice is retained, not copied.
func Blob(v []byte) Value { return Value{kind: KindBlob, blob: v} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the NULL value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 returns the integer payload and true, if v holds an Integer.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.integer, true
}

// Float64 returns the float payload and true, if v holds a Float.
func (v Value) Float64() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.float, true
}

// String returns the text payload and true, if v holds Text.
func (v Value) String() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// Bytes returns the blob payload and true, if v holds a Blob.
func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBlob {
		return nil, false
	}
	return v.blob, true
}

// IntMode selects how Integer values are surfaced to application code
// when reading a Row. The wire representation is always exact 64-bit;
// IntMode only governs the native Go type handed back.
type IntMode int

const (
	// IntModeNumber surfaces integers as float64, failing if the value
	// is not safely representable (|v| >= 2^53).
	IntModeNumber IntMode = iota
	// IntModeBigInt surfaces integers as int64, always exact.
	IntModeBigInt
	// IntModeString surfaces integers as their base-10 decimal string.
	IntModeString
)

// maxSafeInteger is JavaScript's Number.MAX_SAFE_INTEGER (2^53-1), the
// boundary this mode replicates for cross-protocol parity.
const maxSafeInteger = int64(1)<<53 - 1

// Native converts v according to mode, returning a Go value of type
// float64, int64, string, []byte, or nil. Only Integer values are
// affected by mode; other kinds convert to their natural Go type.
func (v Value) Native(mode IntMode) (any, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindInteger:
		return mode.convert(v.integer)
	case KindFloat:
		return v.float, nil
	case KindText:
		return v.text, nil
	case KindBlob:
		return v.blob, nil
	default:
		return nil, newInternalError("unreachable value kind %d", v.kind)
	}
}

func (mode IntMode) convert(v int64) (any, error) {
	switch mode {
	case IntModeNumber:
		if v > maxSafeInteger || v < -maxSafeInteger {
			return nil, newRangeError("integer %d is not safely representable in Number mode", v)
		}
		return float64(v), nil
	case IntModeBigInt:
		return v, nil
	case IntModeString:
		return fmt.Sprintf("%d", v), nil
	default:
		return nil, newInternalError("unreachable int mode %d", mode)
	}
}

// ValueFromAny coerces an application-level input into a Value. It
// accepts nil, bool (-> Integer 0/1), all signed/unsigned/float numeric
// kinds, string, []byte, time.Time (-> Float epoch-ms), any type
// implementing fmt.Stringer (-> Text), and any other value via
// fmt.Sprintf("%v", ...) (-> Text). Non-finite floats are rejected.
func ValueFromAny(in any) (Value, error) {
	switch x := in.(type) {
	case nil:
		return Null, nil
	case Value:
		return x, nil
	case bool:
		if x {
			return Integer(1), nil
		}
		return Integer(0), nil
	case int:
		return Integer(int64(x)), nil
	case int8:
		return Integer(int64(x)), nil
	case int16:
		return Integer(int64(x)), nil
	case int32:
		return Integer(int64(x)), nil
	case int64:
		return Integer(x), nil
	case uint:
		return Integer(int64(x)), nil
	case uint8:
		return Integer(int64(x)), nil
	case uint16:
		return Integer(int64(x)), nil
	case uint32:
		return Integer(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return Value{}, newRangeError("uint64 %d overflows 64-bit signed integer", x)
		}
		return Integer(int64(x)), nil
	case float32:
		return FloatValue(float64(x))
	case float64:
		return FloatValue(x)
	case string:
		return Text(x), nil
	case []byte:
		return Blob(x), nil
	case time.Time:
		ms := float64(x.UnixNano()) / 1e6
		return FloatValue(ms)
	case fmt.Stringer:
		return Text(x.String()), nil
	default:
		return Text(fmt.Sprintf("%v", in)), nil
	}
}
