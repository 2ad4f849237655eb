package hrana

import (
	"testing"
	"time"
)

func TestValueFromAny(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
		kind Kind
	}{
		{"nil", nil, KindNull},
		{"bool true", true, KindInteger},
		{"int", 42, KindInteger},
		{"uint", uint(7), KindInteger},
		{"float64", 3.5, KindFloat},
		{"string", "hi", KindText},
		{"bytes", []byte("blob"), KindBlob},
		{"time", time.Unix(0, 0), KindFloat},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			v, err := ValueFromAny(tc.in)
			if err != nil {
				t.Fatalf("ValueFromAny(%v) error: %v", tc.in, err)
			}
			if v.kind != tc.kind {
				t.Fatalf("ValueFromAny(%v).kind = %v, want %v", tc.in, v.kind, tc.kind)
			}
		})
	}
}

func TestValueFromAnyUintOverflow(t *testing.T) {
	t.Parallel()
	_, err := ValueFromAny(uint64(1) << 63)
	if err == nil {
		t.Fatal("expected overflow error for uint64 >= 2^63")
	}
}

func TestIntModeNative(t *testing.T) {
	t.Parallel()
	v := Integer(123456789)

	n, err := v.Native(IntModeNumber)
	if err != nil {
		t.Fatalf("Native(Number): %v", err)
	}
	if n.(float64) != 123456789 {
		t.Fatalf("Native(Number) = %v, want 123456789", n)
	}

	n, err = v.Native(IntModeBigInt)
	if err != nil {
		t.Fatalf("Native(BigInt): %v", err)
	}
	if n.(int64) != 123456789 {
		t.Fatalf("Native(BigInt) = %v, want 123456789", n)
	}

	n, err = v.Native(IntModeString)
	if err != nil {
		t.Fatalf("Native(String): %v", err)
	}
	if n.(string) != "123456789" {
		t.Fatalf("Native(String) = %q, want %q", n, "123456789")
	}
}

func TestIntModeNumberRejectsUnsafeInteger(t *testing.T) {
	t.Parallel()
	v := Integer(1 << 60)
	if _, err := v.Native(IntModeNumber); err == nil {
		t.Fatal("expected RangeError for unsafe integer in Number mode")
	}
}

func TestIntModeNumberSafeIntegerBoundary(t *testing.T) {
	t.Parallel()

	// 2^53-1 is JS Number.MAX_SAFE_INTEGER and must still convert.
	if _, err := Integer(maxSafeInteger).Native(IntModeNumber); err != nil {
		t.Fatalf("Native(Number) at maxSafeInteger: %v", err)
	}
	if _, err := Integer(-maxSafeInteger).Native(IntModeNumber); err != nil {
		t.Fatalf("Native(Number) at -maxSafeInteger: %v", err)
	}
	// 2^53 itself is the first unsafe value and must be rejected.
	if _, err := Integer(maxSafeInteger + 1).Native(IntModeNumber); err == nil {
		t.Fatal("expected RangeError for integer at 2^53")
	}
	if _, err := Integer(-maxSafeInteger - 1).Native(IntModeNumber); err == nil {
		t.Fatal("expected RangeError for integer at -2^53")
	}
}

func TestFloatRejectsNonFinite(t *testing.T) {
	t.Parallel()
	if _, err := FloatValue(1.0 / (func() float64 { return 0 })()); err == nil {
		t.Fatal("expected error for +Inf")
	}
}
