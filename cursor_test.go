package hrana

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestCursorNextYieldsEntriesInOrder(t *testing.T) {
	t.Parallel()

	src := &fakeCursorSource{entries: []CursorEntry{
		{kind: CursorStepBegin, step: 0},
		{kind: CursorRow, values: []Value{Integer(1)}},
		{kind: CursorStepEnd, step: 0, affectedRowCount: 1},
	}}
	cur := newCursor(src)

	for i, want := range []CursorEntryKind{CursorStepBegin, CursorRow, CursorStepEnd} {
		e, err := cur.Next(context.Background())
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if e.Kind() != want {
			t.Fatalf("Next(%d).Kind() = %v, want %v", i, e.Kind(), want)
		}
	}

	_, err := cur.Next(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after exhaustion, got %v", err)
	}
	// Once exhausted, stays exhausted.
	_, err = cur.Next(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF on repeated Next, got %v", err)
	}
}

func TestCursorTerminalErrorEntryStopsIteration(t *testing.T) {
	t.Parallel()

	src := &fakeCursorSource{entries: []CursorEntry{
		{kind: CursorError, err: &ResponseError{Message: "boom"}},
		{kind: CursorRow}, // should never be reached
	}}
	cur := newCursor(src)

	e, err := cur.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if e.Kind() != CursorError {
		t.Fatalf("Kind() = %v, want CursorError", e.Kind())
	}

	_, err = cur.Next(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after a terminal error entry, got %v", err)
	}
}

func TestCursorCloseIdempotentAndRejectsFurtherNext(t *testing.T) {
	t.Parallel()

	src := &fakeCursorSource{}
	cur := newCursor(src)

	if err := cur.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := cur.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
	if !src.closed {
		t.Fatal("expected underlying source to be closed")
	}

	_, err := cur.Next(context.Background())
	if err == nil {
		t.Fatal("expected an error calling Next on a closed cursor")
	}
}
