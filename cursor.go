package hrana

import (
	"context"
	"errors"
	"io"
	"sync"
)

// CursorEntryKind discriminates the variant of a CursorEntry.
type CursorEntryKind int

const (
	CursorStepBegin CursorEntryKind = iota
	CursorRow
	CursorStepEnd
	CursorStepError
	CursorError
)

// CursorEntry is one incrementally-emitted element of a Cursor's
// stream. Ordering invariant: a step_begin(k) precedes any row or
// step_end/step_error for step k; steps are emitted in batch order; a
// step_error terminates its step.
type CursorEntry struct {
	kind CursorEntryKind
	mode IntMode

	step             int
	cols             []Column
	values           []Value
	affectedRowCount uint64
	lastInsertRowID  *int64
	err              *ResponseError
}

// Kind reports which variant this entry holds.
func (e CursorEntry) Kind() CursorEntryKind { return e.kind }

// Step returns the step index for StepBegin/StepError entries.
func (e CursorEntry) Step() int { return e.step }

// Cols returns the column descriptors for a StepBegin entry.
func (e CursorEntry) Cols() []Column { return e.cols }

// Row materializes a Row view over a Row entry's values. The caller
// must track the active step's columns (from the preceding StepBegin)
// to pass here, since the entry itself carries only values.
func (e CursorEntry) Row(cols []Column) Row { return newRow(cols, e.values, e.mode) }

// AffectedRowCount returns the affected-row count for a StepEnd entry.
func (e CursorEntry) AffectedRowCount() uint64 { return e.affectedRowCount }

// LastInsertRowID returns the optional last-insert rowid for a StepEnd
// entry.
func (e CursorEntry) LastInsertRowID() *int64 { return e.lastInsertRowID }

// Err returns the server error for a StepError or terminal Error entry.
func (e CursorEntry) Err() *ResponseError { return e.err }

// cursorSource is implemented by each transport to feed raw entries to
// a Cursor. next returns io.EOF once the source is exhausted.
type cursorSource interface {
	next(ctx context.Context) (CursorEntry, error)
	close() error
}

// Cursor presents a lazy, finite, non-restartable sequence of
// CursorEntry values produced by a batch submitted with OpenCursor.
// Reads must be sequential; concurrent calls to Next are undefined, as
// for any single-reader iterator. Close is idempotent and releases any
// in-flight prefetch.
type Cursor struct {
	mu     sync.Mutex
	src    cursorSource
	done   bool
	closed bool
}

func newCursor(src cursorSource) *Cursor {
	return &Cursor{src: src}
}

// Next blocks until the next entry is available, the cursor is
// exhausted (io.EOF), or ctx is done. Once Next returns io.EOF, or an
// entry of kind CursorError, the cursor will not yield further entries.
func (c *Cursor) Next(ctx context.Context) (CursorEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return CursorEntry{}, newClosedError("cursor", nil)
	}
	if c.done {
		return CursorEntry{}, io.EOF
	}

	entry, err := c.src.next(ctx)
	if err != nil {
		c.done = true
		if errors.Is(err, io.EOF) {
			return CursorEntry{}, io.EOF
		}
		return CursorEntry{}, err
	}
	if entry.kind == CursorError {
		c.done = true
	}
	return entry, nil
}

// Close releases the cursor's server-side resources and any in-flight
// prefetch. It is idempotent.
func (c *Cursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.src.close()
}
