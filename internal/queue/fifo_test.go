package queue_test

import (
	"testing"

	"github.com/mickamy/hrana-go/internal/queue"
)

func TestFIFOOrder(t *testing.T) {
	t.Parallel()
	q := queue.NewFIFO[int]()
	for i := range 5 {
		q.Push(i)
	}
	for i := range 5 {
		got, ok := q.Pop()
		if !ok || got != i {
			t.Fatalf("Pop() = (%d, %v), want (%d, true)", got, ok, i)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop() on empty queue should return false")
	}
}

func TestFIFOInterleavedPushPop(t *testing.T) {
	t.Parallel()
	q := queue.NewFIFO[string]()
	q.Push("a")
	q.Push("b")
	if v, _ := q.Pop(); v != "a" {
		t.Fatalf("Pop() = %q, want %q", v, "a")
	}
	q.Push("c")
	if v, _ := q.Pop(); v != "b" {
		t.Fatalf("Pop() = %q, want %q", v, "b")
	}
	if v, _ := q.Pop(); v != "c" {
		t.Fatalf("Pop() = %q, want %q", v, "c")
	}
}
