// Package ids provides a monotonic integer allocator with free-list
// reuse, used to hand out stream, SQL, and cursor ids that are unique
// among outstanding allocations at any given time.
package ids

import "sync"

// Allocator hands out non-negative int64 ids. Freed ids are pooled for
// reuse; while the pool is empty, allocation is strictly increasing.
// No id is ever returned while it is still live.
type Allocator struct {
	mu     sync.Mutex
	next   int64
	free   []int64
	liveBy map[int64]bool
}

// New creates an empty Allocator; the first allocation returns 0.
func New() *Allocator {
	return &Allocator{liveBy: make(map[int64]bool)}
}

// Alloc returns a fresh id: a pooled one if the free list is non-empty,
// otherwise the next unused increasing value.
func (a *Allocator) Alloc() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	var id int64
	if n := len(a.free); n > 0 {
		id = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		id = a.next
		a.next++
	}
	a.liveBy[id] = true
	return id
}

// Free returns id to the pool. Freeing an id that is not currently live
// is a no-op (guards against double-free bugs silently corrupting the
// pool).
func (a *Allocator) Free(id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.liveBy[id] {
		return
	}
	delete(a.liveBy, id)
	a.free = append(a.free, id)
}

// Live reports whether id is currently allocated and not yet freed.
func (a *Allocator) Live(id int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.liveBy[id]
}
