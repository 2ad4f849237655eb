package ids_test

import (
	"testing"

	"github.com/mickamy/hrana-go/internal/ids"
)

func TestAllocIncreasesWhenPoolEmpty(t *testing.T) {
	t.Parallel()
	a := ids.New()
	for want := int64(0); want < 5; want++ {
		if got := a.Alloc(); got != want {
			t.Fatalf("Alloc() = %d, want %d", got, want)
		}
	}
}

func TestFreeThenReuse(t *testing.T) {
	t.Parallel()
	a := ids.New()
	first := a.Alloc()
	second := a.Alloc()
	a.Free(first)

	reused := a.Alloc()
	if reused != first {
		t.Fatalf("Alloc() after Free() = %d, want reused id %d", reused, first)
	}
	if a.Live(first) != true {
		t.Fatal("reused id should be live")
	}
	_ = second
}

func TestNoLiveIdReturnedTwice(t *testing.T) {
	t.Parallel()
	a := ids.New()
	seen := make(map[int64]bool)
	var live []int64
	for range 20 {
		id := a.Alloc()
		if seen[id] && a.Live(id) {
			t.Fatalf("id %d allocated while still live", id)
		}
		seen[id] = true
		live = append(live, id)
	}
	for _, id := range live {
		a.Free(id)
	}
}

func TestFreeUnknownIsNoop(t *testing.T) {
	t.Parallel()
	a := ids.New()
	a.Free(42)
	if got := a.Alloc(); got != 0 {
		t.Fatalf("Alloc() after freeing unknown id = %d, want 0", got)
	}
}
