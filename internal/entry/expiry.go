package entry

import (
	"container/heap"
	"time"
)

// expiryItem points at an entry that was inserted into a partition. The
// entry may already be gone (lazy eviction, Delete) by the time the item is
// popped; the sweep skips those.
type expiryItem struct {
	sessionID string
	entryID   string
	seq       uint64
	expiresAt time.Time
}

// expiryHeap is a min-heap ordered by expiresAt, then insertion sequence.
type expiryHeap []expiryItem

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool {
	if h[i].expiresAt.Equal(h[j].expiresAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].expiresAt.Before(h[j].expiresAt)
}

func (h expiryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *expiryHeap) Push(x any) { *h = append(*h, x.(expiryItem)) }

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

func (h *expiryHeap) push(it expiryItem) { heap.Push(h, it) }

// popDue removes and returns the earliest item if it is due at now.
func (h *expiryHeap) popDue(now time.Time) (expiryItem, bool) {
	if h.Len() == 0 || now.Before((*h)[0].expiresAt) {
		return expiryItem{}, false
	}
	return heap.Pop(h).(expiryItem), true
}
