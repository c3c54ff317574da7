package translate

import (
	"container/heap"
	"sync"
	"time"
)

const DefaultWindow = time.Second

type pending struct {
	frag    *Fragment
	arrival uint64
}

// fragmentHeap orders by (timestamp, arrival).
type fragmentHeap []pending

func (h fragmentHeap) Len() int { return len(h) }
func (h fragmentHeap) Less(i, j int) bool {
	if !h[i].frag.Timestamp.Equal(h[j].frag.Timestamp) {
		return h[i].frag.Timestamp.Before(h[j].frag.Timestamp)
	}
	return h[i].arrival < h[j].arrival
}
func (h fragmentHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *fragmentHeap) Push(x any)   { *h = append(*h, x.(pending)) }
func (h *fragmentHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = pending{}
	*h = old[:n-1]
	return x
}

// ReorderBuffer holds fragments for Window and releases them per meeting in
// capture order. It only holds this process's share of in-flight fragments.
type ReorderBuffer struct {
	Window time.Duration

	mu      sync.Mutex
	heaps   map[string]*fragmentHeap
	arrival uint64
}

func NewReorderBuffer(window time.Duration) *ReorderBuffer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &ReorderBuffer{Window: window, heaps: make(map[string]*fragmentHeap)}
}

func (b *ReorderBuffer) Add(meetingCode string, f *Fragment) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.heaps[meetingCode]
	if !ok {
		h = &fragmentHeap{}
		b.heaps[meetingCode] = h
	}
	b.arrival++
	heap.Push(h, pending{frag: f, arrival: b.arrival})
}

// Drain pops, per meeting, every fragment with now - timestamp >= Window,
// stopping at the first one that is not ready yet.
func (b *ReorderBuffer) Drain(now time.Time) map[string][]*Fragment {
	b.mu.Lock()
	defer b.mu.Unlock()

	ready := make(map[string][]*Fragment)
	for code, h := range b.heaps {
		for h.Len() > 0 && now.Sub((*h)[0].frag.Timestamp) >= b.Window {
			p := heap.Pop(h).(pending)
			ready[code] = append(ready[code], p.frag)
		}
		if h.Len() == 0 {
			delete(b.heaps, code)
		}
	}
	return ready
}

// Len is the number of fragments still held.
func (b *ReorderBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, h := range b.heaps {
		n += h.Len()
	}
	return n
}
