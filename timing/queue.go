package timing

import "container/heap"

// firing tracks the upcoming instant of one timer while an advance is being
// materialized.
type firing struct {
	timer   *timer
	next    uint64
	expired bool
}

// firingQueue pops firings by instant, then by timer registration order.
type firingQueue struct {
	firings firingHeap
}

func newFiringQueue(capacity int) *firingQueue {
	q := &firingQueue{}
	q.firings = make([]*firing, 0, capacity)
	heap.Init(&q.firings)
	return q
}

func (q *firingQueue) Push(f *firing) {
	heap.Push(&q.firings, f)
}

func (q *firingQueue) Pop() *firing {
	if q.firings.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.firings).(*firing)
}

func (q *firingQueue) Len() int {
	return q.firings.Len()
}

type firingHeap []*firing

func (h firingHeap) Len() int { return len(h) }

func (h firingHeap) Less(i, j int) bool {
	if h[i].next != h[j].next {
		return h[i].next < h[j].next
	}
	return h[i].timer.seq < h[j].timer.seq
}

func (h firingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *firingHeap) Push(x any) {
	*h = append(*h, x.(*firing))
}

func (h *firingHeap) Pop() any {
	old := *h
	n := len(old)
	f := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return f
}
