package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks how far a long run has gone, for example how many
// scenario steps have been replayed.
type ProgressBar struct {
	mu        sync.Mutex
	id        string
	name      string
	startTime time.Time
	total     uint64
	finished  uint64
}

type progressRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

// IncrementFinished adds amount to the finished items, capped at the total.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.finished += amount
	if b.finished > b.total {
		b.finished = b.total
	}
}

// Finished returns the number of finished items.
func (b *ProgressBar) Finished() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.finished
}

func (b *ProgressBar) snapshot() progressRsp {
	b.mu.Lock()
	defer b.mu.Unlock()

	return progressRsp{
		ID:        b.id,
		Name:      b.name,
		StartTime: b.startTime,
		Total:     b.total,
		Finished:  b.finished,
	}
}
