package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks how far a long-running machine activity has gone,
// such as a run with a known cycle budget.
type ProgressBar struct {
	sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

// IncrementFinished adds a certain amount to the finished count.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// Completion reports the finished fraction, clamped to [0, 1]. Bars without
// a known total report 0 until they complete.
func (b *ProgressBar) Completion() float64 {
	b.Lock()
	defer b.Unlock()

	if b.Total == 0 {
		return 0
	}

	fraction := float64(b.Finished) / float64(b.Total)
	if fraction > 1 {
		fraction = 1
	}

	return fraction
}
