package analyzer

import "sync/atomic"

// ProgressFunc is called to report analysis progress.
// current is the number of stages finished, total is the stage count,
// and stage names the stage that just finished.
type ProgressFunc func(current, total int, stage string)

// Tracker counts finished analysis stages.
// It is safe for concurrent use; the callback may be invoked from several
// goroutines at once.
type Tracker struct {
	total    atomic.Int32
	current  atomic.Int32
	callback ProgressFunc
}

// NewTracker creates a tracker that reports through callback (may be nil).
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// Add raises the stage count by n.
func (t *Tracker) Add(n int) {
	t.total.Add(int32(n))
}

// Tick marks stage as finished.
func (t *Tracker) Tick(stage string) {
	current := int(t.current.Add(1))
	total := int(t.total.Load())
	if t.callback != nil {
		t.callback(current, total, stage)
	}
}

// Current returns the number of finished stages.
func (t *Tracker) Current() int {
	return int(t.current.Load())
}

// Total returns the stage count.
func (t *Tracker) Total() int {
	return int(t.total.Load())
}
