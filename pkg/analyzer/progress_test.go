package analyzer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tick struct {
	current, total int
	stage          string
}

func TestTrackerStages(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []tick
	)
	tracker := NewTracker(func(current, total int, stage string) {
		mu.Lock()
		calls = append(calls, tick{current, total, stage})
		mu.Unlock()
	})

	tracker.Add(3)
	tracker.Tick("aggregate")
	tracker.Tick("distribution")
	tracker.Tick("ranking")

	assert.Equal(t, 3, tracker.Total())
	assert.Equal(t, 3, tracker.Current())
	require.Len(t, calls, 3)
	assert.Equal(t, tick{1, 3, "aggregate"}, calls[0])
	assert.Equal(t, tick{3, 3, "ranking"}, calls[2])
}

func TestTrackerAdd(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Add(2)
	tracker.Add(3)
	assert.Equal(t, 5, tracker.Total())

	assert.NotPanics(t, func() { tracker.Tick("compare") })
}

func TestTrackerConcurrentTicks(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Add(100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Tick("ranking")
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, tracker.Current())
}
