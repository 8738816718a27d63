package orchestrator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunLocks(t *testing.T) {
	l := NewRunLocks()

	assert.True(t, l.TryAcquire("sheet-1", "run-a"))
	assert.False(t, l.TryAcquire("sheet-1", "run-b"))
	assert.True(t, l.TryAcquire("sheet-2", "run-b"))

	holder, ok := l.Holder("sheet-1")
	assert.True(t, ok)
	assert.Equal(t, "run-a", holder)

	l.Release("sheet-1", "run-b")
	assert.False(t, l.TryAcquire("sheet-1", "run-c"), "release by a non-holder is a no-op")

	l.Release("sheet-1", "run-a")
	assert.True(t, l.TryAcquire("sheet-1", "run-c"))
}

func TestRunLocks_ExactlyOneWinner(t *testing.T) {
	l := NewRunLocks()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryAcquire("sheet-1", fmt.Sprintf("run-%d", i)) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
