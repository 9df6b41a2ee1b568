package llm

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallBudget(t *testing.T) {
	t.Run("sequential", func(t *testing.T) {
		b := NewCallBudget(2)
		assert.True(t, b.HasRemaining())
		assert.True(t, b.TryAcquire())
		assert.True(t, b.TryAcquire())
		assert.False(t, b.TryAcquire())
		assert.False(t, b.HasRemaining())
		assert.Equal(t, 2, b.Used())
		assert.Equal(t, 0, b.Remaining())
	})

	t.Run("zero and negative", func(t *testing.T) {
		assert.False(t, NewCallBudget(0).TryAcquire())
		b := NewCallBudget(-3)
		assert.False(t, b.TryAcquire())
		assert.Equal(t, 0, b.Limit())
	})

	t.Run("never overspent under contention", func(t *testing.T) {
		b := NewCallBudget(25)
		var granted atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					if b.TryAcquire() {
						granted.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(25), granted.Load())
		assert.Equal(t, 25, b.Used())
	})
}
