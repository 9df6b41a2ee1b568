package llm

import "sync/atomic"

// CallBudget caps the number of LLM calls made for one receipt. It is safe
// for concurrent use; TryAcquire never lets the count exceed the limit.
type CallBudget struct {
	limit int64
	used  atomic.Int64
}

// NewCallBudget creates a budget allowing limit calls. A negative limit is
// treated as zero.
func NewCallBudget(limit int) *CallBudget {
	if limit < 0 {
		limit = 0
	}
	return &CallBudget{limit: int64(limit)}
}

// TryAcquire spends one call if any remain.
func (b *CallBudget) TryAcquire() bool {
	for {
		used := b.used.Load()
		if used >= b.limit {
			return false
		}
		if b.used.CompareAndSwap(used, used+1) {
			return true
		}
	}
}

// HasRemaining reports whether at least one call is left.
func (b *CallBudget) HasRemaining() bool {
	return b.used.Load() < b.limit
}

// Remaining returns the calls left.
func (b *CallBudget) Remaining() int {
	return int(b.limit - b.used.Load())
}

// Used returns the calls spent.
func (b *CallBudget) Used() int {
	return int(b.used.Load())
}

// Limit returns the configured limit.
func (b *CallBudget) Limit() int {
	return int(b.limit)
}
