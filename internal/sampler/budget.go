package sampler

import (
	"sync/atomic"
	"time"
)

// Budget decides whether another iteration may start. It is consulted once
// per iteration, before the iteration begins; a running iteration is never
// interrupted, so a slow one can overrun the deadline.
//
// Safe for concurrent use by parallel workers.
type Budget struct {
	deadline time.Time // zero means none
	max      int64     // 0 means unlimited
	claimed  atomic.Int64
	now      func() time.Time
}

// NewBudget starts a budget of d wall-clock time and at most maxSamples
// iterations. A non-positive d disables the deadline and a non-positive
// maxSamples disables the cap.
func NewBudget(d time.Duration, maxSamples int) *Budget {
	return newBudgetWithClock(d, maxSamples, time.Now)
}

func newBudgetWithClock(d time.Duration, maxSamples int, now func() time.Time) *Budget {
	b := &Budget{now: now}
	if d > 0 {
		b.deadline = now().Add(d)
	}
	if maxSamples > 0 {
		b.max = int64(maxSamples)
	}
	return b
}

// Claim reserves one iteration. It returns false once the deadline has
// passed or the cap is exhausted.
func (b *Budget) Claim() bool {
	if !b.deadline.IsZero() && !b.now().Before(b.deadline) {
		return false
	}
	if b.max == 0 {
		b.claimed.Add(1)
		return true
	}
	for {
		n := b.claimed.Load()
		if n >= b.max {
			return false
		}
		if b.claimed.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Claimed is the number of iterations granted so far.
func (b *Budget) Claimed() int { return int(b.claimed.Load()) }

// Bounded reports whether the budget can ever run out.
func (b *Budget) Bounded() bool { return !b.deadline.IsZero() || b.max > 0 }
