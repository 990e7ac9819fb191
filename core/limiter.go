package core

import (
	"fmt"
	"sync"
)

// ModelLimiter caps how many model calls a single run may make. A cap of
// zero means the run is unbounded.
type ModelLimiter struct {
	mu   sync.Mutex
	cap  int
	used int
}

func NewModelLimiter(cap int) *ModelLimiter {
	return &ModelLimiter{cap: cap}
}

// Increment records one model call, failing once the cap is crossed.
func (l *ModelLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.used++
	if l.cap > 0 && l.used > l.cap {
		return fmt.Errorf("model call limit of %d exceeded", l.cap)
	}
	return nil
}

// Count reports how many calls the run has made so far.
func (l *ModelLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}

// Remaining reports calls left under the cap, or -1 when unbounded.
func (l *ModelLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cap == 0 {
		return -1
	}
	return l.cap - l.used
}
