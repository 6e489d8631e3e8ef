// Package idgen issues message ids from a hybrid logical clock: ids track
// wall-clock milliseconds but never repeat or go backwards within a process,
// even when many messages are created in the same millisecond.
package idgen

import (
	"sync/atomic"
	"time"
)

type Generator struct {
	last atomic.Int64
	now  func() time.Time
}

func New() *Generator {
	return &Generator{now: time.Now}
}

// NewWithClock is used by tests to pin the wall clock.
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Next returns an id strictly greater than every id returned before and at
// least floor.
func (g *Generator) Next(floor int64) int64 {
	for {
		prev := g.last.Load()
		next := g.now().UnixMilli()
		if next <= prev {
			next = prev + 1
		}
		if next < floor {
			next = floor
		}
		if g.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}
