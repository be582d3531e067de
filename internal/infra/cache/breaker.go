package cache

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while Redis calls are being skipped.
var ErrCircuitOpen = errors.New("redis circuit open")

type breakerState int

const (
	breakerClosed   breakerState = iota // calls pass through
	breakerOpen                         // calls skipped until the cool-down ends
	breakerHalfOpen                     // one probe call decides
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// breaker stops a dead Redis from adding a network timeout to every
// recommendation read. After threshold consecutive failures it skips calls
// for coolDown, then lets a single probe through.
type breaker struct {
	mu        sync.Mutex
	threshold int
	coolDown  time.Duration
	state     breakerState
	failures  int
	probing   bool
	openedAt  time.Time
	now       func() time.Time
}

func newBreaker(threshold int, coolDown time.Duration) *breaker {
	return &breaker{threshold: threshold, coolDown: coolDown, now: time.Now}
}

// allow reports whether a call may proceed.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.coolDown {
			return ErrCircuitOpen
		}
		b.state = breakerHalfOpen
		b.probing = true
		return nil
	case breakerHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

// record feeds back the outcome of an allowed call. It reports whether
// this failure opened the breaker.
func (b *breaker) record(err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = breakerClosed
		b.failures = 0
		b.probing = false
		return false
	}

	b.failures++
	if b.state == breakerOpen {
		return false
	}
	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		b.state = breakerOpen
		b.openedAt = b.now()
		b.probing = false
		return true
	}
	return false
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
