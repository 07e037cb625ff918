package usecase

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a run is declined because rewriting is halted.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the state of the rewrite circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Breaker is a latch opened by credential or quota failures from the
// generative API. It never closes on its own; only Reset closes it.
type Breaker struct {
	mu            sync.RWMutex
	state         BreakerState
	reason        string
	openedAt      time.Time
	onStateChange func(from, to BreakerState)
}

// NewBreaker returns a closed breaker. onStateChange may be nil.
func NewBreaker(onStateChange func(from, to BreakerState)) *Breaker {
	return &Breaker{onStateChange: onStateChange}
}

// Trip opens the breaker, recording why. Tripping an open breaker keeps the first reason.
func (b *Breaker) Trip(reason string, at time.Time) {
	b.mu.Lock()
	if b.state == BreakerOpen {
		b.mu.Unlock()
		return
	}
	b.state = BreakerOpen
	b.reason = reason
	b.openedAt = at
	b.mu.Unlock()
	b.notify(BreakerClosed, BreakerOpen)
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	if b.state == BreakerClosed {
		b.mu.Unlock()
		return
	}
	b.state = BreakerClosed
	b.reason = ""
	b.openedAt = time.Time{}
	b.mu.Unlock()
	b.notify(BreakerOpen, BreakerClosed)
}

// IsOpen reports whether rewriting is halted.
func (b *Breaker) IsOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state == BreakerOpen
}

// Snapshot returns the state together with the reason and time it opened.
func (b *Breaker) Snapshot() (BreakerState, string, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state, b.reason, b.openedAt
}

func (b *Breaker) notify(from, to BreakerState) {
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
