package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerLatchesUntilReset(t *testing.T) {
	var changes [][2]BreakerState
	b := NewBreaker(func(from, to BreakerState) { changes = append(changes, [2]BreakerState{from, to}) })
	assert.False(t, b.IsOpen())

	first := time.Date(2025, 11, 8, 9, 0, 0, 0, time.UTC)
	b.Trip("gemini: status 401", first)
	b.Trip("second reason", first.Add(time.Hour))

	state, reason, openedAt := b.Snapshot()
	assert.Equal(t, BreakerOpen, state)
	assert.Equal(t, "gemini: status 401", reason)
	assert.Equal(t, first, openedAt)

	b.Reset()
	b.Reset()
	state, reason, openedAt = b.Snapshot()
	assert.Equal(t, BreakerClosed, state)
	assert.Empty(t, reason)
	assert.True(t, openedAt.IsZero())

	assert.Equal(t, [][2]BreakerState{{BreakerClosed, BreakerOpen}, {BreakerOpen, BreakerClosed}}, changes)
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
}
