package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesRewriter/internal/apperr"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func TestDoRetriesServerErrorsThenSucceeds(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	primary := func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", apperr.NewStatus("humanizer", 500, "cold start")
		}
		return "ok", nil
	}

	got, err := Do(context.Background(), Config{MaxAttempts: 3, BaseDelay: 5 * time.Second, Sleep: rec.sleep}, Plan[string]{Primary: primary})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	require.Len(t, rec.delays, 2)
	assert.GreaterOrEqual(t, rec.delays[1], 2*rec.delays[0])
	assert.Equal(t, 5*time.Second, rec.delays[0])
}

func TestDoFailsFastOnClientError(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	notFound := apperr.NewStatus("humanizer", 404, "no route")

	_, err := Do(context.Background(), Config{MaxAttempts: 3, BaseDelay: time.Second, Sleep: rec.sleep}, Plan[int]{
		Primary: func(context.Context) (int, error) {
			calls++
			return 0, notFound
		},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestDoUsesFallbackOnlyOnFinalAttempt(t *testing.T) {
	var trail []string
	timeout := apperr.Wrap("humanizer", context.DeadlineExceeded)

	_, err := Do(context.Background(), Config{MaxAttempts: 3, Sleep: (&sleepRecorder{}).sleep}, Plan[int]{
		Primary: func(context.Context) (int, error) {
			trail = append(trail, "primary")
			return 0, timeout
		},
		Fallback: func(context.Context) (int, error) {
			trail = append(trail, "fallback")
			return 0, timeout
		},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"primary", "primary", "fallback"}, trail)
}

func TestDoIgnoresWarmupFailure(t *testing.T) {
	warmed := 0
	got, err := Do(context.Background(), Config{MaxAttempts: 2}, Plan[int]{
		Warmup: func(context.Context) error {
			warmed++
			return errors.New("health probe down")
		},
		Primary: func(context.Context) (int, error) { return 7, nil },
	})

	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 1, warmed)
}

func TestDoStopsWhenSleepIsInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Do(ctx, Config{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}, Plan[int]{
		Primary: func(context.Context) (int, error) {
			calls++
			return 0, apperr.NewStatus("humanizer", 503, "")
		},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoffDoubles(t *testing.T) {
	assert.Equal(t, 5*time.Second, Backoff(5*time.Second, 1))
	assert.Equal(t, 10*time.Second, Backoff(5*time.Second, 2))
	assert.Equal(t, 20*time.Second, Backoff(5*time.Second, 3))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
