package openai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt    int
		retryAfter time.Duration
		jitter     time.Duration
		want       time.Duration
	}{
		{0, 0, 0, 1500 * time.Millisecond},
		{1, 0, 200 * time.Millisecond, 3200 * time.Millisecond},
		{2, 10 * time.Second, 0, 10 * time.Second},
		{5, 0, 400 * time.Millisecond, 48400 * time.Millisecond},
		{6, 0, 0, 60 * time.Second},
		{3, 5 * time.Minute, 0, 60 * time.Second},
		{40, 0, 0, 60 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.attempt, tt.retryAfter, tt.jitter), "attempt %d", tt.attempt)
	}
}

func TestBackoffNeverExceedsCap(t *testing.T) {
	for attempt := 0; attempt <= maxRateLimitRetries; attempt++ {
		for _, ra := range []time.Duration{0, time.Second, time.Hour} {
			assert.LessOrEqual(t, Backoff(attempt, ra, maxJitter), backoffCap)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Equal(t, 1500*time.Millisecond, parseRetryAfter(" 1.5 "))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Zero(t, parseRetryAfter("-4"))
}

func TestMinInterval(t *testing.T) {
	assert.Equal(t, 3800*time.Millisecond, MinInterval(1))
	assert.Equal(t, 2400*time.Millisecond, MinInterval(3))
	assert.Equal(t, time.Second, MinInterval(5))
	assert.Equal(t, time.Second, MinInterval(9))
	assert.Equal(t, 3800*time.Millisecond, MinInterval(0))
}

func TestRandomJitterBounded(t *testing.T) {
	for i := 0; i < 100; i++ {
		j := randomJitter()
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, maxJitter)
	}
}
