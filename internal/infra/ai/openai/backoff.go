package openai

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

const (
	maxRateLimitRetries = 6
	backoffBase         = 1500 * time.Millisecond
	backoffCap          = 60 * time.Second
	maxJitter           = 500 * time.Millisecond

	minSpeedLevel = 1
	maxSpeedLevel = 5
)

// Backoff returns the wait before retry number attempt (0-based):
// max(retryAfter, min(60s, 1.5s*2^attempt + jitter)), never above 60s.
func Backoff(attempt int, retryAfter, jitter time.Duration) time.Duration {
	exp := backoffCap
	if f := float64(backoffBase) * math.Pow(2, float64(attempt)); f < float64(backoffCap) {
		exp = time.Duration(f)
	}
	wait := exp + jitter
	if wait > backoffCap {
		wait = backoffCap
	}
	if retryAfter > wait {
		wait = retryAfter
	}
	if wait > backoffCap {
		wait = backoffCap
	}
	return wait
}

// parseRetryAfter reads a Retry-After header in seconds. Anything else is zero.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// MinInterval maps a speed level (1 slowest, 5 fastest) to the spacing between call starts.
func MinInterval(level int) time.Duration {
	if level < minSpeedLevel {
		level = minSpeedLevel
	}
	if level > maxSpeedLevel {
		level = maxSpeedLevel
	}
	ms := 4500 - level*700
	if ms < 1000 {
		ms = 1000
	}
	return time.Duration(ms) * time.Millisecond
}

func randomJitter() time.Duration {
	return time.Duration(rand.Int63n(int64(maxJitter)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
