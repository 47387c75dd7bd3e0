package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
)

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func streamOK(w http.ResponseWriter, parts ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, p := range parts {
		_, _ = io.WriteString(w, chunkLine(p))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
}

func newTestClient(t *testing.T, url string, rec *sleepRecorder, opts ...Option) (*Client, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	base := []Option{
		WithLogger(logger),
		WithSleep(rec.sleep),
		WithJitter(func() time.Duration { return 0 }),
		WithMinInterval(0),
	}
	return NewClient(url, "key-1", "gpt-4o-mini", append(base, opts...)...), hook
}

func TestCallStreamsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/batch-compliance-audit", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.NotNil(t, body["data"])
		msgs := body["messages"].([]any)
		assert.Len(t, msgs, 2)

		streamOK(w, "{\\\"ok\\\":", "true}")
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c, _ := newTestClient(t, srv.URL+"/", rec)
	text, err := c.Call(context.Background(), "batch-compliance-audit", ai.Request{
		System: "sys",
		Prompt: "go",
		Data:   map[string]int{"n": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
}

func TestCallRetriesOn429ThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		streamOK(w, "final ", "answer")
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c, hook := newTestClient(t, srv.URL, rec)

	var retries []int
	text, err := c.Call(context.Background(), "fn", ai.Request{
		Prompt:  "p",
		OnRetry: func(n int, _ time.Duration) { retries = append(retries, n) },
	})
	require.NoError(t, err)
	assert.Equal(t, "final answer", text)
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
	assert.Equal(t, []int{1, 2, 3}, retries)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 3 * time.Second, 6 * time.Second}, rec.all())

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 3, warnings)
}

func TestCallGivesUpAfterSixRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c, _ := newTestClient(t, srv.URL, rec)
	_, err := c.Call(context.Background(), "fn", ai.Request{Prompt: "p"})

	assert.ErrorIs(t, err, ai.ErrRateLimitExceeded)
	assert.Equal(t, int32(7), atomic.LoadInt32(&hits))
	waits := rec.all()
	assert.Len(t, waits, 6)
	for _, w := range waits {
		assert.LessOrEqual(t, w, 60*time.Second)
	}
}

func TestCallPaymentRequiredIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, &sleepRecorder{})
	_, err := c.Call(context.Background(), "fn", ai.Request{Prompt: "p"})
	assert.ErrorIs(t, err, ai.ErrPaymentRequired)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCallRemoteErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error string", http.StatusInternalServerError, `{"error":"model exploded"}`, "model exploded"},
		{"error object", http.StatusBadRequest, `{"error":{"message":"bad prompt"}}`, "bad prompt"},
		{"message field", http.StatusBadGateway, `{"message":"upstream down"}`, "upstream down"},
		{"raw text", http.StatusForbidden, "nope", "nope"},
		{"status text", http.StatusServiceUnavailable, "", "Service Unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c, _ := newTestClient(t, srv.URL, &sleepRecorder{})
			_, err := c.Call(context.Background(), "fn", ai.Request{Prompt: "p"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ai.ErrRemoteCallFailed)

			var rce *ai.RemoteCallError
			require.True(t, errors.As(err, &rce))
			assert.Equal(t, tt.status, rce.Status)
			assert.Equal(t, tt.want, rce.Message)
		})
	}
}

func TestCallThrottlesBetweenStarts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamOK(w, "x")
	}))
	defer srv.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &sleepRecorder{}
	c, _ := newTestClient(t, srv.URL, rec,
		WithMinInterval(2*time.Second),
		WithClock(func() time.Time { return now }),
	)

	_, err := c.Call(context.Background(), "fn", ai.Request{Prompt: "1"})
	require.NoError(t, err)
	now = now.Add(500 * time.Millisecond)
	_, err = c.Call(context.Background(), "fn", ai.Request{Prompt: "2"})
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, rec.all())
}

func TestCallWaitsWhilePaused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamOK(w, "resumed")
	}))
	defer srv.Close()

	gate := NewGate()
	c, _ := newTestClient(t, srv.URL, &sleepRecorder{}, WithGate(gate))
	gate.Pause()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := c.Call(context.Background(), "fn", ai.Request{Prompt: "p"})
		done <- result{text, err}
	}()

	select {
	case <-done:
		t.Fatal("call completed while paused")
	case <-time.After(100 * time.Millisecond):
	}

	gate.Resume()
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "resumed", r.text)
	case <-time.After(2 * time.Second):
		t.Fatal("call not released by resume")
	}
}

func TestForkHasIndependentGate(t *testing.T) {
	base := NewClient("http://x", "", "")
	fork := base.Fork(nil)
	fork.Gate().Pause()
	assert.True(t, fork.Gate().Paused())
	assert.False(t, base.Gate().Paused())

	fork.SetSpeedLevel(5)
	assert.Equal(t, time.Second, fork.MinInterval())
	assert.Equal(t, MinInterval(3), base.MinInterval())
}

func TestBodyUsesCompletionTokensForReasoningModels(t *testing.T) {
	c := NewClient("http://x", "", "o3-mini", WithMaxTokens(100))
	b := c.body(ai.Request{Prompt: "p"})
	assert.Equal(t, 100, b.MaxCompletionTokens)
	assert.Zero(t, b.MaxTokens)
	assert.Len(t, b.Messages, 1)
}
