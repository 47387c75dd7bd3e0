package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	"github.com/bryanwahyu/automaton-audit/internal/metrics"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 4096
	maxErrorBody     = 64 << 10
)

// Client calls named functions on the completion service. Calls are throttled,
// pausable through the gate, and retried with backoff on HTTP 429.
type Client struct {
	baseURL   string
	apiKey    string
	Model     string
	MaxTokens int

	http     *http.Client
	gate     *Gate
	throttle *throttle
	log      logrus.FieldLogger

	sleep  func(context.Context, time.Duration) error
	jitter func() time.Duration
	now    func() time.Time
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithGate(g *Gate) Option             { return func(c *Client) { c.gate = g } }
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}
func WithSpeedLevel(level int) Option {
	return func(c *Client) { c.throttle.setInterval(MinInterval(level)) }
}
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) { c.throttle.setInterval(d) }
}
func WithMaxTokens(n int) Option { return func(c *Client) { c.MaxTokens = n } }

// WithSleep replaces the context-aware sleep used for throttling and backoff.
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = f }
}
func WithJitter(f func() time.Duration) Option { return func(c *Client) { c.jitter = f } }
func WithClock(now func() time.Time) Option    { return func(c *Client) { c.now = now } }

func NewClient(baseURL, apiKey, model string, opts ...Option) *Client {
	if model == "" {
		model = defaultModel
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		Model:     model,
		MaxTokens: defaultMaxTokens,
		http:      &http.Client{Timeout: 3 * time.Minute},
		gate:      NewGate(),
		throttle:  &throttle{interval: MinInterval(3)},
		log:       logrus.StandardLogger(),
		sleep:     sleepContext,
		jitter:    randomJitter,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fork returns a client sharing transport and credentials but with its own
// gate and throttle, so one tenant's pause or speed does not affect another.
func (c *Client) Fork(gate *Gate) *Client {
	cp := *c
	if gate == nil {
		gate = NewGate()
	}
	cp.gate = gate
	cp.throttle = &throttle{interval: c.throttle.getInterval()}
	return &cp
}

func (c *Client) Gate() *Gate { return c.gate }

func (c *Client) SetSpeedLevel(level int) { c.throttle.setInterval(MinInterval(level)) }

func (c *Client) MinInterval() time.Duration { return c.throttle.getInterval() }

// Call implements ai.Caller.
func (c *Client) Call(ctx context.Context, function string, req ai.Request) (string, error) {
	start := time.Now()
	text, outcome, err := c.call(ctx, function, req)
	metrics.CompletionCallsTotal.WithLabelValues(function, outcome).Inc()
	metrics.CompletionCallDuration.WithLabelValues(function).Observe(time.Since(start).Seconds())
	return text, err
}

func (c *Client) call(ctx context.Context, function string, req ai.Request) (string, string, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return "", "cancelled", err
	}
	if wait := c.throttle.reserve(c.now()); wait > 0 {
		if err := c.sleep(ctx, wait); err != nil {
			return "", "cancelled", err
		}
	}

	payload, err := json.Marshal(c.body(req))
	if err != nil {
		return "", "error", fmt.Errorf("encode %s request: %w", function, err)
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, function, payload)
		if err != nil {
			return "", "error", fmt.Errorf("call %s: %w", function, err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			discard(resp)
			if attempt >= maxRateLimitRetries {
				return "", "rate_limited", ai.ErrRateLimitExceeded
			}
			wait := Backoff(attempt, retryAfter, c.jitter())
			c.log.WithFields(logrus.Fields{
				"function": function,
				"retry":    attempt + 1,
				"wait":     wait.String(),
			}).Warn("completion service rate limited, backing off")
			metrics.CompletionRetriesTotal.WithLabelValues(function).Inc()
			if req.OnRetry != nil {
				req.OnRetry(attempt+1, wait)
			}
			if err := c.sleep(ctx, wait); err != nil {
				return "", "cancelled", err
			}
			continue

		case resp.StatusCode == http.StatusPaymentRequired:
			discard(resp)
			return "", "payment_required", ai.ErrPaymentRequired

		case resp.StatusCode < 200 || resp.StatusCode > 299:
			msg := errorMessage(resp)
			return "", "failed", &ai.RemoteCallError{Function: function, Status: resp.StatusCode, Message: msg}
		}

		var d Decoder
		_, err = io.Copy(&d, resp.Body)
		resp.Body.Close()
		_ = d.Close()
		if d.Malformed() > 0 {
			c.log.WithFields(logrus.Fields{"function": function, "lines": d.Malformed()}).Warn("dropped malformed stream lines")
		}
		if err != nil && !d.Done() {
			return d.Text(), "error", fmt.Errorf("read %s stream: %w", function, err)
		}
		return d.Text(), "ok", nil
	}
}

// callBody is the chat request plus optional structured data for the function.
type callBody struct {
	openai.ChatCompletionRequest
	Data any `json:"data,omitempty"`
}

func (c *Client) body(req ai.Request) callBody {
	var msgs []openai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	r := openai.ChatCompletionRequest{
		Model:    c.Model,
		Messages: msgs,
		Stream:   true,
	}
	// reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(c.Model) {
		r.MaxCompletionTokens = c.MaxTokens
	} else {
		r.MaxTokens = c.MaxTokens
	}
	return callBody{ChatCompletionRequest: r, Data: req.Data}
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func (c *Client) send(ctx context.Context, function string, payload []byte) (*http.Response, error) {
	url := c.baseURL + "/" + strings.TrimLeft(function, "/")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return c.http.Do(httpReq)
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

// errorMessage extracts `error` (string or {message}) or `message` from a JSON body,
// else the raw text, else the status text.
func errorMessage(resp *http.Response) string {
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	text := strings.TrimSpace(string(raw))

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		switch e := body["error"].(type) {
		case string:
			if e != "" {
				return e
			}
		case map[string]any:
			if m, ok := e["message"].(string); ok && m != "" {
				return m
			}
		}
		if m, ok := body["message"].(string); ok && m != "" {
			return m
		}
	}
	if text != "" {
		return text
	}
	if st := http.StatusText(resp.StatusCode); st != "" {
		return st
	}
	return resp.Status
}

type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// reserve books the next call start and returns how long the caller must wait for it.
func (t *throttle) reserve(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	var wait time.Duration
	if !t.last.IsZero() {
		if next := t.last.Add(t.interval); next.After(now) {
			wait = next.Sub(now)
		}
	}
	t.last = now.Add(wait)
	return wait
}

func (t *throttle) setInterval(d time.Duration) {
	t.mu.Lock()
	t.interval = d
	t.mu.Unlock()
}

func (t *throttle) getInterval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}
