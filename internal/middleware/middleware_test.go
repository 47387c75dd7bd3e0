package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }

func tenantRouter(keys map[string]string) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(APIKeyAuth(keys), RequireValidTenant)
		rt.Get("/ping", ok)
	})
	return r
}

func TestAPIKeyAuth(t *testing.T) {
	h := tenantRouter(map[string]string{"acme": "secret-a", "globex": "secret-g"})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/v1/acme/ping", "", http.StatusUnauthorized},
		{"wrong key", "/v1/acme/ping", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "/v1/acme/ping", "Bearer secret-a", http.StatusNoContent},
		{"bare key", "/v1/acme/ping", "secret-a", http.StatusNoContent},
		{"other tenant's key", "/v1/acme/ping", "Bearer secret-g", http.StatusForbidden},
		{"bad tenant", "/v1/ac$me/ping", "Bearer secret-a", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAPIKeyAuthDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	tenantRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/acme/ping", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTokenBucketRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tb := newTokenBucket(2, 1, func() time.Time { return now })

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	now = now.Add(time.Minute)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := &RateLimiter{buckets: map[string]*TokenBucket{}, capacity: 1, refillRate: 0, now: time.Now}
	h := rateLimit(limiter)(http.HandlerFunc(ok))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	limiter.now = func() time.Time { return time.Now().Add(time.Hour) }
	limiter.evict(10 * time.Minute)
	assert.Empty(t, limiter.buckets)
}

func TestLoggingRecordsStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/acme/reports/x", nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, http.StatusNotFound, entry.Data["status"])
	assert.Equal(t, "/v1/acme/reports/x", entry.Data["path"])
}

func TestMetricsMiddlewarePassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Metrics(http.HandlerFunc(ok)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "4xx", statusClass(429))
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"db":    CheckFunc(func(ctx context.Context) error { return nil }),
		"redis": CheckFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), `"latency_ms"`)
}

func TestReadinessHandlerGatesOnRequiredChecks(t *testing.T) {
	checkers := map[string]HealthChecker{
		"database": CheckFunc(func(ctx context.Context) error { return nil }),
		"redis":    CheckFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	}

	tests := []struct {
		name     string
		required []string
		want     int
	}{
		{"optional failure ignored", []string{"database"}, http.StatusOK},
		{"required failure", []string{"database", "redis"}, http.StatusServiceUnavailable},
		{"required missing", []string{"minio"}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ReadinessHandler(checkers, tt.required...).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"redis"`)
		})
	}
}

func TestHealthChecksHonourTimeout(t *testing.T) {
	slow := CheckFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	start := time.Now()
	checks := runChecks(context.Background(), map[string]HealthChecker{"a": slow, "b": slow})
	assert.Less(t, time.Since(start), 2*checkTimeout)
	assert.Equal(t, "unhealthy", checks["a"].Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), checks["b"].Message)
}

type regulationInput struct {
	Source  string `validate:"required"`
	Content string `validate:"required"`
	URL     string `validate:"omitempty,url"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(regulationInput{Source: "RBI", Content: "x"}))

	err := ValidateStruct(regulationInput{URL: "not a url"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "required", ve.Fields["regulationInput.Source"])
	assert.Equal(t, "url", ve.Fields["regulationInput.URL"])
	assert.Contains(t, err.Error(), "regulationInput.Content: required")
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateTenantID("acme_01"))
	assert.Error(t, ValidateTenantID(""))
	assert.Error(t, ValidateTenantID("a/b"))

	assert.NoError(t, ValidateReportID("0b7d3a0e-8a59-4b8e-9f63-8d5f3b0f0a11"))
	assert.Error(t, ValidateReportID("rep-1"))

	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(500))
	assert.Equal(t, 1, ValidatePage(-3))
	assert.Equal(t, "ab\tc", SanitizeString(" a\x00b\tc\x07 "))
}
