package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const checkTimeout = 2 * time.Second

type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function, e.g. a redis PING.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

type CheckStatus struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
}

func (s CheckStatus) healthy() bool { return s.Status == "healthy" }

// runChecks probes every dependency concurrently, each under its own timeout.
func runChecks(ctx context.Context, checkers map[string]HealthChecker) map[string]CheckStatus {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]CheckStatus, len(checkers))
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker HealthChecker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := checker.Check(cctx)
			st := CheckStatus{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				st.Status = "unhealthy"
				st.Message = err.Error()
			}
			mu.Lock()
			out[name] = st
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()
	return out
}

func writeHealth(w http.ResponseWriter, status HealthStatus) {
	code := http.StatusOK
	if status.Status != "healthy" && status.Status != "ready" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// HealthHandler reports every dependency; any failure answers 503.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := runChecks(r.Context(), checkers)
		status := HealthStatus{Status: "healthy", Timestamp: time.Now().UTC(), Checks: checks}
		for _, c := range checks {
			if !c.healthy() {
				status.Status = "unhealthy"
			}
		}
		writeHealth(w, status)
	}
}

// ReadinessHandler only gates on the named checkers. Optional ones (redis, say)
// are reported but never take the instance out of rotation.
func ReadinessHandler(checkers map[string]HealthChecker, required ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := runChecks(r.Context(), checkers)
		status := HealthStatus{Status: "ready", Timestamp: time.Now().UTC(), Checks: checks}
		for _, name := range required {
			if c, ok := checks[name]; !ok || !c.healthy() {
				status.Status = "not_ready"
			}
		}
		writeHealth(w, status)
	}
}

func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
