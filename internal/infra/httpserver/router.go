package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/automaton-audit/internal/config"
	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
	"github.com/bryanwahyu/automaton-audit/internal/domain/runerrors"
	"github.com/bryanwahyu/automaton-audit/internal/infra/upload"
	"github.com/bryanwahyu/automaton-audit/internal/middleware"
)

const defaultMaxUpload = 10 << 20

var (
	errBadRequest        = errors.New("bad request")
	errArtifactsDisabled = errors.New("artifact storage is not configured")
)

// ArtifactStore keeps exported report files.
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// Deps is everything the router serves from.
type Deps struct {
	Tenants     *Tenants
	Regulations regulations.Repository
	Reports     domain.ReportRepository
	RunErrors   runerrors.Repository
	Artifacts   ArtifactStore
	Parser      *upload.Parser
	Health      map[string]middleware.HealthChecker

	Auth           map[string]string
	RateCapacity   int
	RateRefill     int
	AllowedOrigins []string
	MaxUploadBytes int64

	Log logrus.FieldLogger
}

type Router struct {
	deps Deps
	log  logrus.FieldLogger

	// runs outlive the request that started them; Shutdown cancels and waits.
	ctx    context.Context
	cancel context.CancelFunc
	runs   sync.WaitGroup
}

func NewRouter(d Deps) *Router {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Parser == nil {
		d.Parser = upload.NewParser()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = defaultMaxUpload
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{deps: d, log: d.Log, ctx: ctx, cancel: cancel}
}

// Handler builds the route tree.
func (r *Router) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Logging(r.log), middleware.Metrics)

	origins := r.deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(r.deps.Health))
	mux.Get("/ready", middleware.ReadinessHandler(r.deps.Health, "database"))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Handle("/metrics", middleware.MetricsHandler())

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(r.deps.Auth), middleware.RequireValidTenant)
		if r.deps.RateCapacity > 0 {
			rt.Use(middleware.RateLimitMiddleware(r.deps.RateCapacity, r.deps.RateRefill))
		}

		rt.Post("/transactions/upload", r.wrap(r.handleUpload))
		rt.Get("/transactions", r.wrap(r.handleTransactions))
		rt.Post("/regulations", r.wrap(r.handleSaveRegulation))

		rt.Post("/audits", r.wrap(r.handleStartAudit))
		rt.Get("/audits/progress", r.wrap(r.handleProgress))
		rt.Get("/audits/progress/ws", r.handleProgressStream)
		rt.Post("/audits/pause", r.wrap(r.handlePause))
		rt.Post("/audits/resume", r.wrap(r.handleResume))
		rt.Post("/audits/reset", r.wrap(r.handleReset))
		rt.Get("/audits/errors", r.wrap(r.handleRunErrors))

		rt.Get("/reports", r.wrap(r.handleReports))
		rt.Get("/reports/history", r.wrap(r.handleReportHistory))
		rt.Get("/reports/{id}", r.wrap(r.handleReport))
		rt.Get("/reports/{id}/export.xlsx", r.wrap(r.handleExport))
		rt.Post("/reports/{id}/archive", r.wrap(r.handleArchive))
	})

	return mux
}

// Shutdown cancels background runs and waits for them to unwind.
func (r *Router) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				config.LogError(r.log, "httpserver", req.Method+" "+req.URL.Path, "handler failed",
					map[string]any{"tenant": chi.URLParam(req, "tenant")}, err)
			}
			http.Error(w, err.Error(), status)
		}
	}
}

func statusFor(err error) int {
	var ve *middleware.ValidationError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, ai.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ai.ErrPaymentRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrNoRegulationsFound), errors.Is(err, domain.ErrNoTransactions):
		return http.StatusUnprocessableEntity
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &ve), errors.Is(err, errBadRequest), errors.Is(err, upload.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, errArtifactsDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (r *Router) tenant(req *http.Request) (string, *Tenant) {
	name := chi.URLParam(req, "tenant")
	return name, r.deps.Tenants.Get(name)
}

// decode reads an optional JSON body; an empty body leaves dst untouched.
func decode(req *http.Request, dst any) error {
	if req.Body == nil {
		return nil
	}
	err := json.NewDecoder(req.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}
	return errors.Join(errBadRequest, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func queryInt(req *http.Request, key string) int {
	n, _ := strconv.Atoi(req.URL.Query().Get(key))
	return n
}

func timeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
