package httpserver

import (
	"net/http"
	"time"

	appaudit "github.com/bryanwahyu/automaton-audit/internal/application/audit"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/middleware"
)

type startAuditRequest struct {
	Transactions []domain.Transaction `json:"transactions" validate:"omitempty,dive"`
	SpeedLevel   int                  `json:"speedLevel" validate:"omitempty,min=1,max=5"`
	Strategy     string               `json:"strategy" validate:"omitempty,oneof=batch per_item"`
}

// POST /v1/{tenant}/audits
// Starts a run in the background over the body's transactions or the uploaded ones.
func (r *Router) handleStartAudit(w http.ResponseWriter, req *http.Request) error {
	tenant, t := r.tenant(req)

	var body startAuditRequest
	if err := decode(req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateStruct(body); err != nil {
		return err
	}
	if t.Audit.Running() {
		return domain.ErrRunInProgress
	}

	txs := body.Transactions
	if len(txs) == 0 {
		txs = t.Audit.Store.Transactions()
	}
	if len(txs) == 0 {
		return domain.ErrNoTransactions
	}
	if body.SpeedLevel > 0 && t.SetSpeed != nil {
		t.SetSpeed(body.SpeedLevel)
	}

	log := r.log.WithField("tenant", tenant)
	r.runs.Add(1)
	go func() {
		defer r.runs.Done()
		if _, err := t.Audit.RunWith(r.ctx, txs, appaudit.Options{Strategy: body.Strategy}); err != nil {
			log.WithError(err).Warn("audit run ended with error")
		}
	}()

	return writeJSON(w, http.StatusAccepted, map[string]any{
		"status":           "started",
		"transactionCount": len(txs),
	})
}

type progressResponse struct {
	Running  bool            `json:"running"`
	Progress domain.Progress `json:"progress"`
	ETA      appaudit.ETA    `json:"eta"`
}

func progressOf(t *Tenant) progressResponse {
	return progressResponse{
		Running:  t.Audit.Running(),
		Progress: t.Audit.Tracker.Snapshot(),
		ETA:      t.Audit.ETA(),
	}
}

// GET /v1/{tenant}/audits/progress
func (r *Router) handleProgress(w http.ResponseWriter, req *http.Request) error {
	_, t := r.tenant(req)
	return writeJSON(w, http.StatusOK, progressOf(t))
}

// POST /v1/{tenant}/audits/pause
func (r *Router) handlePause(w http.ResponseWriter, req *http.Request) error {
	_, t := r.tenant(req)
	t.Audit.Pause()
	return writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

// POST /v1/{tenant}/audits/resume
func (r *Router) handleResume(w http.ResponseWriter, req *http.Request) error {
	_, t := r.tenant(req)
	t.Audit.Resume()
	return writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

// POST /v1/{tenant}/audits/reset[?all=true]
// all=true also drops uploaded transactions and the session's reports.
func (r *Router) handleReset(w http.ResponseWriter, req *http.Request) error {
	_, t := r.tenant(req)
	if err := t.Audit.Reset(); err != nil {
		return err
	}
	if req.URL.Query().Get("all") == "true" {
		t.Audit.Store.ClearAll()
	}
	return writeJSON(w, http.StatusOK, progressOf(t))
}

// GET /v1/{tenant}/audits/errors?limit=
func (r *Router) handleRunErrors(w http.ResponseWriter, req *http.Request) error {
	tenant, _ := r.tenant(req)
	if r.deps.RunErrors == nil {
		return writeJSON(w, http.StatusOK, map[string]any{"errors": []any{}})
	}
	ctx, cancel := timeout(req.Context(), 10*time.Second)
	defer cancel()
	list, err := r.deps.RunErrors.ListByTenant(ctx, tenant, middleware.ValidateLimit(queryInt(req, "limit")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"errors": list})
}
