package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/infra/export"
	"github.com/bryanwahyu/automaton-audit/internal/middleware"
)

// GET /v1/{tenant}/reports
// Reports produced since the tenant runtime started, newest first.
func (r *Router) handleReports(w http.ResponseWriter, req *http.Request) error {
	_, t := r.tenant(req)
	return writeJSON(w, http.StatusOK, map[string]any{"reports": t.Audit.Store.Reports()})
}

// GET /v1/{tenant}/reports/history?page=&limit=
func (r *Router) handleReportHistory(w http.ResponseWriter, req *http.Request) error {
	tenant, _ := r.tenant(req)
	page := middleware.ValidatePage(queryInt(req, "page"))
	limit := middleware.ValidateLimit(queryInt(req, "limit"))
	if r.deps.Reports == nil {
		return writeJSON(w, http.StatusOK, map[string]any{"page": page, "limit": limit, "reports": []any{}})
	}

	ctx, cancel := timeout(req.Context(), 10*time.Second)
	defer cancel()
	list, err := r.deps.Reports.Paginate(ctx, tenant, page, limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.StoredReport{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{"page": page, "limit": limit, "reports": list})
}

// findReport checks the persisted history first so the artifact url comes along,
// then the tenant's in-memory reports.
func (r *Router) findReport(req *http.Request) (*domain.StoredReport, error) {
	tenant, t := r.tenant(req)
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateReportID(id); err != nil {
		return nil, errors.Join(errBadRequest, err)
	}

	if r.deps.Reports != nil {
		ctx, cancel := timeout(req.Context(), 10*time.Second)
		defer cancel()
		stored, err := r.deps.Reports.Get(ctx, tenant, id)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, domain.ErrReportNotFound) {
			return nil, err
		}
	}
	if rep, ok := t.Audit.Store.Report(id); ok {
		return &domain.StoredReport{TenantID: tenant, Report: rep, CreatedAt: rep.GeneratedAt}, nil
	}
	return nil, domain.ErrReportNotFound
}

// GET /v1/{tenant}/reports/{id}
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	stored, err := r.findReport(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, stored)
}

// GET /v1/{tenant}/reports/{id}/export.xlsx
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) error {
	stored, err := r.findReport(req)
	if err != nil {
		return err
	}
	body, err := export.ReportXLSX(&stored.Report)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(&stored.Report)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(body)
	return err
}

// POST /v1/{tenant}/reports/{id}/archive
// Uploads the workbook to object storage and records its url on the stored report.
func (r *Router) handleArchive(w http.ResponseWriter, req *http.Request) error {
	if r.deps.Artifacts == nil {
		return errArtifactsDisabled
	}
	tenant, _ := r.tenant(req)
	stored, err := r.findReport(req)
	if err != nil {
		return err
	}
	body, err := export.ReportXLSX(&stored.Report)
	if err != nil {
		return err
	}

	ctx, cancel := timeout(req.Context(), 60*time.Second)
	defer cancel()
	url, err := r.deps.Artifacts.Put(ctx, export.ObjectKey(tenant, &stored.Report), export.ContentTypeXLSX, body)
	if err != nil {
		return err
	}
	if r.deps.Reports != nil {
		if err := r.deps.Reports.SetArtifactURL(ctx, tenant, stored.Report.ID, url); err != nil {
			return err
		}
	}
	return writeJSON(w, http.StatusOK, map[string]string{"id": stored.Report.ID, "url": url})
}
