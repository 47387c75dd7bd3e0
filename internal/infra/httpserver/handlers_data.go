package httpserver

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
	"github.com/bryanwahyu/automaton-audit/internal/infra/upload"
	"github.com/bryanwahyu/automaton-audit/internal/middleware"
)

// POST /v1/{tenant}/transactions/upload
// Multipart field "file", or a raw body with ?filename= (the format is sniffed when absent).
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	_, t := r.tenant(req)
	if t.Audit.Running() {
		return domain.ErrRunInProgress
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.deps.MaxUploadBytes)

	name, body, err := readUpload(req)
	if err != nil {
		return err
	}
	txs, err := r.deps.Parser.Parse(name, bytes.NewReader(body))
	if err != nil {
		return err
	}
	t.Audit.Store.SetTransactions(txs)
	return writeJSON(w, http.StatusOK, map[string]any{
		"count":        len(txs),
		"transactions": txs,
	})
}

func readUpload(req *http.Request) (string, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		f, hdr, err := req.FormFile("file")
		if err != nil {
			return "", nil, err
		}
		defer f.Close()
		body, err := io.ReadAll(f)
		return hdr.Filename, body, err
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return "", nil, err
	}
	name := strings.TrimSpace(req.URL.Query().Get("filename"))
	if name == "" {
		name = "upload" + upload.Sniff(body)
	}
	return name, body, nil
}

// GET /v1/{tenant}/transactions
func (r *Router) handleTransactions(w http.ResponseWriter, req *http.Request) error {
	_, t := r.tenant(req)
	txs := t.Audit.Store.Transactions()
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

type regulationRequest struct {
	ID       string `json:"id" validate:"omitempty,max=64"`
	Source   string `json:"source" validate:"required,max=128"`
	Title    string `json:"title" validate:"max=512"`
	Content  string `json:"content" validate:"required_without=Summary"`
	Summary  string `json:"summary"`
	URL      string `json:"url" validate:"omitempty,url"`
	Category string `json:"category" validate:"max=128"`
}

// POST /v1/{tenant}/regulations
// Manual entry; the regulation is stored as processed so the selector picks it up.
func (r *Router) handleSaveRegulation(w http.ResponseWriter, req *http.Request) error {
	var body regulationRequest
	if err := decode(req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateStruct(body); err != nil {
		return err
	}

	rec := &regulations.Record{
		ID:          body.ID,
		Source:      middleware.SanitizeString(body.Source),
		Title:       middleware.SanitizeString(body.Title),
		Content:     middleware.SanitizeString(body.Content),
		Summary:     middleware.SanitizeString(body.Summary),
		URL:         body.URL,
		Category:    middleware.SanitizeString(body.Category),
		CrawledAt:   time.Now().UTC(),
		IsProcessed: true,
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	ctx, cancel := timeout(req.Context(), 10*time.Second)
	defer cancel()
	if err := r.deps.Regulations.Save(ctx, rec); err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, rec)
}
