package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
	"github.com/bryanwahyu/automaton-audit/internal/domain/runerrors"
)

// fakeCaller answers by function name and records every call.
type fakeCaller struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	retries   map[string]int
	calls     []string
	requests  []ai.Request
	handler   func(function string, req ai.Request) (string, error)
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: map[string]string{}, errs: map[string]error{}, retries: map[string]int{}}
}

func (f *fakeCaller) Call(ctx context.Context, function string, req ai.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, function)
	f.requests = append(f.requests, req)
	retries := f.retries[function]
	handler := f.handler
	resp, err := f.responses[function], f.errs[function]
	f.mu.Unlock()

	for i := 1; i <= retries; i++ {
		if req.OnRetry != nil {
			req.OnRetry(i, time.Duration(i)*time.Second)
		}
	}
	if handler != nil {
		return handler(function, req)
	}
	return resp, err
}

func (f *fakeCaller) count(function string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == function {
			n++
		}
	}
	return n
}

func (f *fakeCaller) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRegulations struct {
	records []regulations.Record
	err     error
}

func (f *fakeRegulations) ListProcessed(ctx context.Context) ([]regulations.Record, error) {
	return f.records, f.err
}

func (f *fakeRegulations) Save(ctx context.Context, r *regulations.Record) error {
	f.records = append([]regulations.Record{*r}, f.records...)
	return nil
}

type fakeClauses struct {
	mu        sync.Mutex
	stored    []domain.ParsedClause
	findErr   error
	upsertErr error
	upserts   int
}

func (f *fakeClauses) FindByRegulations(ctx context.Context, ids []string) ([]domain.ParsedClause, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.ParsedClause
	for _, c := range f.stored {
		if want[c.RegulationID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClauses) Upsert(ctx context.Context, clauses []domain.ParsedClause) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.stored = append(f.stored, clauses...)
	return nil
}

type fakeReports struct {
	mu    sync.Mutex
	saved []*domain.AuditReport
}

func (f *fakeReports) Save(ctx context.Context, tenant string, r *domain.AuditReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, r)
	return nil
}

func (f *fakeReports) Get(ctx context.Context, tenant, id string) (*domain.StoredReport, error) {
	return nil, domain.ErrReportNotFound
}

func (f *fakeReports) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.StoredReport, error) {
	return nil, nil
}

func (f *fakeReports) SetArtifactURL(ctx context.Context, tenant, id, url string) error { return nil }

type fakeRunErrors struct {
	mu    sync.Mutex
	saved []*runerrors.RunError
}

func (f *fakeRunErrors) Save(ctx context.Context, e *runerrors.RunError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, e)
	return nil
}

func (f *fakeRunErrors) ListByTenant(ctx context.Context, tenant string, limit int) ([]*runerrors.RunError, error) {
	return f.saved, nil
}

type fakeGate struct{ paused bool }

func (g *fakeGate) Pause()       { g.paused = true }
func (g *fakeGate) Resume()      { g.paused = false }
func (g *fakeGate) Paused() bool { return g.paused }

// seqIDs hands out predictable ids.
func seqIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

var errStore = errors.New("store unavailable")

func scenarioTransactions() []domain.Transaction {
	return []domain.Transaction{
		{ID: "t1", Category: "construction", Amount: "₹1,00,000", Tax: "₹18,000", Vendor: "BuildCo", Date: "2024-01-10", Description: "Cement supply with GST"},
		{ID: "t2", Category: "procurement", Amount: "₹50,000", Tax: "₹9,000", Vendor: "GeM Vendor", Date: "2024-01-11", Description: "Office furniture tender"},
		{ID: "t3", Category: "software", Amount: "₹20,000", Tax: "₹3,600", Vendor: "SoftCorp", Date: "2024-01-12", Description: "Annual licence"},
	}
}

func scenarioRegulations() []regulations.Record {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []regulations.Record{
		{ID: "r1", Source: "CBIC", Title: "GST Rate Notification", Content: "GST applies to cement at 28 percent.", Category: "tax", CrawledAt: at, IsProcessed: true},
		{ID: "r2", Source: "GeM", Title: "Public Procurement Order", Content: "All procurement above threshold via GeM.", Category: "procurement", CrawledAt: at, IsProcessed: true},
	}
}
