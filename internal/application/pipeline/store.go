package pipeline

import (
	"sync"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
)

// Store holds the working set shared between the orchestrator (writer) and
// read-only consumers such as HTTP handlers. Reads return copies.
type Store struct {
	mu           sync.RWMutex
	transactions []audit.Transaction
	regulations  []regulations.Regulation
	clauses      []audit.ParsedClause
	results      []audit.ComplianceResult
	reports      []audit.AuditReport
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) SetTransactions(txs []audit.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append([]audit.Transaction(nil), txs...)
}

func (s *Store) Transactions() []audit.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Transaction(nil), s.transactions...)
}

// AddRegulations appends regulations not already present by ID.
func (s *Store) AddRegulations(regs []regulations.Regulation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(s.regulations))
	for _, r := range s.regulations {
		seen[r.ID] = true
	}
	for _, r := range regs {
		if !seen[r.ID] {
			seen[r.ID] = true
			s.regulations = append(s.regulations, r)
		}
	}
}

func (s *Store) Regulations() []regulations.Regulation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]regulations.Regulation(nil), s.regulations...)
}

// AddClauses appends clauses not already present by (RegulationID, ClauseID).
func (s *Store) AddClauses(clauses []audit.ParsedClause) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := func(c audit.ParsedClause) string { return c.RegulationID + "\x00" + c.ClauseID }
	seen := make(map[string]bool, len(s.clauses))
	for _, c := range s.clauses {
		seen[key(c)] = true
	}
	for _, c := range clauses {
		if k := key(c); !seen[k] {
			seen[k] = true
			s.clauses = append(s.clauses, c)
		}
	}
}

func (s *Store) Clauses() []audit.ParsedClause {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.ParsedClause(nil), s.clauses...)
}

// SetResults replaces the results of the current run.
func (s *Store) SetResults(results []audit.ComplianceResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append([]audit.ComplianceResult(nil), results...)
}

func (s *Store) Results() []audit.ComplianceResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.ComplianceResult(nil), s.results...)
}

// AddReport appends a finished report. Reports are never modified afterwards.
func (s *Store) AddReport(r audit.AuditReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
}

// Reports returns reports newest first.
func (s *Store) Reports() []audit.AuditReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.AuditReport, len(s.reports))
	for i, r := range s.reports {
		out[len(s.reports)-1-i] = r
	}
	return out
}

func (s *Store) Report(id string) (audit.AuditReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if r.ID == id {
			return r, true
		}
	}
	return audit.AuditReport{}, false
}

// ClearRun drops the working set but keeps transactions and reports.
func (s *Store) ClearRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regulations = nil
	s.clauses = nil
	s.results = nil
}

func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = nil
	s.regulations = nil
	s.clauses = nil
	s.results = nil
	s.reports = nil
}
