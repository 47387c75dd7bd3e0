package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
)

const (
	StrategyBatch   = "batch"
	StrategyPerItem = "per_item"
)

// Workload is what a strategy evaluates: every transaction against the
// regulations without cached clauses plus the clauses already cached.
type Workload struct {
	Transactions []domain.Transaction
	Regulations  []regulations.Regulation
	Cached       []domain.ParsedClause
	OnRetry      func(retry int, wait time.Duration)
	Report       func(typ domain.LogType, msg string)
	Item         func(current, total int, msg string)
}

func (w Workload) report(typ domain.LogType, msg string) {
	if w.Report != nil {
		w.Report(typ, msg)
	}
}

func (w Workload) item(current, total int, msg string) {
	if w.Item != nil {
		w.Item(current, total, msg)
	}
}

// Outcome carries the clauses a strategy extracted and the verdicts it reached.
type Outcome struct {
	Clauses   []domain.ParsedClause
	Results   []domain.ComplianceResult
	Summary   string
	Malformed bool
}

// Strategy turns a workload into clauses and verdicts through the completion service.
type Strategy interface {
	Name() string
	Evaluate(ctx context.Context, w Workload) (Outcome, error)
}

func newID() string { return uuid.NewString() }

// ensureCoverage gives every transaction without a verdict a low-risk warning against the first clause.
func ensureCoverage(txs []domain.Transaction, clauses []domain.ParsedClause, results []domain.ComplianceResult, id func() string) []domain.ComplianceResult {
	if len(clauses) == 0 {
		return results
	}
	covered := make(map[string]bool, len(results))
	for _, r := range results {
		covered[r.TransactionID] = true
	}
	for _, tx := range txs {
		if covered[tx.ID] {
			continue
		}
		results = append(results, domain.ComplianceResult{
			ID:            id(),
			TransactionID: tx.ID,
			ClauseID:      clauses[0].ID,
			Status:        domain.StatusWarning,
			RiskLevel:     domain.RiskLow,
			Reasoning:     "No specific compliance issues identified.",
		})
	}
	return results
}
