package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
	"github.com/bryanwahyu/automaton-audit/internal/infra/ai/prompt"
)

const (
	defaultRule       = "IF entity_type = 'registered_business' AND transaction_value > threshold THEN file_compliance_report WITHIN deadline"
	recordsRule       = "IF document_type = 'financial_record' THEN maintain_records FOR period_years = 8"
	recordsConditions = "All financial documents must be maintained in prescribed format with digital signatures"
	recordsPenalties  = "Documentation penalty: ₹5,000 per day of non-compliance"
	manualCheck       = "Compliance check could not be completed automatically. Manual review required."
)

// PerItemStrategy parses each regulation separately and then checks every
// (transaction, clause) pair with its own call. Slow, but each verdict is independent.
type PerItemStrategy struct {
	Caller ai.Caller
	Cache  *ClauseCache
	NewID  func() string
	Log    logrus.FieldLogger
}

func NewPerItemStrategy(caller ai.Caller, cache *ClauseCache, log logrus.FieldLogger) *PerItemStrategy {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PerItemStrategy{Caller: caller, Cache: cache, NewID: newID, Log: log}
}

func (s *PerItemStrategy) Name() string { return StrategyPerItem }

func (s *PerItemStrategy) Evaluate(ctx context.Context, w Workload) (Outcome, error) {
	var out Outcome
	for i, reg := range w.Regulations {
		w.item(i+1, len(w.Regulations), fmt.Sprintf("Parsing: %s...", prompt.Truncate(reg.Title, 50)))
		clauses, err := s.parse(ctx, i, reg, w.OnRetry)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Outcome{}, ctxErr
			}
			if errors.Is(err, ai.ErrPaymentRequired) {
				return Outcome{}, err
			}
			s.Log.WithError(err).WithField("regulation", reg.ID).Warn("legal parsing failed")
			w.report(domain.LogWarning, fmt.Sprintf("Failed to parse: %s...", prompt.Truncate(reg.Title, 40)))
			continue
		}
		out.Clauses = append(out.Clauses, clauses...)
		w.report(domain.LogSuccess, fmt.Sprintf("Parsed: %s... → %d clauses", prompt.Truncate(reg.Title, 40), len(clauses)))
	}
	if s.Cache != nil {
		s.Cache.UpsertAsync(out.Clauses)
	}

	all := append(append([]domain.ParsedClause(nil), w.Cached...), out.Clauses...)
	w.report(domain.LogInfo, fmt.Sprintf("Starting compliance mapping: %d transactions × %d clauses", len(w.Transactions), len(all)))
	for i, tx := range w.Transactions {
		w.item(i+1, len(w.Transactions), fmt.Sprintf("Checking: %s", tx.Vendor))
		for _, c := range all {
			res, err := s.check(ctx, tx, c, w.OnRetry)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return Outcome{}, ctxErr
				}
				if errors.Is(err, ai.ErrPaymentRequired) {
					return Outcome{}, err
				}
				s.Log.WithError(err).WithFields(logrus.Fields{"transaction": tx.ID, "clause": c.ClauseID}).Warn("compliance check failed")
				res = domain.ComplianceResult{
					ID:            s.NewID(),
					TransactionID: tx.ID,
					ClauseID:      c.ID,
					Status:        domain.StatusWarning,
					RiskLevel:     domain.RiskMedium,
					Reasoning:     manualCheck,
				}
				w.report(domain.LogWarning, fmt.Sprintf("Check failed for %s vs %s", tx.Vendor, c.ClauseID))
			} else {
				w.report(logTypeFor(res.Status), fmt.Sprintf("%s vs %s: %s (%s risk)", tx.Vendor, c.ClauseID, res.Status, res.RiskLevel))
			}
			out.Results = append(out.Results, res)
		}
	}
	out.Results = ensureCoverage(w.Transactions, all, out.Results, s.NewID)
	return out, nil
}

func (s *PerItemStrategy) parse(ctx context.Context, i int, reg regulations.Regulation, onRetry func(int, time.Duration)) ([]domain.ParsedClause, error) {
	text, err := s.Caller.Call(ctx, prompt.LegalParserFunction, ai.Request{
		System:  prompt.LegalParserSystemPrompt,
		Prompt:  prompt.BuildLegalParserPrompt(reg),
		OnRetry: onRetry,
	})
	if err != nil {
		return nil, err
	}
	rule := prompt.ExtractRule(text)
	if rule == "" {
		rule = defaultRule
	}
	conditions := prompt.ExtractConditions(text)
	if conditions == "" {
		conditions = fmt.Sprintf("Applicable under %s regulations", reg.Source)
	}
	penalties := prompt.ExtractPenalties(text)
	if penalties == "" {
		penalties = fmt.Sprintf("Non-compliance penalty as per %s guidelines", reg.Source)
	}
	return []domain.ParsedClause{
		{
			ID:           s.NewID(),
			RegulationID: reg.ID,
			ClauseID:     prompt.ClauseCode(reg.Source, i*2+1),
			Rule:         rule,
			Conditions:   conditions,
			Penalties:    penalties,
		},
		{
			ID:           s.NewID(),
			RegulationID: reg.ID,
			ClauseID:     prompt.ClauseCode(reg.Source, i*2+2),
			Rule:         recordsRule,
			Conditions:   recordsConditions,
			Penalties:    recordsPenalties,
		},
	}, nil
}

func (s *PerItemStrategy) check(ctx context.Context, tx domain.Transaction, c domain.ParsedClause, onRetry func(int, time.Duration)) (domain.ComplianceResult, error) {
	text, err := s.Caller.Call(ctx, prompt.ComplianceMappingFunction, ai.Request{
		System:  prompt.ComplianceMappingSystemPrompt,
		Prompt:  prompt.BuildMappingPrompt(tx, c),
		Data:    prompt.NewMappingData(tx, c),
		OnRetry: onRetry,
	})
	if err != nil {
		return domain.ComplianceResult{}, err
	}
	v := prompt.ParseVerdict(text)
	return domain.ComplianceResult{
		ID:            s.NewID(),
		TransactionID: tx.ID,
		ClauseID:      c.ID,
		Status:        v.Status,
		RiskLevel:     v.RiskLevel,
		Reasoning:     v.Reasoning,
	}, nil
}

func logTypeFor(s domain.Status) domain.LogType {
	switch s {
	case domain.StatusCompliant:
		return domain.LogSuccess
	case domain.StatusViolation:
		return domain.LogError
	}
	return domain.LogWarning
}
