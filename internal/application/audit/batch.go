package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
	"github.com/bryanwahyu/automaton-audit/internal/infra/ai/prompt"
)

const (
	fallbackSummary   = "Audit completed with limited AI analysis. Manual review recommended."
	fallbackReasoning = "Manual review recommended due to AI parsing limitations."
)

// batchData is the structured payload sent alongside the batch prompt.
type batchData struct {
	Transactions []domain.Transaction     `json:"transactions"`
	Regulations  []regulations.Regulation `json:"regulations"`
}

type batchClause struct {
	ClauseID     string `json:"clauseId"`
	RegulationID string `json:"regulationId"`
	Rule         string `json:"rule"`
	Conditions   string `json:"conditions"`
	Penalties    string `json:"penalties"`
}

type batchResult struct {
	TransactionID string `json:"transactionId"`
	ClauseID      string `json:"clauseId"`
	Status        string `json:"status"`
	RiskLevel     string `json:"riskLevel"`
	Reasoning     string `json:"reasoning"`
}

type batchResponse struct {
	Clauses []batchClause `json:"clauses"`
	Results []batchResult `json:"results"`
	Summary string        `json:"summary"`
}

// BatchInvoker audits every transaction against every regulation in one remote call.
type BatchInvoker struct {
	Caller       ai.Caller
	Cache        *ClauseCache
	ContentLimit int
	NewID        func() string
	Log          logrus.FieldLogger
}

func NewBatchInvoker(caller ai.Caller, cache *ClauseCache, contentLimit int, log logrus.FieldLogger) *BatchInvoker {
	if contentLimit <= 0 {
		contentLimit = prompt.DefaultContentLimit
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BatchInvoker{Caller: caller, Cache: cache, ContentLimit: contentLimit, NewID: newID, Log: log}
}

// Invoke makes the single batch call. Only the call itself can fail; unusable
// output degrades to a synthesized manual-review outcome.
func (b *BatchInvoker) Invoke(ctx context.Context, w Workload) (Outcome, error) {
	raw, err := b.Caller.Call(ctx, prompt.BatchFunction, ai.Request{
		System:  prompt.BatchSystemPrompt,
		Prompt:  prompt.BuildBatchPrompt(w.Transactions, w.Regulations, b.ContentLimit),
		Data:    batchData{Transactions: w.Transactions, Regulations: w.Regulations},
		OnRetry: w.OnRetry,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("batch compliance audit: %w", err)
	}

	var resp batchResponse
	malformed := false
	if err := json.Unmarshal([]byte(prompt.StripFence(raw)), &resp); err != nil || len(resp.Clauses) == 0 {
		if err == nil {
			err = fmt.Errorf("%w: no clauses", domain.ErrMalformedModelOutput)
		} else {
			err = fmt.Errorf("%w: %v", domain.ErrMalformedModelOutput, err)
		}
		b.Log.WithError(err).WithField("function", prompt.BatchFunction).Warn("falling back to manual review outcome")
		malformed = true
		resp = b.fallback(w)
	}

	out := b.normalize(w, resp)
	out.Malformed = malformed
	if b.Cache != nil {
		b.Cache.UpsertAsync(out.Clauses)
	}
	return out, nil
}

// fallback synthesizes one clause per regulation and one manual-review result per transaction.
func (b *BatchInvoker) fallback(w Workload) batchResponse {
	resp := batchResponse{Summary: fallbackSummary}
	for i, r := range w.Regulations {
		resp.Clauses = append(resp.Clauses, batchClause{
			ClauseID:     prompt.ClauseCode(r.Source, i+1),
			RegulationID: r.ID,
			Rule:         fmt.Sprintf("Compliance required under %s", r.Source),
			Conditions:   fmt.Sprintf("As per %s", r.Title),
			Penalties:    fmt.Sprintf("Penalties as defined in %s", r.Source),
		})
	}
	first := ""
	if len(resp.Clauses) > 0 {
		first = resp.Clauses[0].ClauseID
	}
	for _, tx := range w.Transactions {
		resp.Results = append(resp.Results, batchResult{
			TransactionID: tx.ID,
			ClauseID:      first,
			Status:        string(domain.StatusWarning),
			RiskLevel:     string(domain.RiskMedium),
			Reasoning:     fallbackReasoning,
		})
	}
	return resp
}

// normalize assigns ids, resolves references and fills coverage gaps.
func (b *BatchInvoker) normalize(w Workload, resp batchResponse) Outcome {
	knownReg := make(map[string]bool, len(w.Regulations))
	for _, r := range w.Regulations {
		knownReg[r.ID] = true
	}

	out := Outcome{Summary: resp.Summary}
	seen := map[string]bool{}
	for _, c := range resp.Clauses {
		regID := c.RegulationID
		if !knownReg[regID] && len(w.Regulations) > 0 {
			regID = w.Regulations[0].ID
		}
		key := regID + "\x00" + c.ClauseID
		if c.ClauseID == "" || seen[key] {
			continue
		}
		seen[key] = true
		out.Clauses = append(out.Clauses, domain.ParsedClause{
			ID:           b.NewID(),
			RegulationID: regID,
			ClauseID:     c.ClauseID,
			Rule:         c.Rule,
			Conditions:   c.Conditions,
			Penalties:    c.Penalties,
		})
	}

	all := append(append([]domain.ParsedClause(nil), w.Cached...), out.Clauses...)
	byCode := make(map[string]string, len(all))
	for _, c := range all {
		if _, ok := byCode[c.ClauseID]; !ok {
			byCode[c.ClauseID] = c.ID
		}
	}
	knownTx := make(map[string]bool, len(w.Transactions))
	for _, tx := range w.Transactions {
		knownTx[tx.ID] = true
	}

	for _, r := range resp.Results {
		if !knownTx[r.TransactionID] || len(all) == 0 {
			continue
		}
		clauseID, ok := byCode[r.ClauseID]
		if !ok {
			clauseID = all[0].ID
		}
		reasoning := strings.TrimSpace(r.Reasoning)
		if reasoning == "" {
			reasoning = "Compliance assessment completed."
		}
		out.Results = append(out.Results, domain.ComplianceResult{
			ID:            b.NewID(),
			TransactionID: r.TransactionID,
			ClauseID:      clauseID,
			Status:        domain.ParseStatus(r.Status),
			RiskLevel:     domain.ParseRiskLevel(r.RiskLevel),
			Reasoning:     reasoning,
		})
	}
	out.Results = ensureCoverage(w.Transactions, all, out.Results, b.NewID)
	return out
}

// BatchStrategy is the default strategy: exactly one remote call per run.
type BatchStrategy struct {
	Invoker *BatchInvoker
}

func (s *BatchStrategy) Name() string { return StrategyBatch }

func (s *BatchStrategy) Evaluate(ctx context.Context, w Workload) (Outcome, error) {
	w.item(0, 1, "Running batch compliance analysis...")
	w.report(domain.LogInfo, fmt.Sprintf("Batch processing %d transactions against %d regulations", len(w.Transactions), len(w.Regulations)))
	out, err := s.Invoker.Invoke(ctx, w)
	if err != nil {
		return Outcome{}, err
	}
	if out.Malformed {
		w.report(domain.LogWarning, "Model output could not be parsed, manual review recommended")
	}
	w.report(domain.LogSuccess, "Batch compliance analysis complete")
	if len(out.Clauses) > 0 {
		w.report(domain.LogSuccess, fmt.Sprintf("Extracted %d new clauses (total: %d)", len(out.Clauses), len(out.Clauses)+len(w.Cached)))
	}
	summary := out.Summary
	if summary == "" {
		summary = "Batch audit completed"
	}
	w.report(domain.LogInfo, summary)
	return out, nil
}
