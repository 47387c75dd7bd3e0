package audit

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
	"github.com/bryanwahyu/automaton-audit/internal/infra/ai/prompt"
)

func batchWorkload() Workload {
	var regs []regulations.Regulation
	for _, r := range scenarioRegulations() {
		regs = append(regs, r.ToRegulation())
	}
	return Workload{Transactions: scenarioTransactions(), Regulations: regs}
}

func newTestInvoker(caller *fakeCaller, repo *fakeClauses) *BatchInvoker {
	logger, _ := test.NewNullLogger()
	inv := NewBatchInvoker(caller, NewClauseCache(repo, logger), 0, logger)
	inv.NewID = seqIDs("id")
	return inv
}

func TestBatchInvokerMalformedOutput(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":   "Sorry, here is prose instead.",
		"no clauses": `{"clauses": [], "results": [], "summary": "nothing"}`,
		"truncated":  "```json\n{\"clauses\": [{\"clauseId\": \"X\"\n```",
	} {
		t.Run(name, func(t *testing.T) {
			caller := newFakeCaller()
			caller.responses[prompt.BatchFunction] = raw
			inv := newTestInvoker(caller, &fakeClauses{})

			out, err := inv.Invoke(context.Background(), batchWorkload())
			require.NoError(t, err)
			assert.True(t, out.Malformed)
			assert.Equal(t, fallbackSummary, out.Summary)

			require.Len(t, out.Clauses, 2)
			assert.Equal(t, "r1", out.Clauses[0].RegulationID)
			assert.Equal(t, "Compliance required under CBIC", out.Clauses[0].Rule)
			assert.Equal(t, "As per GST Rate Notification", out.Clauses[0].Conditions)
			assert.Equal(t, "Penalties as defined in GeM", out.Clauses[1].Penalties)

			require.Len(t, out.Results, 3)
			for _, r := range out.Results {
				assert.Equal(t, domain.StatusWarning, r.Status)
				assert.Equal(t, domain.RiskMedium, r.RiskLevel)
				assert.Equal(t, "Manual review recommended due to AI parsing limitations.", r.Reasoning)
				assert.Equal(t, out.Clauses[0].ID, r.ClauseID)
			}
		})
	}
}

func TestBatchInvokerNormalizesOutput(t *testing.T) {
	caller := newFakeCaller()
	caller.responses[prompt.BatchFunction] = `{
	  "clauses": [
	    {"clauseId": "A_001", "regulationId": "r2", "rule": "a"},
	    {"clauseId": "A_001", "regulationId": "r2", "rule": "duplicate"},
	    {"clauseId": "B_001", "regulationId": "made-up", "rule": "b"}
	  ],
	  "results": [
	    {"transactionId": "t1", "clauseId": "A_001", "status": "violation", "riskLevel": "high", "reasoning": ""},
	    {"transactionId": "ghost", "clauseId": "A_001", "status": "compliant", "riskLevel": "low"},
	    {"transactionId": "t2", "clauseId": "Z_999", "status": "bogus", "riskLevel": "extreme", "reasoning": "odd"}
	  ]
	}`
	repo := &fakeClauses{}
	inv := newTestInvoker(caller, repo)

	out, err := inv.Invoke(context.Background(), batchWorkload())
	require.NoError(t, err)
	assert.False(t, out.Malformed)

	require.Len(t, out.Clauses, 2)
	assert.Equal(t, "a", out.Clauses[0].Rule)
	assert.Equal(t, "r1", out.Clauses[1].RegulationID, "unknown regulation ids fall back to the first regulation")

	require.Len(t, out.Results, 3)
	assert.Equal(t, "t1", out.Results[0].TransactionID)
	assert.Equal(t, "Compliance assessment completed.", out.Results[0].Reasoning)
	assert.Equal(t, out.Clauses[0].ID, out.Results[0].ClauseID)

	assert.Equal(t, "t2", out.Results[1].TransactionID)
	assert.Equal(t, domain.StatusWarning, out.Results[1].Status)
	assert.Equal(t, domain.RiskMedium, out.Results[1].RiskLevel)
	assert.Equal(t, out.Clauses[0].ID, out.Results[1].ClauseID)

	// t3 had no verdict.
	assert.Equal(t, "t3", out.Results[2].TransactionID)
	assert.Equal(t, domain.RiskLow, out.Results[2].RiskLevel)
	assert.Equal(t, "No specific compliance issues identified.", out.Results[2].Reasoning)

	inv.Cache.Wait()
	assert.Len(t, repo.stored, 2)
}

func TestBatchInvokerCallFailure(t *testing.T) {
	caller := newFakeCaller()
	caller.errs[prompt.BatchFunction] = errStore
	repo := &fakeClauses{}
	inv := newTestInvoker(caller, repo)

	_, err := inv.Invoke(context.Background(), batchWorkload())
	require.ErrorIs(t, err, errStore)
	inv.Cache.Wait()
	assert.Zero(t, repo.upserts)
}

func TestBatchInvokerTruncatesRegulationContent(t *testing.T) {
	caller := newFakeCaller()
	caller.responses[prompt.BatchFunction] = "{}"
	inv := newTestInvoker(caller, &fakeClauses{})
	inv.ContentLimit = 10

	w := batchWorkload()
	w.Regulations[0].Content = "0123456789ABCDEFGHIJ"
	_, err := inv.Invoke(context.Background(), w)
	require.NoError(t, err)

	require.Len(t, caller.requests, 1)
	assert.Contains(t, caller.requests[0].Prompt, "Content: 0123456789\n")
	assert.NotContains(t, caller.requests[0].Prompt, "ABCDEFGHIJ")
	assert.Equal(t, prompt.BatchSystemPrompt, caller.requests[0].System)
}

func TestEnsureCoverageWithoutClauses(t *testing.T) {
	got := ensureCoverage(scenarioTransactions(), nil, nil, seqIDs("x"))
	assert.Empty(t, got)
}
