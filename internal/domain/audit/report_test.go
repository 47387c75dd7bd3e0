package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleReport(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	txs := []Transaction{
		{ID: "t1", Vendor: "Acme"},
		{ID: "t2", Vendor: "Globex"},
		{ID: "t3"},
	}
	clauses := []ParsedClause{{ID: "c1", ClauseID: "GST_001"}}
	results := []ComplianceResult{
		{ID: "r1", TransactionID: "t1", ClauseID: "c1", Status: StatusViolation, Reasoning: "late filing"},
		{ID: "r2", TransactionID: "t2", ClauseID: "c1", Status: StatusMissingDocs},
		{ID: "r3", TransactionID: "t3", ClauseID: "nope", Status: StatusCompliant, Reasoning: "fine"},
		{ID: "r4", TransactionID: "t1", ClauseID: "c1", Status: StatusWarning, Reasoning: "watch"},
	}
	narrative := strings.Repeat("n", 250)

	rep := AssembleReport("rep-1", at, txs, clauses, results, narrative)

	assert.Equal(t, "rep-1", rep.ID)
	assert.Equal(t, at, rep.GeneratedAt)
	assert.Equal(t, ReportSummary{TotalChecked: 4, Compliant: 1, Violations: 1, Warnings: 2}, rep.Summary)
	require.Len(t, rep.Details, 4)

	assert.Equal(t, "GST_001", rep.Details[0].ClauseReference)
	assert.Equal(t, "Immediate action required for Acme. Review GST_001 compliance. Implement controls and document remediation steps within 7 days.", rep.Details[0].CorrectiveAction)

	assert.Equal(t, strings.Repeat("n", 200), rep.Details[1].Reasoning)
	assert.Equal(t, "Obtain and archive required documentation for Globex within 30 days. Reference: GST_001.", rep.Details[1].CorrectiveAction)

	assert.Equal(t, "Unknown", rep.Details[2].ClauseReference)
	assert.Equal(t, "No action required for Unknown vendor. Continue standard monitoring per regulation.", rep.Details[2].CorrectiveAction)

	assert.Equal(t, "Monitor Acme transaction closely. Consider implementing additional safeguards as per GST_001.", rep.Details[3].CorrectiveAction)
}

func TestSummarizeTotalsConsistent(t *testing.T) {
	statuses := []Status{StatusCompliant, StatusViolation, StatusWarning, StatusMissingDocs}
	for n := 0; n < 20; n++ {
		var results []ComplianceResult
		for i := 0; i < n; i++ {
			results = append(results, ComplianceResult{Status: statuses[(i*7+n)%len(statuses)]})
		}
		s := Summarize(results)
		assert.Equal(t, len(results), s.TotalChecked)
		assert.Equal(t, s.TotalChecked, s.Compliant+s.Violations+s.Warnings)
	}
}

func TestParseStatusAndRisk(t *testing.T) {
	assert.Equal(t, StatusMissingDocs, ParseStatus("missing_docs"))
	assert.Equal(t, StatusWarning, ParseStatus("maybe"))
	assert.Equal(t, RiskHigh, ParseRiskLevel("high"))
	assert.Equal(t, RiskMedium, ParseRiskLevel(""))
}
