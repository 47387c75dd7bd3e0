package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
)

func TestBuildBatchPrompt(t *testing.T) {
	regs := []regulations.Regulation{
		{ID: "r1", Title: "GST Act", Source: "CBIC", Content: strings.Repeat("a", 2000)},
		{ID: "r2", Title: "GFR", Source: "Ministry of Finance", Content: "short"},
	}
	txs := []audit.Transaction{{ID: "t1", Date: "2025-01-01", Vendor: "Acme", Amount: "₹10", Tax: "₹1", Category: "Tax", Description: "GST"}}

	p := BuildBatchPrompt(txs, regs, 1500)

	assert.True(t, strings.HasPrefix(p, "REGULATIONS:\n[Regulation 1] ID: r1\nTitle: GST Act\nSource: CBIC\nContent: "))
	assert.Contains(t, p, "Content: "+strings.Repeat("a", 1500)+"\n\n---\n\n[Regulation 2]")
	assert.NotContains(t, p, strings.Repeat("a", 1501))
	assert.Contains(t, p, "[Transaction 1] ID: t1\nDate: 2025-01-01\nVendor: Acme\nAmount: ₹10\nTax: ₹1\nCategory: Tax\nDescription: GST")
	assert.True(t, strings.HasSuffix(p, "Analyze and return the JSON response."))
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFence("Here:\n```json\n{\"a\":1}\n```\nthanks"))
	assert.Equal(t, `{"a":1}`, StripFence("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripFence("  {\"a\":1}  "))
}

func TestClauseCode(t *testing.T) {
	assert.Equal(t, "MINISTRY_O_001", ClauseCode("Ministry of Finance", 1))
	assert.Equal(t, "CBIC_012", ClauseCode("cbic", 12))
	assert.Equal(t, "_001", ClauseCode("", 1))
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "₹₹", Truncate("₹₹₹", 2))
	assert.Equal(t, "abc", Truncate("abc", 10))
}

func TestExtractors(t *testing.T) {
	text := "Clause summary\nIF turnover > 40 lakh THEN register for GST\nApplicable: all suppliers of goods\n- including e-commerce operators\nNext section\nPenalty of ₹10,000 applies. More text."

	assert.Equal(t, "IF turnover > 40 lakh THEN register for GST", ExtractRule(text))
	assert.Equal(t, "all suppliers of goods\n- including e-commerce operators", ExtractConditions(text))
	assert.Equal(t, "Penalty of ₹10,000 applies.", ExtractPenalties(text))

	assert.Empty(t, ExtractRule("no rule here"))
	assert.Empty(t, ExtractConditions("nothing"))
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		text   string
		status audit.Status
		risk   audit.RiskLevel
	}{
		{"The transaction is compliant. Low risk.", audit.StatusCompliant, audit.RiskLow},
		{"This is non-compliant, high risk", audit.StatusViolation, audit.RiskHigh},
		{"Clear violation of the rule", audit.StatusViolation, audit.RiskMedium},
		{"Invoice document is missing; minor issue", audit.StatusMissingDocs, audit.RiskLow},
		{"Unclear", audit.StatusWarning, audit.RiskMedium},
	}
	for _, tt := range tests {
		v := ParseVerdict(tt.text)
		assert.Equal(t, tt.status, v.Status, tt.text)
		assert.Equal(t, tt.risk, v.RiskLevel, tt.text)
		assert.Equal(t, tt.text, v.Reasoning)
	}
	assert.Equal(t, "Compliance analysis completed.", ParseVerdict("").Reasoning)
}

func TestBuildNarrativePrompt(t *testing.T) {
	p := BuildNarrativePrompt(NarrativeInput{
		Transactions: 3, Regulations: 2, Clauses: 4,
		Categories: []string{"tax"},
		Summary:    audit.ReportSummary{TotalChecked: 3, Compliant: 1, Violations: 1, Warnings: 1},
	})
	assert.Contains(t, p, "3 transactions checked against 4 clauses from 2 regulations")
	assert.Contains(t, p, "Categories: tax")
	assert.Contains(t, p, "1 compliant, 1 violations, 1 warnings out of 3 checks")
}
