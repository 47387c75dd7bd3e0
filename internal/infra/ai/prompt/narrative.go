package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

// NarrativeFunction writes the human-readable report narrative.
const NarrativeFunction = "agent-auditor-assistant"

// NarrativeSystemPrompt asks for a structured, explainable audit report.
const NarrativeSystemPrompt = `You are an Auditor Assistant Agent generating explainable compliance reports with corrective recommendations for Indian government transactions.

When given compliance data, generate:
- Executive Summary with overall compliance status
- Detailed findings with severity levels (Critical/Major/Minor/Observation)
- Root cause analysis for violations
- Specific corrective actions with timelines
- Supporting documentation requirements

Format as a structured audit report:
EXECUTIVE_SUMMARY
COMPLIANCE_STATUS: [COMPLIANT/NON-COMPLIANT/PARTIALLY_COMPLIANT]
FINDINGS: Categorized list with severity
RECOMMENDATIONS: Prioritized corrective actions
REMEDIATION_TIMELINE: Action items with deadlines
DOCUMENTATION_REQUIRED: List of supporting documents`

// NarrativeInput is the structured context sent with the narrative request.
type NarrativeInput struct {
	Transactions int                      `json:"transactions"`
	Regulations  int                      `json:"regulations"`
	Clauses      int                      `json:"clauses"`
	Categories   []string                 `json:"categories"`
	Summary      audit.ReportSummary      `json:"summary"`
	BatchSummary string                   `json:"batchSummary,omitempty"`
	Results      []audit.ComplianceResult `json:"results"`
}

// BuildNarrativePrompt renders the compliance data summary as the user message.
func BuildNarrativePrompt(in NarrativeInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a compliance audit report for %d transactions checked against %d clauses from %d regulations.\n",
		in.Transactions, in.Clauses, in.Regulations)
	if len(in.Categories) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(in.Categories, ", "))
	}
	fmt.Fprintf(&b, "Results: %d compliant, %d violations, %d warnings out of %d checks.\n",
		in.Summary.Compliant, in.Summary.Violations, in.Summary.Warnings, in.Summary.TotalChecked)
	if in.BatchSummary != "" {
		fmt.Fprintf(&b, "Analyst summary: %s\n", in.BatchSummary)
	}
	b.WriteString("Detailed results are attached as data.")
	return b.String()
}
