package audit

import (
	"fmt"
	"time"
)

const narrativeFallbackLen = 200

// CorrectiveAction returns the fixed remediation text for a status.
func CorrectiveAction(status Status, vendor, clauseRef string) string {
	if vendor == "" {
		vendor = "Unknown vendor"
	}
	if clauseRef == "" {
		clauseRef = "regulation"
	}
	switch status {
	case StatusViolation:
		return fmt.Sprintf("Immediate action required for %s. Review %s compliance. Implement controls and document remediation steps within 7 days.", vendor, clauseRef)
	case StatusWarning:
		return fmt.Sprintf("Monitor %s transaction closely. Consider implementing additional safeguards as per %s.", vendor, clauseRef)
	case StatusMissingDocs:
		return fmt.Sprintf("Obtain and archive required documentation for %s within 30 days. Reference: %s.", vendor, clauseRef)
	default:
		return fmt.Sprintf("No action required for %s. Continue standard monitoring per %s.", vendor, clauseRef)
	}
}

// Summarize counts results by status. missing_docs is folded into Warnings.
func Summarize(results []ComplianceResult) ReportSummary {
	s := ReportSummary{TotalChecked: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusCompliant:
			s.Compliant++
		case StatusViolation:
			s.Violations++
		default:
			s.Warnings++
		}
	}
	return s
}

// AssembleReport builds the final report. It is deterministic for fixed inputs.
func AssembleReport(id string, at time.Time, txs []Transaction, clauses []ParsedClause, results []ComplianceResult, narrative string) AuditReport {
	vendors := make(map[string]string, len(txs))
	for _, tx := range txs {
		vendors[tx.ID] = tx.Vendor
	}
	refs := make(map[string]string, len(clauses))
	for _, c := range clauses {
		refs[c.ID] = c.ClauseID
	}

	fallback := narrative
	if r := []rune(fallback); len(r) > narrativeFallbackLen {
		fallback = string(r[:narrativeFallbackLen])
	}

	details := make([]ReportDetail, 0, len(results))
	for _, r := range results {
		ref := refs[r.ClauseID]
		reasoning := r.Reasoning
		if reasoning == "" {
			reasoning = fallback
		}
		clauseRef := ref
		if clauseRef == "" {
			clauseRef = "Unknown"
		}
		details = append(details, ReportDetail{
			ComplianceResultID: r.ID,
			ClauseReference:    clauseRef,
			Reasoning:          reasoning,
			CorrectiveAction:   CorrectiveAction(r.Status, vendors[r.TransactionID], ref),
			Status:             r.Status,
		})
	}

	return AuditReport{
		ID:          id,
		GeneratedAt: at,
		Summary:     Summarize(results),
		Details:     details,
		Narrative:   narrative,
	}
}
