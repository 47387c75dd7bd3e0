package audit

import "time"

// Transaction is an uploaded financial record. Amount and Tax are display strings.
type Transaction struct {
	ID          string `json:"id" validate:"required"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Tax         string `json:"tax"`
	Vendor      string `json:"vendor"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// ParsedClause is a rule extracted from one regulation.
// (RegulationID, ClauseID) is unique and is the cache key.
type ParsedClause struct {
	ID           string `json:"id"`
	RegulationID string `json:"regulationId"`
	ClauseID     string `json:"clauseId"`
	Rule         string `json:"rule"`
	Conditions   string `json:"conditions"`
	Penalties    string `json:"penalties"`
}

type Status string

const (
	StatusCompliant   Status = "compliant"
	StatusViolation   Status = "violation"
	StatusWarning     Status = "warning"
	StatusMissingDocs Status = "missing_docs"
)

// ParseStatus maps free model output onto a known status, defaulting to warning.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusCompliant, StatusViolation, StatusWarning, StatusMissingDocs:
		return Status(s)
	}
	return StatusWarning
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(s)
	}
	return RiskMedium
}

// ComplianceResult is the verdict for one (transaction, clause) pair.
// ClauseID references ParsedClause.ID.
type ComplianceResult struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"`
	ClauseID      string    `json:"clauseId"`
	Status        Status    `json:"status"`
	RiskLevel     RiskLevel `json:"riskLevel"`
	Reasoning     string    `json:"reasoning"`
	MissingDocs   []string  `json:"missingDocs,omitempty"`
}

type ReportSummary struct {
	TotalChecked int `json:"totalChecked"`
	Compliant    int `json:"compliant"`
	Violations   int `json:"violations"`
	Warnings     int `json:"warnings"`
}

type ReportDetail struct {
	ComplianceResultID string `json:"complianceResultId"`
	ClauseReference    string `json:"clauseReference"`
	Reasoning          string `json:"reasoning"`
	CorrectiveAction   string `json:"correctiveAction"`
	// Status is carried for export; it is not part of the summary math.
	Status Status `json:"status"`
}

// AuditReport is produced once per run and never mutated afterwards.
type AuditReport struct {
	ID          string         `json:"id"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Summary     ReportSummary  `json:"summary"`
	Details     []ReportDetail `json:"details"`
	Narrative   string         `json:"narrative,omitempty"`
}
