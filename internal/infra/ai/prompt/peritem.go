package prompt

import (
	"fmt"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
)

const (
	LegalParserFunction       = "agent-legal-parser"
	ComplianceMappingFunction = "agent-compliance-mapping"

	legalParserContentLimit = 4000
)

const LegalParserSystemPrompt = `You are a Legal Parsing Agent specializing in converting Indian government regulations into machine-readable compliance clauses.
For each clause give the rule as "IF <condition> THEN <requirement>", then the conditions under which it applies, then the penalties for non-compliance.`

const ComplianceMappingSystemPrompt = `You are a Compliance Mapping Agent. Decide whether the transaction is compliant with the clause.
State one of: compliant, violation (non-compliant), or missing documents. State the risk as high risk, medium risk or low risk, then explain briefly.`

// BuildLegalParserPrompt renders one regulation for clause extraction.
func BuildLegalParserPrompt(r regulations.Regulation) string {
	return fmt.Sprintf("Parse the following regulatory text into structured compliance clauses:\n\n### %s\nSource: %s\nDate: %s\n\n%s",
		r.Title, r.Source, r.Date, Truncate(r.Content, legalParserContentLimit))
}

// MappingData is the structured payload for one (transaction, clause) check.
type MappingData struct {
	Transaction audit.Transaction `json:"transaction"`
	Clause      struct {
		ClauseID   string `json:"clauseId"`
		Rule       string `json:"rule"`
		Conditions string `json:"conditions"`
		Penalties  string `json:"penalties"`
	} `json:"clause"`
}

func NewMappingData(tx audit.Transaction, c audit.ParsedClause) MappingData {
	var d MappingData
	d.Transaction = tx
	d.Clause.ClauseID = c.ClauseID
	d.Clause.Rule = c.Rule
	d.Clause.Conditions = c.Conditions
	d.Clause.Penalties = c.Penalties
	return d
}

// BuildMappingPrompt renders one compliance check.
func BuildMappingPrompt(tx audit.Transaction, c audit.ParsedClause) string {
	return fmt.Sprintf("Transaction %s: %s paid %s (tax %s) to %s on %s. %s\n\nClause %s: %s\nConditions: %s\nPenalties: %s",
		tx.ID, tx.Category, tx.Amount, tx.Tax, tx.Vendor, tx.Date, tx.Description,
		c.ClauseID, c.Rule, c.Conditions, c.Penalties)
}
