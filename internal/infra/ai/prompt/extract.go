package prompt

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

const (
	conditionsLimit = 300
	penaltiesLimit  = 200
	reasoningLimit  = 500
)

var (
	ruleRe       = regexp.MustCompile(`(?i)IF\s+[\s\S]*?THEN\s+[^\n]*`)
	conditionsRe = regexp.MustCompile(`(?i)(?:conditions?|applicable|applies?|when)[\s:]+([^\n]+)`)
	penaltiesRe  = regexp.MustCompile(`(?i)(?:penalt|fine|punishment|consequence)[\s\S]*?(?:\.|$)`)
)

// ExtractRule finds the first IF ... THEN ... statement.
func ExtractRule(text string) string {
	return strings.TrimSpace(ruleRe.FindString(text))
}

// ExtractConditions returns the text after a conditions/applies/when marker,
// including following lines that do not start with a letter.
func ExtractConditions(text string) string {
	loc := conditionsRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return ""
	}
	out := text[loc[2]:loc[3]]
	rest := text[loc[1]:]
	for strings.HasPrefix(rest, "\n") {
		rest = rest[1:]
		line := rest
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			line = rest[:i]
		}
		if r := []rune(line); len(r) > 0 && unicode.IsLetter(r[0]) {
			break
		}
		out += "\n" + line
		rest = rest[len(line):]
	}
	return Truncate(strings.TrimSpace(out), conditionsLimit)
}

// ExtractPenalties returns the first sentence mentioning a penalty, fine or consequence.
func ExtractPenalties(text string) string {
	return Truncate(strings.TrimSpace(penaltiesRe.FindString(text)), penaltiesLimit)
}

// Verdict is a heuristic reading of a free-text compliance answer.
type Verdict struct {
	Status    audit.Status
	RiskLevel audit.RiskLevel
	Reasoning string
}

// ParseVerdict classifies a free-text answer by keywords.
func ParseVerdict(text string) Verdict {
	lower := strings.ToLower(text)
	negated := strings.Contains(lower, "non-compliant") || strings.Contains(lower, "not compliant")

	status := audit.StatusWarning
	switch {
	case strings.Contains(lower, "compliant") && !negated:
		status = audit.StatusCompliant
	case strings.Contains(lower, "violation") || negated:
		status = audit.StatusViolation
	case strings.Contains(lower, "missing") || strings.Contains(lower, "document"):
		status = audit.StatusMissingDocs
	}

	risk := audit.RiskMedium
	switch {
	case strings.Contains(lower, "high risk") || strings.Contains(lower, "critical") || strings.Contains(lower, "severe"):
		risk = audit.RiskHigh
	case strings.Contains(lower, "low risk") || strings.Contains(lower, "minor"):
		risk = audit.RiskLow
	}

	reasoning := Truncate(text, reasoningLimit)
	if reasoning == "" {
		reasoning = "Compliance analysis completed."
	}
	return Verdict{Status: status, RiskLevel: risk, Reasoning: reasoning}
}
