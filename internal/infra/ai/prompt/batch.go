package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
)

// BatchFunction is the completion function that audits every transaction in one call.
const BatchFunction = "batch-compliance-audit"

// DefaultContentLimit bounds how much of each regulation goes into the batch prompt.
const DefaultContentLimit = 1500

// BatchSystemPrompt fixes the JSON-only response contract.
const BatchSystemPrompt = `You are a Compliance Audit Agent. Analyze transactions against regulations and return a JSON response.

IMPORTANT: Return ONLY valid JSON, no markdown, no explanations outside JSON.

For each regulation, extract 1-2 compliance clauses.
For each transaction, check against ALL clauses and determine compliance status.

Response format:
{
  "clauses": [
    {
      "clauseId": "REG1_001",
      "regulationId": "uuid-of-regulation",
      "rule": "IF condition THEN requirement",
      "conditions": "When this applies",
      "penalties": "Consequence of violation"
    }
  ],
  "results": [
    {
      "transactionId": "uuid-of-transaction",
      "clauseId": "REG1_001",
      "status": "compliant|violation|warning|missing_docs",
      "riskLevel": "low|medium|high",
      "reasoning": "Brief explanation"
    }
  ],
  "summary": "Overall audit summary in 2-3 sentences"
}`

// BuildBatchPrompt embeds every regulation (content cut to limit runes) and every transaction.
func BuildBatchPrompt(txs []audit.Transaction, regs []regulations.Regulation, limit int) string {
	if limit <= 0 {
		limit = DefaultContentLimit
	}
	regParts := make([]string, 0, len(regs))
	for i, r := range regs {
		regParts = append(regParts, fmt.Sprintf("[Regulation %d] ID: %s\nTitle: %s\nSource: %s\nContent: %s",
			i+1, r.ID, r.Title, r.Source, Truncate(r.Content, limit)))
	}
	txParts := make([]string, 0, len(txs))
	for i, t := range txs {
		txParts = append(txParts, fmt.Sprintf("[Transaction %d] ID: %s\nDate: %s\nVendor: %s\nAmount: %s\nTax: %s\nCategory: %s\nDescription: %s",
			i+1, t.ID, t.Date, t.Vendor, t.Amount, t.Tax, t.Category, t.Description))
	}
	return fmt.Sprintf("REGULATIONS:\n%s\n\n---\n\nTRANSACTIONS:\n%s\n\nAnalyze and return the JSON response.",
		strings.Join(regParts, "\n\n---\n\n"),
		strings.Join(txParts, "\n\n"))
}

var fenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// StripFence returns the body of the first fenced code block, or s unchanged.
func StripFence(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n < 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]`)

// ClausePrefix derives the clause code prefix from a regulation source: upper-cased,
// non-alphanumerics replaced by '_', first 10 characters.
func ClausePrefix(source string) string {
	return Truncate(nonAlnum.ReplaceAllString(strings.ToUpper(source), "_"), 10)
}

// ClauseCode formats <PREFIX>_<NNN>.
func ClauseCode(source string, n int) string {
	return fmt.Sprintf("%s_%03d", ClausePrefix(source), n)
}
