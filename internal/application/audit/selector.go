package audit

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
)

// DefaultMaxRegulations bounds how many regulations one run audits against.
const DefaultMaxRegulations = 5

// Selection is the outcome of regulation selection.
type Selection struct {
	Regulations []regulations.Regulation
	// FellBack is set when no regulation matched the expanded keywords.
	FellBack bool
	Keywords []string
}

// Selector picks the regulations relevant to the detected categories.
type Selector struct {
	Repo  regulations.Repository
	Table domain.KeywordTable
	Limit int
}

func NewSelector(repo regulations.Repository, table domain.KeywordTable, limit int) *Selector {
	if table == nil {
		table = domain.DefaultExpansionTable
	}
	if limit <= 0 {
		limit = DefaultMaxRegulations
	}
	return &Selector{Repo: repo, Table: table, Limit: limit}
}

// Select reads processed regulations newest first and keeps those whose text mentions
// any expanded keyword. When nothing matches the newest regulations are used instead.
func (s *Selector) Select(ctx context.Context, categories []string) (Selection, error) {
	records, err := s.Repo.ListProcessed(ctx)
	if err != nil {
		return Selection{}, fmt.Errorf("list regulations: %w", err)
	}
	if len(records) == 0 {
		return Selection{}, domain.ErrNoRegulationsFound
	}

	keywords := s.Table.Expand(categories)
	all := make([]regulations.Regulation, 0, len(records))
	var matched []regulations.Regulation
	for _, rec := range records {
		reg := rec.ToRegulation()
		all = append(all, reg)
		if len(matched) == s.Limit {
			continue
		}
		text := rec.SearchText()
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, reg)
				break
			}
		}
	}

	sel := Selection{Regulations: matched, Keywords: keywords}
	if len(matched) == 0 {
		sel.FellBack = true
		sel.Regulations = all
		if len(all) > s.Limit {
			sel.Regulations = all[:s.Limit]
		}
	}
	return sel, nil
}
