package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
)

func TestStoreDedupes(t *testing.T) {
	s := NewStore()
	s.AddRegulations([]regulations.Regulation{{ID: "r1"}, {ID: "r2"}})
	s.AddRegulations([]regulations.Regulation{{ID: "r2"}, {ID: "r3"}})
	assert.Len(t, s.Regulations(), 3)

	s.AddClauses([]audit.ParsedClause{{ID: "a", RegulationID: "r1", ClauseID: "X_001"}})
	s.AddClauses([]audit.ParsedClause{
		{ID: "b", RegulationID: "r1", ClauseID: "X_001"},
		{ID: "c", RegulationID: "r2", ClauseID: "X_001"},
	})
	clauses := s.Clauses()
	require.Len(t, clauses, 2)
	assert.Equal(t, "a", clauses[0].ID)
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore()
	txs := []audit.Transaction{{ID: "t1"}}
	s.SetTransactions(txs)
	txs[0].ID = "mutated"
	got := s.Transactions()
	assert.Equal(t, "t1", got[0].ID)
	got[0].ID = "again"
	assert.Equal(t, "t1", s.Transactions()[0].ID)
}

func TestStoreReports(t *testing.T) {
	s := NewStore()
	s.AddReport(audit.AuditReport{ID: "one"})
	s.AddReport(audit.AuditReport{ID: "two"})

	reports := s.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, "two", reports[0].ID)

	r, ok := s.Report("one")
	assert.True(t, ok)
	assert.Equal(t, "one", r.ID)
	_, ok = s.Report("missing")
	assert.False(t, ok)

	s.SetResults([]audit.ComplianceResult{{ID: "x"}})
	s.ClearRun()
	assert.Empty(t, s.Results())
	assert.Len(t, s.Reports(), 2)

	s.ClearAll()
	assert.Empty(t, s.Reports())
}
