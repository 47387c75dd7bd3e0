package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

func sampleReport() *audit.AuditReport {
	return &audit.AuditReport{
		ID:          "rep-1",
		GeneratedAt: time.Date(2024, 4, 2, 8, 30, 0, 0, time.UTC),
		Summary:     audit.ReportSummary{TotalChecked: 2, Compliant: 1, Violations: 1},
		Details: []audit.ReportDetail{
			{ClauseReference: "GEM_001", Status: audit.StatusViolation, Reasoning: "Not routed via GeM", CorrectiveAction: "Immediate action required"},
			{ClauseReference: "CBIC_001", Status: audit.StatusMissingDocs, Reasoning: "No invoice", CorrectiveAction: "Obtain invoice"},
		},
		Narrative: "One violation.",
	}
}

func TestReportXLSX(t *testing.T) {
	body, err := ReportXLSX(sampleReport())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, DetailsSheet}, f.GetSheetList())

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Generated At", "2024-04-02T08:30:00Z"}, summary[1])
	assert.Equal(t, []string{"Total Checks", "2"}, summary[2])
	assert.Equal(t, []string{"Violations", "1"}, summary[4])
	assert.Equal(t, []string{"Narrative", "One violation."}, summary[6])

	details, err := f.GetRows(DetailsSheet)
	require.NoError(t, err)
	require.Len(t, details, 3)
	assert.Equal(t, detailHeadings, details[0])
	assert.Equal(t, []string{"GEM_001", "VIOLATION", "Not routed via GeM", "Immediate action required"}, details[1])
	assert.Equal(t, "MISSING DOCS", details[2][1])
}

func TestReportXLSXEmptyDetails(t *testing.T) {
	r := sampleReport()
	r.Details = nil
	r.Narrative = ""
	body, err := ReportXLSX(r)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()
	details, err := f.GetRows(DetailsSheet)
	require.NoError(t, err)
	assert.Len(t, details, 1)
}

func TestNames(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, "compliance-report-2024-04-02.xlsx", FileName(r))
	assert.Equal(t, "reports/acme/rep-1.xlsx", ObjectKey("acme", r))
}
