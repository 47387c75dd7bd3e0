package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

const (
	SummarySheet = "Summary"
	DetailsSheet = "Details"

	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var detailHeadings = []string{"Clause Reference", "Status", "Reasoning", "Corrective Action"}

// ReportXLSX renders a report as a workbook with a Summary and a Details sheet.
func ReportXLSX(r *audit.AuditReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return nil, err
	}
	summary := [][]any{
		{"Report ID", r.ID},
		{"Generated At", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Total Checks", r.Summary.TotalChecked},
		{"Compliant", r.Summary.Compliant},
		{"Violations", r.Summary.Violations},
		{"Warnings", r.Summary.Warnings},
	}
	if r.Narrative != "" {
		summary = append(summary, []any{"Narrative", r.Narrative})
	}
	for i, row := range summary {
		if err := f.SetSheetRow(SummarySheet, cell("A", i+1), &row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(DetailsSheet); err != nil {
		return nil, err
	}
	headings := make([]any, len(detailHeadings))
	for i, h := range detailHeadings {
		headings[i] = h
	}
	if err := f.SetSheetRow(DetailsSheet, "A1", &headings); err != nil {
		return nil, err
	}
	for i, d := range r.Details {
		row := []any{d.ClauseReference, statusLabel(d.Status), d.Reasoning, d.CorrectiveAction}
		if err := f.SetSheetRow(DetailsSheet, cell("A", i+2), &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 16)
	_ = f.SetColWidth(SummarySheet, "B", "B", 60)
	_ = f.SetColWidth(DetailsSheet, "A", "B", 18)
	_ = f.SetColWidth(DetailsSheet, "C", "D", 80)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName is the download name for a report workbook.
func FileName(r *audit.AuditReport) string {
	return fmt.Sprintf("compliance-report-%s.xlsx", r.GeneratedAt.UTC().Format("2006-01-02"))
}

// ObjectKey is where a tenant's report workbook lives in the bucket.
func ObjectKey(tenant string, r *audit.AuditReport) string {
	return fmt.Sprintf("reports/%s/%s.xlsx", tenant, r.ID)
}

func cell(col string, row int) string { return fmt.Sprintf("%s%d", col, row) }

func statusLabel(s audit.Status) string {
	return strings.ToUpper(strings.ReplaceAll(string(s), "_", " "))
}
