package upload

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

func testParser() *Parser {
	n := 0
	return &Parser{
		Now: func() time.Time { return time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC) },
		NewID: func() string {
			n++
			return "gen-" + string(rune('0'+n))
		},
	}
}

func TestParseJSONShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"array", `[{"id":"a"},{"id":"b"}]`, 2},
		{"wrapped", `{"transactions":[{"id":"a"}]}`, 1},
		{"single", `{"id":"a","vendor":"X"}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testParser().Parse("tx.json", strings.NewReader(tt.body))
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestParseJSONAliasesAndDefaults(t *testing.T) {
	body := `[
		{"Type":"procurement","Value":125000.5,"GST":"₹22,500","Party":"GeM Vendor","Remarks":"Tender"},
		{"amount":"", "date":"2024-01-05"}
	]`
	got, err := testParser().Parse("tx.JSON", strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, audit.Transaction{
		ID: "gen-1", Category: "procurement", Amount: "₹125000.50", Tax: "₹22,500",
		Vendor: "GeM Vendor", Date: "2024-02-29", Description: "Tender",
	}, got[0])

	assert.Equal(t, "General", got[1].Category)
	assert.Equal(t, "₹0", got[1].Amount)
	assert.Equal(t, "₹0", got[1].Tax)
	assert.Equal(t, "Vendor 2", got[1].Vendor)
	assert.Equal(t, "2024-01-05", got[1].Date)
	assert.Empty(t, got[1].Description)
}

func TestParseCSV(t *testing.T) {
	body := "\ufeffID,Category,Amount,Tax,Vendor,Date,Description\n" +
		"t1,construction,\"1,00,000\",18000,BuildCo,2024-01-10,Cement\n" +
		",,,,,,\n" +
		"t2,,abc,,,,\n"
	got, err := testParser().Parse("upload.csv", strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "₹100000.00", got[0].Amount)
	assert.Equal(t, "₹18000.00", got[0].Tax)
	assert.Equal(t, "BuildCo", got[0].Vendor)

	assert.Equal(t, "abc", got[1].Amount)
	assert.Equal(t, "Vendor 2", got[1].Vendor)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Vendor", "Amount", "Category"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"SoftCorp", 20000, "software"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	got, err := testParser().Parse("book.xlsx", &buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SoftCorp", got[0].Vendor)
	assert.Equal(t, "₹20000.00", got[0].Amount)
	assert.Equal(t, "software", got[0].Category)
	assert.Equal(t, "gen-1", got[0].ID)
}

func TestParseErrors(t *testing.T) {
	_, err := testParser().Parse("tx.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = testParser().Parse("tx.csv", strings.NewReader("id,amount\n"))
	assert.ErrorIs(t, err, audit.ErrNoTransactions)

	_, err = testParser().Parse("tx.json", strings.NewReader("{"))
	assert.Error(t, err)

	_, err = testParser().Parse("tx.json", strings.NewReader(`"text"`))
	assert.Error(t, err)
}

func TestSniff(t *testing.T) {
	assert.Equal(t, ".json", Sniff([]byte("  [{}]")))
	assert.Equal(t, ".xlsx", Sniff([]byte("PK\x03\x04")))
	assert.Equal(t, ".csv", Sniff([]byte("id,amount")))
}
