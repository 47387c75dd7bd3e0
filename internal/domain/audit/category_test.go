package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCategories(t *testing.T) {
	tests := []struct {
		name string
		txs  []Transaction
		want []string
	}{
		{
			name: "gst and tender",
			txs: []Transaction{
				{ID: "1", Category: "Construction", Description: "GST invoice for cement"},
				{ID: "2", Category: "Procurement", Description: "Tender award"},
				{ID: "3", Category: "Software", Vendor: "Acme"},
			},
			want: []string{"tax", "procurement"},
		},
		{
			name: "case insensitive vendor match",
			txs:  []Transaction{{ID: "1", Vendor: "STATE BANK OF INDIA"}},
			want: []string{"banking"},
		},
		{
			name: "order follows table",
			txs: []Transaction{
				{ID: "1", Description: "annual audit fee"},
				{ID: "2", Description: "mutual fund purchase"},
			},
			want: []string{"procurement", "investment", "compliance"},
		},
		{
			name: "no match falls back",
			txs:  []Transaction{{ID: "1", Category: "Travel", Description: "flight", Vendor: "Air Co"}},
			want: []string{FallbackCategory},
		},
		{
			name: "empty input falls back",
			want: []string{FallbackCategory},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectCategories(DefaultCategoryTable, tt.txs))
		})
	}
}

func TestDetectCategoriesCustomTable(t *testing.T) {
	table := KeywordTable{{Tag: "travel", Keywords: []string{"flight"}}}
	got := DetectCategories(table, []Transaction{{ID: "1", Description: "Flight to Delhi"}})
	assert.Equal(t, []string{"travel"}, got)
}

func TestExpand(t *testing.T) {
	got := DefaultExpansionTable.Expand([]string{"tax", "unknown-tag", "tax"})
	assert.Equal(t, []string{"tax", "gst", "income", "vat", "customs", "excise", "direct", "indirect", "unknown-tag"}, got)
}

func TestStepCanAdvance(t *testing.T) {
	assert.True(t, StepIdle.CanAdvance(StepAnalyzingData))
	assert.True(t, StepAnalyzingData.CanAdvance(StepMappingCompliance))
	assert.True(t, StepParsingClauses.CanAdvance(StepError))
	assert.False(t, StepMappingCompliance.CanAdvance(StepParsingClauses))
	assert.False(t, StepComplete.CanAdvance(StepError))
	assert.False(t, StepError.CanAdvance(StepIdle))
}
