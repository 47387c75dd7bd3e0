package audit

import "strings"

// FallbackCategory is returned when no keyword matches any transaction.
const FallbackCategory = "compliance"

// KeywordRule maps a category tag to case-insensitive substring keywords.
type KeywordRule struct {
	Tag      string   `yaml:"tag" json:"tag"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// KeywordTable is an ordered list of rules. Order decides output order.
type KeywordTable []KeywordRule

// DefaultCategoryTable classifies transactions.
var DefaultCategoryTable = KeywordTable{
	{Tag: "tax", Keywords: []string{"Tax", "GST", "Income Tax", "VAT", "Customs", "Excise"}},
	{Tag: "banking", Keywords: []string{"Wire Transfer", "Bank", "NEFT", "RTGS", "UPI", "Payment"}},
	{Tag: "government", Keywords: []string{"Government", "Grant", "Subsidy", "Ministry", "Public"}},
	{Tag: "procurement", Keywords: []string{"Procurement", "GeM", "Tender", "Contract", "Purchase"}},
	{Tag: "investment", Keywords: []string{"Investment", "Securities", "Stock", "Mutual Fund"}},
	{Tag: "compliance", Keywords: []string{"Audit", "Compliance", "Filing", "Return"}},
}

// DefaultExpansionTable widens a detected tag into regulation search keywords.
// It is kept separate from DefaultCategoryTable on purpose; the two differ in granularity.
var DefaultExpansionTable = KeywordTable{
	{Tag: "tax", Keywords: []string{"tax", "gst", "income", "vat", "customs", "excise", "direct", "indirect"}},
	{Tag: "banking", Keywords: []string{"bank", "rbi", "payment", "transfer", "finance", "monetary"}},
	{Tag: "government", Keywords: []string{"government", "ministry", "public", "official", "central", "state"}},
	{Tag: "procurement", Keywords: []string{"procurement", "gem", "tender", "contract", "purchase", "vendor"}},
	{Tag: "investment", Keywords: []string{"investment", "sebi", "securities", "market", "trading"}},
	{Tag: "compliance", Keywords: []string{"compliance", "audit", "regulation", "rule", "act", "law"}},
}

func (t KeywordTable) lookup(tag string) ([]string, bool) {
	for _, r := range t {
		if r.Tag == tag {
			return r.Keywords, true
		}
	}
	return nil, false
}

// DetectCategories returns the tags whose keywords appear in any transaction's
// category, description or vendor. It never returns an empty slice.
func DetectCategories(table KeywordTable, txs []Transaction) []string {
	hits := make(map[string]bool, len(table))
	for _, tx := range txs {
		text := strings.ToLower(tx.Category + " " + tx.Description + " " + tx.Vendor)
		for _, rule := range table {
			if hits[rule.Tag] {
				continue
			}
			for _, kw := range rule.Keywords {
				if strings.Contains(text, strings.ToLower(kw)) {
					hits[rule.Tag] = true
					break
				}
			}
		}
	}

	out := make([]string, 0, len(hits))
	for _, rule := range table {
		if hits[rule.Tag] {
			out = append(out, rule.Tag)
		}
	}
	if len(out) == 0 {
		return []string{FallbackCategory}
	}
	return out
}

// Expand turns category tags into a deduplicated, lower-cased keyword list.
// Unknown tags expand to themselves.
func (t KeywordTable) Expand(tags []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(kw string) {
		kw = strings.ToLower(kw)
		if kw != "" && !seen[kw] {
			seen[kw] = true
			out = append(out, kw)
		}
	}
	for _, tag := range tags {
		kws, ok := t.lookup(tag)
		if !ok {
			add(tag)
			continue
		}
		for _, kw := range kws {
			add(kw)
		}
	}
	return out
}
