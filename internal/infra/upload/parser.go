package upload

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

const (
	currency     = "₹"
	zeroAmount   = currency + "0"
	defaultCateg = "General"
)

var ErrUnsupportedFormat = errors.New("unsupported file format: use .json, .csv or .xlsx")

// Header aliases, checked in order. Keys are compared case-insensitively.
var (
	idKeys          = []string{"id"}
	categoryKeys    = []string{"category", "type"}
	amountKeys      = []string{"amount", "value"}
	taxKeys         = []string{"tax", "gst"}
	vendorKeys      = []string{"vendor", "party", "name"}
	dateKeys        = []string{"date"}
	descriptionKeys = []string{"description", "remarks"}
)

// Parser turns uploaded files into transactions.
type Parser struct {
	Now   func() time.Time
	NewID func() string
}

func NewParser() *Parser {
	return &Parser{Now: time.Now, NewID: uuid.NewString}
}

// Parse picks the decoder from the file extension.
func (p *Parser) Parse(filename string, r io.Reader) ([]audit.Transaction, error) {
	var (
		rows []map[string]any
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		rows, err = readJSON(r)
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx":
		rows, err = readXLSX(r)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	if len(rows) == 0 {
		return nil, audit.ErrNoTransactions
	}

	out := make([]audit.Transaction, 0, len(rows))
	for i, row := range rows {
		out = append(out, p.transaction(i, row))
	}
	return out, nil
}

func (p *Parser) transaction(index int, row map[string]any) audit.Transaction {
	id := lookup(row, idKeys)
	if id == "" {
		id = p.newID()
	}
	vendor := lookup(row, vendorKeys)
	if vendor == "" {
		vendor = fmt.Sprintf("Vendor %d", index+1)
	}
	date := lookup(row, dateKeys)
	if date == "" {
		date = p.now().Format("2006-01-02")
	}
	return audit.Transaction{
		ID:          id,
		Category:    orDefault(lookup(row, categoryKeys), defaultCateg),
		Amount:      money(lookup(row, amountKeys)),
		Tax:         money(lookup(row, taxKeys)),
		Vendor:      vendor,
		Date:        date,
		Description: lookup(row, descriptionKeys),
	}
}

func (p *Parser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Parser) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}

// money keeps formatted amounts as given and renders bare numbers as rupees with two decimals.
func money(raw string) string {
	if raw == "" {
		return zeroAmount
	}
	if strings.HasPrefix(raw, currency) {
		return raw
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return raw
	}
	return currency + d.StringFixed(2)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func lookup(row map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			if s := cellString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// readJSON accepts an array, an object with a transactions array, or a single object.
func readJSON(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	var items []any
	switch t := raw.(type) {
	case []any:
		items = t
	case map[string]any:
		if list, ok := lowerKeys(t)["transactions"].([]any); ok {
			items = list
		} else {
			items = []any{t}
		}
	default:
		return nil, errors.New("expected an object or an array")
	}

	rows := make([]map[string]any, 0, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, lowerKeys(obj))
	}
	return rows, nil
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		key := strings.ToLower(strings.TrimSpace(k))
		if _, taken := out[key]; taken && cellString(v) == "" {
			continue
		}
		out[key] = v
	}
	return out
}

func readCSV(r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return table(records), nil
}

func readXLSX(r io.Reader) ([]map[string]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return table(records), nil
}

// table maps data rows onto the lower-cased header row, skipping blank rows.
func table(records [][]string) []map[string]any {
	if len(records) < 2 {
		return nil
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	rows := make([]map[string]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(map[string]any, len(header))
		for i, h := range header {
			if h == "" || i >= len(rec) {
				continue
			}
			if _, taken := row[h]; taken && strings.TrimSpace(rec[i]) == "" {
				continue
			}
			row[h] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Sniff guesses the extension for uploads sent without a filename.
func Sniff(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	switch {
	case bytes.HasPrefix(trimmed, []byte("PK")):
		return ".xlsx"
	case bytes.HasPrefix(trimmed, []byte("[")), bytes.HasPrefix(trimmed, []byte("{")):
		return ".json"
	default:
		return ".csv"
	}
}
