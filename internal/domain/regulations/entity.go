package regulations

import (
	"strings"
	"time"
)

const (
	untitled       = "Untitled Regulation"
	defaultVersion = "1.0"
)

// Record is a row of the regulation store as written by the crawler or manual entry.
type Record struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url,omitempty"`
	Category    string    `json:"category"`
	CrawledAt   time.Time `json:"crawled_at"`
	IsProcessed bool      `json:"is_processed"`
}

// Regulation is the read-only view used by the audit pipeline.
type Regulation struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	Date        string     `json:"date"`
	Version     string     `json:"version"`
	Content     string     `json:"content"`
	URL         string     `json:"url,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	// Category is the store's own tag, used only for selection.
	Category string `json:"category,omitempty"`
}

// ToRegulation maps a store row into the pipeline view.
func (r Record) ToRegulation() Regulation {
	title := r.Title
	if strings.TrimSpace(title) == "" {
		title = untitled
	}
	content := r.Content
	if strings.TrimSpace(content) == "" {
		content = r.Summary
	}
	reg := Regulation{
		ID:       r.ID,
		Source:   r.Source,
		Title:    title,
		Version:  defaultVersion,
		Content:  content,
		URL:      r.URL,
		Category: r.Category,
	}
	if !r.CrawledAt.IsZero() {
		crawled := r.CrawledAt.UTC()
		reg.Date = crawled.Format("2006-01-02")
		reg.LastUpdated = &crawled
	}
	return reg
}

// SearchText is the lower-cased haystack matched against expanded category keywords.
// It reads the stored fields as-is, before any display defaults are applied.
func (r Record) SearchText() string {
	return strings.ToLower(strings.Join([]string{r.Title, r.Category, r.Content, r.Source}, " "))
}
