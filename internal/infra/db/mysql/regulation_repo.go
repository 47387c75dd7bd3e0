package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
)

type RegulationRepository struct {
	db *sql.DB
}

func NewRegulationRepository(db *sql.DB) *RegulationRepository {
	return &RegulationRepository{db: db}
}

// ListProcessed returns processed regulations, newest crawl first.
func (r *RegulationRepository) ListProcessed(ctx context.Context) ([]domain.Record, error) {
	const q = `
SELECT id, source, title, content, summary, url, category, crawled_at, is_processed
FROM indexed_regulations
WHERE is_processed = TRUE
ORDER BY crawled_at DESC, id DESC;
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Title, &rec.Content, &rec.Summary,
			&rec.URL, &rec.Category, &rec.CrawledAt, &rec.IsProcessed); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Save inserts or replaces a regulation row
func (r *RegulationRepository) Save(ctx context.Context, rec *domain.Record) error {
	const q = `
INSERT INTO indexed_regulations
  (id, source, title, content, summary, url, category, crawled_at, is_processed)
VALUES (?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  source=VALUES(source), title=VALUES(title), content=VALUES(content), summary=VALUES(summary),
  url=VALUES(url), category=VALUES(category), crawled_at=VALUES(crawled_at), is_processed=VALUES(is_processed);
`
	crawled := rec.CrawledAt
	if crawled.IsZero() {
		crawled = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q, rec.ID, stringOrDash(rec.Source), rec.Title, rec.Content, rec.Summary,
		rec.URL, rec.Category, crawled, rec.IsProcessed)
	return err
}
