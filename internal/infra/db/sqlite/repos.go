package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
	"github.com/bryanwahyu/automaton-audit/internal/domain/runerrors"
)

type RegulationRepository struct{ db *sql.DB }

func NewRegulationRepository(db *sql.DB) *RegulationRepository { return &RegulationRepository{db: db} }

func (r *RegulationRepository) ListProcessed(ctx context.Context) ([]regulations.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, source, title, content, summary, url, category, crawled_at, is_processed
FROM indexed_regulations
WHERE is_processed = 1
ORDER BY crawled_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []regulations.Record
	for rows.Next() {
		var rec regulations.Record
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Title, &rec.Content, &rec.Summary,
			&rec.URL, &rec.Category, &rec.CrawledAt, &rec.IsProcessed); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RegulationRepository) Save(ctx context.Context, rec *regulations.Record) error {
	crawled := rec.CrawledAt
	if crawled.IsZero() {
		crawled = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO indexed_regulations
  (id, source, title, content, summary, url, category, crawled_at, is_processed)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  source=excluded.source, title=excluded.title, content=excluded.content, summary=excluded.summary,
  url=excluded.url, category=excluded.category, crawled_at=excluded.crawled_at, is_processed=excluded.is_processed`,
		rec.ID, rec.Source, rec.Title, rec.Content, rec.Summary, rec.URL, rec.Category, crawled.UTC(), rec.IsProcessed)
	return err
}

type ClauseRepository struct{ db *sql.DB }

func NewClauseRepository(db *sql.DB) *ClauseRepository { return &ClauseRepository{db: db} }

func (r *ClauseRepository) FindByRegulations(ctx context.Context, regulationIDs []string) ([]audit.ParsedClause, error) {
	if len(regulationIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(regulationIDs))
	for i, id := range regulationIDs {
		args[i] = id
	}
	q := fmt.Sprintf(`
SELECT id, regulation_id, clause_id, rule_text, conditions, penalties
FROM parsed_clauses
WHERE regulation_id IN (%s)
ORDER BY created_at ASC, clause_id ASC`, strings.TrimSuffix(strings.Repeat("?,", len(args)), ","))
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.ParsedClause
	for rows.Next() {
		var c audit.ParsedClause
		if err := rows.Scan(&c.ID, &c.RegulationID, &c.ClauseID, &c.Rule, &c.Conditions, &c.Penalties); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ClauseRepository) Upsert(ctx context.Context, clauses []audit.ParsedClause) error {
	if len(clauses) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, c := range clauses {
		_, err := tx.ExecContext(ctx, `
INSERT INTO parsed_clauses (id, regulation_id, clause_id, rule_text, conditions, penalties, created_at)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(regulation_id, clause_id) DO UPDATE SET
  rule_text=excluded.rule_text, conditions=excluded.conditions, penalties=excluded.penalties`,
			c.ID, c.RegulationID, c.ClauseID, c.Rule, c.Conditions, c.Penalties, now)
		if err != nil {
			return fmt.Errorf("upsert clause %s/%s: %w", c.RegulationID, c.ClauseID, err)
		}
	}
	return tx.Commit()
}

type ReportRepository struct{ db *sql.DB }

func NewReportRepository(db *sql.DB) *ReportRepository { return &ReportRepository{db: db} }

func (r *ReportRepository) Save(ctx context.Context, tenant string, rep *audit.AuditReport) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO audit_reports (id, tenant_id, generated_at, total_checked, violations, report_json, artifact_url, created_at)
VALUES (?,?,?,?,?,?,'',?)
ON CONFLICT(id) DO UPDATE SET
  generated_at=excluded.generated_at, total_checked=excluded.total_checked,
  violations=excluded.violations, report_json=excluded.report_json`,
		rep.ID, tenant, rep.GeneratedAt.UTC(), rep.Summary.TotalChecked, rep.Summary.Violations, string(body), time.Now().UTC())
	return err
}

func (r *ReportRepository) Get(ctx context.Context, tenant, id string) (*audit.StoredReport, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT tenant_id, report_json, artifact_url, created_at
FROM audit_reports WHERE tenant_id=? AND id=?`, tenant, id)
	s, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, audit.ErrReportNotFound
	}
	return s, err
}

func (r *ReportRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*audit.StoredReport, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT tenant_id, report_json, artifact_url, created_at
FROM audit_reports WHERE tenant_id=?
ORDER BY generated_at DESC, id DESC
LIMIT ? OFFSET ?`, tenant, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*audit.StoredReport
	for rows.Next() {
		s, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ReportRepository) SetArtifactURL(ctx context.Context, tenant, id, url string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE audit_reports SET artifact_url=? WHERE tenant_id=? AND id=?`, url, tenant, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return audit.ErrReportNotFound
	}
	return nil
}

func scanReport(row interface{ Scan(...any) error }) (*audit.StoredReport, error) {
	var (
		s    audit.StoredReport
		body string
	)
	if err := row.Scan(&s.TenantID, &body, &s.ArtifactURL, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &s.Report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &s, nil
}

type RunErrorRepository struct{ db *sql.DB }

func NewRunErrorRepository(db *sql.DB) *RunErrorRepository { return &RunErrorRepository{db: db} }

func (r *RunErrorRepository) Save(ctx context.Context, e *runerrors.RunError) error {
	details := e.DetailsJSON
	if strings.TrimSpace(details) == "" {
		details = "{}"
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO audit_run_errors (tenant_id, run_id, step, message, details_json, created_at)
VALUES (?,?,?,?,?,?)`, e.TenantID, e.RunID, e.Step, e.Message, details, created.UTC())
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

func (r *RunErrorRepository) ListByTenant(ctx context.Context, tenant string, limit int) ([]*runerrors.RunError, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, run_id, step, message, details_json, created_at
FROM audit_run_errors WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ?`, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*runerrors.RunError
	for rows.Next() {
		var e runerrors.RunError
		if err := rows.Scan(&e.ID, &e.TenantID, &e.RunID, &e.Step, &e.Message, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
