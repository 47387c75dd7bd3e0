package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save inserts a report; saving the same id again replaces the body.
func (r *ReportRepository) Save(ctx context.Context, tenant string, rep *domain.AuditReport) error {
	const q = `
INSERT INTO audit_reports
  (id, tenant_id, generated_at, total_checked, violations, report_json, artifact_url, created_at)
VALUES (?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  generated_at=VALUES(generated_at), total_checked=VALUES(total_checked),
  violations=VALUES(violations), report_json=VALUES(report_json);
`
	body, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, rep.ID, stringOrDash(tenant), rep.GeneratedAt,
		rep.Summary.TotalChecked, rep.Summary.Violations, string(body), "", time.Now().UTC())
	return err
}

func (r *ReportRepository) Get(ctx context.Context, tenant, id string) (*domain.StoredReport, error) {
	const q = `
SELECT tenant_id, report_json, artifact_url, created_at
FROM audit_reports
WHERE tenant_id=? AND id=?
LIMIT 1;`
	s, err := scanReport(r.db.QueryRowContext(ctx, q, tenant, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReportNotFound
	}
	return s, err
}

// Paginate returns a page of reports ordered by generated_at desc
func (r *ReportRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.StoredReport, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT tenant_id, report_json, artifact_url, created_at
FROM audit_reports
WHERE tenant_id=?
ORDER BY generated_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.StoredReport
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
	res, err := r.db.ExecContext(ctx, `UPDATE audit_reports SET artifact_url=? WHERE tenant_id=? AND id=?;`, url, tenant, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrReportNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.StoredReport, error) {
	var (
		s    domain.StoredReport
		body string
	)
	if err := row.Scan(&s.TenantID, &body, &s.ArtifactURL, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &s.Report); err != nil {
		return nil, err
	}
	return &s, nil
}
