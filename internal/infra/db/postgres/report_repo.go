package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

type ReportRepository struct{ db *sql.DB }

func NewReportRepository(db *sql.DB) *ReportRepository { return &ReportRepository{db: db} }

func (r *ReportRepository) Save(ctx context.Context, tenant string, rep *domain.AuditReport) error {
	const q = `
INSERT INTO audit_reports
  (id, tenant_id, generated_at, total_checked, violations, report_json, artifact_url, created_at)
VALUES ($1,$2,$3,$4,$5,$6,'',$7)
ON CONFLICT (id) DO UPDATE SET
  generated_at=EXCLUDED.generated_at,
  total_checked=EXCLUDED.total_checked,
  violations=EXCLUDED.violations,
  report_json=EXCLUDED.report_json;`
	body, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, rep.ID, stringOrDash(tenant), rep.GeneratedAt,
		rep.Summary.TotalChecked, rep.Summary.Violations, string(body), time.Now().UTC())
	return err
}

func (r *ReportRepository) Get(ctx context.Context, tenant, id string) (*domain.StoredReport, error) {
	const q = `
SELECT tenant_id, report_json, artifact_url, created_at
FROM audit_reports
WHERE tenant_id=$1 AND id=$2
LIMIT 1;`
	var (
		s    domain.StoredReport
		body string
	)
	err := r.db.QueryRowContext(ctx, q, tenant, id).Scan(&s.TenantID, &body, &s.ArtifactURL, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &s.Report); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ReportRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.StoredReport, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	const q = `
SELECT tenant_id, report_json, artifact_url, created_at
FROM audit_reports
WHERE tenant_id=$1
ORDER BY generated_at DESC, id DESC
LIMIT $2 OFFSET $3;`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.StoredReport
	for rows.Next() {
		var (
			s    domain.StoredReport
			body string
		)
		if err := rows.Scan(&s.TenantID, &body, &s.ArtifactURL, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(body), &s.Report); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *ReportRepository) SetArtifactURL(ctx context.Context, tenant, id, url string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE audit_reports SET artifact_url=$1 WHERE tenant_id=$2 AND id=$3;`, url, tenant, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrReportNotFound
	}
	return nil
}
