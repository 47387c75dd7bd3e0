package postgres

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/runerrors"
)

type RunErrorRepository struct{ db *sql.DB }

func NewRunErrorRepository(db *sql.DB) *RunErrorRepository { return &RunErrorRepository{db: db} }

// Save inserts a run error and fills in its generated id.
func (r *RunErrorRepository) Save(ctx context.Context, e *domain.RunError) error {
	const q = `
INSERT INTO audit_run_errors
  (tenant_id, run_id, step, message, details_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id;`
	details := e.DetailsJSON
	if details == "" {
		details = "{}"
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, q, stringOrDash(e.TenantID), stringOrDash(e.RunID), stringOrDash(e.Step),
		stringOrDash(e.Message), details, created).Scan(&e.ID)
}

func (r *RunErrorRepository) ListByTenant(ctx context.Context, tenant string, limit int) ([]*domain.RunError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, run_id, step, message, details_json, created_at
FROM audit_run_errors
WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.RunError
	for rows.Next() {
		var e domain.RunError
		if err := rows.Scan(&e.ID, &e.TenantID, &e.RunID, &e.Step, &e.Message, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
