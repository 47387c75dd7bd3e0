package audit

import (
	"context"
	"time"
)

// ClauseRepository persists parsed clauses keyed by (regulation_id, clause_id).
type ClauseRepository interface {
	FindByRegulations(ctx context.Context, regulationIDs []string) ([]ParsedClause, error)
	Upsert(ctx context.Context, clauses []ParsedClause) error
}

// StoredReport is a persisted report plus the location of its exported artifact, if any.
type StoredReport struct {
	TenantID    string      `json:"tenant_id"`
	Report      AuditReport `json:"report"`
	ArtifactURL string      `json:"artifact_url,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ReportRepository keeps the history of completed reports per tenant.
type ReportRepository interface {
	Save(ctx context.Context, tenant string, r *AuditReport) error
	Get(ctx context.Context, tenant, id string) (*StoredReport, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*StoredReport, error)
	SetArtifactURL(ctx context.Context, tenant, id, url string) error
}

// RunLock serialises runs for a tenant across processes.
type RunLock interface {
	Acquire(ctx context.Context, tenant string) (release func(), err error)
}
