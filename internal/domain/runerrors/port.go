package runerrors

import "context"

// Repository defines persistence for run errors
type Repository interface {
	Save(ctx context.Context, e *RunError) error
	ListByTenant(ctx context.Context, tenant string, limit int) ([]*RunError, error)
}
