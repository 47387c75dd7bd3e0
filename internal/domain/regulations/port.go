package regulations

import "context"

// Repository is the regulation store.
type Repository interface {
	// ListProcessed returns rows with is_processed set, newest crawl first.
	ListProcessed(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, r *Record) error
}
