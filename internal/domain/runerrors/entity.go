package runerrors

import "time"

// RunError is a persisted record of a failed audit run
type RunError struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	RunID       string    `json:"run_id"`
	Step        string    `json:"step,omitempty"` // step the run failed in
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
