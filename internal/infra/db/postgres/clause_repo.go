package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

type ClauseRepository struct{ db *sql.DB }

func NewClauseRepository(db *sql.DB) *ClauseRepository { return &ClauseRepository{db: db} }

func (r *ClauseRepository) FindByRegulations(ctx context.Context, regulationIDs []string) ([]domain.ParsedClause, error) {
	if len(regulationIDs) == 0 {
		return nil, nil
	}
	const q = `
SELECT id, regulation_id, clause_id, rule_text, conditions, penalties
FROM parsed_clauses
WHERE regulation_id = ANY($1)
ORDER BY created_at ASC, clause_id ASC;`
	rows, err := r.db.QueryContext(ctx, q, pq.Array(regulationIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ParsedClause
	for rows.Next() {
		var c domain.ParsedClause
		if err := rows.Scan(&c.ID, &c.RegulationID, &c.ClauseID, &c.Rule, &c.Conditions, &c.Penalties); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Upsert writes clauses in one transaction keyed on (regulation_id, clause_id).
func (r *ClauseRepository) Upsert(ctx context.Context, clauses []domain.ParsedClause) error {
	if len(clauses) == 0 {
		return nil
	}
	const q = `
INSERT INTO parsed_clauses
  (id, regulation_id, clause_id, rule_text, conditions, penalties, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (regulation_id, clause_id) DO UPDATE SET
  rule_text=EXCLUDED.rule_text,
  conditions=EXCLUDED.conditions,
  penalties=EXCLUDED.penalties;`
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, c := range clauses {
		if _, err := tx.ExecContext(ctx, q, c.ID, c.RegulationID, c.ClauseID, c.Rule, c.Conditions, c.Penalties, now); err != nil {
			return fmt.Errorf("upsert clause %s/%s: %w", c.RegulationID, c.ClauseID, err)
		}
	}
	return tx.Commit()
}
