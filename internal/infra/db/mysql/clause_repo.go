package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

type ClauseRepository struct {
	db *sql.DB
}

func NewClauseRepository(db *sql.DB) *ClauseRepository {
	return &ClauseRepository{db: db}
}

func (r *ClauseRepository) FindByRegulations(ctx context.Context, regulationIDs []string) ([]domain.ParsedClause, error) {
	if len(regulationIDs) == 0 {
		return nil, nil
	}
	marks, args := inArgs(regulationIDs)
	q := fmt.Sprintf(`
SELECT id, regulation_id, clause_id, rule_text, conditions, penalties
FROM parsed_clauses
WHERE regulation_id IN (%s)
ORDER BY created_at ASC, clause_id ASC;`, marks)

	rows, err := r.db.QueryContext(ctx, q, args...)
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

// Upsert writes clauses in one transaction; the (regulation_id, clause_id) unique key decides conflicts.
func (r *ClauseRepository) Upsert(ctx context.Context, clauses []domain.ParsedClause) error {
	if len(clauses) == 0 {
		return nil
	}
	const q = `
INSERT INTO parsed_clauses
  (id, regulation_id, clause_id, rule_text, conditions, penalties, created_at)
VALUES (?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  rule_text=VALUES(rule_text), conditions=VALUES(conditions), penalties=VALUES(penalties);
`
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range clauses {
		if _, err := stmt.ExecContext(ctx, c.ID, c.RegulationID, c.ClauseID, c.Rule, c.Conditions, c.Penalties, now); err != nil {
			return fmt.Errorf("upsert clause %s/%s: %w", c.RegulationID, c.ClauseID, err)
		}
	}
	return tx.Commit()
}
