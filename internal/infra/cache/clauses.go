package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

const clausePrefix = "audit:clauses:"

// ClauseStore keeps parsed clauses in one hash per regulation, field = clause id.
type ClauseStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClauseStore returns a store whose hashes expire after ttl; zero keeps them forever.
func NewClauseStore(rdb *redis.Client, ttl time.Duration) *ClauseStore {
	return &ClauseStore{rdb: rdb, ttl: ttl}
}

func clauseKey(regulationID string) string { return clausePrefix + regulationID }

func (s *ClauseStore) FindByRegulations(ctx context.Context, regulationIDs []string) ([]audit.ParsedClause, error) {
	if len(regulationIDs) == 0 {
		return nil, nil
	}
	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(regulationIDs))
	for i, id := range regulationIDs {
		cmds[i] = pipe.HGetAll(ctx, clauseKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis find clauses: %w", err)
	}

	out := make([]audit.ParsedClause, 0)
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		decoded, err := decodeClauses(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded...)
	}
	return out, nil
}

// Upsert writes clauses keyed by (regulation, clause id). An existing entry keeps its id.
func (s *ClauseStore) Upsert(ctx context.Context, clauses []audit.ParsedClause) error {
	if len(clauses) == 0 {
		return nil
	}

	read := s.rdb.Pipeline()
	existing := make([]*redis.StringCmd, len(clauses))
	for i, c := range clauses {
		existing[i] = read.HGet(ctx, clauseKey(c.RegulationID), c.ClauseID)
	}
	if _, err := read.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis read clauses: %w", err)
	}

	write := s.rdb.TxPipeline()
	touched := map[string]bool{}
	for i, c := range clauses {
		prev, _ := existing[i].Result()
		merged, err := mergeClause(prev, c)
		if err != nil {
			return err
		}
		body, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		key := clauseKey(c.RegulationID)
		write.HSet(ctx, key, c.ClauseID, body)
		touched[key] = true
	}
	if s.ttl > 0 {
		for key := range touched {
			write.Expire(ctx, key, s.ttl)
		}
	}
	if _, err := write.Exec(ctx); err != nil {
		return fmt.Errorf("redis upsert clauses: %w", err)
	}
	return nil
}

// mergeClause applies c over a previously stored encoding, keeping the stored id.
func mergeClause(prev string, c audit.ParsedClause) (audit.ParsedClause, error) {
	if prev == "" {
		return c, nil
	}
	var old audit.ParsedClause
	if err := json.Unmarshal([]byte(prev), &old); err != nil {
		return c, nil
	}
	if old.ID != "" {
		c.ID = old.ID
	}
	return c, nil
}

func decodeClauses(fields map[string]string) ([]audit.ParsedClause, error) {
	out := make([]audit.ParsedClause, 0, len(fields))
	for field, raw := range fields {
		var c audit.ParsedClause
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("decode clause %s: %w", field, err)
		}
		out = append(out, c)
	}
	return out, nil
}
