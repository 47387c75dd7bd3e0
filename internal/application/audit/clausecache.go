package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/automaton-audit/internal/config"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/metrics"
)

const upsertTimeout = 30 * time.Second

// ClauseCache fronts the clause repository. Reads are advisory and writes happen in the background.
type ClauseCache struct {
	repo domain.ClauseRepository
	log  logrus.FieldLogger
	wg   sync.WaitGroup
}

func NewClauseCache(repo domain.ClauseRepository, log logrus.FieldLogger) *ClauseCache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ClauseCache{repo: repo, log: log}
}

// Lookup returns cached clauses for the given regulations. On store failure it
// returns an empty slice and the error, which callers treat as a warning.
func (c *ClauseCache) Lookup(ctx context.Context, regulationIDs []string) ([]domain.ParsedClause, error) {
	if len(regulationIDs) == 0 {
		return nil, nil
	}
	clauses, err := c.repo.FindByRegulations(ctx, regulationIDs)
	if err != nil {
		metrics.ClauseCacheLookups.WithLabelValues("error").Inc()
		return []domain.ParsedClause{}, fmt.Errorf("clause cache lookup: %w", err)
	}
	if len(clauses) == 0 {
		metrics.ClauseCacheLookups.WithLabelValues("miss").Inc()
	} else {
		metrics.ClauseCacheLookups.WithLabelValues("hit").Inc()
	}
	return clauses, nil
}

// UpsertAsync writes clauses in the background, keyed on (regulation_id, clause_id).
func (c *ClauseCache) UpsertAsync(clauses []domain.ParsedClause) {
	if len(clauses) == 0 {
		return
	}
	batch := append([]domain.ParsedClause(nil), clauses...)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), upsertTimeout)
		defer cancel()
		if err := c.repo.Upsert(ctx, batch); err != nil {
			config.LogError(c.log, "audit", "ClauseCache.UpsertAsync", "cache clauses", map[string]any{"count": len(batch)}, err)
		}
	}()
}

// Wait blocks until every pending upsert has finished.
func (c *ClauseCache) Wait() {
	c.wg.Wait()
}

// partition splits regulations into those with cached clauses and those without.
func partition(regs []string, cached []domain.ParsedClause) (hit map[string]bool, missing []string) {
	hit = make(map[string]bool, len(cached))
	for _, cl := range cached {
		hit[cl.RegulationID] = true
	}
	for _, id := range regs {
		if !hit[id] {
			missing = append(missing, id)
		}
	}
	return hit, missing
}
