package audit

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/automaton-audit/internal/application"
	appai "github.com/bryanwahyu/automaton-audit/internal/application/ai"
	"github.com/bryanwahyu/automaton-audit/internal/application/pipeline"
	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/regulations"
	"github.com/bryanwahyu/automaton-audit/internal/domain/runerrors"
)

// Deps are the collaborators shared by every tenant's orchestrator.
type Deps struct {
	Regulations regulations.Repository
	Cache       *ClauseCache
	Reports     domain.ReportRepository
	RunErrors   runerrors.Repository
	Lock        domain.RunLock

	Categories     domain.KeywordTable
	Expansion      domain.KeywordTable
	MaxRegulations int
	ContentLimit   int
	Strategy       string

	Log logrus.FieldLogger
}

// NewOrchestrator wires a tenant's orchestrator. caller and gate are the tenant's own,
// so pausing one tenant never blocks another.
func NewOrchestrator(tenant string, caller ai.Caller, gate ai.Pauser, interval func() time.Duration, d Deps) *Orchestrator {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("tenant", tenant)

	def := d.Strategy
	if def == "" {
		def = StrategyBatch
	}
	clock := application.SystemClock{}
	return &Orchestrator{
		Tenant:   tenant,
		Tracker:  NewTracker(clock.Now),
		Store:    pipeline.NewStore(),
		Selector: NewSelector(d.Regulations, d.Expansion, d.MaxRegulations),
		Cache:    d.Cache,
		Strategies: map[string]Strategy{
			StrategyBatch:   &BatchStrategy{Invoker: NewBatchInvoker(caller, d.Cache, d.ContentLimit, log)},
			StrategyPerItem: NewPerItemStrategy(caller, d.Cache, log),
		},
		Default:    def,
		Narrator:   appai.NewService(caller),
		Categories: d.Categories,
		Gate:       gate,
		Interval:   interval,
		Reports:    d.Reports,
		RunErrors:  d.RunErrors,
		Lock:       d.Lock,
		Clock:      clock,
		Log:        log,
	}
}
