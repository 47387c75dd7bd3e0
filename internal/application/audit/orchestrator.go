package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/automaton-audit/internal/application"
	"github.com/bryanwahyu/automaton-audit/internal/application/pipeline"
	"github.com/bryanwahyu/automaton-audit/internal/config"
	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
	"github.com/bryanwahyu/automaton-audit/internal/domain/runerrors"
	"github.com/bryanwahyu/automaton-audit/internal/infra/ai/prompt"
	"github.com/bryanwahyu/automaton-audit/internal/metrics"
)

const (
	cachedPlaceholderClauses = 3
	persistTimeout           = 5 * time.Second
)

// Narrator writes the free-text report narrative.
type Narrator interface {
	Narrate(ctx context.Context, in prompt.NarrativeInput, onRetry func(int, time.Duration)) (string, error)
}

// Options tune a single run.
type Options struct {
	// Strategy names a registered strategy; empty uses the default.
	Strategy string
}

// Orchestrator drives one tenant's audit runs through the fixed step sequence.
// At most one run is active per instance.
type Orchestrator struct {
	Tenant     string
	Tracker    *Tracker
	Store      *pipeline.Store
	Selector   *Selector
	Cache      *ClauseCache
	Strategies map[string]Strategy
	Default    string
	Narrator   Narrator
	Categories domain.KeywordTable
	Gate       ai.Pauser
	Interval   func() time.Duration

	// Optional persistence.
	Reports   domain.ReportRepository
	RunErrors runerrors.Repository
	Lock      domain.RunLock

	Clock application.Clock
	NewID func() string
	Log   logrus.FieldLogger

	running atomic.Bool
}

// Running reports whether a run is in flight.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Run audits txs with the default strategy.
func (o *Orchestrator) Run(ctx context.Context, txs []domain.Transaction) (*domain.AuditReport, error) {
	return o.RunWith(ctx, txs, Options{})
}

// RunWith audits txs. On failure the progress ends in the error step and the report is nil.
func (o *Orchestrator) RunWith(ctx context.Context, txs []domain.Transaction, opts Options) (report *domain.AuditReport, err error) {
	if len(txs) == 0 {
		return nil, domain.ErrNoTransactions
	}
	strategy, err := o.strategy(opts.Strategy)
	if err != nil {
		return nil, err
	}
	if !o.running.CompareAndSwap(false, true) {
		return nil, domain.ErrRunInProgress
	}
	defer o.running.Store(false)

	if o.Lock != nil {
		release, lerr := o.Lock.Acquire(ctx, o.Tenant)
		if lerr != nil {
			return nil, lerr
		}
		defer release()
	}

	runID := o.newID()
	start := o.now()
	o.Tracker.Reset(runID)
	o.Store.ClearRun()
	metrics.AuditRunsRunning.Inc()
	defer metrics.AuditRunsRunning.Dec()

	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = fmt.Errorf("audit run panicked: %v", r)
			o.fail(runID, err)
		}
		status := "complete"
		if err != nil {
			status = "error"
		}
		metrics.AuditRunsTotal.WithLabelValues(strategy.Name(), status).Inc()
		metrics.AuditRunDuration.WithLabelValues(strategy.Name()).Observe(o.now().Sub(start).Seconds())
	}()

	report, err = o.run(ctx, runID, txs, strategy)
	if err != nil {
		o.fail(runID, err)
		return nil, err
	}
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, runID string, txs []domain.Transaction, strategy Strategy) (*domain.AuditReport, error) {
	log := o.logger().WithFields(logrus.Fields{"tenant": o.Tenant, "run": runID, "strategy": strategy.Name()})

	// analyzing_data
	o.Tracker.Advance(domain.StepAnalyzingData, 0, 1, "Analyzing transaction data...")
	o.Tracker.Log(domain.LogInfo, fmt.Sprintf("Analyzing %d transactions", len(txs)))
	o.Store.SetTransactions(txs)
	categories := domain.DetectCategories(o.categoryTable(), txs)
	o.Tracker.SetCategories(categories)
	o.Tracker.Log(domain.LogSuccess, fmt.Sprintf("Detected categories: %s", strings.Join(categories, ", ")))

	// fetching_regulations
	o.Tracker.Advance(domain.StepFetchingRegulations, 0, 1, "Fetching relevant regulations...")
	o.Tracker.Log(domain.LogInfo, "Querying indexed regulations based on detected categories")
	sel, err := o.Selector.Select(ctx, categories)
	if err != nil {
		return nil, err
	}
	regs := sel.Regulations
	if sel.FellBack {
		o.Tracker.Log(domain.LogWarning, "No category-specific regulations found, using general regulations")
	} else {
		o.Tracker.Log(domain.LogSuccess, fmt.Sprintf("Found %d regulations matching categories: %s", len(regs), strings.Join(categories, ", ")))
	}

	// filtering_regulations
	o.Tracker.Advance(domain.StepFilteringRegulations, 0, 1, fmt.Sprintf("Filtered %d relevant regulations", len(regs)))
	o.Store.AddRegulations(regs)
	o.Tracker.Log(domain.LogSuccess, fmt.Sprintf("Loaded %d regulations for compliance checking", len(regs)))

	// parsing_clauses
	o.Tracker.Advance(domain.StepParsingClauses, 0, 1, "Processing compliance audit...")
	ids := make([]string, 0, len(regs))
	for _, r := range regs {
		ids = append(ids, r.ID)
	}
	cached, err := o.Cache.Lookup(ctx, ids)
	if err != nil {
		log.WithError(err).Warn("clause cache lookup failed")
		o.Tracker.Log(domain.LogWarning, fmt.Sprintf("Cache fetch failed: %v", errors.Unwrap(err)))
		cached = nil
	}
	if len(cached) > 0 {
		o.Tracker.Log(domain.LogInfo, fmt.Sprintf("Found %d cached clauses", len(cached)))
	}
	hit, _ := partition(ids, cached)
	var uncached = regs[:0:0]
	for _, r := range regs {
		if !hit[r.ID] {
			uncached = append(uncached, r)
		}
	}

	// mapping_compliance
	var (
		clauses = append([]domain.ParsedClause(nil), cached...)
		results []domain.ComplianceResult
		summary string
	)
	o.Tracker.Advance(domain.StepMappingCompliance, 0, 1, "Running compliance analysis...")
	if len(uncached) > 0 || len(cached) == 0 {
		if len(uncached) == 0 {
			uncached = regs
		}
		out, err := strategy.Evaluate(ctx, Workload{
			Transactions: txs,
			Regulations:  uncached,
			Cached:       cached,
			OnRetry:      o.onRetry,
			Report:       o.Tracker.Log,
			Item:         o.Tracker.Item,
		})
		if err != nil {
			return nil, err
		}
		if out.Malformed {
			log.Warn("model output malformed, fallback outcome used")
		}
		clauses = append(clauses, out.Clauses...)
		results = out.Results
		summary = out.Summary
	} else {
		o.Tracker.Log(domain.LogInfo, "All clauses cached, generating compliance results from cached data")
		results = o.placeholders(txs, cached)
	}
	o.Tracker.Item(1, 1, "Compliance mapping complete")
	o.Store.AddClauses(clauses)
	o.Store.SetResults(results)

	sum := domain.Summarize(results)
	o.Tracker.Log(domain.LogSuccess, fmt.Sprintf("Compliance mapping complete: %d compliant, %d violations, %d warnings", sum.Compliant, sum.Violations, sum.Warnings))

	// generating_report
	o.Tracker.Advance(domain.StepGeneratingReport, 0, 1, "Generating final audit report...")
	o.Tracker.Log(domain.LogInfo, "Generating comprehensive audit report")
	narrative := ""
	if o.Narrator != nil {
		narrative, err = o.Narrator.Narrate(ctx, prompt.NarrativeInput{
			Transactions: len(txs),
			Regulations:  len(regs),
			Clauses:      len(clauses),
			Categories:   categories,
			Summary:      sum,
			BatchSummary: summary,
			Results:      results,
		}, o.onRetry)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.WithError(err).Warn("narrative generation failed")
			o.Tracker.Log(domain.LogWarning, "AI report enhancement skipped")
			narrative = ""
		}
	}

	report := domain.AssembleReport(o.newID(), o.now(), txs, clauses, results, narrative)
	o.Store.AddReport(report)
	if o.Reports != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		if err := o.Reports.Save(pctx, o.Tenant, &report); err != nil {
			config.LogError(log, "audit", "Orchestrator.run", "save report", map[string]any{"report": report.ID}, err)
		}
		cancel()
	}

	o.Tracker.Advance(domain.StepComplete, 1, 1, "Automated audit completed successfully!")
	o.Tracker.Log(domain.LogSuccess, fmt.Sprintf("Audit complete! %d checks performed", report.Summary.TotalChecked))
	o.Tracker.Log(domain.LogInfo, fmt.Sprintf("Final: %d compliant, %d violations, %d warnings",
		report.Summary.Compliant, report.Summary.Violations, report.Summary.Warnings))
	log.WithFields(logrus.Fields{"report": report.ID, "checks": report.Summary.TotalChecked}).Info("audit run complete")
	return &report, nil
}

// placeholders reviews every transaction against the first cached clauses without a remote call.
func (o *Orchestrator) placeholders(txs []domain.Transaction, cached []domain.ParsedClause) []domain.ComplianceResult {
	relevant := cached
	if len(relevant) > cachedPlaceholderClauses {
		relevant = relevant[:cachedPlaceholderClauses]
	}
	results := make([]domain.ComplianceResult, 0, len(txs)*len(relevant))
	for _, tx := range txs {
		for _, c := range relevant {
			results = append(results, domain.ComplianceResult{
				ID:            o.newID(),
				TransactionID: tx.ID,
				ClauseID:      c.ID,
				Status:        domain.StatusWarning,
				RiskLevel:     domain.RiskLow,
				Reasoning:     fmt.Sprintf("Transaction reviewed against %s. Manual verification recommended.", c.ClauseID),
			})
		}
	}
	return results
}

func (o *Orchestrator) onRetry(retry int, wait time.Duration) {
	o.Tracker.Log(domain.LogWarning, fmt.Sprintf("Rate limited, retrying in %s (attempt %d)", wait.Round(100*time.Millisecond), retry))
}

// fail moves the run into the error step and records it.
func (o *Orchestrator) fail(runID string, err error) {
	step := o.Tracker.Snapshot().Step
	o.Tracker.Fail(err.Error())
	log := o.logger().WithFields(logrus.Fields{"tenant": o.Tenant, "run": runID})
	config.LogError(log, "audit", "Orchestrator.Run", string(step), nil, err)

	if o.RunErrors == nil {
		return
	}
	details, _ := json.Marshal(map[string]any{"error": err.Error()})
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if perr := o.RunErrors.Save(ctx, &runerrors.RunError{
		TenantID:    o.Tenant,
		RunID:       runID,
		Step:        string(step),
		Message:     err.Error(),
		DetailsJSON: string(details),
		CreatedAt:   o.now(),
	}); perr != nil {
		config.LogError(log, "audit", "Orchestrator.fail", "save run error", nil, perr)
	}
}

// Pause holds the next remote call until Resume.
func (o *Orchestrator) Pause() {
	if o.Gate.Paused() {
		return
	}
	o.Gate.Pause()
	o.Tracker.SetPaused(true)
	o.Tracker.Log(domain.LogInfo, "Audit paused")
}

func (o *Orchestrator) Resume() {
	if !o.Gate.Paused() {
		return
	}
	o.Gate.Resume()
	o.Tracker.SetPaused(false)
	o.Tracker.Log(domain.LogInfo, "Audit resumed")
}

// Reset clears progress and the working set. It refuses while a run is active.
func (o *Orchestrator) Reset() error {
	if o.running.Load() {
		return domain.ErrRunInProgress
	}
	o.Tracker.Reset("")
	o.Store.ClearRun()
	return nil
}

// ETA estimates the remaining time of the current run.
func (o *Orchestrator) ETA() ETA {
	interval := 3 * time.Second
	if o.Interval != nil {
		interval = o.Interval()
	}
	est := EstimateRun(len(o.Store.Transactions()), interval)
	p := o.Tracker.Snapshot()
	if p.StartedAt == nil || p.Step == domain.StepIdle {
		return est.At(0)
	}
	return est.At(o.now().Sub(*p.StartedAt))
}

func (o *Orchestrator) strategy(name string) (Strategy, error) {
	if name == "" {
		name = o.Default
	}
	s, ok := o.Strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return s, nil
}

func (o *Orchestrator) categoryTable() domain.KeywordTable {
	if o.Categories == nil {
		return domain.DefaultCategoryTable
	}
	return o.Categories
}

func (o *Orchestrator) now() time.Time {
	if o.Clock == nil {
		return time.Now().UTC()
	}
	return o.Clock.Now()
}

func (o *Orchestrator) newID() string {
	if o.NewID == nil {
		return newID()
	}
	return o.NewID()
}

func (o *Orchestrator) logger() logrus.FieldLogger {
	if o.Log == nil {
		return logrus.StandardLogger()
	}
	return o.Log
}
