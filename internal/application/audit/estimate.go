package audit

import (
	"fmt"
	"math"
	"time"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

// regulationEstimate is the assumed regulation count before selection has run.
const regulationEstimate = 5

type StepEstimate struct {
	Step      domain.Step `json:"step"`
	Calls     int         `json:"calls"`
	Seconds   int         `json:"seconds"`
	Formatted string      `json:"formatted"`
}

// Estimate is a rough duration forecast driven by the call spacing.
type Estimate struct {
	Steps        []StepEstimate `json:"steps"`
	TotalCalls   int            `json:"totalCalls"`
	TotalSeconds int            `json:"totalSeconds"`
}

// ETA is an Estimate measured against elapsed time.
type ETA struct {
	Estimate
	ElapsedSeconds   int     `json:"elapsedSeconds"`
	RemainingSeconds int     `json:"remainingSeconds"`
	Formatted        string  `json:"formatted"`
	ProgressPercent  float64 `json:"progressPercent"`
}

// EstimateRun forecasts a run over txCount transactions with interval between calls.
func EstimateRun(txCount int, interval time.Duration) Estimate {
	if txCount <= 0 {
		txCount = 1
	}
	plan := []struct {
		step  domain.Step
		calls int
	}{
		{domain.StepAnalyzingData, 1},
		{domain.StepFetchingRegulations, 2},
		{domain.StepFilteringRegulations, 1},
		{domain.StepParsingClauses, regulationEstimate * 3},
		{domain.StepMappingCompliance, txCount * 5},
		{domain.StepGeneratingReport, 1},
	}

	var e Estimate
	ms := float64(interval.Milliseconds())
	for _, p := range plan {
		secs := int(math.Ceil(float64(p.calls) * ms / 1000))
		e.Steps = append(e.Steps, StepEstimate{Step: p.step, Calls: p.calls, Seconds: secs, Formatted: FormatSeconds(secs)})
		e.TotalCalls += p.calls
		e.TotalSeconds += secs
	}
	return e
}

// At measures the estimate against elapsed run time.
func (e Estimate) At(elapsed time.Duration) ETA {
	el := int(elapsed / time.Second)
	remaining := e.TotalSeconds - el
	if remaining < 0 {
		remaining = 0
	}
	pct := 0.0
	if e.TotalSeconds > 0 {
		pct = math.Min(100, float64(el)/float64(e.TotalSeconds)*100)
	}
	return ETA{
		Estimate:         e,
		ElapsedSeconds:   el,
		RemainingSeconds: remaining,
		Formatted:        FormatSeconds(remaining),
		ProgressPercent:  pct,
	}
}

// FormatSeconds renders "42s" or "3m 5s".
func FormatSeconds(secs int) string {
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
