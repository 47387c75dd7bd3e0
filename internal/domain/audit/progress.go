package audit

import "time"

// Step is a state of the orchestrator. Steps only move forward within a run.
type Step string

const (
	StepIdle                 Step = "idle"
	StepAnalyzingData        Step = "analyzing_data"
	StepFetchingRegulations  Step = "fetching_regulations"
	StepFilteringRegulations Step = "filtering_regulations"
	StepParsingClauses       Step = "parsing_clauses"
	StepMappingCompliance    Step = "mapping_compliance"
	StepGeneratingReport     Step = "generating_report"
	StepComplete             Step = "complete"
	StepError                Step = "error"
)

var stepOrder = map[Step]int{
	StepIdle:                 0,
	StepAnalyzingData:        1,
	StepFetchingRegulations:  2,
	StepFilteringRegulations: 3,
	StepParsingClauses:       4,
	StepMappingCompliance:    5,
	StepGeneratingReport:     6,
	StepComplete:             7,
}

// CanAdvance reports whether moving from s to next is a legal transition.
func (s Step) CanAdvance(next Step) bool {
	if s == StepComplete || s == StepError {
		return false
	}
	if next == StepError {
		return true
	}
	cur, ok1 := stepOrder[s]
	nxt, ok2 := stepOrder[next]
	return ok1 && ok2 && nxt > cur
}

type LogType string

const (
	LogInfo    LogType = "info"
	LogSuccess LogType = "success"
	LogWarning LogType = "warning"
	LogError   LogType = "error"
)

// MaxLogEntries bounds Progress.Logs; older entries are dropped first.
const MaxLogEntries = 100

type LogEntry struct {
	Type      LogType   `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Progress is the live, user-facing state of one run.
type Progress struct {
	RunID              string     `json:"runId,omitempty"`
	Step               Step       `json:"step"`
	CurrentItem        int        `json:"currentItem"`
	TotalItems         int        `json:"totalItems"`
	Message            string     `json:"message"`
	Logs               []LogEntry `json:"logs"`
	DetectedCategories []string   `json:"detectedCategories"`
	Paused             bool       `json:"paused"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	Error              string     `json:"error,omitempty"`
}
