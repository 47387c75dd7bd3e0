package audit

import (
	"sync"
	"time"

	domain "github.com/bryanwahyu/automaton-audit/internal/domain/audit"
)

// Tracker owns the live progress of one orchestrator and fans snapshots out to subscribers.
type Tracker struct {
	mu      sync.RWMutex
	p       domain.Progress
	subs    map[int]chan domain.Progress
	nextSub int
	now     func() time.Time
}

func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		p:    domain.Progress{Step: domain.StepIdle, Logs: []domain.LogEntry{}},
		subs: map[int]chan domain.Progress{},
		now:  now,
	}
}

// Reset starts a fresh run from idle.
func (t *Tracker) Reset(runID string) {
	t.mu.Lock()
	started := t.now()
	t.p = domain.Progress{
		RunID:     runID,
		Step:      domain.StepIdle,
		Logs:      []domain.LogEntry{},
		StartedAt: &started,
		Paused:    t.p.Paused,
	}
	t.mu.Unlock()
	t.publish()
}

// Advance moves to step (or updates the current step). Backward moves are ignored.
func (t *Tracker) Advance(step domain.Step, current, total int, msg string) bool {
	t.mu.Lock()
	if step != t.p.Step && !t.p.Step.CanAdvance(step) {
		t.mu.Unlock()
		return false
	}
	t.p.Step = step
	t.p.CurrentItem = current
	t.p.TotalItems = total
	t.p.Message = msg
	t.mu.Unlock()
	t.publish()
	return true
}

// Item updates the counters within the current step.
func (t *Tracker) Item(current, total int, msg string) {
	t.mu.Lock()
	t.p.CurrentItem = current
	t.p.TotalItems = total
	t.p.Message = msg
	t.mu.Unlock()
	t.publish()
}

// Log appends an entry, keeping only the newest MaxLogEntries.
func (t *Tracker) Log(typ domain.LogType, msg string) {
	t.mu.Lock()
	t.p.Logs = append(t.p.Logs, domain.LogEntry{Type: typ, Message: msg, Timestamp: t.now()})
	if n := len(t.p.Logs); n > domain.MaxLogEntries {
		t.p.Logs = append([]domain.LogEntry(nil), t.p.Logs[n-domain.MaxLogEntries:]...)
	}
	t.mu.Unlock()
	t.publish()
}

func (t *Tracker) SetCategories(c []string) {
	t.mu.Lock()
	t.p.DetectedCategories = append([]string(nil), c...)
	t.mu.Unlock()
	t.publish()
}

func (t *Tracker) SetPaused(paused bool) {
	t.mu.Lock()
	t.p.Paused = paused
	t.mu.Unlock()
	t.publish()
}

// Fail moves to the terminal error state.
func (t *Tracker) Fail(msg string) {
	t.mu.Lock()
	t.p.Step = domain.StepError
	t.p.Message = msg
	t.p.Error = msg
	t.p.Logs = append(t.p.Logs, domain.LogEntry{Type: domain.LogError, Message: msg, Timestamp: t.now()})
	if n := len(t.p.Logs); n > domain.MaxLogEntries {
		t.p.Logs = append([]domain.LogEntry(nil), t.p.Logs[n-domain.MaxLogEntries:]...)
	}
	t.mu.Unlock()
	t.publish()
}

// Snapshot returns a copy safe to hand to other goroutines.
func (t *Tracker) Snapshot() domain.Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() domain.Progress {
	p := t.p
	p.Logs = append([]domain.LogEntry(nil), t.p.Logs...)
	p.DetectedCategories = append([]string(nil), t.p.DetectedCategories...)
	if t.p.StartedAt != nil {
		s := *t.p.StartedAt
		p.StartedAt = &s
	}
	return p
}

// Subscribe returns a channel receiving the latest snapshot after each change.
// Slow readers only ever see the newest snapshot.
func (t *Tracker) Subscribe() (<-chan domain.Progress, func()) {
	ch := make(chan domain.Progress, 1)
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	ch <- t.snapshotLocked()
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			close(ch)
			t.mu.Unlock()
		})
	}
}

func (t *Tracker) publish() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.subs) == 0 {
		return
	}
	snap := t.snapshotLocked()
	for _, ch := range t.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
