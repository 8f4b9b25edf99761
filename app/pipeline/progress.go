package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepErrored StepStatus = "error"
)

type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunErrored RunStatus = "error"
)

// StepDef names one stage of a pipeline run.
type StepDef struct {
	ID    string
	Label string
}

// Step is the tracked state of one stage within a run.
type Step struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Status     StepStatus `json:"status"`
	Detail     string     `json:"detail,omitempty"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Progress is a snapshot of one pipeline run.
type Progress struct {
	RunID       string     `json:"runId"`
	Mode        string     `json:"mode"`
	Status      RunStatus  `json:"status"`
	Steps       []Step     `json:"steps"`
	CurrentStep int        `json:"currentStep"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Tracker records step-by-step progress of pipeline runs and fans snapshots
// out to subscribers. Each Tracker is independent; a new run replaces the
// previous snapshot.
type Tracker struct {
	mu        sync.Mutex
	current   *Progress
	listeners map[int]func(Progress)
	nextID    int
}

func NewTracker() *Tracker {
	return &Tracker{listeners: make(map[int]func(Progress))}
}

// Progress returns a copy of the latest run snapshot. The second return is
// false before the first run starts.
func (t *Tracker) Progress() (Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return Progress{}, false
	}
	return t.snapshotLocked(), true
}

// Running reports whether a run is currently in flight.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil && t.current.Status == RunRunning
}

// Subscribe registers a listener that receives a snapshot on every mutation.
// If a run snapshot already exists the listener gets it immediately. The
// returned function removes the listener.
func (t *Tracker) Subscribe(listener func(Progress)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = listener

	var initial *Progress
	if t.current != nil {
		snapshot := t.snapshotLocked()
		initial = &snapshot
	}
	t.mu.Unlock()

	if initial != nil {
		notify(listener, *initial)
	}

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Start begins a new run with all steps pending and returns the run id.
func (t *Tracker) Start(mode string, steps []StepDef) string {
	runID := "run_" + uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()
	tracked := make([]Step, len(steps))
	for i, def := range steps {
		tracked[i] = Step{ID: def.ID, Label: def.Label, Status: StepPending}
	}
	t.current = &Progress{
		RunID:       runID,
		Mode:        mode,
		Status:      RunRunning,
		Steps:       tracked,
		CurrentStep: -1,
		StartedAt:   time.Now(),
	}
	t.emitLocked()

	return runID
}

func (t *Tracker) StepStart(stepID, detail string) {
	t.mutateStep(stepID, func(s *Step, p *Progress, idx int) {
		if s.Status != StepPending {
			return
		}
		now := time.Now()
		s.Status = StepRunning
		s.StartedAt = &now
		if detail != "" {
			s.Detail = detail
		}
		p.CurrentStep = idx
	})
}

func (t *Tracker) StepDone(stepID, detail string) {
	t.finishStep(stepID, StepDone, detail)
}

func (t *Tracker) StepError(stepID, detail string) {
	t.finishStep(stepID, StepErrored, detail)
}

// Finish marks the run terminal. A nil error means success.
func (t *Tracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil || t.current.Status != RunRunning {
		return
	}

	now := time.Now()
	t.current.FinishedAt = &now
	if err != nil {
		t.current.Status = RunErrored
		t.current.Error = err.Error()
	} else {
		t.current.Status = RunDone
	}
	t.emitLocked()
}

func (t *Tracker) finishStep(stepID string, status StepStatus, detail string) {
	t.mutateStep(stepID, func(s *Step, _ *Progress, _ int) {
		// Terminal states never regress.
		if s.Status == StepDone || s.Status == StepErrored {
			return
		}
		now := time.Now()
		s.Status = status
		s.FinishedAt = &now
		if detail != "" {
			s.Detail = detail
		}
	})
}

func (t *Tracker) mutateStep(stepID string, fn func(s *Step, p *Progress, idx int)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A finished run accepts no further step transitions.
	if t.current == nil || t.current.Status != RunRunning {
		return
	}
	for i := range t.current.Steps {
		if t.current.Steps[i].ID == stepID {
			fn(&t.current.Steps[i], t.current, i)
			t.emitLocked()
			return
		}
	}
}

func (t *Tracker) snapshotLocked() Progress {
	snapshot := *t.current
	snapshot.Steps = make([]Step, len(t.current.Steps))
	copy(snapshot.Steps, t.current.Steps)
	return snapshot
}

// emitLocked must be called with t.mu held. Listeners run synchronously on
// a snapshot copy, so they never see later mutations.
func (t *Tracker) emitLocked() {
	snapshot := t.snapshotLocked()
	for _, listener := range t.listeners {
		notify(listener, snapshot)
	}
}

func notify(listener func(Progress), snapshot Progress) {
	defer func() {
		// A panicking listener must not take down the pipeline.
		_ = recover()
	}()
	listener(snapshot)
}
