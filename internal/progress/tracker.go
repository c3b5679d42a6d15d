package progress

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/orbitlabs/orbit-api/internal/model"
)

// ErrStepInProgress is returned by Start when another step is already
// running. Overlapping steps mean the caller forgot to finish the previous
// one, and silently proceeding would corrupt the timing data.
var ErrStepInProgress = errors.New("a step is already in progress")

// ErrUnknownStep is returned for step IDs the tracker was not created with.
var ErrUnknownStep = errors.New("unknown step")

// Tracker records per-step progress and timing for one workflow run. A run
// creates a fresh tracker; trackers are never reused across runs.
type Tracker struct {
	mu      sync.Mutex
	todos   []model.Todo
	byID    map[int]int
	current int // 0 when idle, todo IDs start at 1
	started time.Time
}

// NewTracker builds a tracker from an ordered list of step descriptions.
// Steps are assigned IDs 1..n in plan order.
func NewTracker(steps []string) *Tracker {
	t := &Tracker{
		todos:   make([]model.Todo, len(steps)),
		byID:    make(map[int]int, len(steps)),
		started: time.Now(),
	}
	for i, content := range steps {
		id := i + 1
		t.todos[i] = model.Todo{ID: id, Content: content, Status: model.TodoPending}
		t.byID[id] = i
	}
	return t
}

// Start marks a step as in progress. Only one step may run at a time.
func (t *Tracker) Start(id int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStep, id)
	}
	if t.current != 0 {
		return fmt.Errorf("%w: step %d still running, cannot start %d", ErrStepInProgress, t.current, id)
	}

	t.todos[idx].Status = model.TodoInProgress
	t.todos[idx].StartedAt = timePtr(time.Now())
	t.current = id
	return nil
}

// Complete finishes a step successfully.
func (t *Tracker) Complete(id int) error {
	return t.finish(id, model.TodoCompleted, "")
}

// Fail finishes a step with an error note.
func (t *Tracker) Fail(id int, reason string) error {
	return t.finish(id, model.TodoFailed, reason)
}

func (t *Tracker) finish(id int, status model.TodoStatus, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStep, id)
	}

	now := time.Now()
	todo := &t.todos[idx]
	todo.Status = status
	todo.Error = errMsg
	todo.CompletedAt = timePtr(now)
	if todo.StartedAt != nil {
		todo.DurationMs = now.Sub(*todo.StartedAt).Milliseconds()
	}
	if t.current == id {
		t.current = 0
	}
	return nil
}

// ForceComplete clears a lingering step so the run can continue after a
// recovered panic. Callers log the anomaly before calling this. Returns the
// ID of the abandoned step, or 0 if nothing was running.
func (t *Tracker) ForceComplete() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == 0 {
		return 0
	}
	id := t.current
	idx := t.byID[id]
	now := time.Now()
	t.todos[idx].Status = model.TodoFailed
	t.todos[idx].Error = "step abandoned"
	t.todos[idx].CompletedAt = timePtr(now)
	if t.todos[idx].StartedAt != nil {
		t.todos[idx].DurationMs = now.Sub(*t.todos[idx].StartedAt).Milliseconds()
	}
	t.current = 0
	return id
}

// Current returns the ID of the running step, or 0.
func (t *Tracker) Current() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Snapshot returns a copy of the todo list for reporting.
func (t *Tracker) Snapshot() []model.Todo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Todo, len(t.todos))
	copy(out, t.todos)
	return out
}

// Metrics summarises step outcomes for the execution report.
func (t *Tracker) Metrics() model.TodoMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := model.TodoMetrics{Total: len(t.todos)}
	var totalMs int64
	var finished int
	for _, todo := range t.todos {
		switch todo.Status {
		case model.TodoCompleted:
			m.Completed++
		case model.TodoFailed:
			m.Failed++
		case model.TodoInProgress:
			m.InProgress++
		default:
			m.Pending++
		}
		if todo.CompletedAt != nil {
			totalMs += todo.DurationMs
			finished++
		}
	}
	if m.Total > 0 {
		m.CompletionRate = float64(m.Completed) / float64(m.Total) * 100
	}
	if finished > 0 {
		m.AvgDurationMs = totalMs / int64(finished)
	}
	return m
}

func timePtr(t time.Time) *time.Time { return &t }
