package progress

import (
	"errors"
	"testing"

	"github.com/orbitlabs/orbit-api/internal/model"
)

func planFixture() []string {
	return []string{
		"Plan the run",
		"Discover pending orders",
		"Process images",
	}
}

func TestTrackerHappyPath(t *testing.T) {
	tr := NewTracker(planFixture())

	if err := tr.Start(1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tr.Complete(1); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := tr.Start(2); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if err := tr.Fail(2, "no pending orders"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	m := tr.Metrics()
	if m.Completed != 1 || m.Failed != 1 || m.Pending != 1 {
		t.Errorf("metrics = %+v", m)
	}
	// one of three steps completed, reported as a percentage
	if m.CompletionRate < 33.3 || m.CompletionRate > 33.4 {
		t.Errorf("completion rate = %v, want ~33.3", m.CompletionRate)
	}

	snap := tr.Snapshot()
	if snap[1].Error != "no pending orders" {
		t.Errorf("failed step should carry the reason, got %q", snap[1].Error)
	}
}

func TestStartWhileRunningFails(t *testing.T) {
	tr := NewTracker(planFixture())

	if err := tr.Start(1); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := tr.Start(2)
	if !errors.Is(err, ErrStepInProgress) {
		t.Errorf("expected ErrStepInProgress, got %v", err)
	}
}

func TestStartUnknownStep(t *testing.T) {
	tr := NewTracker(planFixture())
	if err := tr.Start(99); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("expected ErrUnknownStep, got %v", err)
	}
}

func TestForceComplete(t *testing.T) {
	tr := NewTracker(planFixture())

	if id := tr.ForceComplete(); id != 0 {
		t.Errorf("nothing running, got %d", id)
	}

	if err := tr.Start(3); err != nil {
		t.Fatalf("start: %v", err)
	}
	if id := tr.ForceComplete(); id != 3 {
		t.Errorf("expected step 3, got %d", id)
	}
	if tr.Current() != 0 {
		t.Error("tracker still has a current step after force complete")
	}

	// the abandoned step counts as failed
	if m := tr.Metrics(); m.Failed != 1 {
		t.Errorf("metrics = %+v", m)
	}

	// and a new step can start
	if err := tr.Start(1); err != nil {
		t.Errorf("start after force complete: %v", err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewTracker(planFixture())
	snap := tr.Snapshot()
	snap[0].Status = model.TodoCompleted

	if tr.Snapshot()[0].Status == model.TodoCompleted {
		t.Error("mutating a snapshot leaked into the tracker")
	}
}
