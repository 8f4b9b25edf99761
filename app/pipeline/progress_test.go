package pipeline

import (
	"errors"
	"testing"
)

var testSteps = []StepDef{
	{ID: "one", Label: "Step one"},
	{ID: "two", Label: "Step two"},
}

func TestStartInitializesRun(t *testing.T) {
	tracker := NewTracker()

	runID := tracker.Start("full", testSteps)
	if runID == "" {
		t.Fatal("expected a run id")
	}

	progress, ok := tracker.Progress()
	if !ok {
		t.Fatal("expected a progress snapshot")
	}
	if progress.Status != RunRunning {
		t.Errorf("expected running status, got %q", progress.Status)
	}
	if progress.CurrentStep != -1 {
		t.Errorf("expected current step -1, got %d", progress.CurrentStep)
	}
	for _, step := range progress.Steps {
		if step.Status != StepPending {
			t.Errorf("expected step %s pending, got %q", step.ID, step.Status)
		}
	}
	if !tracker.Running() {
		t.Error("expected tracker to report running")
	}
}

func TestStepTransitions(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("full", testSteps)

	tracker.StepStart("one", "working")
	progress, _ := tracker.Progress()
	if progress.Steps[0].Status != StepRunning {
		t.Errorf("expected running, got %q", progress.Steps[0].Status)
	}
	if progress.Steps[0].StartedAt == nil {
		t.Error("expected start timestamp")
	}
	if progress.CurrentStep != 0 {
		t.Errorf("expected current step 0, got %d", progress.CurrentStep)
	}

	tracker.StepDone("one", "42 articles")
	progress, _ = tracker.Progress()
	if progress.Steps[0].Status != StepDone {
		t.Errorf("expected done, got %q", progress.Steps[0].Status)
	}
	if progress.Steps[0].Detail != "42 articles" {
		t.Errorf("unexpected detail %q", progress.Steps[0].Detail)
	}
	if progress.Steps[0].FinishedAt == nil {
		t.Error("expected finish timestamp")
	}
}

func TestTerminalStepsNeverRegress(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("full", testSteps)

	tracker.StepStart("one", "")
	tracker.StepError("one", "boom")
	tracker.StepDone("one", "should be ignored")
	tracker.StepStart("one", "")

	progress, _ := tracker.Progress()
	if progress.Steps[0].Status != StepErrored {
		t.Errorf("expected error status to stick, got %q", progress.Steps[0].Status)
	}
	if progress.Steps[0].Detail != "boom" {
		t.Errorf("expected original detail, got %q", progress.Steps[0].Detail)
	}
}

func TestFinishedRunIgnoresStepTransitions(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("full", testSteps)
	tracker.Finish(nil)

	tracker.StepStart("one", "too late")
	tracker.StepDone("two", "also too late")

	progress, _ := tracker.Progress()
	if progress.Status != RunDone {
		t.Errorf("expected done status, got %q", progress.Status)
	}
	if progress.Steps[0].Status != StepPending {
		t.Errorf("expected step one to stay pending, got %q", progress.Steps[0].Status)
	}
	if progress.Steps[1].Status != StepPending {
		t.Errorf("expected step two to stay pending, got %q", progress.Steps[1].Status)
	}
	if progress.CurrentStep != -1 {
		t.Errorf("expected current step -1, got %d", progress.CurrentStep)
	}
}

func TestFinishWithError(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("full", testSteps)

	tracker.Finish(errors.New("persistence unreachable"))

	progress, _ := tracker.Progress()
	if progress.Status != RunErrored {
		t.Errorf("expected error status, got %q", progress.Status)
	}
	if progress.Error != "persistence unreachable" {
		t.Errorf("unexpected error message %q", progress.Error)
	}
	if progress.FinishedAt == nil {
		t.Error("expected finish timestamp")
	}
	if tracker.Running() {
		t.Error("expected tracker to report not running")
	}

	// A second Finish must not flip a terminal run.
	tracker.Finish(nil)
	progress, _ = tracker.Progress()
	if progress.Status != RunErrored {
		t.Errorf("expected terminal status to stick, got %q", progress.Status)
	}
}

func TestSubscribeReceivesMutations(t *testing.T) {
	tracker := NewTracker()

	var received []Progress
	unsubscribe := tracker.Subscribe(func(p Progress) {
		received = append(received, p)
	})

	tracker.Start("collect", testSteps)
	tracker.StepStart("one", "")
	tracker.StepDone("one", "")
	tracker.Finish(nil)

	if len(received) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(received))
	}
	if received[len(received)-1].Status != RunDone {
		t.Errorf("expected final notification to be done, got %q", received[len(received)-1].Status)
	}

	unsubscribe()
	tracker.Start("collect", testSteps)
	if len(received) != 4 {
		t.Errorf("expected no notifications after unsubscribe, got %d", len(received))
	}
}

func TestLateSubscriberGetsSnapshot(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("full", testSteps)
	tracker.StepStart("one", "")

	var got *Progress
	unsubscribe := tracker.Subscribe(func(p Progress) {
		if got == nil {
			got = &p
		}
	})
	defer unsubscribe()

	if got == nil {
		t.Fatal("expected immediate snapshot for late subscriber")
	}
	if got.Steps[0].Status != StepRunning {
		t.Errorf("expected snapshot to show running step, got %q", got.Steps[0].Status)
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("full", testSteps)

	before, _ := tracker.Progress()
	tracker.StepStart("one", "")
	tracker.StepDone("one", "")

	if before.Steps[0].Status != StepPending {
		t.Errorf("snapshot mutated by later transitions: %q", before.Steps[0].Status)
	}
}

func TestPanickingListenerDoesNotBreakOthers(t *testing.T) {
	tracker := NewTracker()

	calls := 0
	tracker.Subscribe(func(Progress) { panic("bad listener") })
	tracker.Subscribe(func(Progress) { calls++ })

	tracker.Start("full", testSteps)
	tracker.Finish(nil)

	if calls != 2 {
		t.Errorf("expected healthy listener to get 2 notifications, got %d", calls)
	}
}
