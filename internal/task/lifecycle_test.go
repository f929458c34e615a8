package task

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"firestige.xyz/capturescope/internal/config"
)

// ---------------------------------------------------------------------------
// Mock Reporter implementations for lifecycle extension tests
// ---------------------------------------------------------------------------

type mockReporter struct {
	name string
}

func (r *mockReporter) Name() string                       { return r.name }
func (r *mockReporter) Init(_ map[string]any) error         { return nil }
func (r *mockReporter) Start(_ context.Context) error        { return nil }
func (r *mockReporter) Stop(_ context.Context) error          { return nil }
func (r *mockReporter) Flush(_ context.Context) error         { return nil }
func (r *mockReporter) Report(_ context.Context, _ *Result) error { return nil }

// pausableReporter is a mock reporter that implements Pausable.
type pausableReporter struct {
	mockReporter
	paused  atomic.Bool
	resumed atomic.Bool
}

func (r *pausableReporter) Pause() error {
	r.paused.Store(true)
	return nil
}

func (r *pausableReporter) Resume() error {
	r.resumed.Store(true)
	return nil
}

// reconfigurableReporter is a mock reporter that implements Reconfigurable.
type reconfigurableReporter struct {
	mockReporter
	lastConfig map[string]any
}

func (r *reconfigurableReporter) Reconfigure(cfg map[string]any) error {
	r.lastConfig = cfg
	return nil
}

// reconfigFailReporter always fails Reconfigure.
type reconfigFailReporter struct {
	mockReporter
}

func (r *reconfigFailReporter) Reconfigure(_ map[string]any) error {
	return fmt.Errorf("reconfigure refused")
}

// newLifecycleTestTask creates a task wired with the given reporters, forced
// into Running state without actually starting worker goroutines — enough
// to exercise Pause/Resume/Reconfigure, which only touch Reporters.
func newLifecycleTestTask(reporters []Reporter) *Task {
	cfg := config.TaskConfig{
		ID:      "test-lifecycle",
		Workers: 1,
	}
	task := NewTask(cfg, passthroughProcess)
	task.Reporters = reporters

	task.mu.Lock()
	task.state = StateRunning
	task.mu.Unlock()

	return task
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestTask_Pause_Running(t *testing.T) {
	rep := &pausableReporter{mockReporter: mockReporter{name: "rep0"}}

	task := newLifecycleTestTask([]Reporter{rep})

	if err := task.Pause(); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}
	if task.State() != StatePaused {
		t.Errorf("expected StatePaused, got %s", task.State())
	}
	if !rep.paused.Load() {
		t.Error("expected reporter to be paused")
	}
}

func TestTask_Pause_NotRunning(t *testing.T) {
	task := newLifecycleTestTask(nil)
	task.mu.Lock()
	task.state = StateStopped
	task.mu.Unlock()

	if err := task.Pause(); err == nil {
		t.Error("expected error pausing a stopped task")
	}
}

func TestTask_Resume_Paused(t *testing.T) {
	rep := &pausableReporter{mockReporter: mockReporter{name: "rep0"}}

	task := newLifecycleTestTask([]Reporter{rep})

	if err := task.Pause(); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}

	if err := task.Resume(); err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	if task.State() != StateRunning {
		t.Errorf("expected StateRunning, got %s", task.State())
	}
	if !rep.resumed.Load() {
		t.Error("expected reporter to be resumed")
	}
}

func TestTask_Resume_NotPaused(t *testing.T) {
	task := newLifecycleTestTask(nil)

	if err := task.Resume(); err == nil {
		t.Error("expected error resuming a task that was never paused")
	}
}

func TestTask_Pause_NonPausableReporters(t *testing.T) {
	// A plain mockReporter doesn't implement Pausable — should be silently skipped.
	rep := &mockReporter{name: "rep0"}

	task := newLifecycleTestTask([]Reporter{rep})

	if err := task.Pause(); err != nil {
		t.Fatalf("Pause() with non-pausable reporters should succeed, got: %v", err)
	}
}

func TestTask_Reconfigure_Running(t *testing.T) {
	rep := &reconfigurableReporter{mockReporter: mockReporter{name: "kafka"}}

	task := newLifecycleTestTask([]Reporter{rep})

	newCfg := map[string]map[string]any{
		"kafka": {"topic": "new-topic", "batch_size": 200},
	}

	if err := task.Reconfigure(newCfg); err != nil {
		t.Fatalf("Reconfigure() error: %v", err)
	}
	if rep.lastConfig["topic"] != "new-topic" {
		t.Errorf("expected topic 'new-topic', got %v", rep.lastConfig["topic"])
	}
}

func TestTask_Reconfigure_ReporterNotFound(t *testing.T) {
	task := newLifecycleTestTask(nil)

	err := task.Reconfigure(map[string]map[string]any{
		"nonexistent": {"key": "val"},
	})
	if err == nil {
		t.Error("expected error for nonexistent reporter")
	}
}

func TestTask_Reconfigure_NotReconfigurable(t *testing.T) {
	rep := &mockReporter{name: "plain"}

	task := newLifecycleTestTask([]Reporter{rep})

	err := task.Reconfigure(map[string]map[string]any{
		"plain": {"key": "val"},
	})
	if err == nil {
		t.Error("expected error for non-reconfigurable reporter")
	}
}

func TestTask_Reconfigure_Failure(t *testing.T) {
	rep := &reconfigFailReporter{mockReporter: mockReporter{name: "fail-rep"}}

	task := newLifecycleTestTask([]Reporter{rep})

	err := task.Reconfigure(map[string]map[string]any{
		"fail-rep": {"key": "val"},
	})
	if err == nil {
		t.Error("expected error from failing reconfigure")
	}
}

func TestTask_Reconfigure_NotRunning(t *testing.T) {
	task := newLifecycleTestTask(nil)
	task.mu.Lock()
	task.state = StateStopped
	task.mu.Unlock()

	err := task.Reconfigure(map[string]map[string]any{
		"any": {"key": "val"},
	})
	if err == nil {
		t.Error("expected error reconfiguring a stopped task")
	}
}

// Verify Pausable and Reconfigurable interfaces are opt-in (compile-time check).
func TestLifecycleInterfaces_CompileCheck(t *testing.T) {
	var _ Pausable = (*pausableReporter)(nil)
	var _ Reconfigurable = (*reconfigurableReporter)(nil)
}
