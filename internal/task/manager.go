// Package task implements task lifecycle management.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"firestige.xyz/capturescope/internal/config"
	"firestige.xyz/capturescope/internal/eventbus"
)

// TaskManager manages task CRUD and state machine.
type TaskManager struct {
	mu    sync.RWMutex
	tasks map[string]*Task // task_id -> Task

	agentID string

	// store is the persistence backend (noopStore when disabled).
	store TaskStore

	// events is the lifecycle event sink; nil disables publishing.
	events eventbus.EventBus
}

// NewTaskManager creates a new task manager.
// store is the persistence backend; pass nil to disable persistence.
func NewTaskManager(agentID string, store TaskStore) *TaskManager {
	if store == nil {
		store = noopStore{}
	}
	return &TaskManager{
		tasks:   make(map[string]*Task),
		agentID: agentID,
		store:   store,
	}
}

// SetEventBus wires the manager's task-lifecycle notifications to bus.
// Passing nil disables publishing; this is optional — a manager with no
// bus behaves exactly as before this was introduced.
func (m *TaskManager) SetEventBus(bus eventbus.EventBus) {
	m.events = bus
}

// publish emits a lifecycle event keyed by task ID, so events for the same
// task are always ordered relative to one another on the bus. Publish
// failures (e.g. a full partition queue) are logged by the bus itself and
// never propagate back to the caller — lifecycle notification is
// best-effort, not part of the task CRUD contract.
func (m *TaskManager) publish(topic, taskID string, payload any) {
	if m.events == nil {
		return
	}
	_ = m.events.Publish(&eventbus.Event{Topic: topic, Key: taskID, Payload: payload})
}

// passthroughProcess is the default Processor used when a task doesn't
// supply its own: it hands the item's payload straight through, which is
// enough to exercise dispatch, reporting and the ItemContext crossing
// without requiring a domain-specific transform.
func passthroughProcess(_ context.Context, item Item) (any, error) {
	return item.Payload, nil
}

func (m *TaskManager) buildTask(cfg config.TaskConfig) (*Task, error) {
	task := NewTask(cfg, passthroughProcess)

	reporters := make([]Reporter, len(cfg.Reporters))
	for i, rc := range cfg.Reporters {
		factory, err := GetReporterFactory(rc.Name)
		if err != nil {
			return nil, fmt.Errorf("reporter %q: %w", rc.Name, err)
		}
		rep := factory()
		if err := rep.Init(rc.Config); err != nil {
			return nil, fmt.Errorf("reporter %q init failed: %w", rc.Name, err)
		}
		reporters[i] = rep
	}
	task.Reporters = reporters

	reporterByName := make(map[string]Reporter, len(reporters))
	for _, rep := range reporters {
		reporterByName[rep.Name()] = rep
	}

	for i, rep := range reporters {
		rcfg := cfg.Reporters[i]
		var fallback Reporter
		if rcfg.Fallback != "" {
			if fb, ok := reporterByName[rcfg.Fallback]; ok {
				fallback = fb
			} else {
				slog.Warn("fallback reporter not found, ignoring",
					"task_id", cfg.ID, "reporter", rcfg.Name, "fallback", rcfg.Fallback)
			}
		}

		var batchTimeout time.Duration
		if rcfg.BatchTimeout != "" {
			if parsed, err := time.ParseDuration(rcfg.BatchTimeout); err == nil {
				batchTimeout = parsed
			} else {
				slog.Warn("invalid batch_timeout, using default",
					"task_id", cfg.ID, "reporter", rcfg.Name, "value", rcfg.BatchTimeout, "error", err)
			}
		}

		w := NewReporterWrapper(WrapperConfig{
			Primary:      rep,
			Fallback:     fallback,
			TaskID:       cfg.ID,
			BatchSize:    rcfg.BatchSize,
			BatchTimeout: batchTimeout,
		})
		task.ReporterWrappers = append(task.ReporterWrappers, w)
	}

	return task, nil
}

// Create validates cfg, assembles a Task (reporters, wrappers) and starts
// it, registering it in the manager on success.
func (m *TaskManager) Create(cfg config.TaskConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[cfg.ID]; exists {
		return fmt.Errorf("task %q already exists", cfg.ID)
	}

	slog.Info("creating task", "task_id", cfg.ID)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	task, err := m.buildTask(cfg)
	if err != nil {
		return err
	}

	if err := task.Start(); err != nil {
		return fmt.Errorf("task start failed: %w", err)
	}

	m.tasks[cfg.ID] = task
	m.saveTask(task)
	m.publish("task.created", cfg.ID, task.GetStatus())

	slog.Info("task created successfully", "task_id", cfg.ID, "workers", cfg.Workers,
		"reporters", len(cfg.Reporters), "state", task.State())
	return nil
}

// Delete stops and removes a task.
func (m *TaskManager) Delete(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, exists := m.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}

	slog.Info("deleting task", "task_id", taskID)

	if err := task.Stop(); err != nil {
		slog.Warn("error stopping task", "task_id", taskID, "error", err)
	}

	m.saveTask(task)
	if err := m.store.Delete(taskID); err != nil {
		slog.Warn("failed to delete persisted task record", "task_id", taskID, "error", err)
	}

	delete(m.tasks, taskID)
	m.publish("task.deleted", taskID, nil)
	slog.Info("task deleted", "task_id", taskID)
	return nil
}

// Get retrieves a task by ID.
func (m *TaskManager) Get(taskID string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, exists := m.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("task %q not found", taskID)
	}
	return task, nil
}

// List returns all active task IDs.
func (m *TaskManager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.tasks))
	for id := range m.tasks {
		ids = append(ids, id)
	}
	return ids
}

// Status returns status for all active tasks.
func (m *TaskManager) Status() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]Status, len(m.tasks))
	for id, task := range m.tasks {
		status[id] = task.GetStatus()
	}
	return status
}

// Count returns the number of active tasks.
func (m *TaskManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

// StopAll stops every active task, persisting final state for each.
func (m *TaskManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slog.Info("stopping all tasks", "count", len(m.tasks))

	var lastErr error
	for id, task := range m.tasks {
		if err := task.Stop(); err != nil {
			slog.Warn("error stopping task", "task_id", id, "error", err)
			lastErr = err
		}
	}

	for _, t := range m.tasks {
		m.saveTask(t)
	}

	m.tasks = make(map[string]*Task)
	return lastErr
}

// UpdateMetricsInterval propagates a new metrics collection interval to all
// active tasks. Called by Daemon.Reload whenever metrics.collect_interval
// parses to a positive duration.
func (m *TaskManager) UpdateMetricsInterval(d time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tasks {
		t.UpdateMetricsInterval(d)
	}
	slog.Info("metrics interval updated for all tasks", "interval", d, "task_count", len(m.tasks))
}

// saveTask persists the current state of a task to the configured store.
func (m *TaskManager) saveTask(t *Task) {
	status := t.GetStatus()
	pt := PersistedTask{
		Version:       persistenceVersion,
		Config:        t.Config,
		State:         status.State,
		CreatedAt:     status.CreatedAt,
		FailureReason: status.FailureReason,
	}
	if !status.StartedAt.IsZero() {
		pt.StartedAt = &status.StartedAt
	}
	if !status.StoppedAt.IsZero() {
		pt.StoppedAt = &status.StoppedAt
	}
	if err := m.store.Save(pt); err != nil {
		slog.Warn("failed to persist task state", "task_id", t.Config.ID, "error", err)
	}
}

// Restore reads persisted tasks from the store and re-creates those that
// were active at the last shutdown. Tasks in a terminal state are left as
// on-disk history only.
func (m *TaskManager) Restore(autoRestart bool) {
	persisted, err := m.store.List()
	if err != nil {
		slog.Error("task restore: failed to list persisted tasks", "error", err)
		return
	}

	for _, pt := range persisted {
		switch pt.State {
		case StateRunning, StateStarting, StateStopping:
			if !autoRestart {
				slog.Info("task restore: skipping active task (auto_restart=false)",
					"task_id", pt.Config.ID, "state", pt.State)
				continue
			}
			slog.Info("task restore: restarting previously active task",
				"task_id", pt.Config.ID, "last_state", pt.State)
			if err := m.Create(pt.Config); err != nil {
				slog.Error("task restore: failed to restart task", "task_id", pt.Config.ID, "error", err)
			}
		default:
			slog.Debug("task restore: skipping terminal task (history)",
				"task_id", pt.Config.ID, "state", pt.State)
		}
	}
}

// GCOldTasks removes persisted terminal-state task records beyond
// maxHistory, oldest first.
func (m *TaskManager) GCOldTasks(maxHistory int) {
	persisted, err := m.store.List()
	if err != nil {
		slog.Warn("task GC: failed to list persisted tasks", "error", err)
		return
	}

	m.mu.RLock()
	var terminal []PersistedTask
	for _, pt := range persisted {
		if _, active := m.tasks[pt.Config.ID]; active {
			continue
		}
		switch pt.State {
		case StateStopped, StateFailed, StateCreated:
			terminal = append(terminal, pt)
		}
	}
	m.mu.RUnlock()

	if len(terminal) <= maxHistory {
		return
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].CreatedAt.Before(terminal[j].CreatedAt)
	})

	excess := len(terminal) - maxHistory
	for i := 0; i < excess; i++ {
		id := terminal[i].Config.ID
		if err := m.store.Delete(id); err != nil {
			slog.Warn("task GC: failed to delete old record", "task_id", id, "error", err)
		} else {
			slog.Info("task GC: removed old task record", "task_id", id)
		}
	}
}
