// Package command implements control plane command handling.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"firestige.xyz/capturescope/internal/config"
	"firestige.xyz/capturescope/internal/task"
)

// CommandHandler handles control plane commands received over the UDS
// control socket (see UDSServer) or any other transport that can produce a
// Command.
type CommandHandler struct {
	taskManager    *task.TaskManager
	configReloader ConfigReloader
	shutdownFunc   func() // called by daemon_shutdown to trigger graceful stop
	startTime      int64  // unix timestamp of daemon start, for uptime calc
}

// ConfigReloader is the interface for reloading global configuration.
type ConfigReloader interface {
	Reload() error
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(tm *task.TaskManager, reloader ConfigReloader) *CommandHandler {
	return &CommandHandler{
		taskManager:    tm,
		configReloader: reloader,
		startTime:      time.Now().Unix(),
	}
}

// SetShutdownFunc sets the callback invoked by the daemon_shutdown command.
func (h *CommandHandler) SetShutdownFunc(fn func()) {
	h.shutdownFunc = fn
}

// Command represents a control plane command.
type Command struct {
	Method string          `json:"method"` // e.g., "task_create", "task_delete"
	Params json.RawMessage `json:"params"` // command-specific parameters
	ID     string          `json:"id"`     // request ID for tracking
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`               // matches request ID
	Result interface{} `json:"result,omitempty"` // success result
	Error  *ErrorInfo  `json:"error,omitempty"`  // error info if failed
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes, borrowed from JSON-RPC 2.0's reserved range.
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal error
)

// Handle processes a command and returns a response.
func (h *CommandHandler) Handle(ctx context.Context, cmd Command) Response {
	slog.Info("handling command", "method", cmd.Method, "id", cmd.ID)

	switch cmd.Method {
	case "task_create":
		return h.handleTaskCreate(ctx, cmd)
	case "task_delete":
		return h.handleTaskDelete(ctx, cmd)
	case "task_list":
		return h.handleTaskList(ctx, cmd)
	case "task_status":
		return h.handleTaskStatus(ctx, cmd)
	case "task_pause":
		return h.handleTaskPause(ctx, cmd)
	case "task_resume":
		return h.handleTaskResume(ctx, cmd)
	case "task_reconfigure":
		return h.handleTaskReconfigure(ctx, cmd)
	case "config_reload":
		return h.handleConfigReload(ctx, cmd)
	case "daemon_shutdown":
		return h.handleDaemonShutdown(ctx, cmd)
	case "daemon_status":
		return h.handleDaemonStatus(ctx, cmd)
	case "daemon_stats":
		return h.handleDaemonStats(ctx, cmd)
	default:
		return Response{
			ID: cmd.ID,
			Error: &ErrorInfo{
				Code:    ErrCodeMethodNotFound,
				Message: fmt.Sprintf("method %q not found", cmd.Method),
			},
		}
	}
}

// TaskCreateParams represents parameters for task_create.
type TaskCreateParams struct {
	Config config.TaskConfig `json:"config"`
}

func (h *CommandHandler) handleTaskCreate(_ context.Context, cmd Command) Response {
	var params TaskCreateParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	if err := h.taskManager.Create(params.Config); err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("create task failed: %v", err))
	}

	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"task_id": params.Config.ID,
			"status":  "created",
		},
	}
}

// TaskDeleteParams represents parameters for task_delete.
type TaskDeleteParams struct {
	TaskID string `json:"task_id"`
}

func (h *CommandHandler) handleTaskDelete(_ context.Context, cmd Command) Response {
	var params TaskDeleteParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	if err := h.taskManager.Delete(params.TaskID); err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("delete task failed: %v", err))
	}

	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"task_id": params.TaskID,
			"status":  "deleted",
		},
	}
}

func (h *CommandHandler) handleTaskList(_ context.Context, cmd Command) Response {
	taskIDs := h.taskManager.List()

	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"tasks": taskIDs,
			"count": len(taskIDs),
		},
	}
}

// TaskStatusParams represents parameters for task_status. TaskID is
// optional; when empty, status for every task is returned.
type TaskStatusParams struct {
	TaskID string `json:"task_id,omitempty"`
}

func (h *CommandHandler) handleTaskStatus(_ context.Context, cmd Command) Response {
	var params TaskStatusParams
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &params); err != nil {
			return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}

	if params.TaskID != "" {
		t, err := h.taskManager.Get(params.TaskID)
		if err != nil {
			return errResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("get task failed: %v", err))
		}

		status := t.GetStatus()
		return Response{
			ID: cmd.ID,
			Result: map[string]interface{}{
				"task_id": params.TaskID,
				"status":  status.State,
			},
		}
	}

	statusMap := h.taskManager.Status()
	result := make(map[string]interface{}, len(statusMap))
	for id, status := range statusMap {
		result[id] = status.State
	}

	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"tasks": result},
	}
}

// TaskPauseParams and TaskResumeParams identify the task to pause/resume.
type TaskPauseParams struct {
	TaskID string `json:"task_id"`
}

func (h *CommandHandler) handleTaskPause(_ context.Context, cmd Command) Response {
	var params TaskPauseParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	t, err := h.taskManager.Get(params.TaskID)
	if err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("get task failed: %v", err))
	}
	if err := t.Pause(); err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("pause task failed: %v", err))
	}

	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"task_id": params.TaskID, "status": "paused"},
	}
}

func (h *CommandHandler) handleTaskResume(_ context.Context, cmd Command) Response {
	var params TaskPauseParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	t, err := h.taskManager.Get(params.TaskID)
	if err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("get task failed: %v", err))
	}
	if err := t.Resume(); err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("resume task failed: %v", err))
	}

	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"task_id": params.TaskID, "status": "running"},
	}
}

// TaskReconfigureParams carries per-reporter config overrides, keyed by
// reporter name, for a running task.
type TaskReconfigureParams struct {
	TaskID    string                    `json:"task_id"`
	Reporters map[string]map[string]any `json:"reporters"`
}

func (h *CommandHandler) handleTaskReconfigure(_ context.Context, cmd Command) Response {
	var params TaskReconfigureParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	t, err := h.taskManager.Get(params.TaskID)
	if err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("get task failed: %v", err))
	}
	if err := t.Reconfigure(params.Reporters); err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("reconfigure task failed: %v", err))
	}

	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"task_id": params.TaskID, "status": "reconfigured"},
	}
}

func (h *CommandHandler) handleConfigReload(_ context.Context, cmd Command) Response {
	if h.configReloader == nil {
		return errResponse(cmd.ID, ErrCodeInternalError, "config reloader not available")
	}

	if err := h.configReloader.Reload(); err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("reload config failed: %v", err))
	}

	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"status": "reloaded"},
	}
}

// handleDaemonShutdown triggers graceful daemon shutdown via the registered callback.
func (h *CommandHandler) handleDaemonShutdown(_ context.Context, cmd Command) Response {
	if h.shutdownFunc == nil {
		return errResponse(cmd.ID, ErrCodeInternalError, "shutdown handler not registered")
	}

	slog.Info("daemon_shutdown command received, initiating graceful shutdown")
	go h.shutdownFunc() // non-blocking: let the response be sent first

	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"status": "shutting_down"},
	}
}

// handleDaemonStatus returns daemon status information.
func (h *CommandHandler) handleDaemonStatus(_ context.Context, cmd Command) Response {
	taskIDs := h.taskManager.List()
	uptimeSeconds := time.Now().Unix() - h.startTime

	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"version":    "0.1.0",
			"uptime_sec": uptimeSeconds,
			"tasks":      taskIDs,
			"task_count": len(taskIDs),
		},
	}
}

// handleDaemonStats returns runtime statistics from the task manager.
func (h *CommandHandler) handleDaemonStats(_ context.Context, cmd Command) Response {
	statusMap := h.taskManager.Status()
	taskStats := make(map[string]interface{}, len(statusMap))
	for id, status := range statusMap {
		taskStats[id] = map[string]interface{}{"state": status.State}
	}

	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"tasks": taskStats},
	}
}

func errResponse(id string, code int, message string) Response {
	return Response{ID: id, Error: &ErrorInfo{Code: code, Message: message}}
}
