// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/capturescope/internal/command"
	"firestige.xyz/capturescope/internal/config"
)

// taskCmd represents the task command group
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage dispatch tasks",
	Long: `Manage item-dispatch tasks on the capturescope daemon.

Subcommands:
  create  - Create a new task
  delete  - Delete a running task
  list        - List all tasks
  status      - Get task status
  pause       - Pause reporter delivery for a task
  resume      - Resume reporter delivery for a paused task
  reconfigure - Reconfigure reporters of a running task`,
}

// taskCreateCmd represents the task create command
var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new task",
	Long: `Create a new dispatch task from a JSON configuration file.

Example configuration:
  {
    "id": "orders-1",
    "workers": 4,
    "dispatch_strategy": "flow-hash",
    "reporters": [{"name": "kafka", "config": {"topic": "orders-out"}}]
  }`,
	Run: func(cmd *cobra.Command, args []string) {
		runTaskCreate(cmd)
	},
}

// taskDeleteCmd represents the task delete command
var taskDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a running task",
	Long:  `Delete (stop) a running dispatch task by ID.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runTaskDelete(args[0])
	},
}

// taskListCmd represents the task list command
var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tasks",
	Long:  `List all running dispatch tasks.`,
	Run: func(cmd *cobra.Command, args []string) {
		runTaskList()
	},
}

// taskStatusCmd represents the task status command
var taskStatusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Get task status",
	Long: `Get the status of one or all tasks.

If task-id is provided, shows detailed status for that task.
If no task-id is provided, shows status of all tasks.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var taskID string
		if len(args) > 0 {
			taskID = args[0]
		}
		runTaskStatus(taskID)
	},
}

var (
	taskConfigFile string
)

// taskPauseCmd represents the task pause command
var taskPauseCmd = &cobra.Command{
	Use:   "pause <task-id>",
	Short: "Pause reporter delivery for a task",
	Long:  `Suspend delivery on every Pausable Reporter of a running task; workers keep draining the intake.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runTaskPause(args[0])
	},
}

// taskResumeCmd represents the task resume command
var taskResumeCmd = &cobra.Command{
	Use:   "resume <task-id>",
	Short: "Resume reporter delivery for a paused task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runTaskResume(args[0])
	},
}

// taskReconfigureCmd represents the task reconfigure command
var taskReconfigureCmd = &cobra.Command{
	Use:   "reconfigure <task-id>",
	Short: "Reconfigure one or more reporters of a running task",
	Long: `Apply new per-reporter config to a running task without restarting it.

The config file maps reporter name to its new config object, e.g.:
  {"kafka": {"topic": "orders-out-v2"}}`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runTaskReconfigure(args[0])
	},
}

var (
	taskReconfigureFile string
)

func init() {
	// Add subcommands to task command
	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskPauseCmd)
	taskCmd.AddCommand(taskResumeCmd)
	taskCmd.AddCommand(taskReconfigureCmd)

	// Flags for task create
	taskCreateCmd.Flags().StringVarP(&taskConfigFile, "file", "f", "",
		"task configuration file (JSON) (required)")
	taskCreateCmd.MarkFlagRequired("file")

	taskReconfigureCmd.Flags().StringVarP(&taskReconfigureFile, "file", "f", "",
		"reporter config file (JSON) (required)")
	taskReconfigureCmd.MarkFlagRequired("file")
}

func runTaskCreate(cmd *cobra.Command) {
	// Read task config file
	data, err := os.ReadFile(taskConfigFile)
	if err != nil {
		exitWithError(fmt.Sprintf("failed to read config file %s", taskConfigFile), err)
	}

	// Parse task config
	var taskConfig config.TaskConfig
	if err := json.Unmarshal(data, &taskConfig); err != nil {
		exitWithError("failed to parse task config", err)
	}

	// Create UDS client
	client := command.NewUDSClient(socketPath, 30*time.Second)
	ctx := context.Background()

	// Send create command
	fmt.Printf("Creating task %s...\n", taskConfig.ID)
	params := command.TaskCreateParams{Config: taskConfig}
	resp, err := client.TaskCreate(ctx, params)
	if err != nil {
		exitWithError("failed to send create command", err)
	}

	if resp.Error != nil {
		exitWithError(fmt.Sprintf("task_create failed: %s", resp.Error.Message), nil)
	}

	fmt.Printf("Task %s created successfully.\n", taskConfig.ID)
}

func runTaskDelete(taskID string) {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	// Send delete command
	fmt.Printf("Deleting task %s...\n", taskID)
	resp, err := client.TaskDelete(ctx, taskID)
	if err != nil {
		exitWithError("failed to send delete command", err)
	}

	if resp.Error != nil {
		exitWithError(fmt.Sprintf("task_delete failed: %s", resp.Error.Message), nil)
	}

	fmt.Printf("Task %s deleted successfully.\n", taskID)
}

func runTaskList() {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	// Send list command
	resp, err := client.TaskList(ctx)
	if err != nil {
		exitWithError("failed to send list command", err)
	}

	if resp.Error != nil {
		exitWithError(fmt.Sprintf("task_list failed: %s", resp.Error.Message), nil)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		exitWithError("invalid response format", nil)
	}

	tasks, ok := result["tasks"].([]interface{})
	if !ok {
		exitWithError("invalid task list format", nil)
	}

	if len(tasks) == 0 {
		fmt.Println("No running tasks.")
		return
	}

	fmt.Printf("Running tasks (%d):\n", len(tasks))
	for _, task := range tasks {
		fmt.Printf("  - %s\n", task)
	}
}

func runTaskStatus(taskID string) {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	// Send status command
	resp, err := client.TaskStatus(ctx, taskID)
	if err != nil {
		exitWithError("failed to send status command", err)
	}

	if resp.Error != nil {
		exitWithError(fmt.Sprintf("task_status failed: %s", resp.Error.Message), nil)
	}

	// Pretty print the result
	resultJSON, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		exitWithError("failed to format result", err)
	}

	fmt.Println(string(resultJSON))
}

func runTaskPause(taskID string) {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	resp, err := client.TaskPause(ctx, taskID)
	if err != nil {
		exitWithError("failed to send pause command", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("task_pause failed: %s", resp.Error.Message), nil)
	}

	fmt.Printf("Task %s paused.\n", taskID)
}

func runTaskResume(taskID string) {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	resp, err := client.TaskResume(ctx, taskID)
	if err != nil {
		exitWithError("failed to send resume command", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("task_resume failed: %s", resp.Error.Message), nil)
	}

	fmt.Printf("Task %s resumed.\n", taskID)
}

func runTaskReconfigure(taskID string) {
	data, err := os.ReadFile(taskReconfigureFile)
	if err != nil {
		exitWithError(fmt.Sprintf("failed to read config file %s", taskReconfigureFile), err)
	}

	var reporters map[string]map[string]any
	if err := json.Unmarshal(data, &reporters); err != nil {
		exitWithError("failed to parse reporter config", err)
	}

	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	params := command.TaskReconfigureParams{TaskID: taskID, Reporters: reporters}
	resp, err := client.Call(ctx, "task_reconfigure", params)
	if err != nil {
		exitWithError("failed to send reconfigure command", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("task_reconfigure failed: %s", resp.Error.Message), nil)
	}

	fmt.Printf("Task %s reconfigured.\n", taskID)
}
