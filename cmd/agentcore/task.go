package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/meridianlabs/agentcore/internal/types"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks and their lifecycle",
}

var (
	taskAgentID  string
	taskPriority int
	taskStatus   string
)

var taskCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a task for an agent",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		task := &types.Task{
			AgentID:  taskAgentID,
			Name:     args[0],
			Priority: taskPriority,
		}
		if err := store.CreateTask(context.Background(), task, actor()); err != nil {
			fatal("failed to create task: %v", err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created task %s (%s)\n", green("✓"), task.Name, task.ID)
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered",
	Run: func(cmd *cobra.Command, args []string) {
		filter := types.TaskFilter{}
		if taskAgentID != "" {
			filter.AgentID = &taskAgentID
		}
		if taskStatus != "" {
			status := types.TaskStatus(taskStatus)
			if !status.IsValid() {
				fatal("unknown status: %s", taskStatus)
			}
			filter.Status = &status
		}

		tasks, err := store.SearchTasks(context.Background(), filter)
		if err != nil {
			fatal("failed to search tasks: %v", err)
		}
		printTasks(tasks)
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task and its dependencies",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		task, err := store.GetTask(ctx, args[0])
		if err != nil {
			fatal("failed to get task: %v", err)
		}
		if task == nil {
			fatal("task not found: %s", args[0])
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("%s\n", cyan(task.Name))
		fmt.Printf("  ID:       %s\n", task.ID)
		fmt.Printf("  Agent:    %s\n", task.AgentID)
		fmt.Printf("  Status:   %s\n", statusColor(task.Status)(string(task.Status)))
		fmt.Printf("  Priority: %d\n", task.Priority)
		if task.CompletedAt != nil {
			fmt.Printf("  Done:     %s\n", task.CompletedAt.Format("2006-01-02 15:04:05"))
		}

		deps, err := store.GetDependencies(ctx, task.ID)
		if err != nil {
			fatal("failed to get dependencies: %v", err)
		}
		if len(deps) > 0 {
			fmt.Println("  Waits on:")
			for _, dep := range deps {
				fmt.Printf("    - %s (%s)\n", dep.Name, dep.Status)
			}
		}
	},
}

var taskTransitionCmd = &cobra.Command{
	Use:   "transition <id> <status>",
	Short: "Move a task through its lifecycle",
	Long: `Move a task to a new status. Legal moves:
  pending -> ready, cancelled
  ready   -> running, cancelled
  running -> succeeded, failed, cancelled`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		to := types.TaskStatus(args[1])
		if !to.IsValid() {
			fatal("unknown status: %s", args[1])
		}
		if err := store.TransitionTask(context.Background(), args[0], to, actor()); err != nil {
			fatal("failed to transition task: %v", err)
		}
		fmt.Printf("Task %s is now %s\n", args[0], to)
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task and its dependency edges",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := store.DeleteTask(context.Background(), args[0], actor()); err != nil {
			fatal("failed to delete task: %v", err)
		}
		fmt.Printf("Deleted task %s\n", args[0])
	},
}

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage task dependency edges",
}

var depAddCmd = &cobra.Command{
	Use:   "add <task-id> <depends-on-id>",
	Short: "Make a task wait on another",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := store.AddDependency(context.Background(), args[0], args[1], actor()); err != nil {
			fatal("failed to add dependency: %v", err)
		}
		fmt.Printf("Task %s now waits on %s\n", args[0], args[1])
	},
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove <task-id> <depends-on-id>",
	Short: "Remove a dependency edge",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := store.RemoveDependency(context.Background(), args[0], args[1], actor()); err != nil {
			fatal("failed to remove dependency: %v", err)
		}
		fmt.Printf("Task %s no longer waits on %s\n", args[0], args[1])
	},
}

var readyCmd = &cobra.Command{
	Use:   "ready <agent-id>",
	Short: "Show an agent's tasks that are eligible to run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tasks, err := store.ReadyTasks(context.Background(), args[0])
		if err != nil {
			fatal("failed to get ready tasks: %v", err)
		}
		printTasks(tasks)
	},
}

func printTasks(tasks []*types.Task) {
	if len(tasks) == 0 {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Println(gray("No tasks"))
		return
	}
	for _, task := range tasks {
		fmt.Printf("%s  P%-2d %-10s %s\n",
			task.ID, task.Priority, statusColor(task.Status)(string(task.Status)), task.Name)
	}
}

func statusColor(status types.TaskStatus) func(...interface{}) string {
	switch status {
	case types.TaskSucceeded:
		return color.New(color.FgGreen).SprintFunc()
	case types.TaskFailed:
		return color.New(color.FgRed).SprintFunc()
	case types.TaskRunning:
		return color.New(color.FgYellow).SprintFunc()
	case types.TaskCancelled:
		return color.New(color.FgHiBlack).SprintFunc()
	default:
		return color.New(color.FgWhite).SprintFunc()
	}
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskAgentID, "agent", "", "Owning agent ID (required)")
	taskCreateCmd.Flags().IntVar(&taskPriority, "priority", 0, "Task priority")
	_ = taskCreateCmd.MarkFlagRequired("agent")

	taskListCmd.Flags().StringVar(&taskAgentID, "agent", "", "Filter by agent ID")
	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskTransitionCmd)
	taskCmd.AddCommand(taskDeleteCmd)

	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRemoveCmd)
}
