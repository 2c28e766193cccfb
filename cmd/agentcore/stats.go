package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate platform statistics",
	Run: func(cmd *cobra.Command, args []string) {
		stats, err := store.GetStatistics(context.Background())
		if err != nil {
			fatal("failed to get statistics: %v", err)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Platform Statistics ==="))
		fmt.Printf("  Agents:        %d\n", stats.TotalAgents)
		fmt.Printf("  Conversations: %d\n", stats.TotalConversations)
		fmt.Printf("  Memories:      %d\n", stats.TotalMemories)
		fmt.Println()
		fmt.Printf("  Tasks:         %d\n", stats.TotalTasks)
		fmt.Printf("    Pending:     %d\n", stats.PendingTasks)
		fmt.Printf("    Running:     %d\n", stats.RunningTasks)
		fmt.Printf("    Succeeded:   %s\n", green(stats.SucceededTasks))
		fmt.Printf("    Failed:      %s\n", red(stats.FailedTasks))
		fmt.Printf("    Ready now:   %d\n", stats.ReadyTasks)
		fmt.Println()
	},
}
