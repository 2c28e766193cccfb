package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/meridianlabs/agentcore/internal/types"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage agents",
}

var (
	agentKind        string
	agentDescription string
)

var agentCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Register a new agent",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		agent := &types.Agent{
			Name:        args[0],
			Kind:        agentKind,
			Description: agentDescription,
		}
		if err := store.CreateAgent(context.Background(), agent, actor()); err != nil {
			fatal("failed to create agent: %v", err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created agent %s (%s)\n", green("✓"), agent.Name, agent.ID)
	},
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all agents",
	Run: func(cmd *cobra.Command, args []string) {
		agents, err := store.ListAgents(context.Background())
		if err != nil {
			fatal("failed to list agents: %v", err)
		}
		if len(agents) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Println(gray("No agents"))
			return
		}
		for _, agent := range agents {
			fmt.Printf("%s  %-20s %-10s %s\n", agent.ID, agent.Name, agent.Status, agent.Kind)
		}
	},
}

var agentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an agent and its capabilities",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		agent, err := store.GetAgent(ctx, args[0])
		if err != nil {
			fatal("failed to get agent: %v", err)
		}
		if agent == nil {
			fatal("agent not found: %s", args[0])
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("%s\n", cyan(agent.Name))
		fmt.Printf("  ID:          %s\n", agent.ID)
		fmt.Printf("  Kind:        %s\n", agent.Kind)
		fmt.Printf("  Status:      %s\n", agent.Status)
		if agent.Description != "" {
			fmt.Printf("  Description: %s\n", agent.Description)
		}
		fmt.Printf("  Created:     %s\n", agent.CreatedAt.Format("2006-01-02 15:04:05"))

		caps, err := store.GetCapabilities(ctx, agent.ID)
		if err != nil {
			fatal("failed to get capabilities: %v", err)
		}
		if len(caps) > 0 {
			fmt.Println("  Capabilities:")
			for _, c := range caps {
				fmt.Printf("    - %s\n", c.Name)
			}
		}
	},
}

var agentStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Set an agent's status (created, active, paused, retired)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		err := store.UpdateAgent(context.Background(), args[0],
			map[string]interface{}{"status": args[1]}, actor())
		if err != nil {
			fatal("failed to update agent: %v", err)
		}
		fmt.Printf("Agent %s is now %s\n", args[0], args[1])
	},
}

var agentDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an agent and everything it owns",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := store.DeleteAgent(context.Background(), args[0], actor()); err != nil {
			fatal("failed to delete agent: %v", err)
		}
		fmt.Printf("Deleted agent %s\n", args[0])
	},
}

func init() {
	agentCreateCmd.Flags().StringVar(&agentKind, "kind", "assistant", "Agent kind")
	agentCreateCmd.Flags().StringVar(&agentDescription, "description", "", "Agent description")

	agentCmd.AddCommand(agentCreateCmd)
	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentShowCmd)
	agentCmd.AddCommand(agentStatusCmd)
	agentCmd.AddCommand(agentDeleteCmd)
}
