package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/meridianlabs/agentcore/internal/config"
	"github.com/meridianlabs/agentcore/internal/storage"
)

var (
	cfgPath string
	dbPath  string

	cfg   *config.Config
	store storage.Store
)

var rootCmd = &cobra.Command{
	Use:   "agentcore",
	Short: "State core for the agent platform",
	Long: `agentcore manages the platform's persistent state: agents and their
capabilities, the task dependency graph, conversations, memories, knowledge
bases, and learning models.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
			logrus.SetLevel(level)
		}

		path := cfg.Database.Path
		if dbPath != "" {
			path = dbPath
		}
		store, err = storage.NewStore(cmd.Context(), &storage.Config{Path: path})
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			return store.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".agentcore/config.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides config)")

	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(depCmd)
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(notifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// actor identifies CLI mutations in the audit trail
func actor() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "agentcore-cli"
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
