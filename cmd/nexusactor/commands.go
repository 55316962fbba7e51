package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "nexusactor.yaml"

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nexusactor",
		Short: "Run the Agent Actor runtime",
		Long:  "nexusactor drives a process-wide registry of topic-scoped agent actors against a shared event bus, message store, and MCP tool catalogue.",
	}
	cmd.AddCommand(buildServeCmd(), buildVersionCmd())
	return cmd
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the actor runtime server",
		Long: `Start the Agent Actor runtime.

The server will:
1. Load configuration from the specified file
2. Connect to the Redis event bus and message store
3. Start configured MCP servers and LLM providers
4. Activate one actor per configured agent
5. Serve a message-ingest/live-event HTTP endpoint and /metrics

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML/JSON5 configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Printf("nexusactor %s (%s)\n", version, commit)
			return nil
		},
	}
}

func resolveConfigPath(path string) string {
	if strings.TrimSpace(path) != "" && path != defaultConfigPath {
		return path
	}
	if env := strings.TrimSpace(os.Getenv("NEXUSACTOR_CONFIG")); env != "" {
		return env
	}
	return defaultConfigPath
}
