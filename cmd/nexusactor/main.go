// Command nexusactor runs the Agent Actor runtime: a topic-scoped
// multi-agent chat core built from actor.Engine instances, one per
// configured agent, dispatched off a shared Redis event bus.
//
// # Basic usage
//
//	nexusactor serve --config nexusactor.yaml
//
// The server exposes an HTTP message-ingest and live event-stream
// endpoint alongside a Prometheus /metrics endpoint, and shuts down
// gracefully on SIGINT/SIGTERM.
package main

import (
	"fmt"
	"log/slog"
	"os"
)

// Build information, populated by ldflags during release builds:
//
//	go build -ldflags "-X main.version=v0.1.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
