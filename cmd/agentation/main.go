package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/agentation/broker/internal/app"
	"github.com/agentation/broker/internal/banner"
	"github.com/agentation/broker/internal/config"
	"github.com/agentation/broker/internal/logger"
)

// version and commit are set via ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "server":
		runServer(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("agentation %s (%s)\n", version, commit)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func runServer(args []string) {
	_ = godotenv.Load(".env")

	eff, err := config.Load(args, version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(eff.LogLevel, eff.LogSink)

	if eff.LogSink == "stdout" {
		banner.Print(eff, version)
	}

	a, err := app.New(context.Background(), eff)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	if err := a.Run(context.Background()); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`agentation - local annotation broker for AI coding agents

Usage:
  agentation server [flags]   run the broker (HTTP surface and/or ACP dispatcher)
  agentation version          print version information
  agentation help             print this message

Flags for "server":
  --port int        HTTP listen port (default 4747)
  --mcp-only         run only the ACP dispatcher over stdio
  --http-only        run only the HTTP surface
  --http-url string  base URL the ACP dispatcher calls (default http://127.0.0.1:<port>)
  --api-key string   shared bearer credential required of HTTP clients
  --config string    path to an optional YAML config file

Environment variables:
  AGENTATION_STORE                  sqlite (default) or memory
  AGENTATION_DB_PATH                path to the SQLite file (default ~/.agentation/store.db)
  AGENTATION_PORT                   HTTP listen port
  AGENTATION_API_KEY                shared bearer credential
  AGENTATION_EVENT_RETENTION_DAYS   days of event history to retain (default 7)
  AGENTATION_WEBHOOK_URL            single webhook URL to relay events to
  AGENTATION_WEBHOOKS               comma-separated webhook URLs
  AGENTATION_RATE_LIMIT_RPS         per-credential rate limit, requests/sec
  AGENTATION_LOG_LEVEL              debug, info, warn, or error
  AGENTATION_LOG_SINK               stdout or file:<path>`)
}
