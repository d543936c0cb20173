// Package main provides the entry point for taskgraphd.
//
// taskgraphd is a background process that watches one or more task
// storage roots and maintains the skeleton cache and hierarchy
// reconstruction used by taskgraph and any embedding host.
//
// Usage:
//
//	taskgraphd                   Start the daemon (default)
//	taskgraphd serve             Start the daemon
//	taskgraphd version           Show version
//	taskgraphd status            Show daemon status
//	taskgraphd stop              Stop the running daemon
//	taskgraphd init-config       Create example configuration file
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/taskgraph/internal/config"
	"github.com/ternarybob/taskgraph/internal/daemon"
	"github.com/ternarybob/taskgraph/internal/logger"
	"github.com/ternarybob/taskgraph/internal/service"
)

var version = "dev"

var configPath string

func main() {
	args := os.Args[1:]
	command := ""
	cmdArgs := []string{}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "-"):
			// skip unknown flags
		case command == "":
			command = arg
		default:
			cmdArgs = append(cmdArgs, arg)
		}
	}

	if command == "" {
		command = "serve"
	}

	var err error
	switch command {
	case "serve", "start":
		err = cmdServe(cmdArgs)
	case "version", "-v", "--version":
		cmdVersion()
	case "status":
		err = cmdStatus()
	case "stop":
		err = cmdStop()
	case "init-config":
		err = cmdInitConfig()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`taskgraphd - task-hierarchy reconstruction daemon

Usage:
  taskgraphd [flags] [command] [args]

Commands:
  serve         Start the daemon (default)
  version       Show version information
  status        Show daemon status
  stop          Stop the running daemon
  init-config   Create example configuration file
  help          Show this help

Flags:
  --config PATH   Path to configuration file (default: ~/.taskgraphd/config.toml)

Environment:
  TASKGRAPH_CONFIG     Path to configuration file (alternative to --config)
  TASKGRAPH_DATA_DIR   Override data directory

Configuration:
  Config file: ~/.taskgraphd/config.toml (TOML format)

Examples:
  taskgraphd                         Start the daemon with defaults
  taskgraphd --config /path/to.toml  Start with custom config
  taskgraphd init-config             Create example config file
  taskgraphd status                  Check whether the daemon is running`)
}

func cmdVersion() {
	fmt.Printf("taskgraphd version %s\n", version)
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("TASKGRAPH_CONFIG"); envPath != "" {
		return envPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if envDataDir := os.Getenv("TASKGRAPH_DATA_DIR"); envDataDir != "" {
		cfg.Service.DataDir = envDataDir
	}
	return cfg, nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.EmptyStorageRoots() {
		return fmt.Errorf("no storage roots configured, see %s", getConfigPath())
	}

	if running, pid := daemon.IsRunning(cfg); running {
		return fmt.Errorf("daemon already running (PID %d)", pid)
	}

	log := logger.SetupLogger(cfg)
	defer logger.Stop()

	svc := service.New(cfg)
	d := daemon.New(cfg, svc, log)

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Printf("taskgraphd v%s started (data dir %s)\n", version, cfg.Service.DataDir)
	log.Info().Str("data_dir", cfg.Service.DataDir).Msg("taskgraphd started")

	d.Wait()
	return nil
}

func cmdStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	running, pid := daemon.IsRunning(cfg)
	if running {
		fmt.Printf("taskgraphd: running (PID %d)\n", pid)
		fmt.Printf("Config: %s\n", getConfigPath())
		fmt.Printf("Data: %s\n", cfg.Service.DataDir)
	} else {
		fmt.Println("taskgraphd: stopped")
	}
	return nil
}

func cmdStop() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	running, pid := daemon.IsRunning(cfg)
	if !running {
		fmt.Println("taskgraphd is not running")
		return nil
	}

	fmt.Printf("Stopping taskgraphd (PID %d)...\n", pid)
	if err := daemon.StopRunning(cfg); err != nil {
		return err
	}

	fmt.Println("taskgraphd stopped")
	return nil
}

func cmdInitConfig() error {
	path := getConfigPath()

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(path); err != nil {
		return err
	}

	fmt.Printf("Created example configuration: %s\n", path)
	return nil
}
