// Package main provides the entry point for taskgraph, a one-shot CLI
// for inspecting the task hierarchy a running (or idle) taskgraphd
// instance maintains.
//
// Usage:
//
//	taskgraph rebuild                 Force a full skeleton cache rebuild
//	taskgraph roots [workspace]       List root tasks, optionally filtered
//	taskgraph children <task_id>      List a task's direct children
//	taskgraph ancestors <task_id>     List a task's ancestor chain
//	taskgraph descendants <task_id>   List a task's descendants
//	taskgraph tree <task_id>          Print a task's subtree
//	taskgraph chunks <task_id> <host> Print a task's chunked log
//	taskgraph history [n]             Show recent refresh-log entries
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ternarybob/taskgraph/internal/cache"
	"github.com/ternarybob/taskgraph/internal/config"
	"github.com/ternarybob/taskgraph/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "rebuild":
		err = cmdRebuild(args)
	case "roots":
		err = cmdRoots(args)
	case "children":
		err = cmdChildren(args)
	case "ancestors":
		err = cmdAncestors(args)
	case "descendants":
		err = cmdDescendants(args)
	case "tree":
		err = cmdTree(args)
	case "chunks":
		err = cmdChunks(args)
	case "history":
		err = cmdHistory(args)
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
	fmt.Println(`taskgraph - task-hierarchy inspection CLI

Usage:
  taskgraph <command> [args]

Commands:
  rebuild                 Force a full skeleton cache rebuild
  roots [workspace]       List root tasks, optionally filtered by workspace
  children <task_id>      List a task's direct children
  ancestors <task_id>     List a task's ancestor chain, root-first
  descendants <task_id>   List a task's descendants (breadth-first)
  tree <task_id>          Print a task's subtree
  chunks <task_id> <host> Print a task's chunked conversation log
  history [n]             Show the n most recent refresh-log entries
  help                    Show this help

Environment:
  TASKGRAPH_CONFIG   Path to configuration file`)
}

func loadService() (*config.Config, *service.Service, error) {
	path := os.Getenv("TASKGRAPH_CONFIG")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, service.New(cfg), nil
}

func cmdRebuild(args []string) error {
	_, svc, err := loadService()
	if err != nil {
		return err
	}

	summary, opErr := svc.RebuildSkeletonCache(context.Background(), true)
	if opErr != nil {
		return opErr
	}

	return printJSON(summary)
}

func cmdRoots(args []string) error {
	_, svc, err := loadService()
	if err != nil {
		return err
	}
	if err := svc.Load(); err != nil {
		return err
	}

	workspace := ""
	if len(args) > 0 {
		workspace = args[0]
	}

	return printJSON(svc.ListRoots(workspace))
}

func cmdChildren(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: taskgraph children <task_id>")
	}
	_, svc, err := loadService()
	if err != nil {
		return err
	}
	if err := svc.Load(); err != nil {
		return err
	}
	return printJSON(svc.ChildrenOf(args[0]))
}

func cmdAncestors(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: taskgraph ancestors <task_id>")
	}
	_, svc, err := loadService()
	if err != nil {
		return err
	}
	if err := svc.Load(); err != nil {
		return err
	}
	return printJSON(svc.AncestorsOf(args[0]))
}

func cmdDescendants(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: taskgraph descendants <task_id>")
	}
	_, svc, err := loadService()
	if err != nil {
		return err
	}
	if err := svc.Load(); err != nil {
		return err
	}
	return printJSON(svc.DescendantsOf(args[0], 0, 0))
}

func cmdTree(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: taskgraph tree <task_id>")
	}
	_, svc, err := loadService()
	if err != nil {
		return err
	}
	if err := svc.Load(); err != nil {
		return err
	}

	root := args[0]
	if _, err := svc.GetSkeleton(root); err != nil {
		return err
	}

	var print func(taskID string, depth int)
	print = func(taskID string, depth int) {
		label := taskID
		if s, err := svc.GetSkeleton(taskID); err == nil && s.TruncatedInstruction != "" {
			label = fmt.Sprintf("%s  %s", taskID, s.TruncatedInstruction)
		}
		fmt.Printf("%s%s\n", strings.Repeat("  ", depth), label)
		for _, child := range svc.ChildrenOf(taskID) {
			print(child, depth+1)
		}
	}

	print(root, 0)
	return nil
}

func cmdChunks(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: taskgraph chunks <task_id> <host>")
	}
	_, svc, err := loadService()
	if err != nil {
		return err
	}
	if err := svc.Load(); err != nil {
		return err
	}

	chunks, err := svc.ChunksOf(args[0], args[1])
	if err != nil {
		return err
	}
	return printJSON(chunks)
}

func cmdHistory(args []string) error {
	cfg, _, err := loadService()
	if err != nil {
		return err
	}

	n := 10
	if len(args) > 0 {
		if parsed, err := strconv.Atoi(args[0]); err == nil {
			n = parsed
		}
	}

	store := cache.New(cfg.Cache.SkeletonsFile(), cfg.Cache.HistoryDir())
	history, err := store.RecentHistory(n)
	if err != nil {
		return err
	}
	return printJSON(history)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
