// Package daemon manages the taskgraphd process lifecycle: PID file,
// signal handling, graceful shutdown, and driving the optional
// storage-root watcher. Adapted from the teacher's service.Daemon
// (internal/service/daemon.go): same PID-file/signal/graceful-shutdown
// skeleton, with the HTTP server replaced by the watcher-driven refresh
// loop, since exposing operations over a transport is out of core
// scope (see DESIGN.md's dropped-dependencies section).
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/taskgraph/internal/config"
	"github.com/ternarybob/taskgraph/internal/service"
	"github.com/ternarybob/taskgraph/internal/watch"
)

// Daemon manages the taskgraphd process lifecycle.
type Daemon struct {
	cfg     *config.Config
	svc     *service.Service
	log     arbor.ILogger
	watcher *watch.Watcher

	stopCh    chan struct{}
	stoppedCh chan struct{}
	mu        sync.Mutex
	running   bool
}

// New creates a Daemon over an already-wired Service.
func New(cfg *config.Config, svc *service.Service, log arbor.ILogger) *Daemon {
	return &Daemon{
		cfg:       cfg,
		svc:       svc,
		log:       log,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start ensures the data directories and PID file exist, runs one
// synchronous rebuild pass so the service is immediately queryable, and
// then starts the optional storage-root watcher.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.mu.Unlock()

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	if err := d.writePID(); err != nil {
		return fmt.Errorf("write PID: %w", err)
	}

	if _, opErr := d.svc.RebuildSkeletonCache(ctx, false); opErr != nil {
		d.log.Error().Err(opErr).Msg("daemon: initial rebuild failed")
	}

	if d.cfg.Watch.Enabled {
		w, err := watch.New([]string(d.cfg.Storage.Roots), d.cfg.Watch.DebounceMs, d.refresh, d.log)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		d.watcher = w
		if err := d.watcher.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
	}

	return nil
}

func (d *Daemon) refresh(ctx context.Context) error {
	_, opErr := d.svc.RebuildSkeletonCache(ctx, false)
	if opErr != nil {
		return opErr
	}
	return nil
}

// Wait blocks until a termination signal or Stop is received, then
// shuts down gracefully.
func (d *Daemon) Wait() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		d.log.Info().Str("signal", sig.String()).Msg("daemon: received signal, shutting down")
	case <-d.stopCh:
		d.log.Info().Msg("daemon: stop requested, shutting down")
	}

	d.shutdown()
}

// Stop signals the daemon to stop and waits for shutdown to complete.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	close(d.stopCh)
	<-d.stoppedCh
}

func (d *Daemon) shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			d.log.Warn().Err(err).Msg("daemon: watcher stop error")
		}
	}

	d.removePID()
	d.running = false
	close(d.stoppedCh)
}

func (d *Daemon) writePID() error {
	pidPath := d.cfg.PIDPath()
	if err := os.MkdirAll(filepath.Dir(pidPath), 0755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	return os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (d *Daemon) removePID() {
	_ = os.Remove(d.cfg.PIDPath())
}

// IsRunning checks whether a daemon process recorded in cfg's PID file
// is still alive.
func IsRunning(cfg *config.Config) (bool, int) {
	pidPath := cfg.PIDPath()

	data, err := os.ReadFile(pidPath)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	if err := process.Signal(syscall.Signal(0)); err != nil {
		_ = os.Remove(pidPath)
		return false, 0
	}

	return true, pid
}

// StopRunning sends SIGTERM to a running daemon and waits for it to
// exit, force-killing after a timeout.
func StopRunning(cfg *config.Config) error {
	running, pid := IsRunning(cfg)
	if !running {
		return fmt.Errorf("daemon not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if running, _ := IsRunning(cfg); !running {
			return nil
		}
	}

	if err := process.Kill(); err != nil {
		return fmt.Errorf("kill process: %w", err)
	}

	_ = os.Remove(cfg.PIDPath())
	return nil
}
