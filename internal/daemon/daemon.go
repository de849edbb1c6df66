package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"docflow/internal/config"
	"docflow/internal/documents"
	"docflow/internal/events"
	"docflow/internal/logging"
	"docflow/internal/pipeline"
)

// Daemon coordinates the background services and enforces single-instance
// execution via a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *documents.Store
	driver *pipeline.Driver
	hub    *events.Hub

	apiServer *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DBPath       string
	LockFilePath string
	ActiveRuns   int
	Subscribers  int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *documents.Store, logger *slog.Logger, driver *pipeline.Driver, hub *events.Hub) (*Daemon, error) {
	if cfg == nil || store == nil || driver == nil || hub == nil {
		return nil, errors.New("daemon requires config, store, driver, and event hub")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "docflowd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		driver:   driver,
		hub:      hub,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiServer = srv
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted work, and launches
// the pipeline driver and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another docflow daemon instance is already running")
	}

	recovered, err := d.store.ResetInterrupted(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted documents: %w", err)
	}
	if recovered > 0 {
		d.logger.Warn(
			"failed documents interrupted by previous shutdown",
			logging.Int("documents", recovered),
			logging.String(logging.FieldErrorHint, "reprocess them from the failed stage"),
		)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.driver.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start pipeline driver: %w", err)
	}
	if err := d.apiServer.start(d.ctx); err != nil {
		d.driver.Stop()
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("docflow daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.apiServer.stop()
	d.driver.Stop()
	d.hub.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("docflow daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the API server's bound address, useful when binding to an
// ephemeral port.
func (d *Daemon) Addr() string {
	if d.apiServer == nil {
		return ""
	}
	return d.apiServer.addr()
}

// Status reports daemon runtime information.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DBPath:       d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		ActiveRuns:   d.driver.ActiveRuns(),
		Subscribers:  d.hub.SubscriberCount(),
	}
}
