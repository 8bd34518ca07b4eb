// Package daemon binds the run coordinator, fade queue, settings, and
// provider directory into one lifecycle with flock-based locking so only a
// single instance serves a browser profile.
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

	"streamfade/internal/config"
	"streamfade/internal/fade"
	"streamfade/internal/logging"
	"streamfade/internal/providers"
	"streamfade/internal/runs"
	"streamfade/internal/settings"
	"streamfade/internal/state"
)

// Daemon owns the long-running services behind the IPC surface.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *state.Store
	coordinator *runs.Coordinator
	queue       *fade.Queue
	settings    *settings.Service
	directory   *providers.Directory

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status is the daemon's runtime summary.
type Status struct {
	Running     bool
	Tabs        []runs.TabStatus
	LockPath    string
	StateDBPath string
	PID         int
}

// New constructs a daemon over initialized collaborators.
func New(cfg *config.Config, store *state.Store, coordinator *runs.Coordinator, queue *fade.Queue, filter *settings.Service, directory *providers.Directory, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || coordinator == nil || queue == nil || filter == nil {
		return nil, errors.New("daemon requires config, store, coordinator, queue, and settings")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.StateDir, "streamfaded.lock")
	return &Daemon{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		coordinator: coordinator,
		queue:       queue,
		settings:    filter,
		directory:   directory,
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}, nil
}

// Start acquires the single-instance lock and resumes persisted runs.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another streamfade daemon instance is already running")
	}

	if err := d.coordinator.Resume(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("resume runs: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop drains in-flight checks and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.coordinator.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() {
	d.Stop()
	if err := d.store.Close(); err != nil {
		d.logger.Warn("failed to close store", logging.Error(err))
	}
}

// Status reports the daemon's runtime summary.
func (d *Daemon) Status() Status {
	return Status{
		Running:     d.running.Load(),
		Tabs:        d.coordinator.Status(),
		LockPath:    d.lockPath,
		StateDBPath: d.store.Path(),
		PID:         os.Getpid(),
	}
}

// SubmitCrawl starts a run for a tab's crawled film list.
func (d *Daemon) SubmitCrawl(ctx context.Context, tabID int64, films []runs.CrawledFilm) error {
	return d.coordinator.StartRun(ctx, tabID, films)
}

// Commands drains the pending collaborator commands for a tab.
func (d *Daemon) Commands(tabID int64) []fade.Command {
	return d.queue.Pull(tabID)
}

// RetryNow fires a tab's deferred retry without waiting out the cooldown.
func (d *Daemon) RetryNow(tabID int64) {
	d.coordinator.RetryNow(tabID)
}

// CloseTab drops all state for a tab, including queued commands.
func (d *Daemon) CloseTab(ctx context.Context, tabID int64) error {
	d.queue.Drop(tabID)
	return d.coordinator.CloseTab(ctx, tabID)
}

// Filter returns the effective filter selection.
func (d *Daemon) Filter(ctx context.Context) (settings.Snapshot, error) {
	return d.settings.Current(ctx)
}

// SetFilter persists a new filter selection.
func (d *Daemon) SetFilter(ctx context.Context, snap settings.Snapshot) (settings.Snapshot, error) {
	return d.settings.Update(ctx, snap)
}

// Providers returns the cached provider directory.
func (d *Daemon) Providers(ctx context.Context) ([]state.Provider, error) {
	if d.directory == nil {
		return nil, errors.New("provider directory unavailable")
	}
	return d.directory.Providers(ctx)
}

// Regions returns the cached region directory.
func (d *Daemon) Regions(ctx context.Context) ([]state.Region, error) {
	if d.directory == nil {
		return nil, errors.New("region directory unavailable")
	}
	return d.directory.Regions(ctx)
}

// FindProvider resolves a provider by name.
func (d *Daemon) FindProvider(ctx context.Context, name string) (state.Provider, error) {
	if d.directory == nil {
		return state.Provider{}, errors.New("provider directory unavailable")
	}
	return d.directory.FindProvider(ctx, name)
}
