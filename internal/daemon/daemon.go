// Package daemon wires the tag subsystem together behind a localhost HTTP
// API and enforces single-instance execution through a lock file.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tagsmith/internal/config"
	"tagsmith/internal/credstore"
	"tagsmith/internal/history"
	"tagsmith/internal/logging"
	"tagsmith/internal/repo"
	"tagsmith/internal/tags"
)

// Daemon owns the credential store, the repository client, and the tag
// services exposed over the API.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	creds      *credstore.Store
	client     *repo.Client
	aggregator *tags.Aggregator
	engine     *tags.Engine
	mutator    *tags.Mutator
	audit      *history.Store

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	api     *apiServer
	cancel  context.CancelFunc

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New constructs a daemon with initialized dependencies. The audit store is
// advisory: a failure to open it is logged and history recording is skipped.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	creds := credstore.New(cfg.CredentialsPath(), cfg.Remote.DefaultBase)
	if err := creds.Load(); err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	client := repo.NewClient(creds,
		repo.WithLogger(logger),
		repo.WithTimeout(time.Duration(cfg.Remote.RequestTimeoutSeconds)*time.Second),
	)

	board := tags.NewBoard()
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.WithComponent(logger, "daemon"),
		creds:      creds,
		client:     client,
		aggregator: tags.NewAggregator(client, logger),
		engine:     tags.NewEngine(cfg.Similarity.MaxLengthDiff, board, logger),
		mutator:    tags.NewMutator(client, logger),
		lockPath:   cfg.LockPath(),
		lock:       flock.New(cfg.LockPath()),
		shutdownCh: make(chan struct{}),
	}

	audit, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		d.logger.Warn("audit store unavailable", logging.Error(err))
	} else {
		d.audit = audit
	}

	d.api = newAPIServer(cfg.Paths.APIBind, d, logger)
	return d, nil
}

// Start acquires the daemon lock and brings up the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tagsmith daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if err := d.api.start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("tagsmith daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts the API down and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("tagsmith daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.audit != nil {
		return d.audit.Close()
	}
	return nil
}

// Running reports whether the daemon has started and not yet stopped.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// ShutdownRequested is closed when a client asks the daemon to exit.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdownCh
}

func (d *Daemon) requestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownCh) })
}

// record appends an audit event, swallowing failures.
func (d *Daemon) record(ctx context.Context, kind string, detail map[string]any, items, updated, errCount int) {
	if d.audit == nil {
		return
	}
	if _, err := d.audit.Record(ctx, kind, detail, items, updated, errCount); err != nil {
		d.logger.Warn("audit record failed", logging.String("kind", kind), logging.Error(err))
	}
}
