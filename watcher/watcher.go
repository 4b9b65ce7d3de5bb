// Package watcher observes the config store's directory for out-of-band
// edits to the primary document and folds them back in through the
// mutator, so an operator editing userdb.edn directly converges the same
// way an API-driven change would.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/sa6mwa/ejreconcile/internal/loggingutil"
	"pkt.systems/pslog"
)

// primaryDocName is the filename the watcher reacts to; every other event
// in the directory (the swap file, the lock file, backups) is ignored.
const primaryDocName = "userdb.edn"

// Config configures a Watcher.
type Config struct {
	Folder string
	// IsLocked reports whether the store's advisory lock is currently held.
	IsLocked func() (bool, error)
	// CurrentSHA returns the fingerprint of the document bytes currently on
	// disk, used to detect the engine's own write echo.
	CurrentSHA func() (string, error)
	// OnExternalChange is invoked when a genuine out-of-band edit is
	// detected; implementations normally call Mutator.SwapState(ctx,
	// "filesystem change", identity).
	OnExternalChange func(ctx context.Context)
	Logger           pslog.Logger
}

// Watcher subscribes to filesystem events on the config folder.
type Watcher struct {
	folder     string
	fsw        *fsnotify.Watcher
	isLocked   func() (bool, error)
	currentSHA func() (string, error)
	onEdit     func(ctx context.Context)
	logger     pslog.Logger

	mu       sync.Mutex
	lastSeen string
	stop     chan struct{}
	done     chan struct{}
}

// New constructs a Watcher and begins watching Folder. Run must be called
// to start processing events.
func New(cfg Config) (*Watcher, error) {
	if cfg.Folder == "" {
		return nil, fmt.Errorf("watcher: folder required")
	}
	if cfg.IsLocked == nil || cfg.CurrentSHA == nil || cfg.OnExternalChange == nil {
		return nil, fmt.Errorf("watcher: IsLocked, CurrentSHA and OnExternalChange are required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(cfg.Folder); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watcher: watch folder %q: %w", cfg.Folder, err)
	}
	return &Watcher{
		folder:     cfg.Folder,
		fsw:        fsw,
		isLocked:   cfg.IsLocked,
		currentSHA: cfg.CurrentSHA,
		onEdit:     cfg.OnExternalChange,
		logger:     loggingutil.EnsureLogger(cfg.Logger).With("component", "watcher"),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Run processes filesystem events until ctx is done or Close is called.
// It is meant to be run under a supervisor so a panic restarts the
// watcher rather than killing the process.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher.fsnotify.error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if filepath.Base(ev.Name) != primaryDocName {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}

	locked, err := w.isLocked()
	if err != nil {
		w.logger.Warn("watcher.lock_check_failed", "error", err)
		return
	}
	if locked {
		return
	}

	sha, err := w.currentSHA()
	if err != nil {
		w.logger.Warn("watcher.sha_check_failed", "error", err)
		return
	}

	w.mu.Lock()
	self := sha == w.lastSeen
	w.mu.Unlock()
	if self {
		return
	}

	w.logger.Info("watcher.external_change_detected")
	w.onEdit(ctx)
}

// NoteSelfWrite records the SHA of a write the engine itself just
// performed, so the next fsnotify event for that content is recognized as
// an echo rather than an external edit.
func (w *Watcher) NoteSelfWrite(sha string) {
	w.mu.Lock()
	w.lastSeen = sha
	w.mu.Unlock()
}

// Close stops the watcher and releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	<-w.done
	return w.fsw.Close()
}
