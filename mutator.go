package ejreconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/sa6mwa/ejreconcile/document"
	"github.com/sa6mwa/ejreconcile/internal/loggingutil"
	"github.com/sa6mwa/ejreconcile/remoteapi"
	"github.com/sa6mwa/ejreconcile/store"
	"github.com/sa6mwa/ejreconcile/syncengine"
	"pkt.systems/pslog"
)

// Result is the outcome of one SwapState call.
type Result struct {
	OK     bool
	State  document.Document
	Report syncengine.Report
	Errors []string
}

func failResult(errs ...string) Result {
	return Result{Errors: errs}
}

// Mutator is the only path by which the persisted document is changed: it
// serializes candidate edits through the lock, validates them, runs the
// sync engine against the live server, and persists the effective result.
type Mutator struct {
	store     *store.Store
	engine    *syncengine.Engine
	api       *remoteapi.Client
	timeout   time.Duration
	logger    pslog.Logger
	selfWrite func(sha string)
}

// NewMutator constructs a Mutator.
func NewMutator(st *store.Store, engine *syncengine.Engine, api *remoteapi.Client, lockTimeout time.Duration, logger pslog.Logger) *Mutator {
	return &Mutator{
		store:   st,
		engine:  engine,
		api:     api,
		timeout: lockTimeout,
		logger:  loggingutil.EnsureLogger(logger).With("component", "mutator"),
	}
}

// SetSelfWriteHook registers a callback invoked with the SHA-256 of every
// document this mutator writes, so a filesystem watcher observing the same
// directory can recognize its own echo instead of treating it as an
// out-of-band edit. Call it once, before Start; nil disables the hook.
func (m *Mutator) SetSelfWriteHook(f func(sha string)) {
	m.selfWrite = f
}

// SwapState reads the current document, applies f to obtain a candidate,
// and validates it; then, under the advisory lock (acquired with reason
// and released on every exit path), it runs the sync engine and persists
// the effective result. f must be pure.
func (m *Mutator) SwapState(ctx context.Context, reason string, f func(document.Document) document.Document) Result {
	locked, lockReason, expiresAt, err := m.store.ReadLock()
	if err != nil {
		return failResult(fmt.Sprintf("read lock: %v", err))
	}
	if locked {
		return failResult(fmt.Sprintf("locked for %s until %s", lockReason, expiresAt.Format(time.RFC3339)))
	}

	current, _, err := m.store.Read()
	if err != nil {
		return failResult(fmt.Sprintf("read document: %v", err))
	}

	candidate := f(current.WithoutSHA())
	if err := document.Validate(candidate); err != nil {
		return failResult(err.Error())
	}

	if err := m.store.Lock(reason, m.timeout); err != nil {
		return failResult(fmt.Sprintf("acquire lock: %v", err))
	}
	defer func() {
		if err := m.store.ClearLock(); err != nil {
			m.logger.Warn("mutator.lock.clear_failed", "error", err)
		}
	}()

	effective, report, err := m.engine.SyncState(ctx, candidate)
	if err != nil {
		return failResult(fmt.Sprintf("sync: %v", err))
	}

	written, err := m.store.Write(effective)
	if err != nil {
		return failResult(fmt.Sprintf("write document: %v", err))
	}
	if m.selfWrite != nil {
		m.selfWrite(written.FileSHA256)
	}

	return Result{OK: true, State: written, Report: report}
}

// UpdatePassword bypasses the sync engine and the document entirely: it
// verifies userID is currently managed and calls changePassword directly.
func (m *Mutator) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	current, _, err := m.store.Read()
	if err != nil {
		return fmt.Errorf("mutator: read document: %w", err)
	}
	if _, ok := current.MemberByUserID(userID); !ok {
		return Failure{Code: CodeValidation, Detail: fmt.Sprintf("user-id %q is not managed", userID)}
	}
	if err := m.api.ChangePassword(ctx, userID, newPassword); err != nil {
		return Failure{Code: CodeAPIError, Detail: err.Error()}
	}
	return nil
}
