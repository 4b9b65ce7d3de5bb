package ejreconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/sa6mwa/ejreconcile/bot"
	"github.com/sa6mwa/ejreconcile/document"
	"github.com/sa6mwa/ejreconcile/internal/loggingutil"
	"github.com/sa6mwa/ejreconcile/internal/suturelog"
	"github.com/sa6mwa/ejreconcile/remoteapi"
	"github.com/sa6mwa/ejreconcile/store"
	"github.com/sa6mwa/ejreconcile/syncengine"
	"github.com/sa6mwa/ejreconcile/watcher"
	"pkt.systems/pslog"
)

// mutatorAdapter satisfies bot.StateMutator by translating Mutator's
// Result into the plain tuple the command dispatcher expects.
type mutatorAdapter struct {
	mutator *Mutator
}

func (a mutatorAdapter) Apply(ctx context.Context, reason string, f func(document.Document) document.Document) (bool, document.Document, []string) {
	result := a.mutator.SwapState(ctx, reason, f)
	return result.OK, result.State, result.Errors
}

// Lifecycle wires the config store, remote API client, sync engine, admin
// bot, and filesystem watcher into one supervised process, organized as a
// suture supervisor tree: a "core" layer holding the always-on pieces
// (nothing currently restarts independently there) and a "live" layer
// holding the admin bot and watcher, which Suspend/Resume stop and
// restart together without tearing down the core.
type Lifecycle struct {
	cfg Config

	store   *store.Store
	api     *remoteapi.Client
	engine  *syncengine.Engine
	mutator *Mutator
	bot     *bot.Bot
	watcher *watcher.Watcher

	root *suture.Supervisor
	live *suture.Supervisor

	liveBotToken     suture.ServiceToken
	liveWatcherToken suture.ServiceToken

	cancel context.CancelFunc
	done   <-chan error

	logger pslog.Logger
}

// NewLifecycle validates cfg and constructs every component, but does not
// start any of them; call Start to begin serving.
func NewLifecycle(cfg Config, logger pslog.Logger) (*Lifecycle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = loggingutil.EnsureLogger(logger)

	st, err := store.Open(store.Config{Folder: cfg.DBFolder, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: open store: %w", err)
	}

	api, err := remoteapi.New(remoteapi.Config{
		AdminAPIURL: cfg.AdminAPIURL,
		XMPPDomain:  cfg.XMPPDomain,
		MUCService:  cfg.MUCService,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: build remote api client: %w", err)
	}

	credStore := bot.NewStoreCredentials(st)
	adminBot, err := bot.New(bot.Config{
		XMPPDomain: cfg.XMPPDomain,
		MUCService: cfg.MUCService,
		API:        api,
		Credential: credStore,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: build admin bot: %w", err)
	}

	mucOpts := make([]remoteapi.RoomOption, len(cfg.ManagedMUCOptions))
	for i, o := range cfg.ManagedMUCOptions {
		mucOpts[i] = remoteapi.RoomOption{Name: o.Name, Value: o.Value}
	}

	engine, err := syncengine.New(syncengine.Config{
		API:                 api,
		Notifier:            adminBot,
		Env:                 syncengine.Env(cfg.Env),
		DefaultTestPassword: cfg.DefaultTestPassword,
		ManagedMUCOptions:   mucOpts,
		XMPPDomain:          cfg.XMPPDomain,
		MUCService:          cfg.MUCService,
		Logger:              logger,
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: build sync engine: %w", err)
	}

	mutator := NewMutator(st, engine, api, cfg.LockTimeout(), logger)
	credStore.SetMutator(mutatorAdapter{mutator: mutator})

	adminBot.SetDispatcher(bot.NewDispatcher(
		mutatorAdapter{mutator: mutator},
		func() (document.Document, error) {
			d, _, err := st.Read()
			return d, err
		},
		adminBotSend(adminBot),
	))

	w, err := watcher.New(watcher.Config{
		Folder:   cfg.DBFolder,
		IsLocked: func() (bool, error) { locked, _, _, err := st.ReadLock(); return locked, err },
		CurrentSHA: func() (string, error) { return st.CurrentSHA() },
		OnExternalChange: func(ctx context.Context) {
			mutator.SwapState(ctx, "filesystem change", func(d document.Document) document.Document { return d })
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: build watcher: %w", err)
	}
	mutator.SetSelfWriteHook(w.NoteSelfWrite)

	hook := suturelog.Hook(logger)
	root := suture.New("ejreconcile", suture.Spec{EventHook: hook})
	live := suture.New("ejreconcile-live", suture.Spec{EventHook: hook})
	root.Add(live)

	return &Lifecycle{
		cfg:     cfg,
		store:   st,
		api:     api,
		engine:  engine,
		mutator: mutator,
		bot:     adminBot,
		watcher: w,
		root:    root,
		live:    live,
		logger:  logger.With("component", "lifecycle"),
	}, nil
}

// adminBotSend returns the closure the command dispatcher uses to reply to
// a chat command, routed through the bot's own DM path.
func adminBotSend(b *bot.Bot) func(ctx context.Context, to, body string) error {
	return func(ctx context.Context, to, body string) error {
		return b.SendDM(ctx, to, body)
	}
}

// Mutator returns the lifecycle's mutator, for callers (e.g. an HTTP or
// CLI front end) that need to drive SwapState/UpdatePassword directly.
func (l *Lifecycle) Mutator() *Mutator { return l.mutator }

// Store returns the lifecycle's document store.
func (l *Lifecycle) Store() *store.Store { return l.store }

// Degraded reports whether the admin bot has given up reconnecting (a
// stream-level policy violation, or a SASL failure surviving the one-shot
// credential reset), wrapping its diagnostic as the spec's auth_failure/
// stream_error taxonomy so an HTTP or CLI front end can map it to its own
// status shape the same way it would any other Failure.
func (l *Lifecycle) Degraded() (bool, error) {
	degraded, reason := l.bot.Degraded()
	if !degraded {
		return false, nil
	}
	code := CodeStreamError
	if strings.HasPrefix(reason, "auth_failure:") {
		code = CodeAuthFailure
	}
	return true, Failure{Code: code, Detail: reason}
}

// Start adds the admin bot and watcher to the live supervisor layer and
// begins serving the whole tree in the background. Call Shutdown (or
// cancel ctx directly) to stop it.
func (l *Lifecycle) Start(ctx context.Context) {
	l.liveBotToken = l.live.Add(l.bot)
	l.liveWatcherToken = l.live.Add(runnableWatcher{l.watcher})
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = l.root.ServeBackground(ctx)
}

// Shutdown cancels the supervisor tree and waits up to timeout for every
// service to exit.
func (l *Lifecycle) Shutdown(timeout time.Duration) error {
	if l.cancel == nil {
		return nil
	}
	l.cancel()
	select {
	case err := <-l.done:
		return err
	case <-time.After(timeout):
		report, _ := l.root.UnstoppedServiceReport()
		return fmt.Errorf("lifecycle: shutdown timed out, unstopped services: %v", report)
	}
}

// Suspend stops the admin bot and watcher (the "live" layer) without
// tearing down the core document store or remote API client. Stopping the
// bot closes its XMPP session; Resume dials a new one.
func (l *Lifecycle) Suspend(timeout time.Duration) error {
	if err := l.live.RemoveAndWait(l.liveBotToken, timeout); err != nil {
		return fmt.Errorf("lifecycle: suspend bot: %w", err)
	}
	if err := l.live.RemoveAndWait(l.liveWatcherToken, timeout); err != nil {
		return fmt.Errorf("lifecycle: suspend watcher: %w", err)
	}
	return nil
}

// Resume re-adds the admin bot and watcher to the live layer after a
// Suspend.
func (l *Lifecycle) Resume() {
	l.liveBotToken = l.live.Add(l.bot)
	l.liveWatcherToken = l.live.Add(runnableWatcher{l.watcher})
}

// runnableWatcher adapts watcher.Watcher to suture.Service.
type runnableWatcher struct {
	w *watcher.Watcher
}

func (r runnableWatcher) Serve(ctx context.Context) error {
	return r.w.Run(ctx)
}

func (r runnableWatcher) String() string {
	return "config-watcher"
}
