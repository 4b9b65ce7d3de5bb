// Package syncengine reconciles a configuration document against the
// remote ejabberd server across eight ordered phases, returning the
// effective document and a change report.
package syncengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sa6mwa/ejreconcile/document"
	"github.com/sa6mwa/ejreconcile/internal/clock"
	"github.com/sa6mwa/ejreconcile/internal/loggingutil"
	"github.com/sa6mwa/ejreconcile/remoteapi"
	"pkt.systems/pslog"
)

// Env selects dev/test/prod posture for generated user passwords.
type Env string

const (
	EnvDev  Env = "dev"
	EnvTest Env = "test"
	EnvProd Env = "prod"
)

// Notifier is the admin bot's seam into the sync engine: room joins for
// newly-created rooms, and DM announcements for affiliation changes. A
// nil Notifier is replaced with a no-op implementation.
type Notifier interface {
	JoinRoom(ctx context.Context, roomID string) error
	AffiliationChanged(ctx context.Context, userID, roomName, roomID string, from, to document.Affiliation) error
}

type noopNotifier struct{}

func (noopNotifier) JoinRoom(context.Context, string) error { return nil }
func (noopNotifier) AffiliationChanged(context.Context, string, string, string, document.Affiliation, document.Affiliation) error {
	return nil
}

// Config configures an Engine.
type Config struct {
	API                 APIClient
	Notifier            Notifier
	Env                 Env
	DefaultTestPassword string
	ManagedMUCOptions   []remoteapi.RoomOption
	XMPPDomain          string
	MUCService          string
	Metrics             *Metrics
	Tracer              trace.Tracer
	Clock               clock.Clock
	Logger              pslog.Logger
}

// Engine reconciles documents against the remote server.
type Engine struct {
	api        APIClient
	notifier   Notifier
	env        Env
	testPass   string
	mucOptions []remoteapi.RoomOption
	domain     string
	mucService string
	metrics    *Metrics
	tracer     trace.Tracer
	clock      clock.Clock
	logger     pslog.Logger
}

// New constructs an Engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("syncengine: api client required")
	}
	if cfg.XMPPDomain == "" {
		return nil, fmt.Errorf("syncengine: xmpp domain required")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	env := cfg.Env
	if env == "" {
		env = EnvProd
	}
	c := cfg.Clock
	if c == nil {
		c = clock.Real{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("ejreconcile/sync")
	}
	return &Engine{
		api:        cfg.API,
		notifier:   notifier,
		env:        env,
		testPass:   cfg.DefaultTestPassword,
		mucOptions: cfg.ManagedMUCOptions,
		domain:     cfg.XMPPDomain,
		mucService: cfg.MUCService,
		metrics:    cfg.Metrics,
		tracer:     tracer,
		clock:      c,
		logger:     loggingutil.EnsureLogger(cfg.Logger).With("component", "syncengine"),
	}, nil
}

// syncContext carries the mutable state threaded through the phases of a
// single SyncState call.
type syncContext struct {
	working  document.Document
	previous document.Tracking
	report   *Report
}

// SyncState executes the eight-phase reconciliation against doc and
// returns the effective document (with room-ids and tracking refreshed)
// together with a full change report. It never aborts mid-sync on a
// per-entity remote failure; those are recorded in the report.
func (e *Engine) SyncState(ctx context.Context, doc document.Document) (document.Document, Report, error) {
	ctx, span := e.tracer.Start(ctx, "SyncState")
	defer span.End()

	sc := &syncContext{
		working:  document.GhostIncludeBot(doc),
		previous: doc.Tracking,
		report:   &Report{CorrelationID: uuid.New().String()},
	}

	e.phaseDeleteUsers(ctx, sc)
	e.phaseDeleteRooms(ctx, sc)
	e.phaseRegisterUsers(ctx, sc)
	e.phaseCreateRooms(ctx, sc)
	e.phaseSyncRosters(ctx, sc)
	e.phaseSyncAffiliationsAndBookmarks(ctx, sc)
	e.phaseUpdateTracking(sc)

	effective := document.GhostRemoveBot(sc.working)
	return effective, *sc.report, nil
}

func (e *Engine) record(phase, action, subject, detail string, report *Report) {
	report.add(phase, action, subject, detail)
	if e.metrics != nil {
		e.metrics.RecordAction(phase, action)
	}
}

// recordAPIError records a remote-API failure, distinguishing an open
// circuit breaker (the family's endpoint is being deliberately skipped,
// not individually failing) from an ordinary call failure so the report
// shows which one happened instead of collapsing both into failedAction.
func (e *Engine) recordAPIError(phase, failedAction, subject string, err error, report *Report) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		e.record(phase, ActionCircuitOpen, subject, err.Error(), report)
		return
	}
	e.record(phase, failedAction, subject, err.Error(), report)
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name)
}
