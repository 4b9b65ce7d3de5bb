// Package bot runs the privileged XMPP admin account that participates in
// every managed room: it self-heals its own credentials, joins rooms the
// sync engine creates, announces affiliation changes, and answers a
// small set of owner-gated chat commands.
package bot

import (
	"context"
	"fmt"
	"sync"

	"mellium.im/xmpp/jid"

	"github.com/sa6mwa/ejreconcile/document"
	"github.com/sa6mwa/ejreconcile/internal/loggingutil"
	"github.com/sa6mwa/ejreconcile/remoteapi"
	"github.com/sa6mwa/ejreconcile/syncengine"
	"pkt.systems/pslog"
)

var _ syncengine.Notifier = (*Bot)(nil)

// OmemoStore is the seam for optional end-to-end encryption of direct
// messages. A nil OmemoStore (the default) disables encryption entirely;
// SessionFor then always returns ok=false and every DM is sent plaintext.
type OmemoStore interface {
	SessionFor(peer jid.JID) (encrypt func(plaintext string) (string, error), ok bool)
}

type noopOmemoStore struct{}

func (noopOmemoStore) SessionFor(jid.JID) (func(string) (string, error), bool) { return nil, false }

// CredentialStore persists the admin bot's live account credentials into
// the document's do-not-edit-state section, outside the normal sync flow.
// SaveAdminCredentials must still serialize through the same swapState path
// every other write uses (see StateMutator), so it takes a context.
type CredentialStore interface {
	ReadAdminCredentials() (*document.AdminCredentials, error)
	SaveAdminCredentials(ctx context.Context, creds document.AdminCredentials) error
}

// Config configures a Bot.
type Config struct {
	XMPPDomain string
	// XMPPHost is the host name reported in the connect log line; defaults
	// to "xmpp." + XMPPDomain. It does not change the TCP dial target, which
	// dial.Client resolves from XMPPDomain.
	XMPPHost   string
	MUCService string
	API        *remoteapi.Client
	Credential CredentialStore
	Omemo      OmemoStore
	Logger     pslog.Logger
}

// Bot is the admin account's supervised session.
type Bot struct {
	domain     string
	host       string
	mucService string
	api        *remoteapi.Client
	creds      CredentialStore
	omemo      OmemoStore
	logger     pslog.Logger

	mu         sync.Mutex
	session    xmppSession
	joined     map[string]bool // room-id -> joined
	dispatcher *Dispatcher
	degraded   string // non-empty once the reconnect loop has given up
}

// Degraded reports whether the bot has stopped attempting to reconnect
// (a stream-level policy violation, or a second consecutive SASL failure
// after the one-shot credential reset) and, if so, the diagnostic recorded
// when it gave up. The process keeps running; only the live session does
// not.
func (b *Bot) Degraded() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.degraded != "", b.degraded
}

func (b *Bot) setDegraded(reason string) {
	b.mu.Lock()
	b.degraded = reason
	b.mu.Unlock()
}

// SetDispatcher attaches the command dispatcher that handles incoming chat
// messages. It may be called at any point before or after Serve starts;
// messages received before it is set are silently dropped.
func (b *Bot) SetDispatcher(d *Dispatcher) {
	b.mu.Lock()
	b.dispatcher = d
	b.mu.Unlock()
}

func (b *Bot) handleIncomingMessage(ctx context.Context, from, body string) {
	b.mu.Lock()
	d := b.dispatcher
	b.mu.Unlock()
	if d == nil {
		return
	}
	d.Handle(ctx, from, body)
}

// New constructs a Bot. Serve must be called (normally by a suture
// supervisor) to establish and maintain the session.
func New(cfg Config) (*Bot, error) {
	if cfg.XMPPDomain == "" {
		return nil, fmt.Errorf("bot: xmpp domain required")
	}
	if cfg.API == nil {
		return nil, fmt.Errorf("bot: remote api client required")
	}
	if cfg.Credential == nil {
		return nil, fmt.Errorf("bot: credential store required")
	}
	host := cfg.XMPPHost
	if host == "" {
		host = "xmpp." + cfg.XMPPDomain
	}
	omemo := cfg.Omemo
	if omemo == nil {
		omemo = noopOmemoStore{}
	}
	return &Bot{
		domain:     cfg.XMPPDomain,
		host:       host,
		mucService: cfg.MUCService,
		api:        cfg.API,
		creds:      cfg.Credential,
		omemo:      omemo,
		logger:     loggingutil.EnsureLogger(cfg.Logger).With("component", "bot"),
		joined:     make(map[string]bool),
	}, nil
}

// Serve satisfies suture.Service: it bootstraps credentials, maintains
// the XMPP session with reconnection backoff, and dispatches incoming
// messages until ctx is canceled.
func (b *Bot) Serve(ctx context.Context) error {
	return b.reconnectLoop(ctx)
}

// String satisfies suture's service-naming convention.
func (b *Bot) String() string {
	return "admin-bot"
}

// JoinRoom satisfies syncengine.Notifier: it joins a newly-created room on
// demand, idempotently.
func (b *Bot) JoinRoom(ctx context.Context, roomID string) error {
	b.mu.Lock()
	session := b.session
	already := b.joined[roomID]
	b.mu.Unlock()
	if already {
		return nil
	}
	if session == nil {
		return fmt.Errorf("bot: no active session")
	}
	room, err := jid.Parse(roomID + "@" + b.mucService + "/Admin Bot")
	if err != nil {
		return fmt.Errorf("bot: parse room jid: %w", err)
	}
	if err := session.JoinMUC(ctx, room); err != nil {
		return fmt.Errorf("bot: join %s: %w", roomID, err)
	}
	b.mu.Lock()
	b.joined[roomID] = true
	b.mu.Unlock()
	return nil
}

// AffiliationChanged satisfies syncengine.Notifier: it sends a DM to the
// affected user announcing their new role.
func (b *Bot) AffiliationChanged(ctx context.Context, userID, roomName, roomID string, from, to document.Affiliation) error {
	if userID == document.AdminBotUserID {
		return nil
	}
	var text string
	if to == document.AffiliationNone {
		text = fmt.Sprintf("you have been removed from %q", roomName)
	} else {
		joinURL := fmt.Sprintf("xmpp:%s@%s?join", roomID, b.mucService)
		text = fmt.Sprintf("you are now %s of %q — join at %s", to, roomName, joinURL)
	}
	return b.SendDM(ctx, userID, text)
}

// SendDM sends a plain chat message to userID over the live session,
// transparently encrypting it if an OmemoStore session exists for the
// peer. It is exported so a command dispatcher wired up outside this
// package can route replies through the same path.
func (b *Bot) SendDM(ctx context.Context, userID, text string) error {
	if userID == document.AdminBotUserID {
		return nil
	}
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()
	if session == nil {
		return fmt.Errorf("bot: no active session")
	}
	to, err := jid.Parse(userID + "@" + b.domain)
	if err != nil {
		return fmt.Errorf("bot: parse peer jid: %w", err)
	}
	body := text
	omemo := b.omemo
	if omemo == nil {
		omemo = noopOmemoStore{}
	}
	if encrypt, ok := omemo.SessionFor(to); ok {
		if cipher, err := encrypt(text); err == nil {
			body = cipher
		} else {
			b.logger.Warn("bot.omemo.encrypt_failed", "peer", userID, "error", err)
		}
	}
	return session.SendMessage(ctx, to, body)
}
