package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"mellium.im/xmpp/jid"

	"github.com/sa6mwa/ejreconcile/document"
)

var (
	errAuthFailed      = errors.New("bot: sasl authentication failed")
	errPolicyViolation = errors.New("bot: stream policy violation")
)

// reconnectLoop keeps a live session established for as long as ctx is
// alive, applying a random-increasing backoff between attempts and
// self-healing credentials once if the remote account's password has
// drifted. A stream-level policy violation (rate-limit/IP ban), or a SASL
// failure that persists after the one-shot credential reset, is not
// retried: the loop declares the bot degraded and waits for ctx to end
// instead of hammering the remote further.
func (b *Bot) reconnectLoop(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 2 * time.Minute

	b.setDegraded("")
	resetOnce := false
	for {
		creds, err := ensureCredentials(ctx, b.api, b.creds)
		if err != nil {
			b.logger.Warn("bot.credentials.bootstrap_failed", "error", err)
			if !b.sleepBackoff(ctx, bo) {
				return ctx.Err()
			}
			continue
		}

		b.logger.Info("bot.session.connecting", "host", b.host)
		session, err := b.connect(ctx, creds)
		if err != nil {
			switch {
			case errors.Is(err, errPolicyViolation):
				b.logger.Error("bot.session.policy_violation", "error", err)
				return b.degrade(ctx, "stream_error: "+err.Error())
			case errors.Is(err, errAuthFailed) && !resetOnce:
				resetOnce = true
				b.logger.Warn("bot.session.auth_failed_resetting_credentials")
				if _, rerr := resetCredentials(ctx, b.api, b.creds, creds.Username); rerr != nil {
					b.logger.Warn("bot.credentials.reset_failed", "error", rerr)
				}
				continue
			case errors.Is(err, errAuthFailed):
				b.logger.Error("bot.session.auth_failed_after_reset", "error", err)
				return b.degrade(ctx, "auth_failure: "+err.Error())
			default:
				b.logger.Warn("bot.session.connect_failed", "error", err)
				if !b.sleepBackoff(ctx, bo) {
					return ctx.Err()
				}
				continue
			}
		}

		resetOnce = false
		bo.Reset()
		b.setSession(session)
		b.logger.Info("bot.session.established")

		<-ctx.Done()
		session.Close(context.Background())
		b.setSession(nil)
		return ctx.Err()
	}
}

// degrade records reason as the bot's degraded diagnostic and blocks until
// ctx ends, without attempting any further reconnect: the process keeps
// running, but the live session stays down until an operator intervenes
// (e.g. a config-triggered Suspend/Resume after fixing the remote account).
func (b *Bot) degrade(ctx context.Context, reason string) error {
	b.setDegraded(reason)
	<-ctx.Done()
	return ctx.Err()
}

func (b *Bot) sleepBackoff(ctx context.Context, bo *backoff.ExponentialBackOff) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(bo.NextBackOff()):
		return true
	}
}

func (b *Bot) setSession(s xmppSession) {
	b.mu.Lock()
	b.session = s
	b.mu.Unlock()
}

func (b *Bot) connect(ctx context.Context, creds document.AdminCredentials) (xmppSession, error) {
	self, err := jid.Parse(creds.Username + "@" + b.domain + "/reconciled")
	if err != nil {
		return nil, err
	}
	session, err := dialSession(ctx, self, creds.Password, b.logger, b.handleIncomingMessage, nil)
	if err != nil {
		switch {
		case isPolicyViolation(err):
			return nil, fmt.Errorf("%w: %v", errPolicyViolation, err)
		case isAuthFailure(err):
			return nil, errAuthFailed
		}
		return nil, err
	}
	return session, nil
}

// isAuthFailure reports whether err looks like a SASL negotiation
// rejection rather than a transport-level failure, so the reconnect loop
// knows to self-heal credentials instead of just backing off and retrying
// with the same password.
func isAuthFailure(err error) bool {
	return strings.Contains(err.Error(), "sasl") || strings.Contains(strings.ToLower(err.Error()), "not-authorized")
}

// isPolicyViolation reports whether err looks like a stream-level
// policy-violation condition (ejabberd's rate-limit/IP-ban response to
// repeated failed connections), distinct from an ordinary transport
// failure or a rejected SASL exchange.
func isPolicyViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "policy-violation") || strings.Contains(msg, "too-many")
}
