package bot

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/sa6mwa/ejreconcile/document"
	"github.com/sa6mwa/ejreconcile/remoteapi"
	"github.com/sa6mwa/ejreconcile/store"
)

// StoreCredentials adapts a *store.Store to the CredentialStore seam the
// bot uses to persist its own live account credentials in the document's
// do-not-edit-state section. Reads go straight to the store; writes funnel
// through a StateMutator (set with SetMutator once one exists) so they take
// the same advisory lock every other write does, instead of racing a
// concurrent swapState call.
type StoreCredentials struct {
	store *store.Store

	mu      sync.Mutex
	mutator StateMutator
}

// NewStoreCredentials returns a CredentialStore backed by st. SetMutator
// must be called once a StateMutator is available, before any call that
// triggers SaveAdminCredentials (bot startup and SASL-failure recovery);
// until then SaveAdminCredentials fails rather than bypassing the lock.
func NewStoreCredentials(st *store.Store) *StoreCredentials {
	return &StoreCredentials{store: st}
}

// SetMutator attaches the mutator that SaveAdminCredentials applies its
// changes through. It may be called after construction, mirroring
// Bot.SetDispatcher, since the mutator and the bot are built from opposite
// ends of the same dependency cycle.
func (s *StoreCredentials) SetMutator(m StateMutator) {
	s.mu.Lock()
	s.mutator = m
	s.mu.Unlock()
}

func (s *StoreCredentials) ReadAdminCredentials() (*document.AdminCredentials, error) {
	doc, _, err := s.store.Read()
	if err != nil {
		return nil, err
	}
	return doc.Tracking.AdminCredentials, nil
}

func (s *StoreCredentials) SaveAdminCredentials(ctx context.Context, creds document.AdminCredentials) error {
	s.mu.Lock()
	mutator := s.mutator
	s.mu.Unlock()
	if mutator == nil {
		return fmt.Errorf("bot: save admin credentials: no mutator attached yet")
	}
	ok, _, errs := mutator.Apply(ctx, "admin bot credential rotation", func(d document.Document) document.Document {
		d.Tracking.AdminCredentials = &creds
		return d
	})
	if !ok {
		return fmt.Errorf("bot: save admin credentials: %v", errs)
	}
	return nil
}

// ensureCredentials returns the admin bot's live account JID-localpart and
// password, registering a fresh account with the remote API and persisting
// it via creds if none exists yet.
func ensureCredentials(ctx context.Context, api *remoteapi.Client, creds CredentialStore) (document.AdminCredentials, error) {
	existing, err := creds.ReadAdminCredentials()
	if err != nil {
		return document.AdminCredentials{}, fmt.Errorf("bot: read admin credentials: %w", err)
	}
	if existing != nil && existing.Username != "" && existing.Password != "" {
		return *existing, nil
	}
	return bootstrapCredentials(ctx, api, creds)
}

func bootstrapCredentials(ctx context.Context, api *remoteapi.Client, creds CredentialStore) (document.AdminCredentials, error) {
	password, err := randomPassword()
	if err != nil {
		return document.AdminCredentials{}, fmt.Errorf("bot: generate password: %w", err)
	}
	fresh := document.AdminCredentials{Username: document.AdminBotUserID, Password: password}
	if err := api.Register(ctx, fresh.Username, fresh.Password); err != nil {
		return document.AdminCredentials{}, fmt.Errorf("bot: register admin account: %w", err)
	}
	if err := creds.SaveAdminCredentials(ctx, fresh); err != nil {
		return document.AdminCredentials{}, fmt.Errorf("bot: persist admin credentials: %w", err)
	}
	return fresh, nil
}

// resetCredentials is called after a SASL authentication failure: it
// assumes the remote account's password has drifted from what is
// recorded, issues a fresh one through the admin API, and persists it so
// the next connection attempt uses the corrected value.
func resetCredentials(ctx context.Context, api *remoteapi.Client, creds CredentialStore, username string) (document.AdminCredentials, error) {
	password, err := randomPassword()
	if err != nil {
		return document.AdminCredentials{}, fmt.Errorf("bot: generate password: %w", err)
	}
	if err := api.ChangePassword(ctx, username, password); err != nil {
		return document.AdminCredentials{}, fmt.Errorf("bot: reset admin password: %w", err)
	}
	fresh := document.AdminCredentials{Username: username, Password: password}
	if err := creds.SaveAdminCredentials(ctx, fresh); err != nil {
		return document.AdminCredentials{}, fmt.Errorf("bot: persist admin credentials: %w", err)
	}
	return fresh, nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
