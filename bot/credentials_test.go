package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/sa6mwa/ejreconcile/document"
)

type fakeCredentialStore struct {
	creds *document.AdminCredentials
	saved []document.AdminCredentials
}

func (f *fakeCredentialStore) ReadAdminCredentials() (*document.AdminCredentials, error) {
	return f.creds, nil
}

func (f *fakeCredentialStore) SaveAdminCredentials(ctx context.Context, c document.AdminCredentials) error {
	f.saved = append(f.saved, c)
	f.creds = &c
	return nil
}

func TestIsAuthFailureRecognizesSASLRejection(t *testing.T) {
	if !isAuthFailure(errors.New("sasl: not-authorized")) {
		t.Fatal("expected not-authorized to be recognized as an auth failure")
	}
	if isAuthFailure(errors.New("dial tcp: connection refused")) {
		t.Fatal("expected a transport error not to be recognized as an auth failure")
	}
}

func TestEnsureCredentialsReturnsExistingWithoutBootstrapping(t *testing.T) {
	store := &fakeCredentialStore{creds: &document.AdminCredentials{Username: "admin", Password: "existing"}}
	creds, err := ensureCredentials(context.Background(), nil, store)
	if err != nil {
		t.Fatalf("ensureCredentials: %v", err)
	}
	if creds.Password != "existing" {
		t.Fatalf("expected existing credentials to be reused, got %+v", creds)
	}
	if len(store.saved) != 0 {
		t.Fatal("expected no write when credentials already exist")
	}
}
