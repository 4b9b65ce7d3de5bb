package ejreconcile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sa6mwa/ejreconcile/document"
	"github.com/sa6mwa/ejreconcile/internal/clock"
	"github.com/sa6mwa/ejreconcile/remoteapi"
	"github.com/sa6mwa/ejreconcile/store"
	"github.com/sa6mwa/ejreconcile/syncengine"
)

// noopAPI satisfies syncengine.APIClient with no-op behavior, enough to
// drive the mutator's lock/validate/write plumbing without exercising
// sync-engine semantics (those are covered in package syncengine).
type noopAPI struct{}

func (noopAPI) Register(context.Context, string, string) error                            { return nil }
func (noopAPI) Unregister(context.Context, string) error                                  { return nil }
func (noopAPI) RegisteredUsers(context.Context) ([]string, error)                          { return nil, nil }
func (noopAPI) CreateRoomWithOpts(context.Context, string, []remoteapi.RoomOption) error   { return nil }
func (noopAPI) DestroyRoom(context.Context, string) error                                  { return nil }
func (noopAPI) GetRoomAffiliations(context.Context, string) ([]remoteapi.RoomAffiliation, error) {
	return nil, nil
}
func (noopAPI) SetRoomAffiliation(context.Context, string, string, string, string) error { return nil }
func (noopAPI) GetRoster(context.Context, string, string) ([]remoteapi.RosterItem, error) {
	return nil, nil
}
func (noopAPI) AddRosterItem(context.Context, string, string, string, string, string, []string, string) error {
	return nil
}
func (noopAPI) DeleteRosterItem(context.Context, string, string, string, string) error { return nil }
func (noopAPI) GetUserBookmarks(context.Context, string, string) ([]remoteapi.Bookmark, error) {
	return nil, nil
}
func (noopAPI) SetUserBookmarks(context.Context, string, string, []remoteapi.Bookmark) error {
	return nil
}

func newTestMutator(t *testing.T) (*Mutator, *store.Store) {
	t.Helper()
	mc := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	st, err := store.Open(store.Config{Folder: t.TempDir(), Clock: mc})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	engine, err := syncengine.New(syncengine.Config{
		API:                 noopAPI{},
		Env:                 syncengine.EnvTest,
		DefaultTestPassword: "testpass",
		XMPPDomain:          "example.org",
		MUCService:          "conference.example.org",
	})
	if err != nil {
		t.Fatalf("syncengine.New: %v", err)
	}
	return NewMutator(st, engine, nil, time.Minute, nil), st
}

func TestSwapStateAppliesAndPersists(t *testing.T) {
	m, _ := newTestMutator(t)

	result := m.SwapState(context.Background(), "add alice", func(d document.Document) document.Document {
		d.Members = append(d.Members, document.Member{
			Name: "Alice", UserID: "alice", Groups: document.NewGroupSet(document.GroupOwner),
		})
		return d
	})
	if !result.OK {
		t.Fatalf("expected ok result, got errors: %v", result.Errors)
	}
	if _, ok := result.State.MemberByUserID("alice"); !ok {
		t.Fatal("expected alice present in effective state")
	}
	if !result.State.Tracking.ManagedMembers.Contains("alice") {
		t.Fatal("expected alice tracked")
	}
}

func TestSwapStateRejectsInvalidCandidate(t *testing.T) {
	m, _ := newTestMutator(t)

	result := m.SwapState(context.Background(), "break it", func(d document.Document) document.Document {
		delete(d.Groups, document.GroupOwner)
		return d
	})
	if result.OK {
		t.Fatal("expected validation failure")
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected at least one error message")
	}
}

func TestSwapStateReturnsLockedWhenHeld(t *testing.T) {
	m, st := newTestMutator(t)
	if err := st.Lock("external operation", time.Minute); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	result := m.SwapState(context.Background(), "should fail", func(d document.Document) document.Document { return d })
	if result.OK {
		t.Fatal("expected lock-held failure")
	}
}

func TestSwapStateClearsLockOnSuccess(t *testing.T) {
	m, st := newTestMutator(t)
	if result := m.SwapState(context.Background(), "noop", func(d document.Document) document.Document { return d }); !result.OK {
		t.Fatalf("expected ok, got %v", result.Errors)
	}
	locked, _, _, err := st.ReadLock()
	if err != nil {
		t.Fatalf("ReadLock: %v", err)
	}
	if locked {
		t.Fatal("expected lock released after successful swap")
	}
}

func TestUpdatePasswordRejectsUnmanagedUser(t *testing.T) {
	m, _ := newTestMutator(t)
	if err := m.UpdatePassword(context.Background(), "ghost", "newpass"); err == nil {
		t.Fatal("expected error for unmanaged user-id")
	}
}

func TestUpdatePasswordCallsRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	api, err := remoteapi.New(remoteapi.Config{AdminAPIURL: srv.URL, XMPPDomain: "example.org"})
	if err != nil {
		t.Fatalf("remoteapi.New: %v", err)
	}

	mc := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	st, err := store.Open(store.Config{Folder: t.TempDir(), Clock: mc})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if _, err := st.Write(func() document.Document {
		d := store.DefaultDocument()
		d.Members = append(d.Members, document.Member{Name: "Alice", UserID: "alice", Groups: document.NewGroupSet(document.GroupOwner)})
		d.Tracking.ManagedMembers = document.NewStringSet("alice")
		return d
	}()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	m := NewMutator(st, nil, api, time.Minute, nil)
	if err := m.UpdatePassword(context.Background(), "alice", "newpass"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
}
