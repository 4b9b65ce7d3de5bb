package syncengine

import (
	"context"
	"testing"

	"github.com/sa6mwa/ejreconcile/document"
)

func baseGroups() document.Groups {
	return document.Groups{
		document.GroupOwner:                      "Owner",
		document.GroupBot:                         "Bot",
		document.GroupKey{Namespace: "group", Name: "member"}: "Member",
	}
}

func newTestEngine(t *testing.T, api APIClient) *Engine {
	t.Helper()
	e, err := New(Config{
		API:                 api,
		Env:                 EnvTest,
		DefaultTestPassword: "testpass",
		XMPPDomain:          "example.org",
		MUCService:          "conference.example.org",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestSyncStateCreatesUserAndRoom(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(t, api)

	doc := document.Document{
		Groups: baseGroups(),
		Members: []document.Member{
			{Name: "Alice", UserID: "alice", Groups: document.NewGroupSet(document.GroupOwner)},
		},
		Rooms: []document.Room{
			{
				Name:    "Officers",
				Members: document.NewGroupSet(document.GroupOwner),
				Admins:  document.NewGroupSet(document.GroupOwner),
			},
		},
	}

	effective, report, err := e.SyncState(context.Background(), doc)
	if err != nil {
		t.Fatalf("SyncState: %v", err)
	}

	if !api.isRegistered("alice") || !api.isRegistered("admin") {
		t.Fatalf("expected alice and admin registered, got %+v", api.registered)
	}
	if !api.rooms["officers"] {
		t.Fatal("expected room 'officers' to exist")
	}
	if got := api.affiliationOf("officers", "alice@example.org"); got != "admin" {
		t.Fatalf("expected alice admin affiliation, got %q", got)
	}
	if got := api.affiliationOf("officers", "admin@example.org"); got != "admin" {
		t.Fatalf("expected admin-bot admin affiliation, got %q", got)
	}
	if effective.Rooms[0].RoomID != "officers" {
		t.Fatalf("expected room-id 'officers', got %q", effective.Rooms[0].RoomID)
	}
	if !effective.Tracking.ManagedMembers.Contains("alice") {
		t.Fatalf("expected alice tracked, got %+v", effective.Tracking.ManagedMembers)
	}
	if effective.Tracking.ManagedMembers.Contains(document.AdminBotUserID) {
		t.Fatal("admin bot must never appear in managed-members")
	}
	if len(report.Entries) == 0 {
		t.Fatal("expected a non-empty report")
	}
}

func TestSyncStateDeletesRemovedUser(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(t, api)

	doc := document.Document{
		Groups: baseGroups(),
		Members: []document.Member{
			{Name: "Alice", UserID: "alice", Groups: document.NewGroupSet(document.GroupOwner)},
		},
		Rooms: []document.Room{
			{Name: "Officers", Members: document.NewGroupSet(document.GroupOwner), Admins: document.NewGroupSet(document.GroupOwner)},
		},
	}
	first, _, err := e.SyncState(context.Background(), doc)
	if err != nil {
		t.Fatalf("first SyncState: %v", err)
	}

	withoutAlice := first.WithoutSHA()
	withoutAlice.Members = nil
	second, _, err := e.SyncState(context.Background(), withoutAlice)
	if err != nil {
		t.Fatalf("second SyncState: %v", err)
	}

	if api.isRegistered("alice") {
		t.Fatal("expected alice to be unregistered")
	}
	if got := api.affiliationOf("officers", "alice@example.org"); got != "" {
		t.Fatalf("expected alice affiliation cleared, got %q", got)
	}
	if second.Tracking.ManagedMembers.Contains("alice") {
		t.Fatal("expected alice removed from tracking")
	}
}

func TestSyncStateModeratedRoomOptions(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(t, api)

	doc := document.Document{
		Groups: baseGroups(),
		Rooms: []document.Room{
			{
				Name:               "Announcements",
				Admins:             document.NewGroupSet(document.GroupOwner),
				Members:            document.NewGroupSet(document.GroupKey{Namespace: "group", Name: "member"}),
				OnlyAdminsCanSpeak: true,
			},
		},
	}
	if _, _, err := e.SyncState(context.Background(), doc); err != nil {
		t.Fatalf("SyncState: %v", err)
	}

	if len(api.createRoomCalls) != 1 {
		t.Fatalf("expected one create_room_with_opts call, got %d", len(api.createRoomCalls))
	}
	foundMembersByDefault := false
	foundModerated := false
	for _, opt := range api.createRoomCalls[0].opts {
		if opt.Name == "members_by_default" && opt.Value == "false" {
			foundMembersByDefault = true
		}
		if opt.Name == "moderated" && opt.Value == "true" {
			foundModerated = true
		}
	}
	if !foundMembersByDefault {
		t.Fatalf("expected members_by_default=false among opts, got %+v", api.createRoomCalls[0].opts)
	}
	if !foundModerated {
		t.Fatalf("expected moderated=true among opts, got %+v", api.createRoomCalls[0].opts)
	}
}

func TestSyncStateUnmoderatedRoomStillSetsModeratedFalse(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(t, api)

	doc := document.Document{
		Groups: baseGroups(),
		Rooms: []document.Room{
			{
				Name:    "Open Floor",
				Admins:  document.NewGroupSet(document.GroupOwner),
				Members: document.NewGroupSet(document.GroupKey{Namespace: "group", Name: "member"}),
			},
		},
	}
	if _, _, err := e.SyncState(context.Background(), doc); err != nil {
		t.Fatalf("SyncState: %v", err)
	}

	if len(api.createRoomCalls) != 1 {
		t.Fatalf("expected one create_room_with_opts call, got %d", len(api.createRoomCalls))
	}
	for _, opt := range api.createRoomCalls[0].opts {
		if opt.Name == "moderated" {
			if opt.Value != "false" {
				t.Fatalf("expected moderated=false, got %q", opt.Value)
			}
			return
		}
	}
	t.Fatalf("expected a moderated option among opts, got %+v", api.createRoomCalls[0].opts)
}

func TestSyncStateBookmarkNickIsUserID(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(t, api)

	doc := document.Document{
		Groups: baseGroups(),
		Members: []document.Member{
			{Name: "Alice Anderson", UserID: "alice", Groups: document.NewGroupSet(document.GroupOwner)},
		},
		Rooms: []document.Room{
			{Name: "Officers", Members: document.NewGroupSet(document.GroupOwner), Admins: document.NewGroupSet(document.GroupOwner)},
		},
	}
	if _, _, err := e.SyncState(context.Background(), doc); err != nil {
		t.Fatalf("SyncState: %v", err)
	}

	bookmarks, err := api.GetUserBookmarks(context.Background(), "alice", "example.org")
	if err != nil {
		t.Fatalf("GetUserBookmarks: %v", err)
	}
	if len(bookmarks) != 1 {
		t.Fatalf("expected one bookmark, got %d", len(bookmarks))
	}
	if bookmarks[0].Nick != "alice" {
		t.Fatalf("expected bookmark nick to be the user-id %q, got %q", "alice", bookmarks[0].Nick)
	}
}

func TestSyncStateIsIdempotent(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(t, api)

	doc := document.Document{
		Groups: baseGroups(),
		Members: []document.Member{
			{Name: "Alice", UserID: "alice", Groups: document.NewGroupSet(document.GroupOwner)},
			{Name: "Bob", UserID: "bob", Groups: document.NewGroupSet(document.GroupKey{Namespace: "group", Name: "member"})},
		},
		Rooms: []document.Room{
			{Name: "Officers", Members: document.NewGroupSet(document.GroupOwner), Admins: document.NewGroupSet(document.GroupOwner)},
		},
	}
	first, _, err := e.SyncState(context.Background(), doc)
	if err != nil {
		t.Fatalf("first SyncState: %v", err)
	}

	_, second, err := e.SyncState(context.Background(), first.WithoutSHA())
	if err != nil {
		t.Fatalf("second SyncState: %v", err)
	}

	for _, entry := range second.Entries {
		if !hasSuffix(entry.Action, "-unchanged") && !hasSuffix(entry.Action, "-already-exists") {
			t.Fatalf("expected only unchanged/already-exists actions on reconverge, got %q for %q", entry.Action, entry.Subject)
		}
	}
}

func TestSyncStateRenamePreservesRoomID(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(t, api)

	doc := document.Document{
		Groups: baseGroups(),
		Members: []document.Member{
			{Name: "Alice", UserID: "alice", Groups: document.NewGroupSet(document.GroupOwner)},
		},
		Rooms: []document.Room{
			{Name: "Officers", Members: document.NewGroupSet(document.GroupOwner), Admins: document.NewGroupSet(document.GroupOwner)},
		},
	}
	first, _, err := e.SyncState(context.Background(), doc)
	if err != nil {
		t.Fatalf("first SyncState: %v", err)
	}

	renamed := first.WithoutSHA()
	renamed.Rooms[0].Name = "Senior Officers"
	callsBefore := len(api.createRoomCalls)
	effective, _, err := e.SyncState(context.Background(), renamed)
	if err != nil {
		t.Fatalf("second SyncState: %v", err)
	}
	if len(api.createRoomCalls) != callsBefore {
		t.Fatal("expected no new room creation on rename")
	}
	if effective.Rooms[0].RoomID != "officers" {
		t.Fatalf("expected room-id preserved across rename, got %q", effective.Rooms[0].RoomID)
	}
}
