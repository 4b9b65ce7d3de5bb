package syncengine

import (
	"context"
	"sort"
	"sync"

	"github.com/sa6mwa/ejreconcile/remoteapi"
)

// fakeAPI is an in-memory stand-in for the remote ejabberd admin API,
// exercising the same semantics the engine depends on: registration,
// room creation/destruction, roster entries and affiliations, and
// bookmark storage.
type fakeAPI struct {
	mu sync.Mutex

	registered map[string]string // user-id -> password
	rooms      map[string]bool   // room-id -> exists
	affil      map[string]map[string]string // room-id -> jid -> affiliation
	roster     map[string][]remoteapi.RosterItem
	bookmarks  map[string][]remoteapi.Bookmark

	createRoomCalls []createRoomCall
}

type createRoomCall struct {
	name string
	opts []remoteapi.RoomOption
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		registered: make(map[string]string),
		rooms:      make(map[string]bool),
		affil:      make(map[string]map[string]string),
		roster:     make(map[string][]remoteapi.RosterItem),
		bookmarks:  make(map[string][]remoteapi.Bookmark),
	}
}

func (f *fakeAPI) Register(ctx context.Context, user, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered[user] = password
	return nil
}

func (f *fakeAPI) Unregister(ctx context.Context, user string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.registered, user)
	return nil
}

func (f *fakeAPI) RegisteredUsers(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.registered))
	for u := range f.registered {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeAPI) CreateRoomWithOpts(ctx context.Context, name string, opts []remoteapi.RoomOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[name] = true
	f.affil[name] = make(map[string]string)
	f.createRoomCalls = append(f.createRoomCalls, createRoomCall{name: name, opts: append([]remoteapi.RoomOption(nil), opts...)})
	return nil
}

func (f *fakeAPI) DestroyRoom(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, name)
	delete(f.affil, name)
	return nil
}

func (f *fakeAPI) GetRoomAffiliations(ctx context.Context, name string) ([]remoteapi.RoomAffiliation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []remoteapi.RoomAffiliation
	for jid, aff := range f.affil[name] {
		out = append(out, remoteapi.RoomAffiliation{JID: jid, Affiliation: aff})
	}
	return out, nil
}

func (f *fakeAPI) SetRoomAffiliation(ctx context.Context, name, user, host, affiliation string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.affil[name] == nil {
		f.affil[name] = make(map[string]string)
	}
	jid := user + "@" + host
	if affiliation == "none" {
		delete(f.affil[name], jid)
		return nil
	}
	f.affil[name][jid] = affiliation
	return nil
}

func (f *fakeAPI) GetRoster(ctx context.Context, localUser, localHost string) ([]remoteapi.RosterItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remoteapi.RosterItem(nil), f.roster[localUser]...), nil
}

func (f *fakeAPI) AddRosterItem(ctx context.Context, localUser, localHost, user, host, nick string, groups []string, subscription string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	jid := user + "@" + host
	items := f.roster[localUser]
	for i, it := range items {
		if it.JID == jid {
			items[i] = remoteapi.RosterItem{JID: jid, Nick: nick, Subscription: subscription, Groups: groups}
			f.roster[localUser] = items
			return nil
		}
	}
	f.roster[localUser] = append(items, remoteapi.RosterItem{JID: jid, Nick: nick, Subscription: subscription, Groups: groups})
	return nil
}

func (f *fakeAPI) DeleteRosterItem(ctx context.Context, localUser, localHost, user, host string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	jid := user + "@" + host
	items := f.roster[localUser]
	out := items[:0:0]
	for _, it := range items {
		if it.JID != jid {
			out = append(out, it)
		}
	}
	f.roster[localUser] = out
	return nil
}

func (f *fakeAPI) GetUserBookmarks(ctx context.Context, user, host string) ([]remoteapi.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remoteapi.Bookmark(nil), f.bookmarks[user]...), nil
}

func (f *fakeAPI) SetUserBookmarks(ctx context.Context, user, host string, bookmarks []remoteapi.Bookmark) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookmarks[user] = append([]remoteapi.Bookmark(nil), bookmarks...)
	return nil
}

func (f *fakeAPI) affiliationOf(room, jid string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.affil[room][jid]
}

func (f *fakeAPI) isRegistered(user string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.registered[user]
	return ok
}
