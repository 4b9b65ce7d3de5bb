package syncengine

import (
	"context"

	"github.com/sa6mwa/ejreconcile/remoteapi"
)

// APIClient is the remote-ejabberd surface the sync engine drives. It is
// satisfied by *remoteapi.Client; tests supply a fake.
type APIClient interface {
	Register(ctx context.Context, user, password string) error
	Unregister(ctx context.Context, user string) error
	RegisteredUsers(ctx context.Context) ([]string, error)

	CreateRoomWithOpts(ctx context.Context, name string, opts []remoteapi.RoomOption) error
	DestroyRoom(ctx context.Context, name string) error
	GetRoomAffiliations(ctx context.Context, name string) ([]remoteapi.RoomAffiliation, error)
	SetRoomAffiliation(ctx context.Context, name, user, host, affiliation string) error

	GetRoster(ctx context.Context, localUser, localHost string) ([]remoteapi.RosterItem, error)
	AddRosterItem(ctx context.Context, localUser, localHost, user, host, nick string, groups []string, subscription string) error
	DeleteRosterItem(ctx context.Context, localUser, localHost, user, host string) error

	GetUserBookmarks(ctx context.Context, user, host string) ([]remoteapi.Bookmark, error)
	SetUserBookmarks(ctx context.Context, user, host string, bookmarks []remoteapi.Bookmark) error
}
