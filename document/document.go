// Package document models the single persistent configuration document
// that drives the reconciliation engine: groups, rooms, members, and the
// engine-maintained tracking section, plus the pure validator and
// room-membership function that operate on them.
package document

import "sort"

// GroupOwner and GroupBot are the two mandatory group keys. Every document
// must define both; GroupBot is the group the virtual admin-bot member
// belongs to.
var (
	GroupOwner = GroupKey{Namespace: "group", Name: "owner"}
	GroupBot   = GroupKey{Namespace: "group", Name: "bot"}
)

// AdminBotUserID is the fixed user-id of the virtual admin-bot member that
// is ghost-included at the start of every sync and ghost-removed before
// persistence.
const AdminBotUserID = "admin"

// Groups maps a namespaced group identifier to a human-readable label.
type Groups map[GroupKey]string

// Clone returns an independent copy of the group map.
func (g Groups) Clone() Groups {
	out := make(Groups, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}

// Keys returns the set of defined group identifiers.
func (g Groups) Keys() GroupSet {
	out := make(GroupSet, len(g))
	for k := range g {
		out[k] = struct{}{}
	}
	return out
}

// Room is one managed chat room and its access policy.
type Room struct {
	Name                string   `json:"name"`
	RoomID              string   `json:"room-id,omitempty"`
	Members             GroupSet `json:"members"`
	Admins              GroupSet `json:"admins"`
	OnlyAdminsCanSpeak  bool     `json:"only-admins-can-speak?"`
}

// Clone returns an independent copy of the room.
func (r Room) Clone() Room {
	out := r
	out.Members = r.Members.Clone()
	out.Admins = r.Admins.Clone()
	return out
}

// Member is one managed user and the groups it belongs to.
type Member struct {
	Name   string   `json:"name"`
	UserID string   `json:"user-id"`
	Groups GroupSet `json:"groups"`
}

// Clone returns an independent copy of the member.
func (m Member) Clone() Member {
	out := m
	out.Groups = m.Groups.Clone()
	return out
}

// AdminCredentials holds the admin-bot's live ejabberd account credentials,
// tracked by the engine and never derived from the operator-visible
// document sections.
type AdminCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Tracking is the engine-maintained "do-not-edit-state" section: the set of
// entities the engine considered managed as of the last successful sync.
type Tracking struct {
	ManagedMembers    StringSet         `json:"managed-members"`
	ManagedRooms      StringSet         `json:"managed-rooms"`
	ManagedGroups     GroupSet          `json:"managed-groups"`
	AdminCredentials  *AdminCredentials `json:"admin-credentials,omitempty"`
}

// Clone returns an independent copy of the tracking section.
func (t Tracking) Clone() Tracking {
	out := Tracking{
		ManagedMembers: t.ManagedMembers.Clone(),
		ManagedRooms:   t.ManagedRooms.Clone(),
		ManagedGroups:  t.ManagedGroups.Clone(),
	}
	if t.AdminCredentials != nil {
		creds := *t.AdminCredentials
		out.AdminCredentials = &creds
	}
	return out
}

// Document is the single persistent configuration record.
type Document struct {
	Groups   Groups   `json:"groups"`
	Rooms    []Room   `json:"rooms"`
	Members  []Member `json:"members"`
	Tracking Tracking `json:"do-not-edit-state"`

	// FileSHA256 is attached by the config store on read and stripped
	// before validation/write; it is never part of the canonical on-disk
	// form.
	FileSHA256 string `json:"_file-sha256,omitempty"`
}

// Clone returns a deep, independent copy of the document.
func (d Document) Clone() Document {
	out := Document{
		Groups:     d.Groups.Clone(),
		Rooms:      make([]Room, len(d.Rooms)),
		Members:    make([]Member, len(d.Members)),
		Tracking:   d.Tracking.Clone(),
		FileSHA256: d.FileSHA256,
	}
	for i, r := range d.Rooms {
		out.Rooms[i] = r.Clone()
	}
	for i, m := range d.Members {
		out.Members[i] = m.Clone()
	}
	return out
}

// WithoutSHA returns a copy of d with the attached file SHA stripped, as
// required before validation and before write.
func (d Document) WithoutSHA() Document {
	out := d.Clone()
	out.FileSHA256 = ""
	return out
}

// MemberByUserID looks up a member by user-id.
func (d Document) MemberByUserID(userID string) (Member, bool) {
	for _, m := range d.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// RoomByRoomID looks up a room by its stable room-id.
func (d Document) RoomByRoomID(roomID string) (Room, bool) {
	for _, r := range d.Rooms {
		if r.RoomID == roomID {
			return r, true
		}
	}
	return Room{}, false
}

// GhostIncludeBot returns a copy of d with the virtual admin-bot member
// prepended to Members, for the duration of one sync.
func GhostIncludeBot(d Document) Document {
	out := d.Clone()
	bot := Member{
		Name:   "Admin Bot",
		UserID: AdminBotUserID,
		Groups: NewGroupSet(GroupBot),
	}
	out.Members = append([]Member{bot}, out.Members...)
	return out
}

// GhostRemoveBot returns a copy of d with the virtual admin-bot member
// removed from Members, as required before persistence.
func GhostRemoveBot(d Document) Document {
	out := d.Clone()
	filtered := make([]Member, 0, len(out.Members))
	for _, m := range out.Members {
		if m.UserID == AdminBotUserID {
			continue
		}
		filtered = append(filtered, m)
	}
	out.Members = filtered
	return out
}

// ManagedUserIDs returns the sorted set of user-ids currently named by the
// document's Members section (including any ghost-included bot).
func (d Document) ManagedUserIDs() []string {
	ids := make([]string, 0, len(d.Members))
	for _, m := range d.Members {
		ids = append(ids, m.UserID)
	}
	sort.Strings(ids)
	return ids
}

// ManagedRoomIDs returns the sorted set of room-ids currently assigned in
// the document's Rooms section. Rooms awaiting their first sync (empty
// room-id) are excluded.
func (d Document) ManagedRoomIDs() []string {
	ids := make([]string, 0, len(d.Rooms))
	for _, r := range d.Rooms {
		if r.RoomID == "" {
			continue
		}
		ids = append(ids, r.RoomID)
	}
	sort.Strings(ids)
	return ids
}
