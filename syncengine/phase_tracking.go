package syncengine

import "github.com/sa6mwa/ejreconcile/document"

// phaseUpdateTracking rewrites the working document's tracking section to
// reflect what this sync actually reconciled: the virtual admin-bot
// member is never recorded in managed-members, even though it was
// ghost-included throughout the sync.
func (e *Engine) phaseUpdateTracking(sc *syncContext) {
	members := document.NewStringSet()
	for _, m := range sc.working.Members {
		if m.UserID == document.AdminBotUserID {
			continue
		}
		members.Add(m.UserID)
	}

	rooms := document.NewStringSet(sc.working.ManagedRoomIDs()...)
	groups := sc.working.Groups.Keys()

	sc.working.Tracking = document.Tracking{
		ManagedMembers:   members,
		ManagedRooms:     rooms,
		ManagedGroups:    groups,
		AdminCredentials: sc.previous.AdminCredentials,
	}
}
