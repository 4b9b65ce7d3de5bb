package syncengine

import "context"

const (
	phaseDeleteUsers = "delete-users"
	phaseDeleteRooms = "delete-rooms"
)

// phaseDeleteUsers removes every tracked user no longer present in the
// current document: it strips the user from every remaining managed
// member's roster, clears its affiliation in every tracked room, then
// unregisters it. Per-call failures are recorded and non-fatal.
func (e *Engine) phaseDeleteUsers(ctx context.Context, sc *syncContext) {
	ctx, span := e.startSpan(ctx, phaseDeleteUsers)
	defer span.End()

	_, toDelete := userDiff(sc)
	if len(toDelete) == 0 {
		return
	}
	remaining := sc.working.ManagedUserIDs()
	trackedRooms := sc.previous.ManagedRooms.Sorted()

	for _, userID := range toDelete.Sorted() {
		for _, peer := range remaining {
			if peer == userID {
				continue
			}
			if err := e.api.DeleteRosterItem(ctx, peer, e.domain, userID, e.domain); err != nil {
				e.recordAPIError(phaseDeleteUsers, ActionRosterRemoveFailed, userID, err, sc.report)
			}
		}
		for _, roomID := range trackedRooms {
			if err := e.api.SetRoomAffiliation(ctx, roomID, userID, e.domain, "none"); err != nil {
				e.recordAPIError(phaseDeleteUsers, ActionAffiliationFailed, userID, err, sc.report)
			}
		}
		if err := e.api.Unregister(ctx, userID); err != nil {
			e.recordAPIError(phaseDeleteUsers, ActionUserDeleteFailed, userID, err, sc.report)
			continue
		}
		e.record(phaseDeleteUsers, ActionUserDeleted, userID, "", sc.report)
	}
}

// phaseDeleteRooms destroys every tracked room no longer present in the
// current document, clearing every tracked user's affiliation first.
func (e *Engine) phaseDeleteRooms(ctx context.Context, sc *syncContext) {
	ctx, span := e.startSpan(ctx, phaseDeleteRooms)
	defer span.End()

	toDelete := roomsToDelete(sc)
	if len(toDelete) == 0 {
		return
	}
	trackedUsers := sc.previous.ManagedMembers.Sorted()

	for _, roomID := range toDelete.Sorted() {
		for _, userID := range trackedUsers {
			if err := e.api.SetRoomAffiliation(ctx, roomID, userID, e.domain, "none"); err != nil {
				e.recordAPIError(phaseDeleteRooms, ActionAffiliationFailed, roomID, err, sc.report)
			}
		}
		if err := e.api.DestroyRoom(ctx, roomID); err != nil {
			e.recordAPIError(phaseDeleteRooms, ActionRoomDeleteFailed, roomID, err, sc.report)
			continue
		}
		e.record(phaseDeleteRooms, ActionRoomDeleted, roomID, "", sc.report)
	}
}
