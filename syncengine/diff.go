package syncengine

import "github.com/sa6mwa/ejreconcile/document"

// userDiff computes the users to register and the users to remove by
// comparing the ghost-included current member set against the previously
// tracked managed-members set.
func userDiff(sc *syncContext) (toAdd, toDelete document.StringSet) {
	current := document.NewStringSet(sc.working.ManagedUserIDs()...)
	toAdd = current.Minus(sc.previous.ManagedMembers)
	toDelete = sc.previous.ManagedMembers.Minus(current)
	return toAdd, toDelete
}

// roomsToCreate returns the indexes into sc.working.Rooms awaiting their
// first sync (no room-id assigned yet).
func roomsToCreate(sc *syncContext) []int {
	var idx []int
	for i, r := range sc.working.Rooms {
		if r.RoomID == "" {
			idx = append(idx, i)
		}
	}
	return idx
}

// roomsToDelete returns the previously tracked room-ids no longer present
// in the current document.
func roomsToDelete(sc *syncContext) document.StringSet {
	current := document.NewStringSet(sc.working.ManagedRoomIDs()...)
	return sc.previous.ManagedRooms.Minus(current)
}
