package syncengine

import (
	"context"
	"strconv"

	"github.com/sa6mwa/ejreconcile/document"
	"github.com/sa6mwa/ejreconcile/remoteapi"
)

const phaseCreateRooms = "create-rooms"

// phaseCreateRooms creates every room in the document awaiting its first
// sync (no room-id assigned yet). The room-id is derived from the room
// name and written back into sc.working on success so later phases and
// the persisted tracking section see it.
func (e *Engine) phaseCreateRooms(ctx context.Context, sc *syncContext) {
	ctx, span := e.startSpan(ctx, phaseCreateRooms)
	defer span.End()

	for _, i := range roomsToCreate(sc) {
		room := sc.working.Rooms[i]
		roomID := kebabCase(room.Name)
		opts := e.roomOptions(room)
		if err := e.api.CreateRoomWithOpts(ctx, roomID, opts); err != nil {
			e.recordAPIError(phaseCreateRooms, ActionRoomCreateFailed, room.Name, err, sc.report)
			continue
		}
		sc.working.Rooms[i].RoomID = roomID
		e.record(phaseCreateRooms, ActionRoomCreated, roomID, "", sc.report)
		if err := e.notifier.JoinRoom(ctx, roomID); err != nil {
			e.logger.Warn("sync.room.join_failed", "room-id", roomID, "error", err)
		}
	}
}

func (e *Engine) roomOptions(room document.Room) []remoteapi.RoomOption {
	opts := make([]remoteapi.RoomOption, len(e.mucOptions), len(e.mucOptions)+2)
	copy(opts, e.mucOptions)
	opts = append(opts, remoteapi.RoomOption{Name: "moderated", Value: strconv.FormatBool(room.OnlyAdminsCanSpeak)})
	if room.OnlyAdminsCanSpeak {
		opts = append(opts, remoteapi.RoomOption{Name: "members_by_default", Value: "false"})
	}
	return opts
}
