package syncengine

import (
	"context"
	"sort"

	"github.com/sa6mwa/ejreconcile/document"
	"github.com/sa6mwa/ejreconcile/remoteapi"
)

const phaseSyncAffiliationsAndBookmarks = "sync-affiliations-and-bookmarks"

// phaseSyncAffiliationsAndBookmarks brings every managed room's
// affiliations in line with the computed target, then normalizes every
// member's bookmark storage to the set of rooms it can now see.
func (e *Engine) phaseSyncAffiliationsAndBookmarks(ctx context.Context, sc *syncContext) {
	ctx, span := e.startSpan(ctx, phaseSyncAffiliationsAndBookmarks)
	defer span.End()

	memberAffiliations := make(map[string]map[string]document.Affiliation, len(sc.working.Rooms))

	for _, room := range sc.working.Rooms {
		if room.RoomID == "" {
			continue
		}
		current, err := e.api.GetRoomAffiliations(ctx, room.RoomID)
		if err != nil {
			e.recordAPIError(phaseSyncAffiliationsAndBookmarks, ActionAffiliationFailed, room.RoomID, err, sc.report)
			continue
		}
		currentByJID := make(map[string]string, len(current))
		for _, a := range current {
			currentByJID[a.JID] = a.Affiliation
		}

		for _, member := range sc.working.Members {
			target := document.ComputeAffiliation(member.Groups, room.Admins, room.Members)
			// The admin bot is an admin of every managed room.
			if member.UserID == document.AdminBotUserID {
				target = document.AffiliationAdmin
			}
			jid := member.UserID + "@" + e.domain
			existing := document.Affiliation(currentByJID[jid])
			if existing == "" {
				existing = document.AffiliationNone
			}
			if m, ok := memberAffiliations[member.UserID]; ok {
				m[room.RoomID] = target
			} else {
				memberAffiliations[member.UserID] = map[string]document.Affiliation{room.RoomID: target}
			}
			if existing == target {
				e.record(phaseSyncAffiliationsAndBookmarks, ActionAffiliationUnchanged, member.UserID+"@"+room.RoomID, "", sc.report)
				continue
			}
			if err := e.api.SetRoomAffiliation(ctx, room.RoomID, member.UserID, e.domain, string(target)); err != nil {
				e.recordAPIError(phaseSyncAffiliationsAndBookmarks, ActionAffiliationFailed, member.UserID+"@"+room.RoomID, err, sc.report)
				continue
			}
			e.record(phaseSyncAffiliationsAndBookmarks, ActionAffiliationUpdated, member.UserID+"@"+room.RoomID, "", sc.report)
			if member.UserID != document.AdminBotUserID {
				if err := e.notifier.AffiliationChanged(ctx, member.UserID, room.Name, room.RoomID, existing, target); err != nil {
					e.logger.Warn("sync.notifier.affiliation_changed_failed", "user-id", member.UserID, "room-id", room.RoomID, "error", err)
				}
			}
		}
	}

	for _, member := range sc.working.Members {
		e.syncMemberBookmarks(ctx, sc, member, memberAffiliations[member.UserID])
	}
}

func (e *Engine) syncMemberBookmarks(ctx context.Context, sc *syncContext, member document.Member, affiliations map[string]document.Affiliation) {
	var wanted []remoteapi.Bookmark
	for _, room := range sc.working.Rooms {
		if room.RoomID == "" {
			continue
		}
		aff, ok := affiliations[room.RoomID]
		if !ok || aff == document.AffiliationNone {
			continue
		}
		wanted = append(wanted, remoteapi.Bookmark{
			JID:      room.RoomID + "@" + e.mucService,
			Name:     room.Name,
			Autojoin: true,
			Nick:     member.UserID,
		})
	}
	sort.Slice(wanted, func(i, j int) bool { return wanted[i].JID < wanted[j].JID })

	current, err := e.api.GetUserBookmarks(ctx, member.UserID, e.domain)
	if err != nil {
		e.recordAPIError(phaseSyncAffiliationsAndBookmarks, ActionBookmarkFailed, member.UserID, err, sc.report)
		return
	}
	if bookmarksEqual(current, wanted) {
		e.record(phaseSyncAffiliationsAndBookmarks, ActionBookmarkUnchanged, member.UserID, "", sc.report)
		return
	}
	if err := e.api.SetUserBookmarks(ctx, member.UserID, e.domain, wanted); err != nil {
		e.recordAPIError(phaseSyncAffiliationsAndBookmarks, ActionBookmarkFailed, member.UserID, err, sc.report)
		return
	}
	e.record(phaseSyncAffiliationsAndBookmarks, ActionBookmarkUpdated, member.UserID, "", sc.report)
}

func bookmarksEqual(a, b []remoteapi.Bookmark) bool {
	if len(a) != len(b) {
		return false
	}
	sorted := func(bms []remoteapi.Bookmark) []remoteapi.Bookmark {
		out := make([]remoteapi.Bookmark, len(bms))
		copy(out, bms)
		sort.Slice(out, func(i, j int) bool { return out[i].JID < out[j].JID })
		return out
	}
	as, bs := sorted(a), sorted(b)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
