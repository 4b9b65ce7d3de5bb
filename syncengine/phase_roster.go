package syncengine

import (
	"context"
	"sort"

	"github.com/sa6mwa/ejreconcile/document"
)

const phaseSyncRosters = "sync-rosters"

// rosterEntry is the subset of a roster item this phase compares against
// the desired state: nick and group labels. Presence is the zero value —
// a missing entry simply isn't in the owner's map.
type rosterEntry struct {
	nick   string
	groups []string
}

// phaseSyncRosters makes every managed member's roster mutually present:
// for every ordered pair of distinct members, a roster item for peer is
// added to member's roster if it is missing, or if its nick or group
// labels have drifted from the desired values. Each member's current
// roster is fetched once and reused across the pairs it appears in.
func (e *Engine) phaseSyncRosters(ctx context.Context, sc *syncContext) {
	ctx, span := e.startSpan(ctx, phaseSyncRosters)
	defer span.End()

	members := sc.working.Members
	byID := make(map[string]document.Member, len(members))
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
		byID[m.UserID] = m
	}
	sort.Strings(ids)

	definedGroups := sc.working.Groups.Keys()

	rosters := make(map[string]map[string]rosterEntry, len(ids))
	for _, id := range ids {
		current, err := e.api.GetRoster(ctx, id, e.domain)
		if err != nil {
			e.recordAPIError(phaseSyncRosters, ActionRosterUpdateFailed, id, err, sc.report)
			rosters[id] = map[string]rosterEntry{}
			continue
		}
		entries := make(map[string]rosterEntry, len(current))
		for _, item := range current {
			entries[item.JID] = rosterEntry{nick: item.Nick, groups: sortedCopy(item.Groups)}
		}
		rosters[id] = entries
	}

	for _, owner := range ids {
		entries := rosters[owner]
		for _, peer := range ids {
			if peer == owner {
				continue
			}
			peerMember := byID[peer]
			peerJID := peer + "@" + e.domain
			wantNick := peerMember.Name
			wantGroups := groupLabels(sc.working.Groups, peerMember.Groups, definedGroups)

			existing, ok := entries[peerJID]
			if ok && existing.nick == wantNick && stringSlicesEqual(existing.groups, wantGroups) {
				e.record(phaseSyncRosters, ActionRosterUnchanged, owner+"<-"+peer, "", sc.report)
				continue
			}

			err := e.api.AddRosterItem(ctx, owner, e.domain, peer, e.domain, wantNick, wantGroups, "both")
			if err != nil {
				e.recordAPIError(phaseSyncRosters, ActionRosterUpdateFailed, owner+"<-"+peer, err, sc.report)
				continue
			}
			e.record(phaseSyncRosters, ActionRosterUpdated, owner+"<-"+peer, "", sc.report)
		}
	}
}

// groupLabels returns the human-readable labels for the intersection of
// memberGroups and definedGroups, sorted for stable comparison.
func groupLabels(defs document.Groups, memberGroups, definedGroups document.GroupSet) []string {
	labels := make([]string, 0, len(memberGroups))
	for _, key := range memberGroups.Sorted() {
		if !definedGroups.Contains(key) {
			continue
		}
		labels = append(labels, defs[key])
	}
	sort.Strings(labels)
	return labels
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
