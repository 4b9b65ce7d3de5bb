package document

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// FieldError is one humanized validation failure, keyed by the document
// path it applies to (e.g. "members[2].groups").
type FieldError struct {
	Path    string
	Message string
}

func (e FieldError) String() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects every FieldError found while validating a
// document. It implements error so callers that only need a single error
// value can still use it directly.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.String()
	}
	return strings.Join(parts, "; ")
}

func (e ValidationErrors) add(path, format string, args ...any) ValidationErrors {
	return append(e, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidSlug reports whether s satisfies the room-id/user-id lexical
// constraint: lowercase ASCII letters/digits/hyphens, no leading or
// trailing hyphen.
func ValidSlug(s string) bool {
	return s != "" && slugPattern.MatchString(s)
}

var topLevelKeys = []string{"groups", "rooms", "members", "do-not-edit-state", "_file-sha256"}
var roomKeys = []string{"name", "room-id", "members", "admins", "only-admins-can-speak?"}
var memberKeys = []string{"name", "user-id", "groups"}

// ParseAndValidate parses raw JSON bytes into a Document, rejecting unknown
// top-level and per-record keys (suggesting the closest legal key for
// likely typos), then runs Validate on the result.
func ParseAndValidate(raw []byte) (Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Document{}, fmt.Errorf("document: malformed JSON: %w", err)
	}

	var errs ValidationErrors
	for key := range top {
		if !contains(topLevelKeys, key) {
			errs = closedKeyError(errs, "", key, topLevelKeys)
		}
	}
	if roomsRaw, ok := top["rooms"]; ok {
		var rawRooms []map[string]json.RawMessage
		if err := json.Unmarshal(roomsRaw, &rawRooms); err == nil {
			for i, rr := range rawRooms {
				for key := range rr {
					if !contains(roomKeys, key) {
						errs = closedKeyError(errs, fmt.Sprintf("rooms[%d]", i), key, roomKeys)
					}
				}
			}
		}
	}
	if membersRaw, ok := top["members"]; ok {
		var rawMembers []map[string]json.RawMessage
		if err := json.Unmarshal(membersRaw, &rawMembers); err == nil {
			for i, rm := range rawMembers {
				for key := range rm {
					if !contains(memberKeys, key) {
						errs = closedKeyError(errs, fmt.Sprintf("members[%d]", i), key, memberKeys)
					}
				}
			}
		}
	}
	if len(errs) > 0 {
		return Document{}, errs
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("document: %w", err)
	}
	if err := Validate(doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func closedKeyError(errs ValidationErrors, path, key string, legal []string) ValidationErrors {
	full := key
	if path != "" {
		full = path + "." + key
	}
	if suggestion := suggestKey(key, legal); suggestion != "" {
		return errs.add(full, "unrecognized key %q, did you mean %q?", key, suggestion)
	}
	return errs.add(full, "unrecognized key %q", key)
}

func contains(list []string, v string) bool {
	for _, c := range list {
		if c == v {
			return true
		}
	}
	return false
}

// Validate checks the structural and semantic invariants of a document.
// Validation proceeds top-down: if Groups fails, rooms and members are not
// validated and the groups errors are returned alone, since every other
// section cross-references the group-key set.
func Validate(d Document) error {
	groupErrs := validateGroups(d.Groups)
	if len(groupErrs) > 0 {
		return groupErrs
	}
	legalGroups := d.Groups.Keys()

	var errs ValidationErrors
	errs = append(errs, validateRooms(d.Rooms, legalGroups)...)
	errs = append(errs, validateMembers(d.Members, legalGroups)...)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateGroups(groups Groups) ValidationErrors {
	var errs ValidationErrors
	if _, ok := groups[GroupOwner]; !ok {
		errs = errs.add("groups", "missing mandatory key %q", GroupOwner.String())
	}
	if _, ok := groups[GroupBot]; !ok {
		errs = errs.add("groups", "missing mandatory key %q", GroupBot.String())
	}
	seenLabels := make(map[string]GroupKey)
	for key, label := range groups {
		path := fmt.Sprintf("groups[%s]", key.String())
		if strings.TrimSpace(label) == "" {
			errs = errs.add(path, "label must not be blank")
			continue
		}
		if other, ok := seenLabels[label]; ok && other != key {
			errs = errs.add(path, "label %q must be unique (also used by %q)", label, other.String())
			continue
		}
		seenLabels[label] = key
	}
	return errs
}

func validateRooms(rooms []Room, legalGroups GroupSet) ValidationErrors {
	var errs ValidationErrors
	seenNames := make(map[string]int)
	seenRoomIDs := make(map[string]int)
	for i, r := range rooms {
		path := fmt.Sprintf("rooms[%d]", i)
		if strings.TrimSpace(r.Name) == "" {
			errs = errs.add(path+".name", "must not be blank")
		} else if first, ok := seenNames[r.Name]; ok {
			errs = errs.add(path+".name", "room name %q must be unique (also used by rooms[%d])", r.Name, first)
		} else {
			seenNames[r.Name] = i
		}
		if r.RoomID != "" {
			if !ValidSlug(r.RoomID) {
				errs = errs.add(path+".room-id", "must be lowercase ASCII letters/digits/hyphens with no leading or trailing hyphen")
			} else if first, ok := seenRoomIDs[r.RoomID]; ok {
				errs = errs.add(path+".room-id", "must be unique (also used by rooms[%d])", first)
			} else {
				seenRoomIDs[r.RoomID] = i
			}
		}
		if len(r.Members) == 0 {
			errs = errs.add(path+".members", "must not be empty")
		}
		if len(r.Admins) == 0 {
			errs = errs.add(path+".admins", "must not be empty")
		}
		for _, k := range r.Members.Sorted() {
			if !legalGroups.Contains(k) {
				errs = errs.add(path+".members", "references undefined group %q", k.String())
			}
		}
		for _, k := range r.Admins.Sorted() {
			if !legalGroups.Contains(k) {
				errs = errs.add(path+".admins", "references undefined group %q", k.String())
			}
		}
	}
	return errs
}

func validateMembers(members []Member, legalGroups GroupSet) ValidationErrors {
	var errs ValidationErrors
	seenNames := make(map[string]int)
	seenUserIDs := make(map[string]int)
	for i, m := range members {
		path := fmt.Sprintf("members[%d]", i)
		if strings.TrimSpace(m.Name) == "" {
			errs = errs.add(path+".name", "must not be blank")
		} else if first, ok := seenNames[m.Name]; ok {
			errs = errs.add(path+".name", "member name %q must be unique (also used by members[%d])", m.Name, first)
		} else {
			seenNames[m.Name] = i
		}
		if !ValidSlug(m.UserID) {
			errs = errs.add(path+".user-id", "must be lowercase ASCII letters/digits/hyphens with no leading or trailing hyphen")
		} else if first, ok := seenUserIDs[m.UserID]; ok {
			errs = errs.add(path+".user-id", "user-id %q must be unique (also used by members[%d])", m.UserID, first)
		} else {
			seenUserIDs[m.UserID] = i
		}
		if len(m.Groups) == 0 {
			errs = errs.add(path+".groups", "must not be empty")
		}
		for _, k := range m.Groups.Sorted() {
			if !legalGroups.Contains(k) {
				errs = errs.add(path+".groups", "references undefined group %q", k.String())
			}
		}
	}
	return errs
}
