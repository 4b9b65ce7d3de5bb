package document

import (
	"strings"
	"testing"
)

func validDocument() Document {
	return Document{
		Groups: Groups{
			GroupOwner: "Owner",
			GroupBot:   "Bot",
			{Namespace: "group", Name: "member"}: "Member",
		},
		Rooms: []Room{
			{
				Name:    "Officers",
				Members: NewGroupSet(GroupOwner),
				Admins:  NewGroupSet(GroupOwner),
			},
		},
		Members: []Member{
			{Name: "Alice", UserID: "alice", Groups: NewGroupSet(GroupOwner)},
		},
	}
}

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	if err := Validate(validDocument()); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}
}

func TestValidateRequiresMandatoryGroups(t *testing.T) {
	d := validDocument()
	delete(d.Groups, GroupBot)
	err := Validate(d)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "group/bot") {
		t.Fatalf("expected error naming missing key, got %v", err)
	}
}

func TestValidateShortCircuitsOnGroupErrors(t *testing.T) {
	d := validDocument()
	delete(d.Groups, GroupBot)
	d.Rooms[0].Members = NewGroupSet(GroupKey{Namespace: "group", Name: "nonexistent"})
	err, ok := Validate(d).(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	for _, fe := range err {
		if strings.HasPrefix(fe.Path, "rooms[") {
			t.Fatalf("expected rooms not to be validated once groups fail, got %v", fe)
		}
	}
}

func TestValidateDuplicateRoomNames(t *testing.T) {
	d := validDocument()
	d.Rooms = append(d.Rooms, d.Rooms[0])
	err := Validate(d)
	if err == nil || !strings.Contains(err.Error(), "must be unique") {
		t.Fatalf("expected unique-name error, got %v", err)
	}
}

func TestValidateDuplicateUserIDs(t *testing.T) {
	d := validDocument()
	dup := d.Members[0]
	dup.Name = "Alice 2"
	d.Members = append(d.Members, dup)
	err := Validate(d)
	if err == nil || !strings.Contains(err.Error(), "must be unique") {
		t.Fatalf("expected unique user-id error, got %v", err)
	}
}

func TestValidateMemberReferencesUndefinedGroup(t *testing.T) {
	d := validDocument()
	d.Members[0].Groups = NewGroupSet(GroupKey{Namespace: "group", Name: "ghost"})
	err, ok := Validate(d).(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	found := false
	for _, fe := range err {
		if fe.Path == "members[0].groups" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected error at members[0].groups, got %v", err)
	}
}

func TestParseAndValidateRejectsUnknownKeyWithSuggestion(t *testing.T) {
	raw := []byte(`{"grups":{}}`)
	_, err := ParseAndValidate(raw)
	if err == nil {
		t.Fatal("expected error for misspelled top-level key")
	}
	if !strings.Contains(err.Error(), `did you mean "groups"`) {
		t.Fatalf("expected suggestion for misspelled key, got %v", err)
	}
}

func TestParseAndValidateAcceptsReservedSHAKey(t *testing.T) {
	raw := []byte(`{
		"groups": {"group/owner": "Owner", "group/bot": "Bot"},
		"rooms": [],
		"members": [],
		"do-not-edit-state": {"managed-members": [], "managed-rooms": [], "managed-groups": []},
		"_file-sha256": "deadbeef"
	}`)
	doc, err := ParseAndValidate(raw)
	if err != nil {
		t.Fatalf("expected reserved key to be accepted, got %v", err)
	}
	if doc.FileSHA256 != "deadbeef" {
		t.Fatalf("expected _file-sha256 to round trip, got %q", doc.FileSHA256)
	}
}

func TestValidSlug(t *testing.T) {
	valid := []string{"officers", "senior-officers", "room-2"}
	invalid := []string{"", "-officers", "officers-", "Officers", "off icers"}
	for _, v := range valid {
		if !ValidSlug(v) {
			t.Errorf("expected %q to be a valid slug", v)
		}
	}
	for _, v := range invalid {
		if ValidSlug(v) {
			t.Errorf("expected %q to be an invalid slug", v)
		}
	}
}
