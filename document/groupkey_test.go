package document

import (
	"encoding/json"
	"testing"
)

func TestGroupKeyRoundTrip(t *testing.T) {
	k := GroupKey{Namespace: "group", Name: "owner"}
	text, err := k.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(text) != "group/owner" {
		t.Fatalf("MarshalText = %q, want group/owner", text)
	}
	var got GroupKey
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if got != k {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, k)
	}
}

func TestParseGroupKeyRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "noSlash", "/name", "namespace/"} {
		if _, err := ParseGroupKey(bad); err == nil {
			t.Fatalf("ParseGroupKey(%q) expected error", bad)
		}
	}
}

func TestGroupSetJSONIsSortedAndDeduplicated(t *testing.T) {
	s := NewGroupSet(
		GroupKey{Namespace: "group", Name: "owner"},
		GroupKey{Namespace: "group", Name: "bot"},
		GroupKey{Namespace: "group", Name: "bot"},
	)
	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `["group/bot","group/owner"]` {
		t.Fatalf("Marshal = %s, want sorted deduplicated array", out)
	}

	var back GroupSet
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("expected 2 entries after round trip, got %d", len(back))
	}
}

func TestGroupsMapRoundTripsNamespacedKeys(t *testing.T) {
	g := Groups{
		GroupOwner: "Owner",
		GroupBot:   "Bot",
	}
	out, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Groups
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back[GroupOwner] != "Owner" || back[GroupBot] != "Bot" {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}
