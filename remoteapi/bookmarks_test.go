package remoteapi

import (
	"strings"
	"testing"
)

func TestBuildBookmarkXMLEscapesAttributes(t *testing.T) {
	xmlStr := BuildBookmarkXML([]Bookmark{
		{JID: "officers@conference.example.org", Name: `Officers & "Friends" <VIP>`, Autojoin: true, Nick: "alice"},
	})
	if !strings.HasPrefix(xmlStr, `<storage xmlns="storage:bookmarks">`) {
		t.Fatalf("unexpected prefix: %s", xmlStr)
	}
	if !strings.Contains(xmlStr, `name="Officers &amp; &#34;Friends&#34; &lt;VIP&gt;"`) {
		t.Fatalf("expected escaped name attribute, got %s", xmlStr)
	}
	if !strings.Contains(xmlStr, `autojoin="true"`) {
		t.Fatalf("expected autojoin=true, got %s", xmlStr)
	}
	if !strings.Contains(xmlStr, "<nick>alice</nick>") {
		t.Fatalf("expected nick element, got %s", xmlStr)
	}
}

func TestBuildBookmarkXMLEmptyList(t *testing.T) {
	xmlStr := BuildBookmarkXML(nil)
	if xmlStr != `<storage xmlns="storage:bookmarks"></storage>` {
		t.Fatalf("unexpected empty bookmark xml: %s", xmlStr)
	}
}
