package remoteapi

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
)

// Bookmark is one XEP-0048 conference bookmark.
type Bookmark struct {
	JID      string `json:"jid"`
	Name     string `json:"name"`
	Autojoin bool   `json:"autojoin"`
	Nick     string `json:"nick,omitempty"`
}

type bookmarkStorage struct {
	XMLName     xml.Name          `xml:"storage"`
	XMLNS       string            `xml:"xmlns,attr"`
	Conferences []bookmarkXMLRoom `xml:"conference"`
}

type bookmarkXMLRoom struct {
	JID      string `xml:"jid,attr"`
	Autojoin string `xml:"autojoin,attr"`
	Name     string `xml:"name,attr"`
	Nick     string `xml:"nick,omitempty"`
}

// GetUserBookmarks fetches and parses user@host's bookmark storage.
func (c *Client) GetUserBookmarks(ctx context.Context, user, host string) ([]Bookmark, error) {
	body, err := c.call(ctx, familyBookmarks, "get_user_bookmarks", map[string]string{
		"user": user,
		"host": host,
	})
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Payload string `json:"bookmarks"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("remoteapi: decode get_user_bookmarks: %w", err)
	}
	if strings.TrimSpace(wrapper.Payload) == "" {
		return nil, nil
	}
	var storage bookmarkStorage
	if err := xml.Unmarshal([]byte(wrapper.Payload), &storage); err != nil {
		return nil, fmt.Errorf("remoteapi: parse bookmark xml: %w", err)
	}
	out := make([]Bookmark, 0, len(storage.Conferences))
	for _, conf := range storage.Conferences {
		out = append(out, Bookmark{
			JID:      conf.JID,
			Name:     conf.Name,
			Autojoin: conf.Autojoin == "true" || conf.Autojoin == "1",
			Nick:     conf.Nick,
		})
	}
	return out, nil
}

// SetUserBookmarks serializes bookmarks as an XEP-0048
// <storage xmlns="storage:bookmarks"> payload and sets it for user@host.
func (c *Client) SetUserBookmarks(ctx context.Context, user, host string, bookmarks []Bookmark) error {
	payload := BuildBookmarkXML(bookmarks)
	_, err := c.call(ctx, familyBookmarks, "set_user_bookmarks", map[string]string{
		"user":      user,
		"host":      host,
		"bookmarks": payload,
	})
	return err
}

// BuildBookmarkXML renders bookmarks as the XEP-0048 XML payload expected
// by set_user_bookmarks, escaping attribute values.
func BuildBookmarkXML(bookmarks []Bookmark) string {
	var b strings.Builder
	b.WriteString(`<storage xmlns="storage:bookmarks">`)
	for _, bm := range bookmarks {
		b.WriteString(`<conference jid="`)
		xml.EscapeText(&b, []byte(bm.JID))
		b.WriteString(`" autojoin="`)
		if bm.Autojoin {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
		b.WriteString(`" name="`)
		xml.EscapeText(&b, []byte(bm.Name))
		b.WriteString(`">`)
		if bm.Nick != "" {
			b.WriteString("<nick>")
			xml.EscapeText(&b, []byte(bm.Nick))
			b.WriteString("</nick>")
		}
		b.WriteString("</conference>")
	}
	b.WriteString("</storage>")
	return b.String()
}
