package remoteapi

import (
	"context"
	"encoding/json"
	"fmt"
)

// RosterItem is one entry in a user's roster.
type RosterItem struct {
	JID          string   `json:"jid"`
	Nick         string   `json:"nick"`
	Subscription string   `json:"subscription"`
	Groups       []string `json:"groups"`
}

// GetRoster returns localUser@localHost's current roster.
func (c *Client) GetRoster(ctx context.Context, localUser, localHost string) ([]RosterItem, error) {
	body, err := c.call(ctx, familyRoster, "get_roster", map[string]string{
		"user": localUser,
		"host": localHost,
	})
	if err != nil {
		return nil, err
	}
	var raw []RosterItem
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("remoteapi: decode get_roster: %w", err)
	}
	return raw, nil
}

// AddRosterItem inserts or replaces a roster entry for localUser@localHost
// pointing at user@host.
func (c *Client) AddRosterItem(ctx context.Context, localUser, localHost, user, host, nick string, groups []string, subscription string) error {
	_, err := c.call(ctx, familyRoster, "add_rosteritem", map[string]any{
		"localuser":   localUser,
		"localserver": localHost,
		"user":        user,
		"server":      host,
		"nick":        nick,
		"group":       groups,
		"subs":        subscription,
	})
	return err
}

// DeleteRosterItem removes a roster entry for localUser@localHost pointing
// at user@host.
func (c *Client) DeleteRosterItem(ctx context.Context, localUser, localHost, user, host string) error {
	_, err := c.call(ctx, familyRoster, "delete_rosteritem", map[string]string{
		"localuser":   localUser,
		"localserver": localHost,
		"user":        user,
		"server":      host,
	})
	return err
}
