package remoteapi

import (
	"context"
	"encoding/json"
	"fmt"
)

// RoomOption is one MUC room configuration option, serialized as
// {"name":..., "value":...}.
type RoomOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RoomAffiliation pairs a bare JID with its affiliation in a room.
type RoomAffiliation struct {
	JID         string `json:"jid"`
	Affiliation string `json:"affiliation"`
}

// CreateRoom creates a MUC room with default options.
func (c *Client) CreateRoom(ctx context.Context, name string) error {
	_, err := c.call(ctx, familyRooms, "create_room", map[string]string{
		"name":    name,
		"service": c.mucService,
		"host":    c.domain,
	})
	return err
}

// CreateRoomWithOpts creates a MUC room and applies the supplied options in
// one call.
func (c *Client) CreateRoomWithOpts(ctx context.Context, name string, opts []RoomOption) error {
	_, err := c.call(ctx, familyRooms, "create_room_with_opts", map[string]any{
		"name":    name,
		"service": c.mucService,
		"host":    c.domain,
		"options": opts,
	})
	return err
}

// DestroyRoom permanently removes a MUC room.
func (c *Client) DestroyRoom(ctx context.Context, name string) error {
	_, err := c.call(ctx, familyRooms, "destroy_room", map[string]string{
		"name":    name,
		"service": c.mucService,
	})
	return err
}

// MucOnlineRooms lists room-ids currently online on the MUC service.
func (c *Client) MucOnlineRooms(ctx context.Context) ([]string, error) {
	body, err := c.call(ctx, familyRooms, "muc_online_rooms", map[string]string{
		"service": c.mucService,
	})
	if err != nil {
		return nil, err
	}
	var raw []string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("remoteapi: decode muc_online_rooms: %w", err)
	}
	return raw, nil
}

// GetRoomOptions returns the currently-applied configuration options for a
// room.
func (c *Client) GetRoomOptions(ctx context.Context, name string) ([]RoomOption, error) {
	body, err := c.call(ctx, familyRooms, "get_room_options", map[string]string{
		"name":    name,
		"service": c.mucService,
	})
	if err != nil {
		return nil, err
	}
	var raw []RoomOption
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("remoteapi: decode get_room_options: %w", err)
	}
	return raw, nil
}

// GetRoomAffiliations returns every affiliation currently set in a room.
func (c *Client) GetRoomAffiliations(ctx context.Context, name string) ([]RoomAffiliation, error) {
	body, err := c.call(ctx, familyRooms, "get_room_affiliations", map[string]string{
		"name":    name,
		"service": c.mucService,
	})
	if err != nil {
		return nil, err
	}
	var raw []RoomAffiliation
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("remoteapi: decode get_room_affiliations: %w", err)
	}
	return raw, nil
}

// SetRoomAffiliation sets user@host's affiliation in room name to
// affiliation ("owner", "admin", "member", "outcast" or "none").
func (c *Client) SetRoomAffiliation(ctx context.Context, name, user, host, affiliation string) error {
	_, err := c.call(ctx, familyRooms, "set_room_affiliation", map[string]string{
		"name":        name,
		"service":     c.mucService,
		"jid":         user + "@" + host,
		"affiliation": affiliation,
	})
	return err
}
