package remoteapi

import (
	"context"
	"encoding/json"
	"fmt"
)

// Register creates a user account with the given password.
func (c *Client) Register(ctx context.Context, user, password string) error {
	_, err := c.call(ctx, familyUsers, "register", map[string]string{
		"user":     user,
		"host":     c.domain,
		"password": password,
	})
	return err
}

// ChangePassword sets a new password for an existing user.
func (c *Client) ChangePassword(ctx context.Context, user, newPassword string) error {
	_, err := c.call(ctx, familyUsers, "change_password", map[string]string{
		"user":    user,
		"host":    c.domain,
		"newpass": newPassword,
	})
	return err
}

// Unregister permanently removes a user account.
func (c *Client) Unregister(ctx context.Context, user string) error {
	_, err := c.call(ctx, familyUsers, "unregister", map[string]string{
		"user": user,
		"host": c.domain,
	})
	return err
}

// RegisteredUsers lists every user-id currently registered on the domain.
func (c *Client) RegisteredUsers(ctx context.Context) ([]string, error) {
	body, err := c.call(ctx, familyUsers, "registered_users", map[string]string{
		"host": c.domain,
	})
	if err != nil {
		return nil, err
	}
	var raw []map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("remoteapi: decode registered_users: %w", err)
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if u, ok := r["username"]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
