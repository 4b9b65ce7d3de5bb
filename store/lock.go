package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Lock writes the lock file with reason and a timeout-derived expiry. It
// does not check for an existing lock; callers that need mutual exclusion
// must call ReadLock first.
func (s *Store) Lock(reason string, timeout time.Duration) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("store: lock reason required")
	}
	expires := s.clock.Now().Add(timeout)
	body := fmt.Sprintf("%s\n%d\n%s\n", reason, expires.UnixMilli(), expires.Format(time.RFC3339))
	return writeFileAtomic(s.lockPath()+".tmp", s.lockPath(), []byte(body))
}

// ReadLock reports whether the lock is currently held. A lock file whose
// expiry has already passed is treated as unlocked and removed as a side
// effect, per the automatic-clearance requirement.
func (s *Store) ReadLock() (locked bool, reason string, expiresAt time.Time, err error) {
	raw, err := os.ReadFile(s.lockPath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, "", time.Time{}, nil
		}
		return false, "", time.Time{}, fmt.Errorf("store: read lock file: %w", err)
	}
	lines := strings.SplitN(strings.TrimRight(string(raw), "\n"), "\n", 3)
	if len(lines) < 2 {
		return false, "", time.Time{}, fmt.Errorf("store: malformed lock file")
	}
	reason = lines[0]
	ms, convErr := strconv.ParseInt(lines[1], 10, 64)
	if convErr != nil {
		return false, "", time.Time{}, fmt.Errorf("store: malformed lock expiry: %w", convErr)
	}
	expiresAt = time.UnixMilli(ms)
	if s.clock.Now().After(expiresAt) {
		if clearErr := s.ClearLock(); clearErr != nil {
			return false, "", time.Time{}, clearErr
		}
		return false, "", time.Time{}, nil
	}
	return true, reason, expiresAt, nil
}

// ClearLock removes the lock file. Removing an already-absent lock file is
// not an error, so every exit path may call ClearLock unconditionally.
func (s *Store) ClearLock() error {
	if err := os.Remove(s.lockPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: clear lock: %w", err)
	}
	return nil
}
