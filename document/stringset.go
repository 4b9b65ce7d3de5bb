package document

import (
	"encoding/json"
	"sort"
)

// StringSet is a logically unordered, duplicate-free collection of plain
// strings — used for the tracking section's managed-members and
// managed-rooms sets. It marshals to a sorted JSON array.
type StringSet map[string]struct{}

// NewStringSet builds a StringSet from the supplied values, discarding
// duplicates.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts v into the set.
func (s StringSet) Add(v string) {
	s[v] = struct{}{}
}

// Contains reports whether v is a member of the set.
func (s StringSet) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the set's members in ascending order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set.
func (s StringSet) Clone() StringSet {
	out := make(StringSet, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// Minus returns the elements present in s but not in other (s − other).
func (s StringSet) Minus(other StringSet) StringSet {
	out := make(StringSet)
	for v := range s {
		if !other.Contains(v) {
			out[v] = struct{}{}
		}
	}
	return out
}

// MarshalJSON renders the set as a sorted string array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON parses a string array into the set.
func (s *StringSet) UnmarshalJSON(b []byte) error {
	var values []string
	if err := json.Unmarshal(b, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}
