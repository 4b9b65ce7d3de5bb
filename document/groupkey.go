package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// GroupKey is a namespaced identifier such as "group/owner". It is modeled
// as a two-field composite so that the namespace and name survive
// serialization round-trips independently of the canonical string form.
type GroupKey struct {
	Namespace string
	Name      string
}

// ParseGroupKey parses the canonical "namespace/name" string form.
func ParseGroupKey(s string) (GroupKey, error) {
	idx := strings.IndexByte(s, '/')
	if idx <= 0 || idx == len(s)-1 {
		return GroupKey{}, fmt.Errorf("group key %q: must have the form namespace/name", s)
	}
	return GroupKey{Namespace: s[:idx], Name: s[idx+1:]}, nil
}

// String returns the canonical "namespace/name" form.
func (k GroupKey) String() string {
	return k.Namespace + "/" + k.Name
}

// IsZero reports whether k is the zero value.
func (k GroupKey) IsZero() bool {
	return k.Namespace == "" && k.Name == ""
}

// MarshalText implements encoding.TextMarshaler so GroupKey can be used as a
// JSON object key or scalar value, keeping the document's namespaced-key
// identity across a serialization round trip.
func (k GroupKey) MarshalText() ([]byte, error) {
	if k.Namespace == "" || k.Name == "" {
		return nil, fmt.Errorf("group key: both namespace and name are required")
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *GroupKey) UnmarshalText(b []byte) error {
	parsed, err := ParseGroupKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// GroupSet is a logically unordered, duplicate-free collection of group
// keys — the representation used for room members/admins and member
// groups. It marshals to a sorted JSON array so serialized documents are
// stable across writes even though set order is not significant.
type GroupSet map[GroupKey]struct{}

// NewGroupSet builds a GroupSet from the supplied keys, discarding
// duplicates.
func NewGroupSet(keys ...GroupKey) GroupSet {
	s := make(GroupSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Add inserts k into the set.
func (s GroupSet) Add(k GroupKey) {
	s[k] = struct{}{}
}

// Contains reports whether k is a member of the set.
func (s GroupSet) Contains(k GroupKey) bool {
	_, ok := s[k]
	return ok
}

// Intersects reports whether s and other share at least one element.
func (s GroupSet) Intersects(other GroupSet) bool {
	for k := range s {
		if other.Contains(k) {
			return true
		}
	}
	return false
}

// Sorted returns the set's members in deterministic (namespace, name)
// order.
func (s GroupSet) Sorted() []GroupKey {
	out := make([]GroupKey, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Clone returns an independent copy of the set.
func (s GroupSet) Clone() GroupSet {
	out := make(GroupSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// MarshalJSON renders the set as a sorted array of canonical key strings.
func (s GroupSet) MarshalJSON() ([]byte, error) {
	sorted := s.Sorted()
	strs := make([]string, len(sorted))
	for i, k := range sorted {
		strs[i] = k.String()
	}
	return json.Marshal(strs)
}

// UnmarshalJSON parses an array of canonical key strings into the set.
func (s *GroupSet) UnmarshalJSON(b []byte) error {
	var strs []string
	if err := json.Unmarshal(b, &strs); err != nil {
		return err
	}
	out := make(GroupSet, len(strs))
	for _, str := range strs {
		key, err := ParseGroupKey(str)
		if err != nil {
			return err
		}
		out[key] = struct{}{}
	}
	*s = out
	return nil
}
