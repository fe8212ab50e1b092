package domain

import "strings"

// Wildcard matches any value in a UniqueKey field.
const Wildcard = "*"

const keySeparator = "|"

// UniqueKey identifies one monitored condition. It is the join key between
// logs, snapshots, rules and alert state.
type UniqueKey struct {
	Type       string `json:"type"`
	Label      string `json:"label"`
	Identifier string `json:"identifier"`
}

func (k UniqueKey) String() string {
	return strings.Join([]string{k.Type, k.Label, k.Identifier}, keySeparator)
}

// ExplodeUniqueKey is the inverse of UniqueKey.String. The identifier keeps
// any further separators it may contain.
func ExplodeUniqueKey(s string) UniqueKey {
	parts := strings.SplitN(s, keySeparator, 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return UniqueKey{Type: parts[0], Label: parts[1], Identifier: parts[2]}
}

// Matches reports whether every field is equal or either side is a wildcard.
func (k UniqueKey) Matches(other UniqueKey) bool {
	return fieldMatches(k.Type, other.Type) &&
		fieldMatches(k.Label, other.Label) &&
		fieldMatches(k.Identifier, other.Identifier)
}

func fieldMatches(a, b string) bool {
	return a == b || a == Wildcard || b == Wildcard
}

// Keyed is anything carrying a UniqueKey.
type Keyed interface {
	Key() UniqueKey
}

// FindMatchingKeyFor returns the first haystack element whose key matches needle.
func FindMatchingKeyFor[T Keyed](needle UniqueKey, haystack []T) (T, bool) {
	for _, h := range haystack {
		if needle.Matches(h.Key()) {
			return h, true
		}
	}
	var zero T
	return zero, false
}
