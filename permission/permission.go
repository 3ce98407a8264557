// Package permission implements additive, overridable permission maps
// for users and roles. A permission is an opaque dotted string such as
// "users.create"; a key may end with a single trailing wildcard segment
// ("users.*") that matches every permission sharing its prefix.
package permission

import "strings"

// DefaultWildcard is the conventional wildcard rune.
const DefaultWildcard = '*'

// Map assigns an explicit decision to a permission key. A true value
// grants the permission, false explicitly revokes it, and an absent key
// carries no opinion.
type Map map[string]bool

// AccessChecker is the capability both users and roles expose for
// answering access queries.
type AccessChecker interface {
	// HasAccess reports whether every given permission resolves to a grant.
	HasAccess(permissions ...string) bool

	// HasAnyAccess reports whether at least one permission resolves to a grant.
	HasAnyAccess(permissions ...string) bool
}

// Matches reports whether the map key matches the requested permission,
// either exactly or through a trailing wildcard.
func Matches(key, requested string, wildcard rune) bool {
	if key == requested {
		return true
	}

	w := string(wildcard)
	if !strings.HasSuffix(key, w) {
		return false
	}

	prefix := strings.TrimSuffix(key, w)
	return strings.HasPrefix(requested, prefix)
}
