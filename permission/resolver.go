package permission

// Resolver merges role permission maps with an entity's direct map and
// answers access queries against the result.
//
// Precedence, lowest to highest: role maps merged together (a grant in
// any role wins over a revoke in another), then the direct map, whose
// entries override whatever the roles decided. A direct false therefore
// revokes a role-granted permission.
//
// The resolver holds references to the live maps rather than a snapshot
// taken at construction time, so mutating a map through its owning
// entity needs no cache invalidation.
type Resolver struct {
	direct   Map
	roles    []Map
	wildcard rune
}

// NewResolver builds a resolver over the given direct map and the
// permission maps of the entity's roles. The maps are retained by
// reference, not copied.
func NewResolver(direct Map, wildcard rune, roles ...Map) *Resolver {
	if wildcard == 0 {
		wildcard = DefaultWildcard
	}
	return &Resolver{direct: direct, roles: roles, wildcard: wildcard}
}

// HasAccess reports whether every given permission resolves to a grant.
func (r *Resolver) HasAccess(permissions ...string) bool {
	for _, p := range permissions {
		if !r.resolve(p) {
			return false
		}
	}
	return true
}

// HasAnyAccess reports whether at least one permission resolves to a grant.
func (r *Resolver) HasAnyAccess(permissions ...string) bool {
	for _, p := range permissions {
		if r.resolve(p) {
			return true
		}
	}
	return false
}

func (r *Resolver) resolve(requested string) bool {
	if v, ok := lookup(r.direct, requested, r.wildcard); ok {
		return v
	}

	// The most permissive role wins for inherited grants.
	granted := false
	for _, m := range r.roles {
		if v, ok := lookup(m, requested, r.wildcard); ok && v {
			granted = true
		}
	}
	return granted
}

// lookup resolves one permission against one map. An exact key beats any
// wildcard entry; among matching wildcards a grant beats a revoke.
func lookup(m Map, requested string, wildcard rune) (value, found bool) {
	if v, ok := m[requested]; ok {
		return v, true
	}
	for key, v := range m {
		if Matches(key, requested, wildcard) {
			found = true
			if v {
				value = true
			}
		}
	}
	return value, found
}
