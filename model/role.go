package model

import (
	"time"

	"github.com/peregrinelabs/warden/permission"
)

// Role groups users under a unique slug and contributes its permission
// map to every member's effective permissions. Membership is recorded
// on the role itself.
type Role struct {
	ID               string   `bson:"_id,omitempty"`
	Slug             string   `bson:"slug"`
	Name             string   `bson:"name"`
	PermissionHolder `bson:",inline"`
	UserIDs          []string  `bson:"user_ids,omitempty"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`

	checker *permission.Resolver
}

// HasAccess reports whether every given permission resolves to a grant
// in the role's own map.
func (r *Role) HasAccess(permissions ...string) bool {
	return r.resolver().HasAccess(permissions...)
}

// HasAnyAccess reports whether at least one permission resolves to a grant.
func (r *Role) HasAnyAccess(permissions ...string) bool {
	return r.resolver().HasAnyAccess(permissions...)
}

func (r *Role) resolver() *permission.Resolver {
	if r.checker == nil {
		r.checker = permission.NewResolver(r.Permissions, permission.DefaultWildcard)
	}
	return r.checker
}
