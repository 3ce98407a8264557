package model

import (
	"time"

	"github.com/peregrinelabs/warden/permission"
)

// User represents an account in the authentication system. The login
// credential is one of a configurable set of attributes (email by
// default); the password is stored only as a hash.
type User struct {
	ID               string    `bson:"_id,omitempty"`
	Email            string    `bson:"email"`
	Username         string    `bson:"username,omitempty"`
	PasswordHash     string    `bson:"password_hash"`
	PermissionHolder `bson:",inline"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`

	checker *permission.Resolver
}

// LoginValue returns the value of the named login attribute, or the
// empty string when the attribute is unknown.
func (u *User) LoginValue(attribute string) string {
	switch attribute {
	case "email":
		return u.Email
	case "username":
		return u.Username
	}
	return ""
}

// SetChecker installs the resolver answering access queries for this
// user. The guard builds it once per loaded user, over the live
// permission maps of the user and their roles.
func (u *User) SetChecker(r *permission.Resolver) {
	u.checker = r
}

// Checker returns the installed resolver, or nil when none was built
// for this user instance yet.
func (u *User) Checker() *permission.Resolver {
	return u.checker
}

// HasAccess reports whether every given permission resolves to a grant.
// Until a checker is installed only the user's direct map is consulted.
func (u *User) HasAccess(permissions ...string) bool {
	return u.resolver().HasAccess(permissions...)
}

// HasAnyAccess reports whether at least one permission resolves to a grant.
func (u *User) HasAnyAccess(permissions ...string) bool {
	return u.resolver().HasAnyAccess(permissions...)
}

func (u *User) resolver() *permission.Resolver {
	if u.checker != nil {
		return u.checker
	}
	// No resolver installed yet; fall back to the direct map alone.
	return permission.NewResolver(u.Permissions, permission.DefaultWildcard)
}
