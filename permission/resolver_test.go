package permission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/peregrinelabs/warden/permission"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		requested string
		want      bool
	}{
		{"exact", "users.create", "users.create", true},
		{"different key", "users.create", "users.delete", false},
		{"wildcard prefix", "users.*", "users.create", true},
		{"wildcard other prefix", "users.*", "invoices.create", false},
		{"bare wildcard", "*", "anything.at.all", true},
		{"wildcard not at end", "*.users", "create.users", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := permission.Matches(tt.key, tt.requested, permission.DefaultWildcard)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_DirectOverridesRole(t *testing.T) {
	role := permission.Map{"a.*": true}
	direct := permission.Map{"a.b": false}
	r := permission.NewResolver(direct, permission.DefaultWildcard, role)

	assert.False(t, r.HasAccess("a.b"), "direct revoke must beat role wildcard grant")
	assert.True(t, r.HasAccess("a.c"), "role wildcard grant must survive for other keys")
}

func TestResolver_MostPermissiveRoleWins(t *testing.T) {
	granting := permission.Map{"reports.view": true}
	revoking := permission.Map{"reports.view": false}
	r := permission.NewResolver(nil, permission.DefaultWildcard, revoking, granting)

	assert.True(t, r.HasAccess("reports.view"))
}

func TestResolver_HasAccessAll(t *testing.T) {
	direct := permission.Map{"a": true, "b": true}
	r := permission.NewResolver(direct, permission.DefaultWildcard)

	assert.True(t, r.HasAccess("a", "b"))
	assert.False(t, r.HasAccess("a", "c"))
}

func TestResolver_HasAnyAccess(t *testing.T) {
	direct := permission.Map{"x": true}
	r := permission.NewResolver(direct, permission.DefaultWildcard)

	assert.True(t, r.HasAnyAccess("x", "y"))
	assert.True(t, r.HasAnyAccess("y", "x"))
	assert.False(t, r.HasAnyAccess("y", "z"))
}

func TestResolver_ReadsLiveMap(t *testing.T) {
	direct := permission.Map{}
	r := permission.NewResolver(direct, permission.DefaultWildcard)

	assert.False(t, r.HasAccess("late.grant"))
	direct["late.grant"] = true
	assert.True(t, r.HasAccess("late.grant"), "resolver must read the live map, not a snapshot")
}

func TestResolver_AbsentIsNoOpinion(t *testing.T) {
	r := permission.NewResolver(permission.Map{}, permission.DefaultWildcard, permission.Map{})

	assert.False(t, r.HasAccess("unknown"))
	assert.False(t, r.HasAnyAccess("unknown"))
}
