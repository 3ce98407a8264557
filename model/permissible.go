package model

import "github.com/peregrinelabs/warden/permission"

// PermissionHolder carries the direct permission map shared by users and
// roles, together with the mutation operations acting on it. Mutations
// never write through to roles; they touch only the holder's own map.
type PermissionHolder struct {
	Permissions permission.Map `bson:"permissions,omitempty"`
}

// AddPermission records an explicit decision for a permission key.
// Adding a key that is already present is a no-op; use
// UpdatePermission to change its value.
func (h *PermissionHolder) AddPermission(name string, value bool) {
	if h.Permissions == nil {
		h.Permissions = permission.Map{}
	}
	if _, ok := h.Permissions[name]; ok {
		return
	}
	h.Permissions[name] = value
}

// UpdatePermission changes the value of an existing permission key.
// Updating an absent key is a no-op.
func (h *PermissionHolder) UpdatePermission(name string, value bool) {
	if _, ok := h.Permissions[name]; !ok {
		return
	}
	h.Permissions[name] = value
}

// RemovePermission deletes a permission key. Removing an absent key is
// a no-op.
func (h *PermissionHolder) RemovePermission(name string) {
	delete(h.Permissions, name)
}
