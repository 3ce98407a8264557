package model

import "time"

// ThrottleType identifies the scope a throttle entry counts against.
type ThrottleType string

const (
	// ThrottleGlobal counts every attempt across the whole system.
	ThrottleGlobal ThrottleType = "global"

	// ThrottleIP counts attempts from one source address.
	ThrottleIP ThrottleType = "ip"

	// ThrottleUser counts attempts against one account identity.
	ThrottleUser ThrottleType = "user"
)

// Throttle is one appended attempt record. The log of entries is the
// throttle guard's only state; entries are never mutated.
type Throttle struct {
	ID        string       `bson:"_id,omitempty"`
	UserID    string       `bson:"user_id,omitempty"`
	Type      ThrottleType `bson:"type"`
	IP        string       `bson:"ip,omitempty"`
	CreatedAt time.Time    `bson:"created_at"`
}
