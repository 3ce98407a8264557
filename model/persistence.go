package model

import "time"

// Persistence is one long-lived login token, representing a single
// logged-in device. A user may hold many concurrent tokens unless
// single-session mode is configured.
type Persistence struct {
	ID        string    `bson:"_id,omitempty"`
	UserID    string    `bson:"user_id"`
	Code      string    `bson:"code"`
	CreatedAt time.Time `bson:"created_at"`
}
