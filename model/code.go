package model

import "time"

// Code represents a time-boxed single-use verification code bound to a
// user. Activations (account verification) and reminders (password
// reset) share this shape and differ only in the flow that consumes
// them. Once completed a code never transitions back.
type Code struct {
	ID          string     `bson:"_id,omitempty"`
	UserID      string     `bson:"user_id"`
	Code        string     `bson:"code"`
	Completed   bool       `bson:"completed"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}
