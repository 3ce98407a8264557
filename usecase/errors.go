package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/peregrinelabs/warden/model"
)

var (
	// ErrInvalidCredentials covers both unknown login and wrong password;
	// the two are never distinguished.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrCodeInvalid covers a wrong, expired or missing code. Both
	// conditions collapse into one result so the caller learns nothing
	// about which failed.
	ErrCodeInvalid = errors.New("code invalid or expired")

	// ErrNotActivated rejects a login for an account without a completed
	// activation.
	ErrNotActivated = errors.New("user is not activated")

	// ErrNotPersisted means no valid persisted session was found.
	ErrNotPersisted = errors.New("no persisted session")

	ErrUserExists = errors.New("user already exists")
	ErrRoleExists = errors.New("role already exists")
)

// ThrottledError reports which tier is blocking an attempt and how long
// the caller must wait. It is a structured domain result, not a fault;
// the caller decides how to surface it.
type ThrottledError struct {
	Tier  model.ThrottleType
	Delay time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled by %s tier, retry in %s", e.Tier, e.Delay)
}
