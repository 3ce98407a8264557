package usecase

import (
	"context"
	"errors"

	"github.com/peregrinelabs/warden/model"
)

// Attempt carries the context of one login or session validation
// through the checkpoint pipeline. User is nil until (and unless) the
// credential resolved to an account.
type Attempt struct {
	User  *model.User
	Login string
	IP    string
}

// Checkpoint is a named, pluggable guard evaluated during login and
// session validation. The first checkpoint to return an error vetoes
// the attempt with that reason.
type Checkpoint interface {
	Name() string

	// Login is evaluated on a login attempt.
	Login(ctx context.Context, attempt *Attempt) error

	// Check is evaluated when validating an existing session.
	Check(ctx context.Context, attempt *Attempt) error

	// Fail is notified after a failed attempt.
	Fail(ctx context.Context, attempt *Attempt) error
}

// SuccessObserver is implemented by checkpoints that also want to be
// notified after a successful attempt.
type SuccessObserver interface {
	Succeed(ctx context.Context, attempt *Attempt) error
}

// Pipeline evaluates checkpoints sequentially in insertion order.
type Pipeline struct {
	checkpoints []Checkpoint
}

// NewPipeline builds a pipeline over the given checkpoints, evaluated
// in the given order.
func NewPipeline(checkpoints ...Checkpoint) *Pipeline {
	return &Pipeline{checkpoints: checkpoints}
}

// Login runs the login phase; the first failure short-circuits.
func (p *Pipeline) Login(ctx context.Context, attempt *Attempt) error {
	for _, cp := range p.checkpoints {
		if err := cp.Login(ctx, attempt); err != nil {
			return err
		}
	}
	return nil
}

// Check runs the session validation phase; the first failure
// short-circuits.
func (p *Pipeline) Check(ctx context.Context, attempt *Attempt) error {
	for _, cp := range p.checkpoints {
		if err := cp.Check(ctx, attempt); err != nil {
			return err
		}
	}
	return nil
}

// Fail notifies every checkpoint of a failed attempt.
func (p *Pipeline) Fail(ctx context.Context, attempt *Attempt) error {
	for _, cp := range p.checkpoints {
		if err := cp.Fail(ctx, attempt); err != nil {
			return err
		}
	}
	return nil
}

// Succeed notifies observing checkpoints of a completed attempt.
func (p *Pipeline) Succeed(ctx context.Context, attempt *Attempt) error {
	for _, cp := range p.checkpoints {
		if obs, ok := cp.(SuccessObserver); ok {
			if err := obs.Succeed(ctx, attempt); err != nil {
				return err
			}
		}
	}
	return nil
}

// ActivationCheckpoint vetoes attempts for accounts without a completed
// activation.
type ActivationCheckpoint struct {
	activations ActivationUsecase
}

// NewActivationCheckpoint wraps the activation ledger as a checkpoint.
func NewActivationCheckpoint(activations ActivationUsecase) *ActivationCheckpoint {
	return &ActivationCheckpoint{activations: activations}
}

func (c *ActivationCheckpoint) Name() string { return "activation" }

func (c *ActivationCheckpoint) Login(ctx context.Context, attempt *Attempt) error {
	return c.requireActivated(ctx, attempt)
}

func (c *ActivationCheckpoint) Check(ctx context.Context, attempt *Attempt) error {
	return c.requireActivated(ctx, attempt)
}

func (c *ActivationCheckpoint) Fail(context.Context, *Attempt) error { return nil }

func (c *ActivationCheckpoint) requireActivated(ctx context.Context, attempt *Attempt) error {
	if attempt.User == nil {
		return nil
	}
	if _, err := c.activations.Completed(ctx, attempt.User); err != nil {
		if errors.Is(err, ErrCodeInvalid) {
			return ErrNotActivated
		}
		return err
	}
	return nil
}

// ThrottleCheckpoint wraps the throttle guard. It vetoes attempts while
// any tier is locked and appends the attempt log entries once the
// attempt's outcome is known.
type ThrottleCheckpoint struct {
	throttle ThrottleUsecase
}

// NewThrottleCheckpoint wraps the throttle guard as a checkpoint.
func NewThrottleCheckpoint(throttle ThrottleUsecase) *ThrottleCheckpoint {
	return &ThrottleCheckpoint{throttle: throttle}
}

func (c *ThrottleCheckpoint) Name() string { return "throttle" }

func (c *ThrottleCheckpoint) Login(ctx context.Context, attempt *Attempt) error {
	return c.throttle.Check(ctx, attempt.userID(), attempt.IP)
}

func (c *ThrottleCheckpoint) Check(ctx context.Context, attempt *Attempt) error {
	return c.throttle.Check(ctx, attempt.userID(), attempt.IP)
}

func (c *ThrottleCheckpoint) Fail(ctx context.Context, attempt *Attempt) error {
	return c.throttle.Log(ctx, attempt.userID(), attempt.IP)
}

func (c *ThrottleCheckpoint) Succeed(ctx context.Context, attempt *Attempt) error {
	return c.throttle.Log(ctx, attempt.userID(), attempt.IP)
}

func (a *Attempt) userID() string {
	if a.User == nil {
		return ""
	}
	return a.User.ID
}
