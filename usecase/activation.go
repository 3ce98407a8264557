package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/peregrinelabs/warden/model"
	"github.com/peregrinelabs/warden/repository"
	"github.com/peregrinelabs/warden/security"
)

// CodeMailer delivers freshly issued codes to their owner. Delivery is
// best effort; a failed mail never fails the issuing operation.
type CodeMailer interface {
	SendActivationCode(to, code string, ttl time.Duration) error
	SendReminderCode(to, code string, ttl time.Duration) error
}

// ActivationUsecase tracks account activation codes.
type ActivationUsecase interface {
	// Create issues a new activation code for the user. It does not
	// check for pre-existing active codes; call Exists first if at most
	// one should be pending.
	Create(ctx context.Context, user *model.User) (*model.Code, error)

	// Exists returns the most recent incomplete, unexpired activation
	// for the user. A non-empty code requires an exact match. A missing
	// or expired record yields ErrCodeInvalid.
	Exists(ctx context.Context, user *model.User, code string) (*model.Code, error)

	// Complete marks the matching activation completed. A wrong or
	// expired code yields ErrCodeInvalid; completion happens at most
	// once per code.
	Complete(ctx context.Context, user *model.User, code string) error

	// Completed returns the user's completed activation, or
	// ErrCodeInvalid when the account was never activated.
	Completed(ctx context.Context, user *model.User) (*model.Code, error)

	// Remove deletes the user's completed activation (deactivation).
	// ErrCodeInvalid when no completed activation exists.
	Remove(ctx context.Context, user *model.User) error

	// RemoveExpired bulk-deletes incomplete, stale activations and
	// reports the count. Maintenance only.
	RemoveExpired(ctx context.Context) (int64, error)
}

type activationUsecase struct {
	codes  repository.CodeRepository
	mailer CodeMailer
	ttl    time.Duration
	clock  Clock
	logger *zerolog.Logger
}

// NewActivationUsecase creates the activation ledger. mailer may be nil
// to disable delivery; clock may be nil to use the system clock.
func NewActivationUsecase(
	codes repository.CodeRepository,
	mailer CodeMailer,
	ttl time.Duration,
	clock Clock,
	logger *zerolog.Logger,
) ActivationUsecase {
	return &activationUsecase{
		codes:  codes,
		mailer: mailer,
		ttl:    ttl,
		clock:  orSystemClock(clock),
		logger: logger,
	}
}

func (u *activationUsecase) Create(ctx context.Context, user *model.User) (*model.Code, error) {
	code, err := security.GenerateCode()
	if err != nil {
		return nil, err
	}

	rec, err := u.codes.CreateCode(ctx, &model.Code{
		UserID:    user.ID,
		Code:      code,
		CreatedAt: u.clock(),
	})
	if err != nil {
		return nil, err
	}

	if u.mailer != nil && user.Email != "" {
		if err := u.mailer.SendActivationCode(user.Email, code, u.ttl); err != nil {
			u.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to mail activation code")
		}
	}

	return rec, nil
}

func (u *activationUsecase) Exists(ctx context.Context, user *model.User, code string) (*model.Code, error) {
	rec, err := u.codes.GetValidCode(ctx, user.ID, code, u.expiryBoundary())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCodeInvalid
		}
		return nil, err
	}
	return rec, nil
}

func (u *activationUsecase) Complete(ctx context.Context, user *model.User, code string) error {
	if code == "" {
		return ErrCodeInvalid
	}

	rec, err := u.Exists(ctx, user, code)
	if err != nil {
		return err
	}

	ok, err := u.codes.CompleteCode(ctx, rec.ID, u.clock())
	if err != nil {
		return err
	}
	if !ok {
		// Lost the race against a concurrent completion.
		return ErrCodeInvalid
	}

	return nil
}

func (u *activationUsecase) Completed(ctx context.Context, user *model.User) (*model.Code, error) {
	rec, err := u.codes.GetCompletedCode(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCodeInvalid
		}
		return nil, err
	}
	return rec, nil
}

func (u *activationUsecase) Remove(ctx context.Context, user *model.User) error {
	rec, err := u.Completed(ctx, user)
	if err != nil {
		return err
	}
	return u.codes.DeleteCode(ctx, rec.ID)
}

func (u *activationUsecase) RemoveExpired(ctx context.Context) (int64, error) {
	return u.codes.DeleteExpiredCodes(ctx, u.expiryBoundary())
}

func (u *activationUsecase) expiryBoundary() time.Time {
	return u.clock().Add(-u.ttl)
}
