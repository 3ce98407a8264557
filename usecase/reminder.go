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

// UserUpdater is the user-update collaborator reminder completion needs
// to validate and apply the new password. UserUsecase implements it.
type UserUpdater interface {
	ValidForUpdate(user *model.User, password string) error
	UpdatePassword(ctx context.Context, user *model.User, password string) error
}

// ReminderUsecase tracks password reset codes.
type ReminderUsecase interface {
	// Create issues a new reminder code for the user.
	Create(ctx context.Context, user *model.User) (*model.Code, error)

	// Exists returns the most recent incomplete, unexpired reminder for
	// the user; a non-empty code requires an exact match.
	Exists(ctx context.Context, user *model.User, code string) (*model.Code, error)

	// Complete validates the new password, burns the code and applies
	// the password change. When validation fails the reminder stays
	// usable; a wrong or expired code yields ErrCodeInvalid.
	Complete(ctx context.Context, user *model.User, code, newPassword string) error

	// RemoveExpired bulk-deletes incomplete, stale reminders.
	RemoveExpired(ctx context.Context) (int64, error)
}

type reminderUsecase struct {
	codes  repository.CodeRepository
	users  UserUpdater
	mailer CodeMailer
	ttl    time.Duration
	clock  Clock
	logger *zerolog.Logger
}

// NewReminderUsecase creates the reminder ledger. mailer may be nil to
// disable delivery; clock may be nil to use the system clock.
func NewReminderUsecase(
	codes repository.CodeRepository,
	users UserUpdater,
	mailer CodeMailer,
	ttl time.Duration,
	clock Clock,
	logger *zerolog.Logger,
) ReminderUsecase {
	return &reminderUsecase{
		codes:  codes,
		users:  users,
		mailer: mailer,
		ttl:    ttl,
		clock:  orSystemClock(clock),
		logger: logger,
	}
}

func (u *reminderUsecase) Create(ctx context.Context, user *model.User) (*model.Code, error) {
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
		if err := u.mailer.SendReminderCode(user.Email, code, u.ttl); err != nil {
			u.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to mail reminder code")
		}
	}

	return rec, nil
}

func (u *reminderUsecase) Exists(ctx context.Context, user *model.User, code string) (*model.Code, error) {
	rec, err := u.codes.GetValidCode(ctx, user.ID, code, u.clock().Add(-u.ttl))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCodeInvalid
		}
		return nil, err
	}
	return rec, nil
}

func (u *reminderUsecase) Complete(ctx context.Context, user *model.User, code, newPassword string) error {
	if code == "" {
		return ErrCodeInvalid
	}

	// Validate first so a rejected password leaves the reminder usable.
	if err := u.users.ValidForUpdate(user, newPassword); err != nil {
		return err
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
		return ErrCodeInvalid
	}

	return u.users.UpdatePassword(ctx, user, newPassword)
}

func (u *reminderUsecase) RemoveExpired(ctx context.Context) (int64, error) {
	return u.codes.DeleteExpiredCodes(ctx, u.clock().Add(-u.ttl))
}
