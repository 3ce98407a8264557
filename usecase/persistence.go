package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/peregrinelabs/warden/config"
	"github.com/peregrinelabs/warden/model"
	"github.com/peregrinelabs/warden/repository"
	"github.com/peregrinelabs/warden/security"
	"github.com/peregrinelabs/warden/transport"
)

// PersistenceUsecase tracks long-lived login tokens across devices,
// decoupled from how the token travels between requests.
type PersistenceUsecase interface {
	// Persist issues a token for the user, stores it and writes it to
	// the transport. In single-session mode the user's prior tokens are
	// invalidated first.
	Persist(ctx context.Context, user *model.User) (string, error)

	// Check resolves the transport value to a user. A stale transport
	// value is cleared; any miss yields ErrNotPersisted.
	Check(ctx context.Context) (*model.User, error)

	// Forget drops the token matching the current transport value (all
	// of the user's tokens in single-session mode) and clears the
	// transport.
	Forget(ctx context.Context, user *model.User) error
}

type persistenceUsecase struct {
	persistences repository.PersistenceRepository
	users        repository.UserRepository
	transport    transport.TokenTransport
	cfg          *config.Config
	clock        Clock
	logger       *zerolog.Logger
}

// NewPersistenceUsecase creates the persistence session manager. clock
// may be nil to use the system clock.
func NewPersistenceUsecase(
	persistences repository.PersistenceRepository,
	users repository.UserRepository,
	tokenTransport transport.TokenTransport,
	cfg *config.Config,
	clock Clock,
	logger *zerolog.Logger,
) PersistenceUsecase {
	return &persistenceUsecase{
		persistences: persistences,
		users:        users,
		transport:    tokenTransport,
		cfg:          cfg,
		clock:        orSystemClock(clock),
		logger:       logger,
	}
}

func (u *persistenceUsecase) Persist(ctx context.Context, user *model.User) (string, error) {
	if u.cfg.SingleSession {
		if _, err := u.persistences.DeletePersistencesByUser(ctx, user.ID); err != nil {
			return "", err
		}
	}

	code, err := security.GenerateCode()
	if err != nil {
		return "", err
	}

	if _, err := u.persistences.CreatePersistence(ctx, &model.Persistence{
		UserID:    user.ID,
		Code:      code,
		CreatedAt: u.clock(),
	}); err != nil {
		return "", err
	}

	u.transport.Put(code, u.cfg.PersistenceTTL)
	return code, nil
}

func (u *persistenceUsecase) Check(ctx context.Context) (*model.User, error) {
	code, ok := u.transport.Get()
	if !ok {
		return nil, ErrNotPersisted
	}

	persistence, err := u.persistences.GetPersistenceByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			u.transport.Forget()
			return nil, ErrNotPersisted
		}
		return nil, err
	}

	user, err := u.users.GetUser(ctx, persistence.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			u.transport.Forget()
			return nil, ErrNotPersisted
		}
		return nil, err
	}

	return user, nil
}

func (u *persistenceUsecase) Forget(ctx context.Context, user *model.User) error {
	defer u.transport.Forget()

	if u.cfg.SingleSession {
		_, err := u.persistences.DeletePersistencesByUser(ctx, user.ID)
		return err
	}

	code, ok := u.transport.Get()
	if !ok {
		return nil
	}

	if err := u.persistences.DeletePersistenceByCode(ctx, code); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}
