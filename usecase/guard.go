package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/peregrinelabs/warden/config"
	"github.com/peregrinelabs/warden/model"
	"github.com/peregrinelabs/warden/permission"
	"github.com/peregrinelabs/warden/repository"
	"github.com/peregrinelabs/warden/security"
	"github.com/peregrinelabs/warden/validate"
)

// Credentials is one login attempt. Login is matched against the
// configured login attributes in order; IP feeds the throttle guard
// when known.
type Credentials struct {
	Login    string `validate:"required"`
	Password string `validate:"required"`
	IP       string
}

// Events are optional observability hooks fired around login. All
// fields are nil-safe; the guard behaves identically with every hook
// unset.
type Events struct {
	Attempting func(login string)
	Succeeded  func(user *model.User)
	Failed     func(login string)
}

// GuardUsecase is the authentication facade: it resolves credentials,
// runs the checkpoint pipeline and hands out persisted sessions.
type GuardUsecase interface {
	// Authenticate validates one login attempt. Unknown login and wrong
	// password both yield ErrInvalidCredentials; checkpoint vetoes
	// surface as their own reasons. With remember set, a successful
	// login also persists a session token.
	Authenticate(ctx context.Context, creds Credentials, remember bool) (*model.User, error)

	// CheckSession resolves the persisted session, if any, and runs the
	// check phase of the pipeline against it.
	CheckSession(ctx context.Context) (*model.User, error)

	// Logout drops the user's persisted session.
	Logout(ctx context.Context, user *model.User) error

	// SetEvents installs the observability hooks. Must be called before
	// the guard is shared between goroutines.
	SetEvents(events Events)
}

type guardUsecase struct {
	users       repository.UserRepository
	roles       repository.RoleRepository
	pipeline    *Pipeline
	persistence PersistenceUsecase
	hasher      security.Hasher
	validator   *validate.Validator
	cfg         *config.Config
	events      Events
	mask        string
	logger      *zerolog.Logger
}

// NewGuardUsecase creates the guard. It pre-computes the digest used to
// mask the fast-reject path; a hasher that cannot hash is a bootstrap
// failure.
func NewGuardUsecase(
	users repository.UserRepository,
	roles repository.RoleRepository,
	pipeline *Pipeline,
	persistence PersistenceUsecase,
	hasher security.Hasher,
	validator *validate.Validator,
	cfg *config.Config,
	logger *zerolog.Logger,
) (GuardUsecase, error) {
	mask, err := hasher.Hash("warden.guard.mask")
	if err != nil {
		return nil, err
	}

	return &guardUsecase{
		users:       users,
		roles:       roles,
		pipeline:    pipeline,
		persistence: persistence,
		hasher:      hasher,
		validator:   validator,
		cfg:         cfg,
		mask:        mask,
		logger:      logger,
	}, nil
}

func (g *guardUsecase) SetEvents(events Events) {
	g.events = events
}

func (g *guardUsecase) Authenticate(ctx context.Context, creds Credentials, remember bool) (*model.User, error) {
	if err := g.validator.Struct(creds); err != nil {
		return nil, err
	}

	if g.events.Attempting != nil {
		g.events.Attempting(creds.Login)
	}

	user, err := g.findByCredentials(ctx, creds.Login)
	if err != nil {
		return nil, err
	}

	attempt := &Attempt{User: user, Login: creds.Login, IP: creds.IP}

	// Dummy check against a fixed digest before every real check, so the
	// unknown-user path costs the same as a wrong password.
	if _, err := g.hasher.Check(creds.Password, g.mask); err != nil {
		return nil, err
	}

	if err := g.pipeline.Login(ctx, attempt); err != nil {
		return nil, g.fail(ctx, attempt, err)
	}

	if user == nil {
		return nil, g.fail(ctx, attempt, ErrInvalidCredentials)
	}

	ok, err := g.hasher.Check(creds.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, g.fail(ctx, attempt, ErrInvalidCredentials)
	}

	if err := g.pipeline.Succeed(ctx, attempt); err != nil {
		return nil, err
	}

	if err := g.attachChecker(ctx, user); err != nil {
		return nil, err
	}

	if remember && g.persistence != nil {
		if _, err := g.persistence.Persist(ctx, user); err != nil {
			return nil, err
		}
	}

	if g.events.Succeeded != nil {
		g.events.Succeeded(user)
	}

	return user, nil
}

func (g *guardUsecase) CheckSession(ctx context.Context) (*model.User, error) {
	user, err := g.persistence.Check(ctx)
	if err != nil {
		return nil, err
	}

	if err := g.pipeline.Check(ctx, &Attempt{User: user}); err != nil {
		return nil, err
	}

	if err := g.attachChecker(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (g *guardUsecase) Logout(ctx context.Context, user *model.User) error {
	return g.persistence.Forget(ctx, user)
}

func (g *guardUsecase) findByCredentials(ctx context.Context, login string) (*model.User, error) {
	for _, attribute := range g.cfg.LoginAttributes {
		user, err := g.users.GetUserByCredential(ctx, attribute, login)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// attachChecker builds the user's permission resolver over the live
// maps of the user and their roles.
func (g *guardUsecase) attachChecker(ctx context.Context, user *model.User) error {
	roles, err := g.roles.GetRolesForUser(ctx, user.ID)
	if err != nil {
		return err
	}

	roleMaps := make([]permission.Map, 0, len(roles))
	for _, role := range roles {
		roleMaps = append(roleMaps, role.Permissions)
	}

	user.SetChecker(permission.NewResolver(user.Permissions, g.cfg.WildcardRune(), roleMaps...))
	return nil
}

func (g *guardUsecase) fail(ctx context.Context, attempt *Attempt, cause error) error {
	if err := g.pipeline.Fail(ctx, attempt); err != nil {
		g.logger.Error().Err(err).Msg("failed to record login failure")
	}
	if g.events.Failed != nil {
		g.events.Failed(attempt.Login)
	}
	return cause
}
