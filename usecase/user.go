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

// RegisterParams defines the parameters for creating a user.
type RegisterParams struct {
	Email    string `validate:"required,email"`
	Username string
	Password string `validate:"required,min=8"`
}

type passwordUpdate struct {
	Password string `validate:"required,min=8"`
}

// UserUsecase covers the user lifecycle: creation, password updates,
// permission mutation, role membership and cascading deletion.
type UserUsecase interface {
	UserUpdater

	Register(ctx context.Context, params RegisterParams) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)

	// AddPermission, UpdatePermission and RemovePermission mutate the
	// user's direct permission map and persist it. They never write
	// through to roles.
	AddPermission(ctx context.Context, user *model.User, name string, value bool) error
	UpdatePermission(ctx context.Context, user *model.User, name string, value bool) error
	RemovePermission(ctx context.Context, user *model.User, name string) error

	// HasAccess and HasAnyAccess answer access queries over the user's
	// effective permissions, loading the roles once per user instance.
	HasAccess(ctx context.Context, user *model.User, permissions ...string) (bool, error)
	HasAnyAccess(ctx context.Context, user *model.User, permissions ...string) (bool, error)

	// Delete removes the user and every dependent record: activations,
	// reminders, persistences, throttle entries and role memberships.
	Delete(ctx context.Context, user *model.User) error
}

type userUsecase struct {
	users        repository.UserRepository
	roles        repository.RoleRepository
	activations  repository.CodeRepository
	reminders    repository.CodeRepository
	persistences repository.PersistenceRepository
	throttles    repository.ThrottleRepository
	hasher       security.Hasher
	validator    *validate.Validator
	cfg          *config.Config
	logger       *zerolog.Logger
}

// NewUserUsecase creates the user lifecycle manager.
func NewUserUsecase(
	users repository.UserRepository,
	roles repository.RoleRepository,
	activations repository.CodeRepository,
	reminders repository.CodeRepository,
	persistences repository.PersistenceRepository,
	throttles repository.ThrottleRepository,
	hasher security.Hasher,
	validator *validate.Validator,
	cfg *config.Config,
	logger *zerolog.Logger,
) UserUsecase {
	return &userUsecase{
		users:        users,
		roles:        roles,
		activations:  activations,
		reminders:    reminders,
		persistences: persistences,
		throttles:    throttles,
		hasher:       hasher,
		validator:    validator,
		cfg:          cfg,
		logger:       logger,
	}
}

func (u *userUsecase) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	if err := u.validator.Struct(params); err != nil {
		return nil, err
	}

	digest, err := u.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	user, err := u.users.CreateUser(ctx, &model.User{
		Email:        params.Email,
		Username:     params.Username,
		PasswordHash: digest,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return user, nil
}

func (u *userUsecase) Get(ctx context.Context, id string) (*model.User, error) {
	return u.users.GetUser(ctx, id)
}

func (u *userUsecase) ValidForUpdate(_ *model.User, password string) error {
	return u.validator.Struct(passwordUpdate{Password: password})
}

func (u *userUsecase) UpdatePassword(ctx context.Context, user *model.User, password string) error {
	digest, err := u.hasher.Hash(password)
	if err != nil {
		return err
	}

	updated, err := u.users.UpdateUser(ctx, user.ID, repository.UpdateUserParams{PasswordHash: &digest})
	if err != nil {
		return err
	}

	user.PasswordHash = updated.PasswordHash
	return nil
}

func (u *userUsecase) AddPermission(ctx context.Context, user *model.User, name string, value bool) error {
	user.AddPermission(name, value)
	return u.savePermissions(ctx, user)
}

func (u *userUsecase) UpdatePermission(ctx context.Context, user *model.User, name string, value bool) error {
	user.UpdatePermission(name, value)
	return u.savePermissions(ctx, user)
}

func (u *userUsecase) RemovePermission(ctx context.Context, user *model.User, name string) error {
	user.RemovePermission(name)
	return u.savePermissions(ctx, user)
}

func (u *userUsecase) HasAccess(ctx context.Context, user *model.User, permissions ...string) (bool, error) {
	checker, err := u.checkerFor(ctx, user)
	if err != nil {
		return false, err
	}
	return checker.HasAccess(permissions...), nil
}

func (u *userUsecase) HasAnyAccess(ctx context.Context, user *model.User, permissions ...string) (bool, error) {
	checker, err := u.checkerFor(ctx, user)
	if err != nil {
		return false, err
	}
	return checker.HasAnyAccess(permissions...), nil
}

func (u *userUsecase) Delete(ctx context.Context, user *model.User) error {
	if _, err := u.activations.DeleteCodesByUser(ctx, user.ID); err != nil {
		return err
	}
	if _, err := u.reminders.DeleteCodesByUser(ctx, user.ID); err != nil {
		return err
	}
	if _, err := u.persistences.DeletePersistencesByUser(ctx, user.ID); err != nil {
		return err
	}
	if _, err := u.throttles.DeleteThrottleByUser(ctx, user.ID); err != nil {
		return err
	}
	if _, err := u.roles.DetachUserFromAll(ctx, user.ID); err != nil {
		return err
	}
	return u.users.DeleteUser(ctx, user.ID)
}

func (u *userUsecase) savePermissions(ctx context.Context, user *model.User) error {
	perms := user.Permissions
	_, err := u.users.UpdateUser(ctx, user.ID, repository.UpdateUserParams{Permissions: &perms})
	return err
}

// checkerFor lazily builds the resolver over the live permission maps
// of the user and their roles, once per user instance. Mutating a map
// needs no invalidation because the resolver reads the maps by
// reference.
func (u *userUsecase) checkerFor(ctx context.Context, user *model.User) (permission.AccessChecker, error) {
	if checker := user.Checker(); checker != nil {
		return checker, nil
	}

	roles, err := u.roles.GetRolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	roleMaps := make([]permission.Map, 0, len(roles))
	for _, role := range roles {
		roleMaps = append(roleMaps, role.Permissions)
	}

	checker := permission.NewResolver(user.Permissions, u.cfg.WildcardRune(), roleMaps...)
	user.SetChecker(checker)
	return checker, nil
}
