package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/peregrinelabs/warden/model"
	"github.com/peregrinelabs/warden/repository"
	"github.com/peregrinelabs/warden/validate"
)

// CreateRoleParams defines the parameters for creating a role.
type CreateRoleParams struct {
	Slug string `validate:"required"`
	Name string `validate:"required"`
}

// RoleUsecase covers the role lifecycle: creation under a unique slug,
// permission mutation, membership and cascading deletion.
type RoleUsecase interface {
	Create(ctx context.Context, params CreateRoleParams) (*model.Role, error)
	Get(ctx context.Context, id string) (*model.Role, error)
	GetBySlug(ctx context.Context, slug string) (*model.Role, error)

	// AddPermission, UpdatePermission and RemovePermission mutate the
	// role's permission map and persist it.
	AddPermission(ctx context.Context, role *model.Role, name string, value bool) error
	UpdatePermission(ctx context.Context, role *model.Role, name string, value bool) error
	RemovePermission(ctx context.Context, role *model.Role, name string) error

	AttachUser(ctx context.Context, role *model.Role, user *model.User) error
	DetachUser(ctx context.Context, role *model.Role, user *model.User) error

	// Delete detaches every member, then removes the role.
	Delete(ctx context.Context, role *model.Role) error
}

type roleUsecase struct {
	roles     repository.RoleRepository
	validator *validate.Validator
	logger    *zerolog.Logger
}

// NewRoleUsecase creates the role lifecycle manager.
func NewRoleUsecase(
	roles repository.RoleRepository,
	validator *validate.Validator,
	logger *zerolog.Logger,
) RoleUsecase {
	return &roleUsecase{
		roles:     roles,
		validator: validator,
		logger:    logger,
	}
}

func (u *roleUsecase) Create(ctx context.Context, params CreateRoleParams) (*model.Role, error) {
	if err := u.validator.Struct(params); err != nil {
		return nil, err
	}

	role, err := u.roles.CreateRole(ctx, &model.Role{
		Slug: params.Slug,
		Name: params.Name,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrRoleExists
		}
		return nil, err
	}

	return role, nil
}

func (u *roleUsecase) Get(ctx context.Context, id string) (*model.Role, error) {
	return u.roles.GetRole(ctx, id)
}

func (u *roleUsecase) GetBySlug(ctx context.Context, slug string) (*model.Role, error) {
	return u.roles.GetRoleBySlug(ctx, slug)
}

func (u *roleUsecase) AddPermission(ctx context.Context, role *model.Role, name string, value bool) error {
	role.AddPermission(name, value)
	return u.savePermissions(ctx, role)
}

func (u *roleUsecase) UpdatePermission(ctx context.Context, role *model.Role, name string, value bool) error {
	role.UpdatePermission(name, value)
	return u.savePermissions(ctx, role)
}

func (u *roleUsecase) RemovePermission(ctx context.Context, role *model.Role, name string) error {
	role.RemovePermission(name)
	return u.savePermissions(ctx, role)
}

func (u *roleUsecase) AttachUser(ctx context.Context, role *model.Role, user *model.User) error {
	return u.roles.AttachUser(ctx, role.ID, user.ID)
}

func (u *roleUsecase) DetachUser(ctx context.Context, role *model.Role, user *model.User) error {
	return u.roles.DetachUser(ctx, role.ID, user.ID)
}

func (u *roleUsecase) Delete(ctx context.Context, role *model.Role) error {
	// Memberships are detached before the role itself goes away.
	for _, userID := range role.UserIDs {
		if err := u.roles.DetachUser(ctx, role.ID, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return u.roles.DeleteRole(ctx, role.ID)
}

func (u *roleUsecase) savePermissions(ctx context.Context, role *model.Role) error {
	perms := role.Permissions
	_, err := u.roles.UpdateRole(ctx, role.ID, repository.UpdateRoleParams{Permissions: &perms})
	return err
}
