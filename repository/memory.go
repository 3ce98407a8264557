package repository

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peregrinelabs/warden/model"
)

// MemoryStore backs every repository interface with process memory. It
// exists for tests and for embedders that bring their own durability;
// the kernel behaves identically over it and over MongoDB.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]*model.User
	roles        map[string]*model.Role
	activations  map[string]*model.Code
	reminders    map[string]*model.Code
	persistences map[string]*model.Persistence
	throttles    []*model.Throttle
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        map[string]*model.User{},
		roles:        map[string]*model.Role{},
		activations:  map[string]*model.Code{},
		reminders:    map[string]*model.Code{},
		persistences: map[string]*model.Persistence{},
	}
}

// Users returns the in-memory user repository view.
func (s *MemoryStore) Users() UserRepository { return &memoryUserRepository{s} }

// Roles returns the in-memory role repository view.
func (s *MemoryStore) Roles() RoleRepository { return &memoryRoleRepository{s} }

// Activations returns the in-memory activation code repository view.
func (s *MemoryStore) Activations() CodeRepository { return &memoryCodeRepository{s, s.activations} }

// Reminders returns the in-memory reminder code repository view.
func (s *MemoryStore) Reminders() CodeRepository { return &memoryCodeRepository{s, s.reminders} }

// Persistences returns the in-memory persistence token repository view.
func (s *MemoryStore) Persistences() PersistenceRepository { return &memoryPersistenceRepository{s} }

// Throttles returns the in-memory throttle log view.
func (s *MemoryStore) Throttles() ThrottleRepository { return &memoryThrottleRepository{s} }

type memoryUserRepository struct {
	store *MemoryStore
}

func (r *memoryUserRepository) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.users {
		if existing.Email == user.Email {
			return nil, ErrDuplicate
		}
	}

	now := time.Now()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	stored.Permissions = maps.Clone(user.Permissions)
	r.store.users[user.ID] = &stored

	return user, nil
}

func (r *memoryUserRepository) GetUser(_ context.Context, id string) (*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(user), nil
}

func (r *memoryUserRepository) GetUserByCredential(_ context.Context, attribute, value string) (*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, user := range r.store.users {
		if v := user.LoginValue(attribute); v != "" && v == value {
			return copyUser(user), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryUserRepository) UpdateUser(_ context.Context, id string, params UpdateUserParams) (*model.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	if params.Email != nil {
		user.Email = *params.Email
	}
	if params.Username != nil {
		user.Username = *params.Username
	}
	if params.PasswordHash != nil {
		user.PasswordHash = *params.PasswordHash
	}
	if params.Permissions != nil {
		user.Permissions = maps.Clone(*params.Permissions)
	}
	user.UpdatedAt = time.Now()

	return copyUser(user), nil
}

func (r *memoryUserRepository) DeleteUser(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.store.users, id)
	return nil
}

func copyUser(user *model.User) *model.User {
	out := *user
	out.Permissions = maps.Clone(user.Permissions)
	return &out
}

type memoryRoleRepository struct {
	store *MemoryStore
}

func (r *memoryRoleRepository) CreateRole(_ context.Context, role *model.Role) (*model.Role, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.roles {
		if existing.Slug == role.Slug {
			return nil, ErrDuplicate
		}
	}

	now := time.Now()
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	role.CreatedAt = now
	role.UpdatedAt = now

	stored := *role
	stored.Permissions = maps.Clone(role.Permissions)
	stored.UserIDs = slices.Clone(role.UserIDs)
	r.store.roles[role.ID] = &stored

	return role, nil
}

func (r *memoryRoleRepository) GetRole(_ context.Context, id string) (*model.Role, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	role, ok := r.store.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRole(role), nil
}

func (r *memoryRoleRepository) GetRoleBySlug(_ context.Context, slug string) (*model.Role, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, role := range r.store.roles {
		if role.Slug == slug {
			return copyRole(role), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRoleRepository) GetRolesForUser(_ context.Context, userID string) ([]*model.Role, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var roles []*model.Role
	for _, role := range r.store.roles {
		if slices.Contains(role.UserIDs, userID) {
			roles = append(roles, copyRole(role))
		}
	}
	return roles, nil
}

func (r *memoryRoleRepository) UpdateRole(_ context.Context, id string, params UpdateRoleParams) (*model.Role, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	role, ok := r.store.roles[id]
	if !ok {
		return nil, ErrNotFound
	}

	if params.Name != nil {
		role.Name = *params.Name
	}
	if params.Permissions != nil {
		role.Permissions = maps.Clone(*params.Permissions)
	}
	role.UpdatedAt = time.Now()

	return copyRole(role), nil
}

func (r *memoryRoleRepository) AttachUser(_ context.Context, roleID, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	role, ok := r.store.roles[roleID]
	if !ok {
		return ErrNotFound
	}
	if !slices.Contains(role.UserIDs, userID) {
		role.UserIDs = append(role.UserIDs, userID)
		role.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memoryRoleRepository) DetachUser(_ context.Context, roleID, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	role, ok := r.store.roles[roleID]
	if !ok {
		return ErrNotFound
	}
	role.UserIDs = slices.DeleteFunc(role.UserIDs, func(id string) bool { return id == userID })
	role.UpdatedAt = time.Now()
	return nil
}

func (r *memoryRoleRepository) DetachUserFromAll(_ context.Context, userID string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var detached int64
	for _, role := range r.store.roles {
		before := len(role.UserIDs)
		role.UserIDs = slices.DeleteFunc(role.UserIDs, func(id string) bool { return id == userID })
		if len(role.UserIDs) != before {
			detached++
			role.UpdatedAt = time.Now()
		}
	}
	return detached, nil
}

func (r *memoryRoleRepository) DeleteRole(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.roles[id]; !ok {
		return ErrNotFound
	}
	delete(r.store.roles, id)
	return nil
}

func copyRole(role *model.Role) *model.Role {
	out := *role
	out.Permissions = maps.Clone(role.Permissions)
	out.UserIDs = slices.Clone(role.UserIDs)
	return &out
}

type memoryCodeRepository struct {
	store *MemoryStore
	codes map[string]*model.Code
}

func (r *memoryCodeRepository) CreateCode(_ context.Context, code *model.Code) (*model.Code, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	code.UpdatedAt = code.CreatedAt
	code.Completed = false

	stored := *code
	r.codes[code.ID] = &stored

	return code, nil
}

func (r *memoryCodeRepository) GetValidCode(
	_ context.Context,
	userID, code string,
	createdAfter time.Time,
) (*model.Code, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var latest *model.Code
	for _, rec := range r.codes {
		if rec.UserID != userID || rec.Completed || !rec.CreatedAt.After(createdAfter) {
			continue
		}
		if code != "" && rec.Code != code {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}

	out := *latest
	return &out, nil
}

func (r *memoryCodeRepository) CompleteCode(_ context.Context, id string, completedAt time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec, ok := r.codes[id]
	if !ok || rec.Completed {
		return false, nil
	}

	rec.Completed = true
	rec.CompletedAt = &completedAt
	rec.UpdatedAt = completedAt
	return true, nil
}

func (r *memoryCodeRepository) GetCompletedCode(_ context.Context, userID string) (*model.Code, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, rec := range r.codes {
		if rec.UserID == userID && rec.Completed {
			out := *rec
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryCodeRepository) DeleteCode(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.codes[id]; !ok {
		return ErrNotFound
	}
	delete(r.codes, id)
	return nil
}

func (r *memoryCodeRepository) DeleteExpiredCodes(_ context.Context, createdBefore time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	for id, rec := range r.codes {
		if !rec.Completed && rec.CreatedAt.Before(createdBefore) {
			delete(r.codes, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memoryCodeRepository) DeleteCodesByUser(_ context.Context, userID string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	for id, rec := range r.codes {
		if rec.UserID == userID {
			delete(r.codes, id)
			deleted++
		}
	}
	return deleted, nil
}

type memoryPersistenceRepository struct {
	store *MemoryStore
}

func (r *memoryPersistenceRepository) CreatePersistence(
	_ context.Context,
	persistence *model.Persistence,
) (*model.Persistence, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if persistence.ID == "" {
		persistence.ID = uuid.NewString()
	}
	if persistence.CreatedAt.IsZero() {
		persistence.CreatedAt = time.Now()
	}

	stored := *persistence
	r.store.persistences[persistence.ID] = &stored

	return persistence, nil
}

func (r *memoryPersistenceRepository) GetPersistenceByCode(_ context.Context, code string) (*model.Persistence, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, rec := range r.store.persistences {
		if rec.Code == code {
			out := *rec
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryPersistenceRepository) DeletePersistenceByCode(_ context.Context, code string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for id, rec := range r.store.persistences {
		if rec.Code == code {
			delete(r.store.persistences, id)
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryPersistenceRepository) DeletePersistencesByUser(_ context.Context, userID string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	for id, rec := range r.store.persistences {
		if rec.UserID == userID {
			delete(r.store.persistences, id)
			deleted++
		}
	}
	return deleted, nil
}

type memoryThrottleRepository struct {
	store *MemoryStore
}

func (r *memoryThrottleRepository) CreateThrottle(_ context.Context, entry *model.Throttle) (*model.Throttle, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	stored := *entry
	r.store.throttles = append(r.store.throttles, &stored)

	return entry, nil
}

func (r *memoryThrottleRepository) CountThrottle(_ context.Context, filter ThrottleFilter) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var count int64
	for _, entry := range r.store.throttles {
		if matchThrottle(entry, filter) {
			count++
		}
	}
	return count, nil
}

func (r *memoryThrottleRepository) LastThrottle(_ context.Context, filter ThrottleFilter) (*model.Throttle, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var last *model.Throttle
	for _, entry := range r.store.throttles {
		if matchThrottle(entry, filter) && (last == nil || entry.CreatedAt.After(last.CreatedAt)) {
			last = entry
		}
	}
	if last == nil {
		return nil, ErrNotFound
	}

	out := *last
	return &out, nil
}

func (r *memoryThrottleRepository) DeleteThrottleByUser(_ context.Context, userID string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	before := len(r.store.throttles)
	r.store.throttles = slices.DeleteFunc(r.store.throttles, func(entry *model.Throttle) bool {
		return entry.UserID == userID && userID != ""
	})
	return int64(before - len(r.store.throttles)), nil
}

func (r *memoryThrottleRepository) DeleteThrottleBefore(_ context.Context, createdBefore time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	before := len(r.store.throttles)
	r.store.throttles = slices.DeleteFunc(r.store.throttles, func(entry *model.Throttle) bool {
		return entry.CreatedAt.Before(createdBefore)
	})
	return int64(before - len(r.store.throttles)), nil
}

func matchThrottle(entry *model.Throttle, filter ThrottleFilter) bool {
	if entry.Type != filter.Type {
		return false
	}
	if filter.UserID != "" && entry.UserID != filter.UserID {
		return false
	}
	if filter.IP != "" && entry.IP != filter.IP {
		return false
	}
	if !filter.Since.IsZero() && entry.CreatedAt.Before(filter.Since) {
		return false
	}
	return true
}
