package usecase_test

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/peregrinelabs/warden/config"
	"github.com/peregrinelabs/warden/model"
	"github.com/peregrinelabs/warden/repository"
	"github.com/peregrinelabs/warden/security"
	"github.com/peregrinelabs/warden/transport"
	"github.com/peregrinelabs/warden/usecase"
	"github.com/peregrinelabs/warden/validate"
)

// fakeClock is an adjustable clock shared by the pieces under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func testValidator(t *testing.T) *validate.Validator {
	t.Helper()
	v, err := validate.New()
	require.NoError(t, err)
	return v
}

// testKernel wires the whole kernel over the in-memory store.
type testKernel struct {
	store       *repository.MemoryStore
	clock       *fakeClock
	cfg         *config.Config
	hasher      security.Hasher
	transport   *transport.MemoryTransport
	users       usecase.UserUsecase
	roles       usecase.RoleUsecase
	activations usecase.ActivationUsecase
	reminders   usecase.ReminderUsecase
	throttle    usecase.ThrottleUsecase
	persistence usecase.PersistenceUsecase
	guard       usecase.GuardUsecase
}

func newTestKernel(t *testing.T, cfg *config.Config) *testKernel {
	t.Helper()

	store := repository.NewMemoryStore()
	clock := newFakeClock()
	logger := testLogger()
	validator := testValidator(t)
	hasher := security.NewBcryptHasher(bcrypt.MinCost)

	users := usecase.NewUserUsecase(
		store.Users(),
		store.Roles(),
		store.Activations(),
		store.Reminders(),
		store.Persistences(),
		store.Throttles(),
		hasher,
		validator,
		cfg,
		logger,
	)

	activations := usecase.NewActivationUsecase(store.Activations(), nil, cfg.ActivationTTL, clock.Now, logger)
	throttle := usecase.NewThrottleUsecase(store.Throttles(), cfg, clock.Now, logger)

	jar := transport.NewMemoryTransport()
	persistence := usecase.NewPersistenceUsecase(store.Persistences(), store.Users(), jar, cfg, clock.Now, logger)

	pipeline := usecase.NewPipeline(
		usecase.NewActivationCheckpoint(activations),
		usecase.NewThrottleCheckpoint(throttle),
	)

	guard, err := usecase.NewGuardUsecase(
		store.Users(),
		store.Roles(),
		pipeline,
		persistence,
		hasher,
		validator,
		cfg,
		logger,
	)
	require.NoError(t, err)

	return &testKernel{
		store:       store,
		clock:       clock,
		cfg:         cfg,
		hasher:      hasher,
		transport:   jar,
		users:       users,
		roles:       usecase.NewRoleUsecase(store.Roles(), validator, logger),
		activations: activations,
		reminders:   usecase.NewReminderUsecase(store.Reminders(), users, nil, cfg.ReminderTTL, clock.Now, logger),
		throttle:    throttle,
		persistence: persistence,
		guard:       guard,
	}
}

// activate completes a fresh activation so the user can pass the
// activation checkpoint.
func (k *testKernel) activate(t *testing.T, user *model.User) {
	t.Helper()
	code, err := k.activations.Create(t.Context(), user)
	require.NoError(t, err)
	require.NoError(t, k.activations.Complete(t.Context(), user, code.Code))
}

func (k *testKernel) registerUser(t *testing.T, email string) *model.User {
	t.Helper()
	user, err := k.users.Register(t.Context(), usecase.RegisterParams{
		Email:    email,
		Password: "initial-password",
	})
	require.NoError(t, err)
	return user
}
