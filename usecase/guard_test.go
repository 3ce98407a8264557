package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peregrinelabs/warden/config"
	"github.com/peregrinelabs/warden/model"
	"github.com/peregrinelabs/warden/repository"
	"github.com/peregrinelabs/warden/usecase"
)

func TestGuard_Authenticate(t *testing.T) {
	k := newTestKernel(t, config.Default())
	ctx := t.Context()
	user := k.registerUser(t, "ada@example.com")
	k.activate(t, user)

	var succeeded *model.User
	k.guard.SetEvents(usecase.Events{
		Succeeded: func(u *model.User) { succeeded = u },
	})

	got, err := k.guard.Authenticate(ctx, usecase.Credentials{
		Login:    "ada@example.com",
		Password: "initial-password",
		IP:       "10.0.0.1",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	require.NotNil(t, succeeded)
	assert.Equal(t, user.ID, succeeded.ID)

	// Successful attempts land in the throttle log too.
	count, err := k.store.Throttles().CountThrottle(ctx, repository.ThrottleFilter{
		Type:   model.ThrottleUser,
		UserID: user.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGuard_UnknownUserAndWrongPasswordLookAlike(t *testing.T) {
	k := newTestKernel(t, config.Default())
	ctx := t.Context()
	user := k.registerUser(t, "ada@example.com")
	k.activate(t, user)

	var failures []string
	k.guard.SetEvents(usecase.Events{
		Failed: func(login string) { failures = append(failures, login) },
	})

	_, unknownErr := k.guard.Authenticate(ctx, usecase.Credentials{
		Login:    "nobody@example.com",
		Password: "initial-password",
	}, false)
	_, wrongErr := k.guard.Authenticate(ctx, usecase.Credentials{
		Login:    "ada@example.com",
		Password: "not-the-password",
	}, false)

	assert.ErrorIs(t, unknownErr, usecase.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, usecase.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error(),
		"the two rejections must be indistinguishable")
	assert.Len(t, failures, 2)
}

func TestGuard_NotActivated(t *testing.T) {
	k := newTestKernel(t, config.Default())
	ctx := t.Context()
	k.registerUser(t, "ada@example.com")

	_, err := k.guard.Authenticate(ctx, usecase.Credentials{
		Login:    "ada@example.com",
		Password: "initial-password",
	}, false)
	assert.ErrorIs(t, err, usecase.ErrNotActivated)
}

func TestGuard_ThrottledAfterRepeatedFailures(t *testing.T) {
	cfg := throttleConfig()
	k := newTestKernel(t, cfg)
	ctx := t.Context()
	user := k.registerUser(t, "ada@example.com")
	k.activate(t, user)

	for range 3 {
		_, err := k.guard.Authenticate(ctx, usecase.Credentials{
			Login:    "ada@example.com",
			Password: "not-the-password",
		}, false)
		require.ErrorIs(t, err, usecase.ErrInvalidCredentials)
	}

	// Even the right password is vetoed while the lockout lasts.
	_, err := k.guard.Authenticate(ctx, usecase.Credentials{
		Login:    "ada@example.com",
		Password: "initial-password",
	}, false)
	var throttled *usecase.ThrottledError
	require.ErrorAs(t, err, &throttled)
	assert.Equal(t, model.ThrottleUser, throttled.Tier)
}

func TestGuard_RememberedSession(t *testing.T) {
	k := newTestKernel(t, config.Default())
	ctx := t.Context()
	user := k.registerUser(t, "ada@example.com")
	k.activate(t, user)

	_, err := k.guard.Authenticate(ctx, usecase.Credentials{
		Login:    "ada@example.com",
		Password: "initial-password",
	}, true)
	require.NoError(t, err)

	resolved, err := k.guard.CheckSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	require.NoError(t, k.guard.Logout(ctx, resolved))

	_, err = k.guard.CheckSession(ctx)
	assert.ErrorIs(t, err, usecase.ErrNotPersisted)
}

func TestGuard_AttachesPermissionChecker(t *testing.T) {
	k := newTestKernel(t, config.Default())
	ctx := t.Context()
	user := k.registerUser(t, "ada@example.com")
	k.activate(t, user)

	role, err := k.roles.Create(ctx, usecase.CreateRoleParams{Slug: "editor", Name: "Editor"})
	require.NoError(t, err)
	require.NoError(t, k.roles.AddPermission(ctx, role, "posts.*", true))
	require.NoError(t, k.roles.AttachUser(ctx, role, user))

	got, err := k.guard.Authenticate(ctx, usecase.Credentials{
		Login:    "ada@example.com",
		Password: "initial-password",
	}, false)
	require.NoError(t, err)

	assert.True(t, got.HasAccess("posts.create"))
	assert.False(t, got.HasAccess("users.create"))
}

// recordingCheckpoint notes which phases ran, optionally vetoing logins.
type recordingCheckpoint struct {
	name  string
	veto  error
	calls []string
}

func (c *recordingCheckpoint) Name() string { return c.name }

func (c *recordingCheckpoint) Login(context.Context, *usecase.Attempt) error {
	c.calls = append(c.calls, "login")
	return c.veto
}

func (c *recordingCheckpoint) Check(context.Context, *usecase.Attempt) error {
	c.calls = append(c.calls, "check")
	return c.veto
}

func (c *recordingCheckpoint) Fail(context.Context, *usecase.Attempt) error {
	c.calls = append(c.calls, "fail")
	return nil
}

func TestPipeline_FirstVetoShortCircuits(t *testing.T) {
	vetoErr := errors.New("suspended")
	first := &recordingCheckpoint{name: "first", veto: vetoErr}
	second := &recordingCheckpoint{name: "second"}
	pipeline := usecase.NewPipeline(first, second)

	err := pipeline.Login(t.Context(), &usecase.Attempt{})
	assert.ErrorIs(t, err, vetoErr, "the attempt fails with the vetoing checkpoint's reason")
	assert.Equal(t, []string{"login"}, first.calls)
	assert.Empty(t, second.calls, "checkpoints after the veto never run")
}

func TestPipeline_FailNotifiesEveryCheckpoint(t *testing.T) {
	first := &recordingCheckpoint{name: "first"}
	second := &recordingCheckpoint{name: "second"}
	pipeline := usecase.NewPipeline(first, second)

	require.NoError(t, pipeline.Fail(t.Context(), &usecase.Attempt{}))
	assert.Equal(t, []string{"fail"}, first.calls)
	assert.Equal(t, []string{"fail"}, second.calls)
}
