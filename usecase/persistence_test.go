package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peregrinelabs/warden/config"
	"github.com/peregrinelabs/warden/usecase"
)

func TestPersistence_PersistAndCheck(t *testing.T) {
	k := newTestKernel(t, config.Default())
	ctx := t.Context()
	user := k.registerUser(t, "ada@example.com")

	code, err := k.persistence.Persist(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, code)

	stored, ok := k.transport.Get()
	require.True(t, ok)
	assert.Equal(t, code, stored)

	resolved, err := k.persistence.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestPersistence_CheckWithoutToken(t *testing.T) {
	k := newTestKernel(t, config.Default())

	_, err := k.persistence.Check(t.Context())
	assert.ErrorIs(t, err, usecase.ErrNotPersisted)
}

func TestPersistence_StaleTransportIsCleared(t *testing.T) {
	k := newTestKernel(t, config.Default())
	ctx := t.Context()

	k.transport.Put("no-such-token", k.cfg.PersistenceTTL)

	_, err := k.persistence.Check(ctx)
	assert.ErrorIs(t, err, usecase.ErrNotPersisted)

	_, ok := k.transport.Get()
	assert.False(t, ok, "a stale transport value must be forgotten")
}

func TestPersistence_Forget(t *testing.T) {
	k := newTestKernel(t, config.Default())
	ctx := t.Context()
	user := k.registerUser(t, "ada@example.com")

	_, err := k.persistence.Persist(ctx, user)
	require.NoError(t, err)

	require.NoError(t, k.persistence.Forget(ctx, user))

	_, ok := k.transport.Get()
	assert.False(t, ok)
	_, err = k.persistence.Check(ctx)
	assert.ErrorIs(t, err, usecase.ErrNotPersisted)
}

func TestPersistence_MultiSessionKeepsOtherTokens(t *testing.T) {
	k := newTestKernel(t, config.Default())
	ctx := t.Context()
	user := k.registerUser(t, "ada@example.com")

	first, err := k.persistence.Persist(ctx, user)
	require.NoError(t, err)
	second, err := k.persistence.Persist(ctx, user)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// The first token still resolves from another device.
	k.transport.Put(first, k.cfg.PersistenceTTL)
	resolved, err := k.persistence.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestPersistence_SingleSessionInvalidatesPriorTokens(t *testing.T) {
	cfg := config.Default()
	cfg.SingleSession = true
	k := newTestKernel(t, cfg)
	ctx := t.Context()
	user := k.registerUser(t, "ada@example.com")

	first, err := k.persistence.Persist(ctx, user)
	require.NoError(t, err)
	second, err := k.persistence.Persist(ctx, user)
	require.NoError(t, err)

	// The first token is gone; only the newest session survives.
	k.transport.Put(first, k.cfg.PersistenceTTL)
	_, err = k.persistence.Check(ctx)
	assert.ErrorIs(t, err, usecase.ErrNotPersisted)

	k.transport.Put(second, k.cfg.PersistenceTTL)
	resolved, err := k.persistence.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestPersistence_SingleSessionForgetDropsEverything(t *testing.T) {
	cfg := config.Default()
	cfg.SingleSession = true
	k := newTestKernel(t, cfg)
	ctx := t.Context()
	user := k.registerUser(t, "ada@example.com")

	token, err := k.persistence.Persist(ctx, user)
	require.NoError(t, err)

	require.NoError(t, k.persistence.Forget(ctx, user))

	k.transport.Put(token, k.cfg.PersistenceTTL)
	_, err = k.persistence.Check(ctx)
	assert.ErrorIs(t, err, usecase.ErrNotPersisted)
}
