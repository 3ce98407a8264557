package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/peregrinelabs/warden/security"
)

func TestBcryptHasher(t *testing.T) {
	h := security.NewBcryptHasher(bcrypt.MinCost)

	digest, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, digest)

	ok, err := h.Check("correct horse battery staple", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Check("wrong password", digest)
	require.NoError(t, err)
	assert.False(t, ok, "mismatch must be a negative result, not an error")
}

func TestArgon2Hasher(t *testing.T) {
	if testing.Short() {
		t.Skip("argon2 hashing is slow")
	}

	h := security.NewArgon2Hasher()

	digest, err := h.Hash("s3cret-passphrase")
	require.NoError(t, err)

	ok, err := h.Check("s3cret-passphrase", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Check("not the passphrase", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for range 32 {
		code, err := security.GenerateCode()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(code), 22, "code must carry at least 128 bits")
		assert.False(t, seen[code], "codes must not repeat")
		seen[code] = true
	}
}
