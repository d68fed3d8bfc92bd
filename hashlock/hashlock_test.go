package hashlock

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	for i := 0; i < 32; i++ {
		secret, hashLock, err := Generate()
		require.NoError(t, err)
		assert.Len(t, secret, SecretSize)
		assert.Len(t, hashLock.String(), 64)
		assert.True(t, Verify(secret, hashLock))
	}
}

func TestVerifyRejectsBitFlips(t *testing.T) {
	secret, hashLock, err := Generate()
	require.NoError(t, err)

	for i := 0; i < len(secret)*8; i++ {
		mutated := secret.Clone()
		mutated[i/8] ^= 1 << (i % 8)
		assert.False(t, Verify(mutated, hashLock), "bit %d", i)
	}

	assert.False(t, Verify(nil, hashLock))
	assert.False(t, Verify(secret[:31], hashLock))
}

func TestParseHashLock(t *testing.T) {
	_, hashLock, err := Generate()
	require.NoError(t, err)

	upper := "0x" + strings.ToUpper(hashLock.String())
	parsed, err := ParseHashLock(upper)
	require.NoError(t, err)
	assert.Equal(t, hashLock, parsed)

	_, err = ParseHashLock("abcd")
	assert.ErrorIs(t, err, ErrInvalidHashLock)
	_, err = ParseHashLock(strings.Repeat("z", 64))
	assert.ErrorIs(t, err, ErrInvalidHashLock)
}

func TestSecretZero(t *testing.T) {
	secret, hashLock, err := Generate()
	require.NoError(t, err)
	clone := secret.Clone()

	secret.Zero()
	assert.Equal(t, make(Secret, SecretSize), secret)
	assert.True(t, Verify(clone, hashLock))
}
