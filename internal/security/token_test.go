package security

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	plain, digest, err := GenerateToken(20)
	require.NoError(t, err)

	raw, err := hex.DecodeString(plain)
	require.NoError(t, err)
	assert.Len(t, raw, 20)
	assert.Len(t, digest, 64)
	assert.Equal(t, DigestToken(plain), digest)
	assert.NotEqual(t, plain, digest)
}

func TestGenerateToken_EnforcesMinimum(t *testing.T) {
	plain, _, err := GenerateToken(4)
	require.NoError(t, err)
	assert.Len(t, plain, MinTokenBytes*2)
}

func TestGenerateToken_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		plain, _, err := GenerateToken(20)
		require.NoError(t, err)
		_, dup := seen[plain]
		require.False(t, dup)
		seen[plain] = struct{}{}
	}
}

func TestDigestToken_Deterministic(t *testing.T) {
	assert.Equal(t, DigestToken("abc"), DigestToken("abc"))
	assert.NotEqual(t, DigestToken("abc"), DigestToken("abd"))
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", DigestToken("abc"))
}
