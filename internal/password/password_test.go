package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, Verify("correct horse battery staple", hash))
	assert.False(t, Verify("wrong password", hash))
}

func TestHash_CostEmbedded(t *testing.T) {
	hash, err := Hash("secret123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$12$"), "digest should carry cost 12, got %s", hash)
}

func TestHash_DistinctSalts(t *testing.T) {
	h1, err := Hash("secret123")
	require.NoError(t, err)
	h2, err := Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestVerify_GarbageDigest(t *testing.T) {
	assert.False(t, Verify("secret123", "not-a-bcrypt-digest"))
}
