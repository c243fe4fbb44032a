package domain

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountID_Names(t *testing.T) {
	for _, id := range []AccountID{"alice", "eosio.token", "user_1", "a-b", AccountID(strings.Repeat("a", 64))} {
		assert.True(t, id.Valid(), "%q should be valid", id)
	}
	for _, id := range []AccountID{"", "Alice", "has space", "emoji😀", AccountID(strings.Repeat("a", 65))} {
		assert.False(t, id.Valid(), "%q should be invalid", id)
	}
}

func TestAccountFromKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	id := AccountFromKey(pub)
	assert.True(t, id.Valid())

	key, err := ParseAccountKey(string(id))
	require.NoError(t, err)
	assert.Equal(t, []byte(pub), key)
}

func TestParseAccountKey_Errors(t *testing.T) {
	_, err := ParseAccountKey("0OIl")
	require.ErrorIs(t, err, ErrInvalidArgument, "not base58")

	_, err = ParseAccountKey(base58.Encode([]byte{1, 2, 3}))
	require.ErrorIs(t, err, ErrInvalidArgument, "wrong length")

	// y = 2 is not the y coordinate of a curve point.
	notOnCurve := make([]byte, 32)
	notOnCurve[0] = 2
	_, err = ParseAccountKey(base58.Encode(notOnCurve))
	require.ErrorIs(t, err, ErrInvalidArgument, "not a point")
}
