package plumbing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHexRoundTrip(t *testing.T) {
	sha1hex := "356a192b7913b04c54574d18c28d46e6395428ab"
	id, ok := FromHex(sha1hex)
	require.True(t, ok)
	assert.Equal(t, SHA1, id.Format())
	assert.Equal(t, sha1hex, id.String())
	assert.False(t, id.IsZero())
}

func TestFromHexSHA256(t *testing.T) {
	sha256hex := "ad7facb2586fc6e966c004d7d1d16b024f5805ff7cb47c7a85dabd8b48892ca7"
	id, ok := FromHex(sha256hex)
	require.True(t, ok)
	assert.Equal(t, SHA256, id.Format())
	assert.Equal(t, sha256hex, id.String())
}

func TestFromHexInvalid(t *testing.T) {
	_, ok := FromHex("not-hex")
	assert.False(t, ok)

	_, ok = FromHex("abcd")
	assert.False(t, ok)
}

func TestZeroID(t *testing.T) {
	assert.True(t, ZeroID.IsZero())
	assert.Equal(t, "0000000000000000000000000000000000000000", ZeroID.String())
}

func TestObjectIDEqual(t *testing.T) {
	a, _ := FromHex("356a192b7913b04c54574d18c28d46e6395428ab")
	b, _ := FromHex("356a192b7913b04c54574d18c28d46e6395428ab")
	c, _ := FromHex("da4b9237bacccdf19c0760cab7aec4a8359010b0")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestObjectIDCompare(t *testing.T) {
	a, _ := FromHex("356a192b7913b04c54574d18c28d46e6395428ab")
	b, _ := FromHex("da4b9237bacccdf19c0760cab7aec4a8359010b0")

	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	assert.Zero(t, a.Compare(a))
}
