package satp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthTestPacket(t *testing.T, tagLen int) (*HmacSha1Auth, *KDState, *EncryptedPacket) {
	t.Helper()
	key := mustHex(t, s1MasterKeyHex)
	salt := mustHex(t, s1MasterSaltHex)
	kd, err := NewKDState(key, salt, RoleLeft, nil)
	require.NoError(t, err)

	enc := NewEncryptedPacket(8, tagLen)
	require.NoError(t, enc.SetPayloadLength(8))
	require.NoError(t, enc.SetHeader(1, 1, 1))

	return NewHmacSha1Auth(nil), kd, enc
}

func TestAuthGenerateThenVerifySucceeds(t *testing.T) {
	auth, kd, enc := newAuthTestPacket(t, 10)
	require.NoError(t, auth.Generate(kd, DirOutbound, enc, 1))
	assert.NoError(t, auth.Verify(kd, DirOutbound, enc, 1))
}

// TestAuthBadAuthRejection is spec.md §8 S2: flipping the last byte of
// the auth tag must fail verification.
func TestAuthBadAuthRejection(t *testing.T) {
	auth, kd, enc := newAuthTestPacket(t, 10)
	require.NoError(t, auth.Generate(kd, DirOutbound, enc, 1))

	tag, err := enc.AuthTag()
	require.NoError(t, err)
	tag[len(tag)-1] ^= 0xFF

	err = auth.Verify(kd, DirOutbound, enc, 1)
	assert.ErrorIs(t, err, ErrBadAuth)
}

// TestAuthTagTruncation is spec.md §8 S6: tag_len=10 surfaces digest
// bytes 10:20; tag_len=24 zero-pads the first 4 bytes and carries the
// full 20-byte digest in the last 20.
func TestAuthTagTruncation(t *testing.T) {
	key := mustHex(t, s1MasterKeyHex)
	salt := mustHex(t, s1MasterSaltHex)
	kd, err := NewKDState(key, salt, RoleLeft, nil)
	require.NoError(t, err)
	auth := NewHmacSha1Auth(nil)

	mk := func(tagLen int) *EncryptedPacket {
		enc := NewEncryptedPacket(8, tagLen)
		require.NoError(t, enc.SetPayloadLength(8))
		require.NoError(t, enc.SetHeader(1, 1, 1))
		return enc
	}

	short := mk(10)
	require.NoError(t, auth.Generate(kd, DirOutbound, short, 1))
	shortTag, err := short.AuthTag()
	require.NoError(t, err)
	require.Len(t, shortTag, 10)

	long := mk(24)
	require.NoError(t, auth.Generate(kd, DirOutbound, long, 1))
	longTag, err := long.AuthTag()
	require.NoError(t, err)
	require.Len(t, longTag, 24)

	assert.Equal(t, []byte{0, 0, 0, 0}, longTag[:4])
	// the trailing 10 bytes of both tags are the same digest suffix
	assert.Equal(t, shortTag, longTag[14:])
}

func TestAuthTagLenZeroDisablesAuth(t *testing.T) {
	auth, kd, enc := newAuthTestPacket(t, 0)
	require.NoError(t, auth.Generate(kd, DirOutbound, enc, 1))
	assert.NoError(t, auth.Verify(kd, DirOutbound, enc, 1))
}

func TestAuthRemoveAuthTagIsInverseOfAdd(t *testing.T) {
	auth, kd, enc := newAuthTestPacket(t, 10)
	before := enc.Buffer().Len()
	require.NoError(t, auth.Generate(kd, DirOutbound, enc, 1))
	require.NoError(t, enc.RemoveAuthTag())
	assert.Equal(t, before, enc.Buffer().Len())
}

func TestNullAuthAlwaysSucceeds(t *testing.T) {
	var auth NullAuth
	enc := NewEncryptedPacket(8, 10)
	require.NoError(t, enc.SetPayloadLength(8))

	require.NoError(t, auth.Generate(nil, DirOutbound, enc, 1))
	tag, err := enc.AuthTag()
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 10), tag)
	assert.NoError(t, auth.Verify(nil, DirOutbound, enc, 1))
}
