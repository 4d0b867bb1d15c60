package satp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferSetLengthNonGrowable(t *testing.T) {
	b := NewBuffer(8, false)
	require.NoError(t, b.SetLength(4))
	assert.Equal(t, 4, b.Len())

	err := b.SetLength(100)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestBufferSetLengthGrowablePreservesContent(t *testing.T) {
	b := NewBuffer(4, true)
	copy(b.Bytes(), []byte{1, 2, 3, 4})

	require.NoError(t, b.SetLength(8))
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, b.Bytes())
}

func TestBufferSliceOutOfRange(t *testing.T) {
	b := NewBuffer(4, false)
	_, err := b.slice(2, 4)
	assert.ErrorIs(t, err, ErrMalformed)

	s, err := b.slice(0, 4)
	require.NoError(t, err)
	assert.Len(t, s, 4)
}

func TestWrapBufferTakesOwnership(t *testing.T) {
	raw := []byte{0xde, 0xad, 0xbe, 0xef}
	b := WrapBuffer(raw)
	assert.Equal(t, 4, b.Len())
	assert.False(t, b.Growable())
	assert.Equal(t, raw, b.Bytes())
}
