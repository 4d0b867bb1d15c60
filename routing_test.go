package satp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ipv4(a, b, c, d byte) []byte { return []byte{a, b, c, d} }

// TestRoutingTreeLongestPrefixMatch is spec.md §8 S3 verbatim.
func TestRoutingTreeLongestPrefixMatch(t *testing.T) {
	tree := NewRoutingTree()
	require.NoError(t, tree.Insert(ipv4(10, 0, 0, 0), 8, 1))
	require.NoError(t, tree.Insert(ipv4(10, 1, 0, 0), 16, 2))
	require.NoError(t, tree.Insert(ipv4(10, 1, 2, 0), 24, 3))

	mux, err := tree.Lookup(ipv4(10, 2, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, uint16(1), mux)

	mux, err = tree.Lookup(ipv4(10, 1, 9, 9))
	require.NoError(t, err)
	assert.Equal(t, uint16(2), mux)

	mux, err = tree.Lookup(ipv4(10, 1, 2, 5))
	require.NoError(t, err)
	assert.Equal(t, uint16(3), mux)

	_, err = tree.Lookup(ipv4(11, 0, 0, 0))
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestRoutingTreeDefaultRoute(t *testing.T) {
	tree := NewRoutingTree()
	require.NoError(t, tree.Insert(nil, 0, 42))

	mux, err := tree.Lookup(ipv4(1, 2, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, uint16(42), mux)

	mux, err = tree.Lookup(nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), mux)
}

func TestRoutingTreeSubByteBoundaryPrefix(t *testing.T) {
	tree := NewRoutingTree()
	// 10.0.0.0/10: top 2 bits of the second byte must be 0.
	require.NoError(t, tree.Insert(ipv4(10, 0, 0, 0), 10, 7))

	mux, err := tree.Lookup(ipv4(10, 63, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, uint16(7), mux)

	_, err = tree.Lookup(ipv4(10, 64, 1, 1))
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestRoutingTreeInsertIsIdempotent(t *testing.T) {
	tree := NewRoutingTree()
	require.NoError(t, tree.Insert(ipv4(192, 168, 1, 0), 24, 9))
	require.NoError(t, tree.Insert(ipv4(192, 168, 1, 0), 24, 9))

	mux, err := tree.Lookup(ipv4(192, 168, 1, 55))
	require.NoError(t, err)
	assert.Equal(t, uint16(9), mux)
}

func TestRoutingTreeNoRouteOnEmptyTree(t *testing.T) {
	tree := NewRoutingTree()
	_, err := tree.Lookup(ipv4(1, 1, 1, 1))
	assert.ErrorIs(t, err, ErrNoRoute)
}
