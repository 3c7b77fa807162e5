package bitset_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstspack/rstspack/util/bitset"
)

func TestPopcount(t *testing.T) {
	b := []byte{0xff, 0x00, 0x0f, 0x01}
	require.Equal(t, 8+0+4+1, bitset.Popcount(b))
}

func TestMarkAndClearGroupSubByte(t *testing.T) {
	b := make([]byte, 1)
	ok, err := bitset.MarkGroup(b, 2, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0b00001100, b[0])

	free, err := bitset.IsFreeGroup(b, 2, 2)
	require.NoError(t, err)
	require.False(t, free)

	ok, err = bitset.ClearGroup(b, 2, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, b[0])
}

func TestMarkGroupRejectsDoubleAlloc(t *testing.T) {
	b := []byte{0xff}
	ok, err := bitset.MarkGroup(b, 0, 8)
	require.NoError(t, err)
	require.False(t, ok, "MarkGroup() over already-set bits should report ok=false")
}

func TestMarkAndClearGroupByteAligned(t *testing.T) {
	b := make([]byte, 4)
	ok, err := bitset.MarkGroup(b, 8, 16)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0xff, b[1])
	require.EqualValues(t, 0xff, b[2])

	ok, err = bitset.ClearGroup(b, 8, 16)
	require.NoError(t, err)
	require.True(t, ok)
	for _, v := range b {
		require.Zero(t, v, "bytes = %v, want all zero", b)
	}
}
