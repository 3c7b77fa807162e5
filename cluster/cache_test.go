package cluster_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstspack/rstspack/cluster"
	"github.com/rstspack/rstspack/testhelper"
)

func TestCacheGetReadsThroughOnMiss(t *testing.T) {
	storage := testhelper.NewFileImpl(make([]byte, 16*512), true)
	c := cluster.NewCache(storage, 1, 4)

	cl, err := c.Get(0, 2)
	require.NoError(t, err)
	require.Equal(t, 0, cl.DCN)
	require.Len(t, cl.Data, 1024)
}

func TestCacheGetRejectsSizeConflict(t *testing.T) {
	storage := testhelper.NewFileImpl(make([]byte, 16*512), true)
	c := cluster.NewCache(storage, 1, 4)

	_, err := c.Get(0, 2)
	require.NoError(t, err)
	_, err = c.Get(0, 4)
	require.Error(t, err, "Get() with a conflicting cluster size should have failed")

	c.Invalidate(0)
	_, err = c.Get(0, 4)
	require.NoError(t, err, "Get() after Invalidate should succeed at the new size")
}

func TestCacheNewMarksDirty(t *testing.T) {
	storage := testhelper.NewFileImpl(make([]byte, 16*512), true)
	c := cluster.NewCache(storage, 1, 4)
	cl := c.New(4, 2)
	require.True(t, cl.Dirty(), "New() should return a dirty cluster")
	require.NoError(t, c.FlushAll())
	require.False(t, cl.Dirty(), "cluster should be clean after FlushAll")
}

func TestCacheEvictsOldestAndFlushesDirty(t *testing.T) {
	storage := testhelper.NewFileImpl(make([]byte, 16*512), true)
	c := cluster.NewCache(storage, 1, 2)

	a := c.New(0, 1)
	a.Data[0] = 0xaa
	_ = c.New(1, 1)
	// third insertion should evict dcn 0, flushing it first
	_ = c.New(2, 1)

	cl, err := c.Get(0, 1)
	require.NoError(t, err)
	require.Equal(t, byte(0xaa), cl.Data[0], "evicted cluster was not flushed before eviction")
}

func TestCacheInvalidateDropsWithoutFlush(t *testing.T) {
	storage := testhelper.NewFileImpl(make([]byte, 16*512), true)
	c := cluster.NewCache(storage, 1, 4)
	cl := c.New(0, 1)
	cl.Data[0] = 0xaa
	c.Invalidate(0)

	got, err := c.Get(0, 1)
	require.NoError(t, err)
	require.NotEqual(t, byte(0xaa), got.Data[0], "invalidated cluster should not have been flushed to storage")
}
