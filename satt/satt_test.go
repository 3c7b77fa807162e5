package satt_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstspack/rstspack/cluster"
	"github.com/rstspack/rstspack/satt"
)

// fakePack is a minimal satt.PackAccessor over an in-memory cluster set,
// for exercising allocation logic without a real disk image.
type fakePack struct {
	sz, dcs, pcs, clurat int
	invalidated          []int
}

func (f *fakePack) PackSize() int       { return f.sz }
func (f *fakePack) DCS() int            { return f.dcs }
func (f *fakePack) PCS() int            { return f.pcs }
func (f *fakePack) ClusterRatio() int   { return f.clurat }
func (f *fakePack) PCNToDCN(pcn int) int { return pcn*f.clurat + 1 }
func (f *fakePack) DCNToPCN(dcn int, check bool) (int, error) {
	return (dcn - 1) / f.clurat, nil
}
func (f *fakePack) NewCluster(dcn, clusiz int) *cluster.Cluster {
	return &cluster.Cluster{DCN: dcn, Data: make([]byte, clusiz*512)}
}
func (f *fakePack) ReadCluster(dcn, clusiz int) (*cluster.Cluster, error) {
	return &cluster.Cluster{DCN: dcn, Data: make([]byte, clusiz*512)}, nil
}
func (f *fakePack) Invalidate(dcn int) { f.invalidated = append(f.invalidated, dcn) }

func newFakePack() *fakePack {
	return &fakePack{sz: 2000, dcs: 1, pcs: 1, clurat: 1}
}

func TestNewMarksLabelClusterInUse(t *testing.T) {
	p := newFakePack()
	s, err := satt.New(p)
	require.NoError(t, err)
	require.GreaterOrEqual(t, s.InUse(), 1, "want at least 1 (pack label cluster)")
}

func TestGetCluAllocatesDistinctClusters(t *testing.T) {
	p := newFakePack()
	s, err := satt.New(p)
	require.NoError(t, err)
	before := s.InUse()
	clus, err := s.GetClu(1, 3, nil)
	require.NoError(t, err)
	require.Len(t, clus, 3)
	seen := map[int]bool{}
	for _, c := range clus {
		require.False(t, seen[c.DCN], "GetClu() returned duplicate DCN %d", c.DCN)
		seen[c.DCN] = true
	}
	require.Equal(t, before+3, s.InUse())
}

func TestGetCluThenRetCluRoundTrip(t *testing.T) {
	p := newFakePack()
	s, err := satt.New(p)
	require.NoError(t, err)
	clus, err := s.GetClu(1, 1, nil)
	require.NoError(t, err)
	before := s.InUse()
	require.NoError(t, s.RetClu(clus[0].DCN, 1))
	require.Equal(t, before-1, s.InUse())
	require.Len(t, p.invalidated, 1)
	require.Equal(t, clus[0].DCN, p.invalidated[0], "Invalidate() was not called with the freed DCN")
}

func TestRetCluRejectsDoubleFree(t *testing.T) {
	p := newFakePack()
	s, err := satt.New(p)
	require.NoError(t, err)
	clus, err := s.GetClu(1, 1, nil)
	require.NoError(t, err)
	require.NoError(t, s.RetClu(clus[0].DCN, 1))
	err = s.RetClu(clus[0].DCN, 1)
	require.Error(t, err, "expected error freeing an already-free cluster")
}

func TestGetCluRejectsBadClusterSize(t *testing.T) {
	p := newFakePack()
	s, err := satt.New(p)
	require.NoError(t, err)
	_, err = s.GetClu(3, 1, nil)
	require.Error(t, err, "expected error for a cluster size that isn't a power of two")
}
