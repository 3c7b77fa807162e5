package directory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstspack/rstspack/cluster"
	"github.com/rstspack/rstspack/directory"
	"github.com/rstspack/rstspack/firqb"
	"github.com/rstspack/rstspack/ondisk"
)

func parseOrFail(t *testing.T, fn string) *firqb.Firqb {
	t.Helper()
	f, err := firqb.Parse(fn)
	require.NoError(t, err, "firqb.Parse(%q)", fn)
	return f
}

// fakePack is a minimal directory.PackAccessor over an in-memory cluster
// map, for exercising directory logic without a real disk image.
type fakePack struct {
	pcs         int
	data        map[int][]byte
	nextDCN     int
	invalidated []int
}

func newFakePack(pcs int) *fakePack {
	return &fakePack{pcs: pcs, data: map[int][]byte{}, nextDCN: 100}
}

func (f *fakePack) PCS() int { return f.pcs }

func (f *fakePack) ReadCluster(dcn, clusiz int) (*cluster.Cluster, error) {
	want := clusiz * ondisk.BlockSize
	d, ok := f.data[dcn]
	if !ok {
		d = make([]byte, want)
		f.data[dcn] = d
		return &cluster.Cluster{DCN: dcn, Data: d}, nil
	}
	if len(d) == want {
		return &cluster.Cluster{DCN: dcn, Data: d}, nil
	}
	nd := make([]byte, want)
	copy(nd, d)
	return &cluster.Cluster{DCN: dcn, Data: nd}, nil
}

func (f *fakePack) GetClu(clusiz, count int, startpos *int) ([]*cluster.Cluster, error) {
	out := make([]*cluster.Cluster, count)
	for i := range out {
		f.nextDCN++
		d := make([]byte, clusiz*ondisk.BlockSize)
		f.data[f.nextDCN] = d
		out[i] = &cluster.Cluster{DCN: f.nextDCN, Data: d}
	}
	return out, nil
}

func (f *fakePack) Invalidate(dcn int) { f.invalidated = append(f.invalidated, dcn) }

func (f *fakePack) ReadOnly() bool { return false }

// newDirClusterData builds the first cluster of a directory: a UFDLabel at
// offset 0 and an FDCM at offset 0o760 naming the directory's own clusters.
func newDirClusterData(clusiz int, prog, proj byte, ulnk uint16, selfDCN int, extraDCNs ...int) []byte {
	data := make([]byte, clusiz*ondisk.BlockSize)
	label := ondisk.UFDLabel{Ulnk: ondisk.LinkWord(ulnk), Lppn: [2]byte{prog, proj}, Lid: ondisk.RAD50UFD}
	copy(data[0:ondisk.EntrySize], label.Bytes())
	var uent [7]uint16
	uent[0] = uint16(selfDCN)
	for i, d := range extraDCNs {
		uent[i+1] = uint16(d)
	}
	cmap := ondisk.FDCM{UClus: byte(clusiz), UFlag: 0, UEnt: uent}
	copy(data[ondisk.FDCMOffset:ondisk.FDCMOffset+ondisk.EntrySize], cmap.Bytes())
	return data
}

func TestOpenUfdReadsLabelAndClusterMap(t *testing.T) {
	p := newFakePack(1)
	p.data[10] = newDirClusterData(1, 5, 7, 0, 10)

	u, err := directory.OpenUfd(p, 10, directory.KindUFD)
	require.NoError(t, err)
	require.Equal(t, [2]int{5, 7}, u.PPN)
	require.Equal(t, 1, u.Clusiz)
	require.Len(t, u.Clusters, 1)
}

func TestOpenRereadsOnClusterSizeMismatch(t *testing.T) {
	p := newFakePack(1)
	full := newDirClusterData(2, 1, 1, 0, 10, 11)
	p.data[10] = full
	p.data[11] = make([]byte, 2*ondisk.BlockSize)

	u, err := directory.OpenUfd(p, 10, directory.KindMFD)
	require.NoError(t, err)
	require.Equal(t, 2, u.Clusiz, "should have re-read at the correct size")
	require.Len(t, u.Clusters, 2)
	require.Len(t, p.invalidated, 1)
	require.Equal(t, 10, p.invalidated[0], "Invalidate() was not called for the mis-sized first read")
}

func TestGetEntThenRetEntRoundTrip(t *testing.T) {
	p := newFakePack(1)
	p.data[10] = newDirClusterData(1, 1, 1, 0, 10)
	u, err := directory.OpenUfd(p, 10, directory.KindUFD)
	require.NoError(t, err)

	l1, err := u.GetEnt()
	require.NoError(t, err)
	l2, err := u.GetEnt()
	require.NoError(t, err)
	require.NotEqual(t, l1, l2, "GetEnt() returned the same entry twice")

	ent, err := u.Map(l1)
	require.NoError(t, err)
	require.True(t, ondisk.EntryLink(ent).InUse(), "claimed entry should have its in-use flag set")

	require.NoError(t, u.RetEnt(l1))
	err = u.RetEnt(l1)
	require.Error(t, err, "expected error freeing an already-free entry")
}

func TestGetEntExtendsWhenClusterIsFull(t *testing.T) {
	p := newFakePack(1)
	p.data[10] = newDirClusterData(1, 1, 1, 0, 10)
	u, err := directory.OpenUfd(p, 10, directory.KindUFD)
	require.NoError(t, err)

	// Entries occupy [0, FDCMOffset) in steps of EntrySize.
	n := ondisk.FDCMOffset / ondisk.EntrySize
	for i := 0; i < n; i++ {
		_, err := u.GetEnt()
		require.NoError(t, err, "GetEnt() #%d", i)
	}
	require.Len(t, u.Clusters, 1, "before extend")

	_, err = u.GetEnt()
	require.NoError(t, err, "GetEnt() after exhausting cluster 0 should extend")
	require.Len(t, u.Clusters, 2, "after extend")
}

func TestWalkListStopsAtNullLink(t *testing.T) {
	p := newFakePack(1)
	data := newDirClusterData(1, 1, 1, 0, 10)
	p.data[10] = data
	u, err := directory.OpenUfd(p, 10, directory.KindUFD)
	require.NoError(t, err)

	// Offset 0 of block 0 holds the directory label itself, so the first
	// real entry starts at offset EntrySize.
	l1, err := u.Pack(0, ondisk.EntrySize)
	require.NoError(t, err)
	l2, err := u.Pack(0, 2*ondisk.EntrySize)
	require.NoError(t, err)
	e2 := ondisk.UFDNameEntry{Ulnk: 0, Unam: [3]uint16{1, 2, 3}}
	copy(data[2*ondisk.EntrySize:3*ondisk.EntrySize], e2.Bytes())
	e1 := ondisk.UFDNameEntry{Ulnk: l2, Unam: [3]uint16{4, 5, 6}}
	copy(data[ondisk.EntrySize:2*ondisk.EntrySize], e1.Bytes())
	u.Label.Ulnk = l1

	var seen []ondisk.LinkWord
	for ent, err := range u.WalkList(u.Label.Ulnk) {
		require.NoError(t, err)
		seen = append(seen, ent.Link)
	}
	require.Equal(t, []ondisk.LinkWord{l1, l2}, seen)
}

func TestFindFilesMatchesNameAndSkipsAccountEntries(t *testing.T) {
	p := newFakePack(1)
	data := newDirClusterData(1, 1, 1, 0, 10)
	p.data[10] = data
	u, err := directory.OpenUfd(p, 10, directory.KindUFD)
	require.NoError(t, err)

	l0, _ := u.Pack(0, ondisk.EntrySize)
	l1, _ := u.Pack(0, 2*ondisk.EntrySize)

	foo := ondisk.UFDNameEntry{Ulnk: l1, Unam: [3]uint16{mustRad50(t, "foo"), mustRad50(t, "   "), mustRad50(t, "bar")}}
	copy(data[ondisk.EntrySize:2*ondisk.EntrySize], foo.Bytes())
	acct := ondisk.UFDNameEntry{Ulnk: 0, Ustat: ondisk.UsUfd}
	copy(data[2*ondisk.EntrySize:3*ondisk.EntrySize], acct.Bytes())
	u.Label.Ulnk = l0

	f := parseOrFail(t, "foo.bar")
	var hits []directory.FileMatch
	for m, err := range u.FindFiles(f) {
		require.NoError(t, err)
		hits = append(hits, m)
	}
	require.Len(t, hits, 1)
	require.Equal(t, l0, hits[0].Link)
}

func mustRad50(t *testing.T, s string) uint16 {
	t.Helper()
	v, err := ondisk.Rad50(s)
	require.NoError(t, err, "Rad50(%q)", s)
	return v
}
