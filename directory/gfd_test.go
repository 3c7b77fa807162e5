package directory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstspack/rstspack/directory"
	"github.com/rstspack/rstspack/firqb"
	"github.com/rstspack/rstspack/ondisk"
)

func newGfdClusterData(clusiz int, childDCNs map[int]uint16) []byte {
	data := make([]byte, clusiz*ondisk.BlockSize)
	label := ondisk.GFDLabel{Lppn: [2]byte{0, 5}, Lid: ondisk.RAD50GFD}
	copy(data[0:ondisk.EntrySize], label.Bytes())
	var table ondisk.GFDTable
	for idx, dcn := range childDCNs {
		table.Ent[idx] = dcn
	}
	copy(data[ondisk.BlockSize:2*ondisk.BlockSize], table.Bytes())
	var uent [7]uint16
	uent[0] = 20
	cmap := ondisk.FDCM{UClus: byte(clusiz), UFlag: ondisk.FDNew, UEnt: uent}
	copy(data[ondisk.FDCMOffset:ondisk.FDCMOffset+ondisk.EntrySize], cmap.Bytes())
	return data
}

func TestGfdFindChildUfdsByProgrammerNumber(t *testing.T) {
	p := newFakePack(1)
	p.data[20] = newGfdClusterData(4, map[int]uint16{7: 30})
	p.data[30] = newDirClusterData(1, 7, 5, 0, 30)

	g, err := directory.OpenGfd(p, 20, directory.KindGFD)
	require.NoError(t, err)

	f := &firqb.Firqb{Prog: intPtr(7)}
	var hits []*directory.Ufd
	for u, err := range g.FindChildUfds(f) {
		require.NoError(t, err)
		hits = append(hits, u)
	}
	require.Len(t, hits, 1)
	require.Equal(t, [2]int{7, 5}, hits[0].PPN)
}

func TestGfdFindChildUfdsWildcardVisitsAll(t *testing.T) {
	p := newFakePack(1)
	p.data[20] = newGfdClusterData(4, map[int]uint16{3: 30, 9: 31})
	p.data[30] = newDirClusterData(1, 3, 5, 0, 30)
	p.data[31] = newDirClusterData(1, 9, 5, 0, 31)

	g, err := directory.OpenGfd(p, 20, directory.KindGFD)
	require.NoError(t, err)

	f := &firqb.Firqb{}
	n := 0
	for _, err := range g.FindChildUfds(f) {
		require.NoError(t, err)
		n++
	}
	require.Equal(t, 2, n, "FindChildUfds() with no Prog filter should visit every entry")
}

func TestGfdLenCountsTableEntries(t *testing.T) {
	p := newFakePack(1)
	p.data[20] = newGfdClusterData(4, map[int]uint16{3: 30, 9: 31})

	g, err := directory.OpenGfd(p, 20, directory.KindGFD)
	require.NoError(t, err)
	n, err := g.Len()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func intPtr(v int) *int { return &v }
