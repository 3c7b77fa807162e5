// Package satt implements the storage allocation table (SATT): a bitmap
// over pack clusters, one or more bits per cluster depending on the ratio
// between the allocation unit and the pack cluster size, stored in
// [0,1]satt.sys. Grounded on satt.py, with its popcount table reproduced
// in util/bitset and its bit-group primitives reproduced there too.
package satt

import (
	"github.com/rstspack/rstspack/cluster"
	"github.com/rstspack/rstspack/ondisk"
	"github.com/rstspack/rstspack/rstserr"
	"github.com/rstspack/rstspack/util/bitset"
)

// PackAccessor is the slice of *pack.Pack that Satt needs: geometry
// conversions and cluster I/O. Defined here (rather than importing pack)
// to keep satt a leaf package that pack itself depends on.
type PackAccessor interface {
	PackSize() int        // p.sz, pack-usable size in blocks
	DCS() int              // device cluster size in blocks
	PCS() int              // pack cluster size in blocks
	ClusterRatio() int     // p.clurat = ppcs / dcs
	PCNToDCN(pcn int) int
	DCNToPCN(dcn int, check bool) (int, error)
	NewCluster(dcn, clusiz int) *cluster.Cluster
	ReadCluster(dcn, clusiz int) (*cluster.Cluster, error)
	Invalidate(dcn int)
}

// Satt wraps the pack's storage allocation bitmap.
type Satt struct {
	pack     PackAccessor
	sattpos  int
	sattsize int // number of pack clusters represented
	pcs      int
	clurat   int
	clusters []*cluster.Cluster
	inuse    int
}

func sattRunClusters(sattsize, pcs int) int {
	bitsPerCluster := pcs * ondisk.BlockSize * 8
	rc := sattsize / bitsPerCluster
	if sattsize%bitsPerCluster != 0 {
		rc++
	}
	return rc
}

// New builds a fresh Satt for a newly initialized pack: pack cluster 0 (the
// pack label) and the clusters backing satt.sys itself are marked in use,
// as are any bits past sattsize representing space beyond the usable area.
// The allocation cursor starts at the middle of the pack, as RSTS placed
// the first file system items there by convention.
func New(p PackAccessor) (*Satt, error) {
	s := &Satt{
		pack:     p,
		pcs:      p.PCS(),
		clurat:   p.ClusterRatio(),
		sattsize: (p.PackSize() - p.DCS()) / p.PCS(),
	}
	rc := sattRunClusters(s.sattsize, s.pcs)

	// Build a scratch bitmap (not yet backed by real allocated clusters) so
	// GetClu below can run its normal free-space scan against it.
	scratch := make([]*cluster.Cluster, rc)
	for i := range scratch {
		scratch[i] = &cluster.Cluster{Data: make([]byte, s.pcs*ondisk.BlockSize)}
	}
	scratch[0].Data[0] = 1 // pack cluster 0 (the pack label) is always in use

	off, bitpos := s.sattsize/8, s.sattsize%8
	s.clusters = scratch
	lc, loff := s.satbuf(off)
	if loff < len(lc.Data) {
		if bitpos != 0 {
			lc.Data[loff] = byte(0xff << uint(bitpos))
			loff++
		}
		for i := loff; i < len(lc.Data); i++ {
			lc.Data[i] = 0xff
		}
	}

	s.sattpos = s.sattsize / 2
	// Allocate the real clusters that will back satt.sys itself, scanning
	// the scratch bitmap built above, then copy it into them.
	realclu, err := s.GetClu(s.pcs, rc, nil)
	if err != nil {
		return nil, err
	}
	for i, c := range realclu {
		copy(c.Data, scratch[i].Data)
		c.MarkDirty()
	}
	s.clusters = realclu
	s.recountInUse()
	return s, nil
}

// Load reconstructs a Satt over an already-initialized pack's satt.sys,
// given its cluster size and the DCNs of its clusters (the pack package
// resolves those via its directory lookup before calling Load).
func Load(p PackAccessor, clusterSize int, dcns []int) (*Satt, error) {
	if clusterSize != p.PCS() {
		return nil, rstserr.New(rstserr.Corrupt, "satt.sys cluster size is not pack cluster size")
	}
	s := &Satt{
		pack:     p,
		pcs:      p.PCS(),
		clurat:   p.ClusterRatio(),
		sattsize: (p.PackSize() - p.DCS()) / p.PCS(),
	}
	rc := sattRunClusters(s.sattsize, s.pcs)
	s.clusters = make([]*cluster.Cluster, 0, len(dcns))
	for _, dcn := range dcns {
		c, err := p.ReadCluster(dcn, clusterSize)
		if err != nil {
			return nil, err
		}
		s.clusters = append(s.clusters, c)
	}
	if len(s.clusters) != rc {
		return nil, rstserr.New(rstserr.Corrupt, "satt.sys cluster count is %d, expecting %d", len(s.clusters), rc)
	}
	s.recountInUse()
	return s, nil
}

func (s *Satt) recountInUse() {
	n := 0
	for _, c := range s.clusters {
		n += bitset.Popcount(c.Data)
	}
	s.inuse = n
}

// InUse returns the total number of allocation bits currently set.
func (s *Satt) InUse() int { return s.inuse }

// checkClu validates a file cluster size (a power-of-two multiple of pcs,
// at most 256) and returns the bit-group width (bitcnt). clusiz 16 is legal
// on large-pcs packs (for directories) even though it isn't a multiple of
// pcs, in which case a single bitmap bit still covers the whole (larger)
// pack cluster.
func (s *Satt) checkClu(clusiz int) (bitcnt int, err error) {
	if !(clusiz == 16 && s.pcs > 16) {
		if clusiz%s.pcs != 0 || clusiz > 256 || clusiz&(clusiz-1) != 0 {
			return 0, rstserr.New(rstserr.Badclu, "illegal cluster size %d", clusiz)
		}
	}
	bitcnt = clusiz / s.pcs
	if bitcnt == 0 {
		bitcnt = 1
	}
	return bitcnt, nil
}

func (s *Satt) satbuf(off int) (*cluster.Cluster, int) {
	bytesPerCluster := s.pcs * ondisk.BlockSize
	clu := off / bytesPerCluster
	return s.clusters[clu], off % bytesPerCluster
}

// bitPos maps a global bit position within the bitmap to the cluster
// holding it and the bit offset within that cluster's buffer.
func (s *Satt) bitPos(pos int) (*cluster.Cluster, int) {
	off, bitOff := pos/8, pos%8
	b, boff := s.satbuf(off)
	return b, boff*8 + bitOff
}

// GetClu allocates count free clusters of clusiz blocks each, starting the
// search at startpos (a DCN) or, if nil, at the most recent allocation
// position. It returns zeroed Cluster buffers for the newly allocated
// space.
func (s *Satt) GetClu(clusiz, count int, startpos *int) ([]*cluster.Cluster, error) {
	if clusiz == 0 {
		clusiz = s.pcs
	}
	bitcnt, err := s.checkClu(clusiz)
	if err != nil {
		return nil, err
	}

	pos := s.sattpos
	if startpos != nil {
		pcn, err := s.pack.DCNToPCN(*startpos, false)
		if err != nil {
			return nil, err
		}
		pos = pcn
	}
	pos = (pos / bitcnt) * bitcnt
	wrapped := false

	for {
		spos := pos
		ok := true
		for i := 0; i < count; i++ {
			free, err := s.isFree(pos, bitcnt)
			if err != nil {
				return nil, err
			}
			if !free {
				ok = false
				break
			}
			pos += bitcnt
			if pos >= s.sattsize {
				ok = false
				break
			}
		}
		if ok {
			s.inuse += bitcnt * count
			pos = spos
			for i := 0; i < count; i++ {
				if err := s.mark(pos, bitcnt); err != nil {
					return nil, err
				}
				pos += bitcnt
			}
			s.sattpos = spos
			result := make([]*cluster.Cluster, count)
			for i := 0; i < count; i++ {
				// Cluster i starts bitcnt pack-cluster-units past the
				// previous one; convert each PCN to a DCN individually
				// rather than stepping the already-converted first DCN by
				// i, which only agrees with this when bitcnt == clurat == 1.
				dcn := s.pack.PCNToDCN(spos + i*bitcnt)
				result[i] = s.pack.NewCluster(dcn, clusiz)
			}
			return result, nil
		}
		pos += bitcnt
		if pos > s.sattsize-count*bitcnt {
			if wrapped {
				return nil, rstserr.New(rstserr.Noroom, "no room for user on device")
			}
			wrapped = true
			pos = 0
		}
	}
}

// RetClu frees the cluster of size clusiz starting at device cluster dcn.
func (s *Satt) RetClu(dcn, clusiz int) error {
	bitcnt, err := s.checkClu(clusiz)
	if err != nil {
		return err
	}
	pos, err := s.pack.DCNToPCN(dcn, true)
	if err != nil {
		return err
	}
	if pos%bitcnt != 0 {
		return rstserr.New(rstserr.Corrupt, "misaligned file cluster: %d", dcn)
	}
	s.pack.Invalidate(dcn)

	b, bpos := s.bitPos(pos)
	ok, err := bitset.ClearGroup(b.Data, bpos, bitcnt)
	if err != nil {
		return err
	}
	if !ok {
		return rstserr.New(rstserr.Internal, "freeing a cluster that is not in use: %d", dcn)
	}
	b.MarkDirty()
	s.inuse -= bitcnt
	return nil
}

// AllocatedPCNs returns every pack cluster number currently marked in use,
// scanned at the finest single-bit (one pack cluster) granularity. Used by
// the pack façade's snapshot export to walk only the live portion of a
// pack rather than its full (often mostly-empty) extent.
func (s *Satt) AllocatedPCNs() ([]int, error) {
	var out []int
	for pos := 0; pos < s.sattsize; pos++ {
		free, err := s.isFree(pos, 1)
		if err != nil {
			return nil, err
		}
		if !free {
			out = append(out, pos)
		}
	}
	return out, nil
}

func (s *Satt) isFree(pos, bitcnt int) (bool, error) {
	b, bpos := s.bitPos(pos)
	return bitset.IsFreeGroup(b.Data, bpos, bitcnt)
}

func (s *Satt) mark(pos, bitcnt int) error {
	b, bpos := s.bitPos(pos)
	ok, err := bitset.MarkGroup(b.Data, bpos, bitcnt)
	if err != nil {
		return err
	}
	if !ok {
		return rstserr.New(rstserr.Internal, "marking in-use but cluster is not free")
	}
	b.MarkDirty()
	return nil
}
