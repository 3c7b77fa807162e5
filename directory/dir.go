// Package directory implements the UFD/GFD/MFD directory hierarchy:
// reading a directory's clusters, walking its name-entry chains, allocating
// and freeing entries, and growing a directory by another cluster. Grounded
// on dir.py's Dir/Ufd/Gfd classes, translated into the bytes-in/bytes-out
// overlay idiom the ondisk package already uses rather than ctypes-style
// live structure views.
package directory

import (
	"fmt"
	"iter"

	"github.com/rstspack/rstspack/cluster"
	"github.com/rstspack/rstspack/ondisk"
	"github.com/rstspack/rstspack/rstserr"
)

// PackAccessor is the slice of the pack that a directory needs: cluster I/O
// and allocation. Kept narrow so directory stays a leaf package that pack
// itself, and the higher-level file-stream package, both depend on.
type PackAccessor interface {
	PCS() int
	ReadCluster(dcn, clusiz int) (*cluster.Cluster, error)
	GetClu(clusiz, count int, startpos *int) ([]*cluster.Cluster, error)
	Invalidate(dcn int)
	ReadOnly() bool
}

// Kind distinguishes a UFD from a GFD or MFD. The values are the same
// RAD-50 identification words dir.py stores in the directory's type field
// and, for RDS1 packs, in the label's lid word.
type Kind uint16

const (
	KindUFD Kind = ondisk.RAD50UFD
	KindGFD Kind = ondisk.RAD50GFD
	KindMFD Kind = ondisk.RAD50MFD
)

// Entry is one 16-byte directory entry reached by walking a name-entry
// chain: its link word (so a caller can free or overwrite it) and its raw
// bytes (so a caller can decode it as whichever entry variant applies).
type Entry struct {
	Link ondisk.LinkWord
	Data []byte
}

// Dir is a RSTS directory: one to seven clusters, all the same size,
// addressed by the 16-bit link words packed into name-entry chains.
type Dir struct {
	pack     PackAccessor
	Kind     Kind
	PPN      [2]int // [prog, proj]; matches dir.py's raw l.lppn ordering
	Clusters []*cluster.Cluster
	Clusiz   int
	Label    ondisk.UFDLabel
}

// checkClusiz validates a directory cluster size the way dir.py's
// constructor does: clustersize 16 is legal even on large-pcs packs (where
// normal file clusters must be >= pcs), since directories never use
// anything but 16.
func checkClusiz(clusiz, pcs int) error {
	if pcs > 16 {
		if clusiz != 16 {
			return rstserr.New(rstserr.Badclu, "directory cluster size %d illegal on a pack with cluster size %d", clusiz, pcs)
		}
		return nil
	}
	if clusiz%pcs != 0 {
		return rstserr.New(rstserr.Badclu, "directory cluster size %d is not a multiple of pack cluster size %d", clusiz, pcs)
	}
	return nil
}

// open reads a directory's first cluster (re-reading at the correct
// cluster size if cluster 0 was fetched at the wrong size) and then the
// rest of its clusters per the cluster map in that first cluster.
func open(p PackAccessor, dcn int, kind Kind) (*Dir, error) {
	c1, err := p.ReadCluster(dcn, 1)
	if err != nil {
		return nil, err
	}
	// dir.py always maps the label entry as ufdlabel regardless of the
	// directory's actual kind; GFDLabel and MFDLabel share the same
	// lppn/lid byte offsets, so reading everything as a UFDLabel and
	// ignoring Ulnk on non-UFD directories is equivalent.
	label := ondisk.UFDLabelFromBytes(c1.Data[0:ondisk.EntrySize])

	d := &Dir{pack: p, Kind: kind}
	if dcn == 1 {
		d.PPN = [2]int{1, 1} // RDS0 MFD
	} else {
		d.PPN = [2]int{int(label.Lppn[0]), int(label.Lppn[1])}
	}

	fdcmBytes, err := entryAt(c1, ondisk.FDCMOffset)
	if err != nil {
		return nil, err
	}
	cmap := ondisk.FDCMFromBytes(fdcmBytes)
	dclus := int(cmap.UClus)
	if err := checkClusiz(dclus, p.PCS()); err != nil {
		return nil, err
	}

	blocksRead := len(c1.Data) / ondisk.BlockSize
	if dclus != blocksRead {
		p.Invalidate(dcn)
		c1, err = p.ReadCluster(dcn, dclus)
		if err != nil {
			return nil, err
		}
		label = ondisk.UFDLabelFromBytes(c1.Data[0:ondisk.EntrySize])
		fdcmBytes, err = entryAt(c1, ondisk.FDCMOffset)
		if err != nil {
			return nil, err
		}
		cmap = ondisk.FDCMFromBytes(fdcmBytes)
	}
	d.Label = label
	d.Clusters = append(d.Clusters, c1)

	for i := 1; i < 7; i++ {
		cdcn := int(cmap.UEnt[i])
		if cdcn == 0 {
			continue
		}
		c, err := p.ReadCluster(cdcn, dclus)
		if err != nil {
			return nil, err
		}
		d.Clusters = append(d.Clusters, c)
	}
	d.Clusiz = dclus
	return d, nil
}

func entryAt(c *cluster.Cluster, off int) ([]byte, error) {
	if off < 0 || off+ondisk.EntrySize > len(c.Data) {
		return nil, rstserr.New(rstserr.Badlnk, "entry offset %#o out of range", off)
	}
	return c.Data[off : off+ondisk.EntrySize], nil
}

// skipsTableBlock reports whether (clusterOff, blockOff) falls in one of
// the GFD/MFD child- or attribute-table blocks, which share cluster 0 of
// the directory with the name-entry area but are not part of it. UFDs have
// no such blocks.
func (d *Dir) skipsTableBlock(clusterOff, blockOff int) bool {
	return clusterOff == 0 && (blockOff == 1 || blockOff == 2) && d.Kind != KindUFD
}

// Extend adds one more cluster to the directory, rewriting the cluster map
// (FDCM) replicated at offset 0o760 of every block across every cluster,
// skipping the GFD/MFD table blocks in cluster 0.
func (d *Dir) Extend() error {
	if len(d.Clusters) == 7 {
		return rstserr.New(rstserr.Noroom, "directory already holds the maximum of 7 clusters")
	}
	added, err := d.pack.GetClu(d.Clusiz, 1, nil)
	if err != nil {
		return err
	}
	d.Clusters = append(d.Clusters, added...)

	flag := byte(0)
	if d.Kind != KindUFD {
		flag = ondisk.FDNew
	}
	var uent [7]uint16
	for i, c := range d.Clusters {
		uent[i] = uint16(c.DCN)
	}
	cmap := ondisk.FDCM{UClus: byte(d.Clusiz), UFlag: flag, UEnt: uent}
	raw := cmap.Bytes()

	writeAt := func(c *cluster.Cluster, off int) {
		copy(c.Data[off:off+ondisk.EntrySize], raw)
	}

	writeAt(d.Clusters[0], ondisk.FDCMOffset)
	startBlock := 1
	if flag == ondisk.FDNew {
		startBlock = 3
	}
	for b := startBlock; b < d.Clusiz; b++ {
		writeAt(d.Clusters[0], b*ondisk.BlockSize+ondisk.FDCMOffset)
	}
	d.Clusters[0].MarkDirty()

	for _, c := range d.Clusters[1:] {
		for b := 0; b < d.Clusiz; b++ {
			writeAt(c, b*ondisk.BlockSize+ondisk.FDCMOffset)
		}
		c.MarkDirty()
	}
	return nil
}

// Pack builds a link word addressing cluster clusterOff, byte offset
// blockByteOff within that cluster (block*BlockSize + offset-in-block).
func (d *Dir) Pack(clusterOff, blockByteOff int) (ondisk.LinkWord, error) {
	b := blockByteOff / ondisk.BlockSize
	if b >= d.Clusiz || clusterOff >= len(d.Clusters) || d.skipsTableBlock(clusterOff, b) {
		return 0, rstserr.New(rstserr.Badlnk, "directory link out of range (cluster %d, block %d)", clusterOff, b)
	}
	return ondisk.PackLink(clusterOff, blockByteOff)
}

// Unpack resolves a link word to the cluster and absolute byte offset
// (within that cluster's buffer) it addresses.
func (d *Dir) Unpack(l ondisk.LinkWord) (*cluster.Cluster, int, error) {
	clo, blo, eno := l.Unpack()
	if eno == ondisk.FDCMOffset || blo >= d.Clusiz || clo >= len(d.Clusters) || d.skipsTableBlock(clo, blo) {
		return nil, 0, rstserr.New(rstserr.Badlnk, "bad directory link %#o", uint16(l))
	}
	return d.Clusters[clo], blo*ondisk.BlockSize + eno, nil
}

// Map returns the raw 16-byte entry a link word addresses, aliasing the
// owning cluster's buffer.
func (d *Dir) Map(l ondisk.LinkWord) ([]byte, error) {
	c, off, err := d.Unpack(l)
	if err != nil {
		return nil, err
	}
	return entryAt(c, off)
}

// Touch marks the cluster holding the entry a link word addresses dirty.
func (d *Dir) Touch(l ondisk.LinkWord) error {
	c, _, err := d.Unpack(l)
	if err != nil {
		return err
	}
	c.MarkDirty()
	return nil
}

// GetEnt finds a free directory entry, extending the directory if none is
// free, and marks it in-use in memory (the caller must still write the
// real contents and call Touch, or RetEnt it back if not needed after all).
func (d *Dir) GetEnt() (ondisk.LinkWord, error) {
	for c := 0; c < len(d.Clusters); c++ {
		for b := 0; b < d.Clusiz; b++ {
			if d.skipsTableBlock(c, b) {
				continue
			}
			for off := 0; off < ondisk.FDCMOffset; off += ondisk.EntrySize {
				l, err := d.Pack(c, b*ondisk.BlockSize+off)
				if err != nil {
					return 0, err
				}
				ent, err := d.Map(l)
				if err != nil {
					return 0, err
				}
				// A free entry has its link word and first retrieval word
				// both exactly zero. This is a plain numeric zero test, not
				// LinkWord.IsNull() (which ignores the flag bits): a slot
				// just claimed by GetEnt carries only the in-use flag with
				// a null address, and must read as occupied on a later
				// scan rather than being handed out again.
				if ondisk.EntryLink(ent) == 0 && le16zero(ent[2:4]) {
					putLE16InUse(ent)
					return l, nil
				}
			}
		}
	}
	if err := d.Extend(); err != nil {
		return 0, err
	}
	l, err := d.Pack(len(d.Clusters)-1, 0)
	if err != nil {
		return 0, err
	}
	ent, err := d.Map(l)
	if err != nil {
		return 0, err
	}
	putLE16InUse(ent)
	return l, nil
}

func le16zero(b []byte) bool { return b[0] == 0 && b[1] == 0 }

// putLE16InUse sets an entry's link word to just the in-use flag, the way
// dir.py's getent marks a claimed-but-not-yet-written entry.
func putLE16InUse(ent []byte) {
	ent[0], ent[1] = byte(ondisk.LinkInUseOnly), byte(ondisk.LinkInUseOnly>>8)
}

// RetEnt frees a directory entry, given its link word. Only the first four
// bytes (link word and the first retrieval/table word) are cleared, which
// is the minimum dir.py's retent clears.
func (d *Dir) RetEnt(l ondisk.LinkWord) error {
	ent, err := d.Map(l)
	if err != nil {
		return err
	}
	if ondisk.EntryLink(ent) == 0 && le16zero(ent[2:4]) {
		return rstserr.New(rstserr.Internal, "freeing a directory entry that is already free")
	}
	ent[0], ent[1], ent[2], ent[3] = 0, 0, 0, 0
	return d.Touch(l)
}

// WalkList follows the ulnk chain starting at start, yielding each entry in
// turn. Corrected relative to dir.py's walklist, whose "while not lnk"
// condition is inverted (it would only ever visit an already-null link);
// this walks while the link is non-null, matching how every call site
// actually consumes the chain (terminating when ulnk becomes null).
func (d *Dir) WalkList(start ondisk.LinkWord) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		lnk := start
		for !lnk.IsNull() {
			data, err := d.Map(lnk)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(Entry{Link: lnk, Data: data}, nil) {
				return
			}
			lnk = ondisk.EntryLink(data)
		}
	}
}

// ReadListNZ walks the retrieval-entry chain starting at start and returns
// every non-zero uent word in order (the DCNs of a file's clusters).
func (d *Dir) ReadListNZ(start ondisk.LinkWord) ([]uint16, error) {
	var out []uint16
	for ent, err := range d.WalkList(start) {
		if err != nil {
			return nil, err
		}
		r := ondisk.UFDRetrievalEntryFromBytes(ent.Data)
		for _, v := range r.UEnt {
			if v != 0 {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func (d *Dir) String() string {
	return fmt.Sprintf("[%d,%d]", d.PPN[1], d.PPN[0])
}

// Accessor returns the pack accessor this directory reads clusters
// through, so a higher-level package (rmsfile) can read a file's own data
// clusters directly off the same pack rather than through directory
// entries.
func (d *Dir) Accessor() PackAccessor { return d.pack }
