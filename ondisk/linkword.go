package ondisk

import "github.com/rstspack/rstspack/rstserr"

// Bit layout of a 16-bit directory link word, verbatim from fldef.py's ulk:
// flags in the low 4 bits, then a 5-bit entry offset, 3-bit cluster offset,
// and 4-bit block offset packed into the high 12 bits.
const (
	linkUseBit    = 1 << 0
	linkBadBit    = 1 << 1
	linkCacheBit  = 1 << 2
	linkReserved  = 1 << 3
	linkFlagsMask = 0x000f

	linkEnoShift = 4
	linkEnoBits  = 5
	linkCloShift = linkEnoShift + linkEnoBits // 9
	linkCloBits  = 3
	linkBloShift = linkCloShift + linkCloBits // 12
	linkBloBits  = 4
)

// LinkInUseOnly is a link word with just the in-use flag set and a null
// address, the transient value a directory entry gets the moment it is
// claimed by GetEnt but before its real contents are written.
const LinkInUseOnly LinkWord = linkUseBit

// LinkWord is a 16-bit RSTS directory link word: flag bits plus a packed
// (cluster-offset, block-offset, entry-offset) address of a 16-byte entry
// within a directory's up-to-7-cluster address space.
type LinkWord uint16

// InUse reports the ul_use flag.
func (l LinkWord) InUse() bool { return l&linkUseBit != 0 }

// BadBlock reports the ul_bad flag.
func (l LinkWord) BadBlock() bool { return l&linkBadBit != 0 }

// CacheHint reports the ul_che flag (cache hint for NE, sequential hint for AE).
func (l LinkWord) CacheHint() bool { return l&linkCacheBit != 0 }

// IsNull reports whether the link's address fields (not its flags) are all
// zero, matching ulk.__bool__'s null test.
func (l LinkWord) IsNull() bool {
	return (l>>linkEnoShift)&((1<<linkEnoBits)-1) == 0 &&
		(l>>linkCloShift)&((1<<linkCloBits)-1) == 0 &&
		(l>>linkBloShift)&((1<<linkBloBits)-1) == 0
}

// Unpack returns the cluster offset, block-in-cluster offset, and
// byte-within-block entry offset encoded in the link word.
func (l LinkWord) Unpack() (clusterOff, blockOff, entOff int) {
	eno := int(l>>linkEnoShift) & ((1 << linkEnoBits) - 1)
	clo := int(l>>linkCloShift) & ((1 << linkCloBits) - 1)
	blo := int(l>>linkBloShift) & ((1 << linkBloBits) - 1)
	return clo, blo, eno << 4
}

// PackLink builds a LinkWord from a cluster offset and a byte offset within
// that cluster (block*BlockSize + offset-in-block). The offset-in-block
// must be a multiple of 16 (EntrySize) and less than FDCMOffset (0o760);
// the block index must fit in 4 bits and the cluster offset in 3 bits.
func PackLink(clusterOff, blockByteOff int) (LinkWord, error) {
	b, off := blockByteOff/BlockSize, blockByteOff%BlockSize
	if off%EntrySize != 0 {
		return 0, rstserr.New(rstserr.Badlnk, "entry offset %#o not a multiple of %#o", off, EntrySize)
	}
	if off >= FDCMOffset {
		return 0, rstserr.New(rstserr.Badlnk, "entry offset %#o falls in the FDCM area", off)
	}
	if clusterOff >= 1<<linkCloBits {
		return 0, rstserr.New(rstserr.Badlnk, "cluster offset %d out of range", clusterOff)
	}
	if b >= 1<<linkBloBits {
		return 0, rstserr.New(rstserr.Badlnk, "block offset %d out of range", b)
	}
	eno := off >> 4
	return LinkWord((clusterOff << linkCloShift) | (b << linkBloShift) | (eno << linkEnoShift)), nil
}
