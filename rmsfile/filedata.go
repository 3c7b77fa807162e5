// Package rmsfile implements component I: Filedata (a resolved directory
// entry's file-level metadata) and the record-aware file stream built on
// top of it, grounded on original_source/rstsio/rstsfile.py's Filedata and
// RstsRawIO.
package rmsfile

import (
	"strings"

	"github.com/rstspack/rstspack/directory"
	"github.com/rstspack/rstspack/ondisk"
	"github.com/rstspack/rstspack/rstserr"
)

// deftext is the set of extensions rstsfile.py's Filedata treats as text by
// default, for the EOF-padding trim on non-RMS files. Carried verbatim,
// padding included, from common.py's deftext frozenset.
var deftext = map[string]bool{
	"txt": true, "lst": true, "map": true, "sid": true, "log": true, "lis": true,
	"rno": true, "doc": true, "mem": true, "bas": true, "b2s": true, "mac": true,
	"for": true, "ftn": true, "fth": true, "cbl": true, "dbl": true, "com": true,
	"cmd": true, "bat": true, "tec": true, "ctl": true, "odl": true, "ps ": true,
	"tes": true, "c  ": true, "h  ": true, "src": true, "alg": true,
}

// Filedata describes either a directory (when opened via NewDir) or a file
// named by a UFD name entry (when opened via Open): its cluster size,
// retrieval list (data cluster DCNs), logical byte size (Bsize), and RMS
// attributes when present.
type Filedata struct {
	Dir    *directory.Ufd
	IsDir  bool
	Name   ondisk.UFDNameEntry
	Link   ondisk.LinkWord
	acct   ondisk.UFDAccountingEntry
	Clusiz int
	RList  []int // data-cluster DCNs, in file order
	Size   int   // file size in blocks, from the accounting entry
	bsize  int64

	RMS1 *ondisk.UFDRMSAttrs1
	RMS2 *ondisk.UFDRMSAttrs2
}

// NewDir builds the Filedata describing directory d itself (dir.py's
// Filedata(d) with ne=None): its logical size is simply all of its
// clusters' bytes, since a directory has no RMS framing or EOF padding.
func NewDir(d *directory.Ufd) *Filedata {
	return &Filedata{
		Dir:    d,
		IsDir:  true,
		Clusiz: d.Clusiz,
		bsize:  int64(len(d.Clusters)) * int64(d.Clusiz) * ondisk.BlockSize,
	}
}

// Open builds the Filedata for the file named by a FindFiles match: its
// accounting entry, retrieval list, size (combining the low-order size
// with the high-order bits stored in Urts[1] for "large files"), and
// either RMS attributes (if present) or a computed EOF-padding-trimmed
// byte size for a plain file.
//
// Open Question resolution (spec.md §9 item 1): rstsfile.py tests presence
// of RMS attributes with "if not self.ae.ulnk", which given ulk.__bool__'s
// null-means-false semantics reads backwards from every other null-link
// test in the source and from the surrounding code's own intent (RMS
// attributes are read when a link to them exists). This implementation
// treats RMS attributes as present when ae.Ulnk is NON-null.
func Open(d *directory.Ufd, m directory.FileMatch) (*Filedata, error) {
	fd := &Filedata{Dir: d, Name: m.Entry, Link: m.Link}

	aeBytes, err := d.Map(m.Entry.Uaa)
	if err != nil {
		return nil, err
	}
	fd.acct = ondisk.UFDAccountingEntryFromBytes(aeBytes)
	fd.Clusiz = int(fd.acct.UClus)
	if fd.Clusiz == 0 {
		return nil, rstserr.New(rstserr.Corrupt, "file %s has a zero cluster size", nameOf(m.Entry))
	}

	rlist, err := d.ReadListNZ(m.Entry.Uar)
	if err != nil {
		return nil, err
	}
	fd.RList = make([]int, len(rlist))
	for i, v := range rlist {
		fd.RList[i] = int(v)
	}

	size := int(fd.acct.Usiz)
	if fd.acct.Urts[0] == 0 {
		size += int(fd.acct.Urts[1]) << 16
	}
	fd.Size = size

	cs := fd.Clusiz
	if (size+cs-1)/cs > len(fd.RList) {
		return nil, rstserr.New(rstserr.Corrupt, "file %s has too few retrieval entries for its size", nameOf(m.Entry))
	}

	if !fd.acct.Ulnk.IsNull() {
		rms1Bytes, err := d.Map(fd.acct.Ulnk)
		if err != nil {
			return nil, err
		}
		rms1 := ondisk.UFDRMSAttrs1FromBytes(rms1Bytes)
		fd.RMS1 = &rms1
		fd.bsize = (int64(rms1.FaEOF.Value())-1)*ondisk.BlockSize + int64(rms1.FaEOFB)
		if !rms1.Ulnk.IsNull() {
			rms2Bytes, err := d.Map(rms1.Ulnk)
			if err != nil {
				return nil, err
			}
			rms2 := ondisk.UFDRMSAttrs2FromBytes(rms2Bytes)
			fd.RMS2 = &rms2
		}
		return fd, nil
	}

	fd.bsize = int64(size) * ondisk.BlockSize
	ext := ondisk.R50ToASCII(m.Entry.Unam[2])
	if len(fd.RList) > 0 && deftext[ext] {
		acc := d.Accessor()
		c, err := acc.ReadCluster(fd.RList[len(fd.RList)-1], cs)
		if err != nil {
			return nil, err
		}
		lastBlkOff := ((size - 1) % cs) * ondisk.BlockSize
		window := safeSlice(c.Data, lastBlkOff, lastBlkOff+ondisk.BlockSize)
		fd.bsize = int64(size-1)*ondisk.BlockSize + int64(trailingZeroStart(window))
	}
	return fd, nil
}

// trailingZeroStart returns the offset of the start of the maximal run of
// trailing NUL bytes in b (len(b) if b ends in a non-zero byte, 0 if b is
// all zero). Equivalent to re.compile(b"\000*$").search(b).start().
func trailingZeroStart(b []byte) int {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return i
}

func safeSlice(b []byte, lo, hi int) []byte {
	if lo < 0 {
		lo = 0
	}
	if lo > len(b) {
		lo = len(b)
	}
	if hi > len(b) {
		hi = len(b)
	}
	if hi < lo {
		hi = lo
	}
	return b[lo:hi]
}

func nameOf(ne ondisk.UFDNameEntry) string {
	return ondisk.ASCName([2]uint16{ne.Unam[0], ne.Unam[1]}, ne.Unam[2])
}

// Bsize returns the file's logical size in bytes (its RMS EOF position, or
// for a plain file its size in blocks less any trimmed trailing padding).
func (fd *Filedata) Bsize() int64 { return fd.bsize }

// StrName returns "NAME.EXT" with the RAD-50 padding spaces removed,
// mirroring rstsfile.py's Filedata.strname.
func (fd *Filedata) StrName() string {
	if fd.IsDir {
		return ""
	}
	return strings.ReplaceAll(nameOf(fd.Name), " ", "")
}

// String returns the directory's PPN followed by the file's name.ext,
// mirroring rstsfile.py's Filedata.__str__.
func (fd *Filedata) String() string {
	return fd.Dir.String() + fd.StrName()
}
