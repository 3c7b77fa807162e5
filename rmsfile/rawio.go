package rmsfile

import (
	"bytes"
	"io"
	"strings"

	"github.com/rstspack/rstspack/ondisk"
	"github.com/rstspack/rstspack/rstserr"
)

// RawIO is a seekable, record-aware byte stream over a Filedata's clusters,
// grounded on rstsfile.py's RstsRawIO: it decodes fixed/variable RMS
// records, honors span/no-span semantics, and translates CRLF to LF when
// reading in text mode, all at the raw-I/O layer (rather than in a
// separate line-translation wrapper) since RMS variable-length records
// must be parsed in binary form with block-boundary awareness.
type RawIO struct {
	fd      *Filedata
	pos     int64
	writ    bool
	newline []byte

	rms     int // 0 (no RMS framing), ondisk.RfFix, or ondisk.RfVar
	recsize int
	attr    int
}

// parseMode validates an fopen-style mode string the way rstsfile.py's
// RstsRawIO/Filedata.open both do, returning the four booleans it checks.
func parseMode(mode string) (reading, writing, appending, text bool, err error) {
	seen := map[rune]bool{}
	for _, c := range mode {
		switch c {
		case 'a', 'r', 'w', 'b', '+', 't':
			seen[c] = true
		default:
			return false, false, false, false, rstserr.New(rstserr.Badfn, "invalid mode: %q", mode)
		}
	}
	reading = seen['r']
	writing = seen['w']
	appending = seen['a']
	binary := seen['b']
	text = seen['t'] || !binary
	if text && binary {
		return false, false, false, false, rstserr.New(rstserr.Badfn, "can't have text and binary modes at once")
	}
	n := 0
	for _, b := range []bool{reading, writing, appending} {
		if b {
			n++
		}
	}
	if n != 1 {
		return false, false, false, false, rstserr.New(rstserr.Badfn, "must have exactly one of read/write/append mode")
	}
	return reading, writing, appending, text, nil
}

// NewRawIO opens a Filedata in the given mode. Writing (w/a/+) on a
// read-only pack raises Ropack; no write path is implemented beyond that
// check, matching rstsfile.py's RstsRawIO, which never defines a write()
// override and so can only ever be opened for reading in practice (the
// source's put/write-back of new files is an explicit TODO, carried here
// as spec.md's stated Non-goal).
func NewRawIO(fd *Filedata, mode string, packReadOnly bool) (*RawIO, error) {
	reading, writing, appending, text, err := parseMode(mode)
	if err != nil {
		return nil, err
	}
	if (!reading || strings.Contains(mode, "+")) && packReadOnly {
		return nil, rstserr.New(rstserr.Ropack, "pack is read-only")
	}
	r := &RawIO{fd: fd, writ: writing || appending, newline: []byte("\n")}

	if text {
		if fd.RMS1 == nil {
			r.newline = []byte("\r\n")
		} else if int(fd.RMS1.FaTyp)&ondisk.FaOrg == ondisk.FoSeq {
			rfm := int(fd.RMS1.FaTyp) & ondisk.FaRfm
			rat := int(fd.RMS1.FaTyp) & ondisk.FaRat
			switch rfm {
			case ondisk.RfStm, ondisk.RfUdf, ondisk.RfVfc:
				// Stream, undefined, and (for now) VFC record formats fall
				// back to the plain CRLF-translated path, per spec.md §4.I.
				r.newline = []byte("\r\n")
			default:
				r.rms = rfm
				r.recsize = int(fd.RMS1.FaRsz)
				r.attr = rat
			}
		}
	}

	if appending {
		if _, err := r.Seek(0, io.SeekEnd); err != nil {
			return nil, err
		}
	} else {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Seek changes the stream position. SEEK_END is resolved as Bsize()+offset
// (a negative offset seeks backward from the logical end), the natural
// io.Seeker convention; rstsfile.py's literal "self.fd.bsize - offset" is
// flagged in spec.md §9 as unresolved, and this implementation takes the
// corrected polarity (recorded under Open Questions in DESIGN.md).
func (r *RawIO) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekCurrent:
		offset += r.pos
	case io.SeekEnd:
		offset = r.fd.Bsize() + offset
	}
	if offset < 0 {
		return r.pos, rstserr.New(rstserr.Badfn, "negative seek position")
	}
	r.pos = offset
	return offset, nil
}

// Close is a no-op: RawIO never owns the underlying clusters, which are
// owned by the cluster cache and flushed through the pack.
func (r *RawIO) Close() error { return nil }

// Readable, Writable, and Seekable mirror RstsRawIO's io.RawIOBase
// overrides (readable/writable/seekable).
func (r *RawIO) Readable() bool { return true }
func (r *RawIO) Writable() bool { return r.writ }
func (r *RawIO) Seekable() bool { return true }

// Write is unimplemented: see NewRawIO's doc comment.
func (r *RawIO) Write([]byte) (int, error) {
	return 0, rstserr.New(rstserr.Ropack, "writing file contents is not implemented")
}

// readChunk is the record-aware read primitive, translated from
// rstsfile.py's RstsRawIO._read. It starts at pos and returns at most n
// bytes (n < 0 means unbounded, capped by cluster/record/EOF boundaries),
// plus the stream position after consuming those bytes. The Python
// original expresses block-boundary skips and record continuations via
// recursive self-calls; this loops instead; each branch that recursed
// there advances pos and loops again here.
func (r *RawIO) readChunk(pos int64, n int) ([]byte, int64, error) {
	fd := r.fd
	for {
		clusiz := fd.Clusiz
		bytesPerCluster := int64(clusiz) * ondisk.BlockSize
		cnum := int(pos / bytesPerCluster)
		coff := int(pos % bytesPerCluster)

		if fd.IsDir {
			if cnum >= len(fd.Dir.Clusters) {
				return nil, pos, nil
			}
		} else {
			if cnum >= len(fd.RList) {
				return nil, pos, nil
			}
		}

		rlen := int(bytesPerCluster) - coff
		if n >= 0 && n < rlen {
			rlen = n
		}
		if pos+int64(rlen) > fd.Bsize() {
			rlen = int(fd.Bsize() - pos)
			if rlen <= 0 {
				return nil, pos, nil
			}
		}

		if fd.IsDir {
			c := fd.Dir.Clusters[cnum]
			data := append([]byte(nil), safeSlice(c.Data, coff, coff+rlen)...)
			return data, pos + int64(rlen), nil
		}

		acc := fd.Dir.Accessor()
		c, err := acc.ReadCluster(fd.RList[cnum], clusiz)
		if err != nil {
			return nil, pos, err
		}
		b := c.Data

		if r.rms == 0 {
			ret := append([]byte(nil), safeSlice(b, coff, coff+rlen)...)
			if !bytes.Equal(r.newline, []byte("\n")) {
				ret = bytes.ReplaceAll(ret, r.newline, []byte("\n"))
			}
			return ret, pos + int64(rlen), nil
		}

		left := ondisk.BlockSize - (coff & (ondisk.BlockSize - 1))
		var ret []byte
		var reclen int
		if r.rms == ondisk.RfFix {
			reclen = r.recsize
			if r.attr&ondisk.RaSpn != 0 && left < reclen {
				pos += int64(left)
				continue
			}
			ret = append([]byte(nil), safeSlice(b, coff, coff+reclen)...)
			pos += int64(reclen)
		} else {
			reclen = int(b[coff]) + int(b[coff+1])*256
			if reclen == 0xFFFF {
				// Skip-rest-of-block marker: advance to the next block.
				pos += int64(left)
				continue
			}
			ret = append([]byte(nil), safeSlice(b, coff+2, coff+2+reclen)...)
			if reclen&1 != 0 {
				pos += int64(reclen + 3)
			} else {
				pos += int64(reclen + 2)
			}
		}

		if len(ret) < reclen && cnum+1 < len(fd.RList) {
			c2, err := acc.ReadCluster(fd.RList[cnum+1], clusiz)
			if err != nil {
				return nil, pos, err
			}
			need := reclen - len(ret)
			ret = append(ret, safeSlice(c2.Data, 0, need)...)
		}

		if r.attr&ondisk.RaImp != 0 {
			reclen++
		}
		if rlen > reclen {
			rlen = reclen
		}
		if r.attr&ondisk.RaImp != 0 {
			ret = append(ret, '\n')
		} else {
			ret = bytes.ReplaceAll(ret, []byte("\r\n"), []byte("\n"))
		}
		if rlen > len(ret) {
			rlen = len(ret)
		}
		return ret[:rlen], pos, nil
	}
}

// Read reads up to len(p) bytes, advancing the stream position, returning
// io.EOF once the logical end of file is reached.
func (r *RawIO) Read(p []byte) (int, error) {
	data, newPos, err := r.readChunk(r.pos, len(p))
	if err != nil {
		return 0, err
	}
	r.pos = newPos
	if len(data) == 0 {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

// ReadAt reads up to len(p) bytes starting at off, without disturbing the
// stream's current position (the io.ReaderAt contract).
func (r *RawIO) ReadAt(p []byte, off int64) (int, error) {
	data, _, err := r.readChunk(off, len(p))
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, data)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

var _ io.ReadWriteSeeker = (*RawIO)(nil)
var _ io.ReaderAt = (*RawIO)(nil)
var _ io.Closer = (*RawIO)(nil)
