package rmsfile

import (
	"io"
	"strings"

	"github.com/rstspack/rstspack/rstserr"
)

// RWSCloser is the stream type Filedata.Open returns: a combined
// io.ReadWriteSeeker plus io.Closer, matching what rstsfile.py's
// Filedata.open hands back (an open()-style file object).
type RWSCloser interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// stream adapts a *RawIO, optionally wrapped for text decoding, into an
// RWSCloser. Writes always go through the underlying RawIO directly (text
// encoding of output is unimplemented, matching RawIO.Write).
type stream struct {
	raw  *RawIO
	text *TextReader
}

func (s *stream) Read(p []byte) (int, error) {
	if s.text != nil {
		return s.text.Read(p)
	}
	return s.raw.Read(p)
}

func (s *stream) Write(p []byte) (int, error) { return s.raw.Write(p) }
func (s *stream) Seek(offset int64, whence int) (int64, error) {
	return s.raw.Seek(offset, whence)
}
func (s *stream) Close() error { return s.raw.Close() }

// Open opens the file (or directory) described by fd, mirroring
// rstsfile.py's Filedata.open: mode follows Python's open() conventions
// (r/w/a, optional +, optional b/t, text default), encoding and errors
// name the text codec and its error-handling policy. Only "dec-mcs" (or
// the empty string, meaning the default) is supported for encoding; any
// other value is rejected, since this module ships only the
// identity/ISO-8859-1 fallback described in SPEC_FULL.md rather than the
// real dec-mcs glyph table.
//
// Opening a directory for anything but plain binary reading is rejected,
// matching Filedata.open's directory guard ("can't write/append/text a
// directory").
func (fd *Filedata) Open(mode string, encoding, errors string) (RWSCloser, error) {
	reading, writing, appending, text, err := parseMode(mode)
	if err != nil {
		return nil, err
	}
	if fd.IsDir {
		if writing || appending || text || strings.Contains(mode, "+") {
			return nil, rstserr.New(rstserr.Badfn, "cannot open directory %s in mode %q", fd.Dir.String(), mode)
		}
	}
	if encoding != "" && encoding != "dec-mcs" {
		return nil, rstserr.New(rstserr.Badfn, "unsupported encoding %q", encoding)
	}
	if errors != "" && errors != "strict" {
		return nil, rstserr.New(rstserr.Badfn, "unsupported errors policy %q", errors)
	}

	raw, err := NewRawIO(fd, mode, fd.Dir.Accessor().ReadOnly())
	if err != nil {
		return nil, err
	}
	_ = reading

	s := &stream{raw: raw}
	if text {
		s.text = NewTextReader(raw)
	}
	return s, nil
}
