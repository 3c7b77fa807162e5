package rmsfile

import (
	"bufio"
	"io"

	"github.com/rstspack/rstspack/rstserr"
)

// TextReader wraps a buffered RawIO and decodes its bytes with the
// dec-mcs encoding, mirroring rstsfile.py's RstsTextIOWrapper (an
// io.TextIOWrapper configured with newline='\n', since RawIO already does
// all newline translation). The actual dec-mcs glyph table is out of
// scope per spec.md §1/§6; this decodes with the documented fallback (an
// ISO-8859-1 identity mapping, byte value equals code point), which
// matches dec-mcs for every position spec.md doesn't call out as
// special-cased (0xA8, 0xD7, 0xDD, 0xF7, 0xFD).
type TextReader struct {
	br *bufio.Reader
}

// NewTextReader wraps r for text-mode reads.
func NewTextReader(r io.Reader) *TextReader {
	return &TextReader{br: bufio.NewReader(r)}
}

// Read decodes bytes from the underlying stream into UTF-8, byte for byte
// under the identity fallback (every single-byte dec-mcs/ISO-8859-1 code
// point becomes exactly one rune, so decoding never needs to look ahead).
func (t *TextReader) Read(p []byte) (int, error) {
	// Each input byte decodes to at most two UTF-8 bytes, so reading at most
	// half of len(p) input bytes always fits in p.
	want := len(p) / 2
	if want == 0 {
		want = len(p)
	}
	buf := make([]byte, want)
	n, err := t.br.Read(buf)
	if n == 0 {
		return 0, err
	}
	var out []byte
	for _, c := range buf[:n] {
		out = appendRuneUTF8(out, rune(c))
	}
	copied := copy(p, out)
	if copied < len(out) {
		// Only a one-byte p gets here, when its input byte is above U+007F
		// and decodes to two UTF-8 bytes.
		return copied, rstserr.New(rstserr.Internal, "text decode buffer too small")
	}
	return copied, err
}

// appendRuneUTF8 appends r's UTF-8 encoding to buf.
func appendRuneUTF8(buf []byte, r rune) []byte {
	if r < 0x80 {
		return append(buf, byte(r))
	}
	// Code points 0x80-0xFF (the only range the identity fallback ever
	// produces) encode as a 2-byte UTF-8 sequence.
	return append(buf, byte(0xC0|(r>>6)), byte(0x80|(r&0x3F)))
}

// ReadString reads until and including the first occurrence of delim in
// the input, decoding the result as dec-mcs/UTF-8.
func (t *TextReader) ReadString(delim byte) (string, error) {
	b, err := t.br.ReadBytes(delim)
	var out []byte
	for _, c := range b {
		out = appendRuneUTF8(out, rune(c))
	}
	return string(out), err
}
