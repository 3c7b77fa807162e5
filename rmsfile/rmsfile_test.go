package rmsfile_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstspack/rstspack/cluster"
	"github.com/rstspack/rstspack/directory"
	"github.com/rstspack/rstspack/ondisk"
	"github.com/rstspack/rstspack/rmsfile"
)

// fakePack is a minimal directory.PackAccessor over an in-memory cluster
// map, mirroring directory_test's fixture.
type fakePack struct {
	data map[int][]byte
}

func newFakePack() *fakePack { return &fakePack{data: map[int][]byte{}} }

func (f *fakePack) PCS() int { return 1 }

func (f *fakePack) ReadCluster(dcn, clusiz int) (*cluster.Cluster, error) {
	want := clusiz * ondisk.BlockSize
	d, ok := f.data[dcn]
	if !ok {
		d = make([]byte, want)
		f.data[dcn] = d
	}
	return &cluster.Cluster{DCN: dcn, Data: d}, nil
}

func (f *fakePack) GetClu(clusiz, count int, startpos *int) ([]*cluster.Cluster, error) {
	panic("not used by these tests")
}

func (f *fakePack) Invalidate(dcn int) {}

func (f *fakePack) ReadOnly() bool { return false }

func mustRad50(t *testing.T, s string) uint16 {
	t.Helper()
	v, err := ondisk.Rad50(s)
	require.NoError(t, err, "Rad50(%q)", s)
	return v
}

// newDirClusterData builds the first (and only) cluster of a one-block UFD:
// a label at entry 0 naming its own DCN in the FDCM.
func newDirClusterData(selfDCN int) []byte {
	data := make([]byte, ondisk.BlockSize)
	label := ondisk.UFDLabel{Ulnk: 0, Lppn: [2]byte{1, 1}, Lid: ondisk.RAD50UFD}
	copy(data[0:ondisk.EntrySize], label.Bytes())
	var uent [7]uint16
	uent[0] = uint16(selfDCN)
	cmap := ondisk.FDCM{UClus: 1, UFlag: 0, UEnt: uent}
	copy(data[ondisk.FDCMOffset:ondisk.FDCMOffset+ondisk.EntrySize], cmap.Bytes())
	return data
}

// openUfdFixture builds a one-cluster UFD at DCN 10 on p, with entry slots
// available at indices 1..30 (16 bytes each) for the caller to fill in.
func openUfdFixture(t *testing.T, p *fakePack) (*directory.Ufd, []byte) {
	t.Helper()
	data := newDirClusterData(10)
	p.data[10] = data
	u, err := directory.OpenUfd(p, 10, directory.KindUFD)
	require.NoError(t, err)
	return u, data
}

func entryLink(t *testing.T, u *directory.Ufd, idx int) ondisk.LinkWord {
	t.Helper()
	l, err := u.Pack(0, idx*ondisk.EntrySize)
	require.NoError(t, err, "Pack(%d)", idx)
	return l
}

func putEntry(data []byte, idx int, b []byte) {
	copy(data[idx*ondisk.EntrySize:(idx+1)*ondisk.EntrySize], b)
}

// buildPlainFile wires a one-cluster file (no RMS attributes) named
// "foo.ext" whose single data cluster lives at dataDCN, with accounting
// size sz blocks and cluster size 1.
func buildPlainFile(t *testing.T, p *fakePack, u *directory.Ufd, data []byte, ext string, sz int, dataDCN int, content []byte) directory.FileMatch {
	t.Helper()
	acctLink := entryLink(t, u, 2)
	retLink := entryLink(t, u, 3)

	ret := ondisk.UFDRetrievalEntry{Ulnk: 0, UEnt: [7]uint16{uint16(dataDCN)}}
	putEntry(data, 3, ret.Bytes())

	acct := ondisk.UFDAccountingEntry{Ulnk: 0, Usiz: uint16(sz), UClus: 1}
	putEntry(data, 2, acct.Bytes())

	name := ondisk.UFDNameEntry{
		Ulnk: 0,
		Unam: [3]uint16{mustRad50(t, "foo"), mustRad50(t, "   "), mustRad50(t, ext)},
		Uaa:  acctLink,
		Uar:  retLink,
	}
	putEntry(data, 1, name.Bytes())

	buf := make([]byte, ondisk.BlockSize)
	copy(buf, content)
	p.data[dataDCN] = buf

	nameLink := entryLink(t, u, 1)
	return directory.FileMatch{Link: nameLink, Entry: name}
}

func TestFiledataOpenTrimsTrailingPaddingForTextExtensions(t *testing.T) {
	p := newFakePack()
	u, data := openUfdFixture(t, p)
	content := []byte("hello\r\n")
	m := buildPlainFile(t, p, u, data, "txt", 1, 50, content)

	fd, err := rmsfile.Open(u, m)
	require.NoError(t, err)
	require.EqualValues(t, len(content), fd.Bsize())
	require.Equal(t, "foo.txt", fd.StrName())
}

func TestFiledataOpenRMSAttrsPresentWhenUlnkNonNull(t *testing.T) {
	p := newFakePack()
	u, data := openUfdFixture(t, p)
	m := buildPlainFile(t, p, u, data, "dat", 1, 51, []byte("xxxxxxxx"))

	rmsLink := entryLink(t, u, 4)
	rms1 := ondisk.UFDRMSAttrs1{Ulnk: 0, FaEOF: ondisk.RMSLong{}, FaEOFB: 5}
	rms1.FaEOF.SetValue(1)
	putEntry(data, 4, rms1.Bytes())

	acct := ondisk.UFDAccountingEntry{Ulnk: rmsLink, Usiz: 1, UClus: 1}
	putEntry(data, 2, acct.Bytes())

	fd, err := rmsfile.Open(u, m)
	require.NoError(t, err)
	require.NotNil(t, fd.RMS1, "RMS1 should be present when the accounting entry's Ulnk is non-null")
	require.EqualValues(t, 5, fd.Bsize(), "FaEOF=1, FaEOFB=5")
}

func TestRawIOReadPlainFileWithCRLFTranslation(t *testing.T) {
	p := newFakePack()
	u, data := openUfdFixture(t, p)
	content := []byte("line one\r\nline two\r\n")
	m := buildPlainFile(t, p, u, data, "txt", 1, 52, content)

	fd, err := rmsfile.Open(u, m)
	require.NoError(t, err)

	raw, err := rmsfile.NewRawIO(fd, "rt", false)
	require.NoError(t, err)
	got, err := io.ReadAll(raw)
	if err != nil {
		require.ErrorIs(t, err, io.EOF)
	}
	require.Equal(t, "line one\nline two\n", string(got))
}

func TestRawIOSeekFromEnd(t *testing.T) {
	p := newFakePack()
	u, data := openUfdFixture(t, p)
	content := []byte("0123456789")
	m := buildPlainFile(t, p, u, data, "txt", 1, 53, content)

	fd, err := rmsfile.Open(u, m)
	require.NoError(t, err)
	raw, err := rmsfile.NewRawIO(fd, "rb", false)
	require.NoError(t, err)
	pos, err := raw.Seek(-4, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, fd.Bsize()-4, pos)
	buf := make([]byte, 4)
	n, err := raw.Read(buf)
	if err != nil {
		require.ErrorIs(t, err, io.EOF)
	}
	require.Equal(t, 4, n)
	require.Equal(t, "6789", string(buf[:n]))
}

func TestFiledataOpenRejectsWriteOnReadOnlyPack(t *testing.T) {
	p := newFakePack()
	u, data := openUfdFixture(t, p)
	m := buildPlainFile(t, p, u, data, "dat", 1, 54, []byte("abc"))

	fd, err := rmsfile.Open(u, m)
	require.NoError(t, err)
	_, err = rmsfile.NewRawIO(fd, "wb", true)
	require.Error(t, err, "expected an error opening a writable stream against a read-only pack")
}

// TestRawIOReadVariableRecordSkipsBlockBoundaryMarker builds an RMS
// variable-format file whose first block holds one 40-byte record followed
// by a 0xFFFF skip-to-next-block marker, and whose second block holds a
// 10-byte record. The read after the first record must land on the second
// block's record, not decode 0xFFFF as a (length-underflowed) record.
func TestRawIOReadVariableRecordSkipsBlockBoundaryMarker(t *testing.T) {
	p := newFakePack()
	u, data := openUfdFixture(t, p)

	block0 := make([]byte, ondisk.BlockSize)
	first := make([]byte, 40)
	for i := range first {
		first[i] = 'A'
	}
	block0[0], block0[1] = 40, 0
	copy(block0[2:42], first)
	block0[42], block0[43] = 0xFF, 0xFF // skip-rest-of-block marker
	p.data[60] = block0

	block1 := make([]byte, ondisk.BlockSize)
	second := []byte("0123456789")
	block1[0], block1[1] = 10, 0
	copy(block1[2:12], second)
	p.data[61] = block1

	acctLink := entryLink(t, u, 2)
	retLink := entryLink(t, u, 3)
	rmsLink := entryLink(t, u, 4)

	ret := ondisk.UFDRetrievalEntry{Ulnk: 0, UEnt: [7]uint16{60, 61}}
	putEntry(data, 3, ret.Bytes())

	rms1 := ondisk.UFDRMSAttrs1{Ulnk: 0, FaTyp: ondisk.RfVar, FaEOFB: 12}
	rms1.FaEOF.SetValue(2)
	putEntry(data, 4, rms1.Bytes())

	acct := ondisk.UFDAccountingEntry{Ulnk: rmsLink, Usiz: 2, UClus: 1}
	putEntry(data, 2, acct.Bytes())

	name := ondisk.UFDNameEntry{
		Ulnk: 0,
		Unam: [3]uint16{mustRad50(t, "var"), mustRad50(t, "   "), mustRad50(t, "dat")},
		Uaa:  acctLink,
		Uar:  retLink,
	}
	putEntry(data, 1, name.Bytes())
	nameLink := entryLink(t, u, 1)
	m := directory.FileMatch{Link: nameLink, Entry: name}

	fd, err := rmsfile.Open(u, m)
	require.NoError(t, err)
	require.EqualValues(t, 524, fd.Bsize())

	raw, err := rmsfile.NewRawIO(fd, "rt", false)
	require.NoError(t, err)

	buf := make([]byte, 100)
	n, err := raw.Read(buf)
	require.NoError(t, err)
	require.Equal(t, string(first), string(buf[:n]), "first record")

	n, err = raw.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(buf[:n]), "second read must land on the next block's record, not the 0xFFFF marker")
}

func TestFiledataStringIncludesDirAndName(t *testing.T) {
	p := newFakePack()
	u, data := openUfdFixture(t, p)
	m := buildPlainFile(t, p, u, data, "dat", 1, 55, []byte("z"))

	fd, err := rmsfile.Open(u, m)
	require.NoError(t, err)
	require.Equal(t, u.String()+"foo.dat", fd.String())
}
