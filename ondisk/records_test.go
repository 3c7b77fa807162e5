package ondisk_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstspack/rstspack/ondisk"
)

func TestRad50RoundTrip(t *testing.T) {
	cases := []string{"abc", "a", "", "a1$", "zzz"}
	for _, s := range cases {
		w, err := ondisk.Rad50(s)
		require.NoError(t, err, "Rad50(%q)", s)
		got := ondisk.R50ToASCII(w)
		want := s
		for len(want) < 3 {
			want += " "
		}
		require.Equal(t, want, got, "R50ToASCII(Rad50(%q))", s)
	}
}

func TestRad50RejectsInvalidChar(t *testing.T) {
	_, err := ondisk.Rad50("a!c")
	require.Error(t, err, "expected error for invalid RAD-50 character")
}

func TestLinkWordPackUnpackRoundTrip(t *testing.T) {
	lw, err := ondisk.PackLink(3, 2*ondisk.BlockSize+0o100)
	require.NoError(t, err, "PackLink")
	require.False(t, lw.IsNull(), "packed link should not be null")
	clo, blo, eno := lw.Unpack()
	require.Equal(t, 3, clo)
	require.Equal(t, 2, blo)
	require.Equal(t, 0o100, eno)
}

func TestLinkWordNull(t *testing.T) {
	var lw ondisk.LinkWord
	require.True(t, lw.IsNull(), "zero LinkWord should be null")
}

func TestPackLinkRejectsFDCMOffset(t *testing.T) {
	_, err := ondisk.PackLink(0, ondisk.FDCMOffset)
	require.Error(t, err, "expected error packing an entry offset inside the FDCM area")
}

func TestPackLinkRejectsMisalignedOffset(t *testing.T) {
	_, err := ondisk.PackLink(0, 5)
	require.Error(t, err, "expected error for an entry offset not a multiple of EntrySize")
}

func TestRMSLongRoundTrip(t *testing.T) {
	var l ondisk.RMSLong
	l.SetValue(0x12345678)
	require.Equal(t, uint32(0x12345678), l.Value())
	l2 := ondisk.RMSLongFromBytes(l.Bytes())
	require.Equal(t, uint32(0x12345678), l2.Value(), "round-trip Value()")
}

func TestUFDNameEntryRoundTrip(t *testing.T) {
	nameW, err := ondisk.Rad50("foo")
	require.NoError(t, err)
	extW, err := ondisk.Rad50("bar")
	require.NoError(t, err)
	e := ondisk.UFDNameEntry{
		Unam:  [3]uint16{nameW, 0, extW},
		Ustat: ondisk.UsPlc,
		Uprot: 0o60,
		Uacnt: 1,
	}
	got := ondisk.UFDNameEntryFromBytes(e.Bytes())
	require.Equal(t, e.Unam, got.Unam)
	require.Equal(t, e.Ustat, got.Ustat)
	require.Equal(t, e.Uprot, got.Uprot)
}

func TestFDCMRoundTrip(t *testing.T) {
	f := ondisk.FDCM{UClus: 2, UFlag: ondisk.FDNew, UEnt: [7]uint16{10, 20, 0, 0, 0, 0, 0}}
	got := ondisk.FDCMFromBytes(f.Bytes())
	require.Equal(t, f, got, "round-trip mismatch")
}
