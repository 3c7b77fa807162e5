package firqb_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstspack/rstspack/firqb"
)

func TestParseEmpty(t *testing.T) {
	f, err := firqb.Parse("")
	require.NoError(t, err)
	require.Nil(t, f.Proj)
	require.Nil(t, f.Name)
}

func TestParseUnixStylePPN(t *testing.T) {
	f, err := firqb.Parse("/1/2/foo.bar")
	require.NoError(t, err)
	require.NotNil(t, f.Proj)
	require.NotNil(t, f.Prog)
	require.Equal(t, 1, *f.Proj)
	require.Equal(t, 2, *f.Prog)
	require.Equal(t, "[1,2]foo.bar", f.String())
}

func TestParseBracketStylePPN(t *testing.T) {
	f, err := firqb.Parse("[200,5]foo")
	require.NoError(t, err)
	require.NotNil(t, f.Proj)
	require.NotNil(t, f.Prog)
	require.Equal(t, 200, *f.Proj)
	require.Equal(t, 5, *f.Prog)
}

func TestParsePPNShorthand(t *testing.T) {
	f, err := firqb.Parse("$foo")
	require.NoError(t, err)
	require.NotNil(t, f.Proj)
	require.NotNil(t, f.Prog)
	require.Equal(t, 1, *f.Proj)
	require.Equal(t, 2, *f.Prog)
}

func TestParseWildcardName(t *testing.T) {
	f, err := firqb.Parse("foo*.*")
	require.NoError(t, err)
	require.NotZero(t, f.Wild&firqb.WName, "WName should be set")
	require.NotZero(t, f.Wild&firqb.WExt, "WExt should be set")
}

func TestParseQuestionMarkWildcard(t *testing.T) {
	f, err := firqb.Parse("fo?.txt")
	require.NoError(t, err)
	require.NotZero(t, f.Wild&firqb.WName, "WName should be set")
}

func TestParseProtection(t *testing.T) {
	f, err := firqb.Parse("foo.bar<60>")
	require.NoError(t, err)
	require.NotNil(t, f.Prot)
	require.EqualValues(t, 60, *f.Prot)
}

func TestParseSwitches(t *testing.T) {
	f, err := firqb.Parse("foo.bar/clustersize=4/ronly")
	require.NoError(t, err)
	require.NotNil(t, f.Clusiz)
	require.Equal(t, 4, *f.Clusiz)
	require.NotNil(t, f.Mode)
	require.NotZero(t, *f.Mode&8192, "ronly bit should be set")
}

func TestParseRonlyRejectsArgument(t *testing.T) {
	_, err := firqb.Parse("foo/ronly=1")
	require.Error(t, err, "expected Badsw error for /ronly=1")
}

func TestParseRejectsInvalidProj(t *testing.T) {
	_, err := firqb.Parse("[999,1]foo")
	require.Error(t, err, "expected error for out-of-range project number")
}

func TestParseUnixStyleSingleElementOnly(t *testing.T) {
	f, err := firqb.Parse("/200")
	require.NoError(t, err)
	require.NotNil(t, f.Proj)
	require.Equal(t, 200, *f.Proj)
	require.Nil(t, f.Prog)
}

func TestApplyDefaults(t *testing.T) {
	def, err := firqb.Parse("[1,2]foo.bar")
	require.NoError(t, err)
	f, err := firqb.Parse("baz")
	require.NoError(t, err)
	f.ApplyDefaults(def)
	require.NotNil(t, f.Proj)
	require.NotNil(t, f.Prog)
	require.Equal(t, 1, *f.Proj)
	require.Equal(t, 2, *f.Prog)
	require.NotNil(t, f.Ext, "after ApplyDefaults, Ext should be defaulted from def")
}

func TestCloneIsIndependent(t *testing.T) {
	f, err := firqb.Parse("[1,2]foo.bar")
	require.NoError(t, err)
	c := f.Clone()
	*c.Proj = 99
	require.NotEqual(t, 99, *f.Proj, "Clone() should not alias the original's pointer fields")
}
