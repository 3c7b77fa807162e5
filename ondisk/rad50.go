package ondisk

import (
	"strings"

	"github.com/rstspack/rstspack/rstserr"
)

// rad50Chars is the radix-40 alphabet used by RAD-50 encoding, verbatim
// from the source's _r50chars: space, a-z, $, ., ?, 0-9, trailing space.
const rad50Chars = " abcdefghijklmnopqrstuvwxyz$.?0123456789 "

// RAD-50 identification words used in directory labels.
const (
	RAD50MFD = 0o051064 // rad50("MFD")
	RAD50GFD = 0o026264 // rad50("GFD")
	RAD50UFD = 0o102064 // rad50("UFD")
	RAD50TMP = 0o077430 // rad50("TMP")
	RAD50STAR = 0o134745 // rad50("???")
)

// Rad50 encodes up to the first 3 characters of s (case folded to lower)
// into a 16-bit RAD-50 word. It returns rstserr.Badfn if s contains a
// character outside the RAD-50 alphabet.
func Rad50(s string) (uint16, error) {
	s = strings.ToLower(s)
	var ret int
	mul := 1600
	for i := 0; i < 3; i++ {
		var c byte = ' '
		if i < len(s) {
			c = s[i]
		}
		idx := strings.IndexByte(rad50Chars, c)
		if idx < 0 {
			return 0, rstserr.New(rstserr.Badfn, "character %q is not valid RAD-50", c)
		}
		ret += idx * mul
		mul /= 40
	}
	return uint16(ret), nil
}

// R50ToASCII decodes a 16-bit RAD-50 word into its 3-character string.
func R50ToASCII(r uint16) string {
	var sb strings.Builder
	v := int(r)
	for _, d := range [3]int{1600, 40, 1} {
		i := v / d
		v %= d
		sb.WriteByte(rad50Chars[i])
	}
	return sb.String()
}

// ASCName converts a rad50-encoded name (2 words) and extension (1 word)
// into "NAME.EXT", padded with spaces to 6 and 3 characters respectively,
// mirroring the source's ascname.
func ASCName(name [2]uint16, ext uint16) string {
	return R50ToASCII(name[0]) + R50ToASCII(name[1]) + "." + R50ToASCII(ext)
}
