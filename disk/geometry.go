// Package disk resolves the usable RSTS/E geometry of a container: its
// historical drive type (if it matches one of the 17 devices RSTS shipped
// drivers for), the derived device cluster size, and host-level metadata
// about the container file that backs a pack. Grounded on disk.py's
// _sizetbl/_rstssize/_getdcs.
package disk

import (
	"fmt"
	"strings"

	"github.com/rstspack/rstspack/rstserr"
)

// Geometry describes one historical RSTS drive type: its raw (total) block
// count, the block count RSTS actually uses (which can be smaller, e.g. to
// leave room for a DEC-166 bad-block replacement table), and whether that
// drive carries a DEC-166 bad-block list.
type Geometry struct {
	Total  int64
	Usable int64
	DEC166 bool
}

// DeviceTable is the historical RSTS drive geometry table, carried verbatim
// from disk.py's _sizetbl (block counts, not bytes).
var DeviceTable = map[string]Geometry{
	"rx50": {800, 800, false},
	"rf11": {1024, 1024, false},
	"rs03": {1024, 1024, false},
	"rs04": {2048, 2048, false},
	"rk05": {4800, 4800, false},
	"rl01": {10240, 10220, true},
	"rl02": {20480, 20460, true},
	"rk06": {27126, 27104, true},
	"rk07": {53790, 53768, true},
	"rp04": {171798, 171796, false},
	"rp05": {171798, 171796, false},
	"rp06": {340670, 340664, false},
	"rp07": {1008000, 1007950, true},
	"rm02": {131680, 131648, true},
	"rm03": {131680, 131648, true},
	"rm05": {500384, 500352, true},
	"rm80": {251328, 242575, true},
}

// MaxDCS is the largest legal device (or pack) cluster size, in blocks.
const MaxDCS = 64

// ByName looks up a device geometry by its historical drive name
// (case-insensitive), as disk.py's create() does when given a size
// string instead of a raw block count.
func ByName(name string) (Geometry, bool) {
	g, ok := DeviceTable[strings.ToLower(name)]
	return g, ok
}

// ResolveGeometry maps a total block count to (usable blocks, dec166,
// device cluster size), the way _rstssize does for a size that isn't a
// drive name: if totalBlocks matches a known drive's total size exactly,
// that drive's usable/dec166 apply; otherwise the raw count is used as-is
// with dec166 false.
func ResolveGeometry(totalBlocks int64) (usable int64, dec166 bool, dcs int, err error) {
	for _, g := range DeviceTable {
		if g.Total == totalBlocks {
			dcs, err = DeviceClusterSize(g.Usable)
			return g.Usable, g.DEC166, dcs, err
		}
	}
	dcs, err = DeviceClusterSize(totalBlocks)
	return totalBlocks, false, dcs, err
}

// DeviceClusterSize computes the device cluster size for a pack of usable
// size usableBlocks: 1, or the smallest power of two that keeps the number
// of device clusters within 65536, per disk.py's _getdcs.
func DeviceClusterSize(usableBlocks int64) (int, error) {
	s := (usableBlocks - 1) >> 16
	dcs := 1
	for s != 0 {
		s >>= 1
		dcs <<= 1
	}
	if dcs > MaxDCS {
		return 0, rstserr.New(rstserr.Badpak, "device cluster size %d exceeds the maximum of %d", dcs, MaxDCS)
	}
	return dcs, nil
}

// ParseSize resolves a size argument to Pack.Create, which may be either a
// historical drive name (e.g. "rl02") or a literal block count, returning
// the same (total, usable, dec166, dcs) tuple ResolveGeometry does.
func ParseSize(sizeOrDevice string) (total, usable int64, dec166 bool, dcs int, err error) {
	if g, ok := ByName(sizeOrDevice); ok {
		dcs, err = DeviceClusterSize(g.Usable)
		return g.Total, g.Usable, g.DEC166, dcs, err
	}
	var n int64
	if _, serr := fmt.Sscanf(sizeOrDevice, "%d", &n); serr != nil || n <= 0 {
		return 0, 0, false, 0, rstserr.New(rstserr.Badfn, "invalid disk size %q", sizeOrDevice)
	}
	usable, dec166, dcs, err = ResolveGeometry(n)
	return n, usable, dec166, dcs, err
}
