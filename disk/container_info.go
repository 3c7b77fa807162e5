package disk

import (
	times "gopkg.in/djherbis/times.v1"
)

// BirthTime reports the host container file's creation ("birth") time,
// purely as a mount-time diagnostic (container age) layered outside the
// RSTS record timestamps of component §3/§6 — times.v1 wraps the
// statx/getattrlist calls needed to get a birth time per OS, which
// os.Stat's FileInfo does not expose portably.
func BirthTime(path string) (hasBirthTime bool, unixNano int64, err error) {
	t, err := times.Stat(path)
	if err != nil {
		return false, 0, err
	}
	if !t.HasBirthTime() {
		return false, 0, nil
	}
	return true, t.BirthTime().UnixNano(), nil
}
