//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris
// +build aix darwin dragonfly freebsd linux netbsd openbsd solaris

package disk

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	blksszGet = 0x1268
	blkbszGet = 0x80081270
)

// ProbeSectorSize discovers a raw block device's native logical and
// physical sector sizes via BLKSSZGET/BLKBSZGET, the way diskfs.go's
// getSectorSizes does before falling back to the 512-byte RSTS block.
// It returns an error (rather than the regular block size) for ordinary
// container files, which have no such ioctl.
func ProbeSectorSize(f *os.File) (logical, physical int64, err error) {
	fd := f.Fd()
	l, err := unix.IoctlGetInt(int(fd), blksszGet)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get device logical sector size: %w", err)
	}
	p, err := unix.IoctlGetInt(int(fd), blkbszGet)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get device physical sector size: %w", err)
	}
	return int64(l), int64(p), nil
}
