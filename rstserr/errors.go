// Package rstserr defines the error taxonomy shared by every component of
// the pack accessor, mirroring the typed-error-with-Error()-method idiom of
// github.com/diskfs/go-diskfs/disk/error.go rather than bare errors.New.
package rstserr

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind identifies one of the historical RSTS/E error classes. Each maps to a
// POSIX errno for FUSE-layer consumption.
type Kind int

const (
	// Diskio is a device I/O failure.
	Diskio Kind = iota
	// Badblk is a block number out of range.
	Badblk
	// Badbuf is an illegal byte count for I/O.
	Badbuf
	// Badclu is an illegal cluster size.
	Badclu
	// Badfn is an illegal file name or filespec.
	Badfn
	// Badlnk is a bad directory link.
	Badlnk
	// Badsw is illegal switch usage.
	Badsw
	// Corrupt is a corrupted file structure.
	Corrupt
	// Dirty means the disk needs cleaning.
	Dirty
	// Nosuch means the file or account was not found.
	Nosuch
	// Noroom means there is no room on the device.
	Noroom
	// Ropack means the pack is read-only.
	Ropack
	// Badpak means the disk cannot be rebuilt.
	Badpak
	// Internal is an invariant violation in the implementation.
	Internal
)

var kindText = map[Kind]string{
	Diskio:   "device hung or write locked",
	Badblk:   "end of file on device",
	Badbuf:   "illegal byte count for I/O",
	Badclu:   "illegal cluster size",
	Badfn:    "illegal file name",
	Badlnk:   "bad directory link",
	Badsw:    "illegal switch usage",
	Corrupt:  "corrupted file structure",
	Dirty:    "disk pack needs cleaning",
	Nosuch:   "can't find file or account",
	Noroom:   "no room for user on device",
	Ropack:   "disk is read-only and override was not specified",
	Badpak:   "disk cannot be rebuilt",
	Internal: "program lost - sorry",
}

var kindErrno = map[Kind]syscall.Errno{
	Diskio:   syscall.EIO,
	Badblk:   syscall.EIO,
	Badbuf:   syscall.EINVAL,
	Badclu:   syscall.EINVAL,
	Badfn:    syscall.EINVAL,
	Badlnk:   syscall.ENXIO,
	Badsw:    syscall.EINVAL,
	Corrupt:  syscall.ENXIO,
	Dirty:    syscall.EPERM,
	Nosuch:   syscall.ENOENT,
	Noroom:   syscall.ENOSPC,
	Ropack:   syscall.EROFS,
	Badpak:   syscall.ENXIO,
	Internal: syscall.EFAULT,
}

// Error is a typed FLX-style error: a Kind plus an optional detail string.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return kindText[e.Kind]
	}
	return fmt.Sprintf("%s: %s", kindText[e.Kind], e.Detail)
}

// Errno returns the POSIX errno a FUSE layer should surface for this error.
func (e *Error) Errno() syscall.Errno {
	return kindErrno[e.Kind]
}

// New builds an *Error of the given kind with a formatted detail message.
func New(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Detail: fmt.Sprintf(format, args...)}
}

// Is reports whether err is an *Error of the given kind, unwrapping as needed.
func Is(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
