// Package rstspack provides methods for reading and writing RSTS/E
// (PDP-11) disk pack images: mounting an existing pack, looking up and
// reading its files and directories, and creating a new pack container.
//
// This does not mount any pack onto a host filesystem, neither directly
// nor via a VM; it manipulates the container bytes directly, the way
// go-diskfs manipulates disk images without requiring an OS mount.
//
// Some examples:
//
//  1. Open an existing pack image read-only and read a file from it.
//
//     import "github.com/rstspack/rstspack"
//
//     p, err := rstspack.Open("/tmp/rsts.dsk", true)
//     f, err := p.Lookup("[1,2]FOO.TXT", false)
//     rw, err := f.Open("rt", "", "")
//
//  2. Create a new pack container and initialize it as an RDS1.2 pack.
//
//     import "github.com/rstspack/rstspack"
//     import "github.com/rstspack/rstspack/pack"
//
//     p, err := rstspack.Create("/tmp/new.dsk", "RP06")
//     err = p.Initialize("NEWPK0", false, 1, pack.LevelRDS12, true)
package rstspack

import "github.com/rstspack/rstspack/pack"

// Open opens an existing pack container at path, read-only unless
// readOnly is false, mirroring go-diskfs's diskfs.Open.
func Open(path string, readOnly bool) (*pack.Pack, error) {
	return pack.Open(path, readOnly)
}

// Create makes a new pack container at path of the given size (in blocks,
// or a historical drive name like "RP06"), opened read-write but not yet
// initialized with a file structure, mirroring go-diskfs's diskfs.Create.
// Call (*pack.Pack).Initialize to lay down the MFD/UFD/SATT structure.
func Create(path string, sizeOrDevice string) (*pack.Pack, error) {
	return pack.Create(path, sizeOrDevice)
}
