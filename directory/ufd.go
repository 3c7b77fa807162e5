package directory

import (
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/rstspack/rstspack/firqb"
	"github.com/rstspack/rstspack/ondisk"
	"github.com/rstspack/rstspack/rstserr"
)

// Ufd is a UFD, or on an RDS0 pack the [1,1] UFD that doubles as the MFD.
type Ufd struct{ *Dir }

// OpenUfd reads the UFD (or RDS0 MFD) starting at device cluster dcn.
func OpenUfd(p PackAccessor, dcn int, kind Kind) (*Ufd, error) {
	d, err := open(p, dcn, kind)
	if err != nil {
		return nil, err
	}
	return &Ufd{d}, nil
}

// Len counts the file entries in the UFD's name-entry chain.
func (u *Ufd) Len() (int, error) {
	n := 0
	for _, err := range u.WalkList(u.Label.Ulnk) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// FileMatch is one hit from FindFiles: the matching name entry and the
// link word addressing it (so a caller can delete, rename, or extend it).
type FileMatch struct {
	Link  ondisk.LinkWord
	Entry ondisk.UFDNameEntry
}

func nameFilterRegexp(f *firqb.Firqb) *regexp.Regexp {
	var name [2]uint16
	var ext uint16
	if f.Name != nil {
		name = *f.Name
	}
	if f.Ext != nil {
		ext = *f.Ext
	}
	pattern := strings.ReplaceAll(ondisk.ASCName(name, ext), ".", `\.`)
	pattern = strings.ReplaceAll(pattern, "?", ".")
	return regexp.MustCompile("(?i)^" + pattern + "$")
}

// FindFiles walks the UFD's file chain yielding every name entry whose
// name.ext matches firqb's parsed name (wildcards already expanded to '?'
// regex-dot by the caller's Firqb.Parse).
func (u *Ufd) FindFiles(f *firqb.Firqb) iter.Seq2[FileMatch, error] {
	fnre := nameFilterRegexp(f)
	return func(yield func(FileMatch, error) bool) {
		for ent, err := range u.WalkList(u.Label.Ulnk) {
			if err != nil {
				yield(FileMatch{}, err)
				return
			}
			ne := ondisk.UFDNameEntryFromBytes(ent.Data)
			if ne.Ustat&ondisk.UsUfd != 0 {
				continue
			}
			name := ondisk.ASCName([2]uint16{ne.Unam[0], ne.Unam[1]}, ne.Unam[2])
			if fnre.MatchString(name) {
				if !yield(FileMatch{Link: ent.Link, Entry: ne}, nil) {
					return
				}
			}
		}
	}
}

// DirMatch is one hit from Ufd.FindDir: the resolved UFD together with the
// account's project/programmer numbers (the UFD's own label doesn't
// necessarily carry the PPN on RDS0, so it's reported alongside instead).
type DirMatch struct {
	Dir  *Ufd
	Proj int
	Prog int
}

// FindDir finds RDS0 accounts matching firqb's project/programmer numbers.
// Valid only on the [1,1] directory (the RDS0 MFD); yields rstserr.Nosuch
// if nothing matched and neither number was a wildcard.
func (u *Ufd) FindDir(f *firqb.Firqb) iter.Seq2[DirMatch, error] {
	return func(yield func(DirMatch, error) bool) {
		if u.Kind != KindMFD {
			yield(DirMatch{}, rstserr.New(rstserr.Nosuch, "FindDir is only valid on the RDS0 MFD"))
			return
		}
		proj, prog := 255, 255
		if f.Proj != nil {
			proj = *f.Proj
		}
		if f.Prog != nil {
			prog = *f.Prog
		}
		matched := false
		for ent, err := range u.WalkList(u.Label.Ulnk) {
			if err != nil {
				yield(DirMatch{}, err)
				return
			}
			ne := ondisk.GFDNameEntryFromBytes(ent.Data)
			if ne.Ustat&ondisk.UsUfd == 0 {
				continue
			}
			if (prog != 255 && prog != int(ne.Uprog)) || (proj != 255 && proj != int(ne.Uproj)) {
				continue
			}
			var sub *Ufd
			if proj == 1 && prog == 1 {
				sub = u
			} else {
				if ne.Uar == 0 {
					// PPN is defined but the directory isn't allocated.
					continue
				}
				d, err := OpenUfd(u.pack, int(ne.Uar), KindUFD)
				if err != nil {
					yield(DirMatch{}, err)
					return
				}
				sub = d
			}
			matched = true
			if !yield(DirMatch{Dir: sub, Proj: int(ne.Uproj), Prog: int(ne.Uprog)}, nil) {
				return
			}
		}
		if !matched && prog != 255 && proj != 255 {
			yield(DirMatch{}, rstserr.New(rstserr.Nosuch, "no such account"))
		}
	}
}

func (u *Ufd) String() string {
	return fmt.Sprintf("[%d,%d]", u.PPN[1], u.PPN[0])
}
