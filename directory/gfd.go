package directory

import (
	"fmt"
	"iter"

	"github.com/rstspack/rstspack/firqb"
	"github.com/rstspack/rstspack/ondisk"
	"github.com/rstspack/rstspack/rstserr"
)

// Gfd is a GFD or MFD on an RDS1 pack: a table-indexed directory level
// (indexed by project number for an MFD, programmer number for a GFD),
// rather than a name-entry chain like Ufd.
type Gfd struct{ *Dir }

// OpenGfd reads the GFD or MFD starting at device cluster dcn.
func OpenGfd(p PackAccessor, dcn int, kind Kind) (*Gfd, error) {
	d, err := open(p, dcn, kind)
	if err != nil {
		return nil, err
	}
	return &Gfd{d}, nil
}

// MapTable returns the child-directory table (block 1) or, if attr is
// true, the attribute-link table (block 2) of the GFD/MFD's first cluster.
func (g *Gfd) MapTable(attr bool) (ondisk.GFDTable, error) {
	off := ondisk.BlockSize
	if attr {
		off = 2 * ondisk.BlockSize
	}
	if off+ondisk.BlockSize > len(g.Clusters[0].Data) {
		return ondisk.GFDTable{}, rstserr.New(rstserr.Corrupt, "GFD/MFD table block at offset %#o out of range", off)
	}
	return ondisk.GFDTableFromBytes(g.Clusters[0].Data[off : off+ondisk.BlockSize]), nil
}

// Len counts the non-zero entries in the child-directory table.
func (g *Gfd) Len() (int, error) {
	t, err := g.MapTable(false)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range t.Ent {
		if e != 0 {
			n++
		}
	}
	return n, nil
}

// FindChildGfds descends an MFD to the GFDs matching firqb's project
// number (or all of them, if the project number is wildcarded or unset).
func (g *Gfd) FindChildGfds(f *firqb.Firqb) iter.Seq2[*Gfd, error] {
	return func(yield func(*Gfd, error) bool) {
		t, err := g.MapTable(false)
		if err != nil {
			yield(nil, err)
			return
		}
		if f.Proj != nil && *f.Proj != 255 {
			e := t.Ent[*f.Proj]
			if e != 0 {
				child, err := OpenGfd(g.pack, int(e), KindGFD)
				if err != nil {
					yield(nil, err)
					return
				}
				yield(child, nil)
			}
			return
		}
		for r := 0; r < 255; r++ {
			e := t.Ent[r]
			if e == 0 {
				continue
			}
			child, err := OpenGfd(g.pack, int(e), KindGFD)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(child, nil) {
				return
			}
		}
	}
}

// FindChildUfds descends a GFD to the UFDs matching firqb's programmer
// number (or all of them, if the programmer number is wildcarded or unset).
func (g *Gfd) FindChildUfds(f *firqb.Firqb) iter.Seq2[*Ufd, error] {
	return func(yield func(*Ufd, error) bool) {
		t, err := g.MapTable(false)
		if err != nil {
			yield(nil, err)
			return
		}
		if f.Prog != nil && *f.Prog != 255 {
			e := t.Ent[*f.Prog]
			if e != 0 {
				child, err := OpenUfd(g.pack, int(e), KindUFD)
				if err != nil {
					yield(nil, err)
					return
				}
				yield(child, nil)
			}
			return
		}
		for r := 0; r < 255; r++ {
			e := t.Ent[r]
			if e == 0 {
				continue
			}
			child, err := OpenUfd(g.pack, int(e), KindUFD)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(child, nil) {
				return
			}
		}
	}
}

// GetAttr looks up the attribute-blockette chain for the project (MFD) or
// programmer (GFD) number named in firqb, returning the chain decoded as
// generic attribute blockettes for the caller to interpret by Uatyp.
//
// dir.py's getattr instead calls a bare "readlist(e)" that resolves to no
// function anywhere in that source tree (readlist/readlistnz exist only as
// Dir methods) and would raise NameError if ever reached; it also can't
// have been what was intended regardless, since readlist/readlistnz decode
// entries as ufdre (a Ulnk+7-word retrieval record), not as the tagged
// Uatyp/Uadat attribute blockettes this chain actually holds. Walking the
// chain directly as Uattr is the only decoding that matches the data.
func (g *Gfd) GetAttr(f *firqb.Firqb) ([]ondisk.Uattr, error) {
	var p *int
	if g.Kind == KindMFD {
		p = f.Proj
	} else {
		p = f.Prog
	}
	if p == nil {
		return nil, rstserr.New(rstserr.Nosuch, "no project/programmer number given")
	}
	t, err := g.MapTable(true)
	if err != nil {
		return nil, err
	}
	e := t.Ent[*p]
	if e == 0 {
		return nil, rstserr.New(rstserr.Nosuch, "no such account")
	}
	var out []ondisk.Uattr
	for ent, err := range g.WalkList(ondisk.LinkWord(e)) {
		if err != nil {
			return nil, err
		}
		out = append(out, ondisk.UattrFromBytes(ent.Data))
	}
	return out, nil
}

func (g *Gfd) String() string {
	if g.Kind == KindMFD {
		return "[*,*]"
	}
	return fmt.Sprintf("[%d,*]", g.PPN[1])
}
