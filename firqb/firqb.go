// Package firqb parses RSTS/E filespecs into the parsed-name structure the
// operating system itself called a FIRQB (file information request block),
// grounded on common.py's regex-driven parser and reimplemented against
// Go's RE2-based regexp package rather than Python's backtracking re, since
// the grammar here needs no backreferences or lookaround.
package firqb

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rstspack/rstspack/ondisk"
	"github.com/rstspack/rstspack/rstserr"
)

// WildFlag marks which components of a parsed filespec contained a wildcard
// character ('*' or '?').
type WildFlag uint8

const (
	WProj WildFlag = 1 << iota
	WProg
	WName
	WExt
)

// Firqb is a parsed RSTS filespec: an optional [project,programmer] number
// pair, a RAD-50 name and extension, an optional protection code, and any
// switches (/cluster_size, /mode, /size, /position, /protect, /ronly).
type Firqb struct {
	Proj, Prog           *int
	Name                 *[2]uint16
	Ext                  *uint16
	Mode                 *int
	Pos, Prot, Clusiz, Size *int
	Wild                 WildFlag
}

var (
	firqbRe  = regexp.MustCompile(`(?i)^(?:/(\*|\d+)(?:/(\*|\d+))?(?:/|$)|[\[(](\*|\d+),(\*|\d+)[\])]|([$!%&]))?([a-z0-9?]*\*?)(?:\.([a-z0-9?]*\*?))?(?:<(\d+)>)?((?:/[a-z]+(?:[=:].+?)*)*)$`)
	switchRe = regexp.MustCompile(`(?i)/([a-z]+)(?:[=:](\d+))?`)
)

var ppnChars = map[byte][2]int{
	'$': {1, 2},
	'!': {1, 3},
	'%': {1, 4},
	'&': {1, 5},
}

// switchTail, attr: attr == "" marks the /ronly boolean switch.
var switches = map[string][2]string{
	"cl": {"ustersize", "clusiz"},
	"fi": {"lesize", "size"},
	"si": {"ze", "size"},
	"mo": {"de", "mode"},
	"ro": {"nly", ""},
	"po": {"sition", "pos"},
	"pr": {"otect", "prot"},
}

func intPtr(v int) *int { return &v }

// Parse parses a RSTS filespec string into a Firqb. An empty string yields
// a zero-value Firqb with nothing set.
func Parse(fn string) (*Firqb, error) {
	f := &Firqb{}
	if fn == "" {
		return f, nil
	}
	fn = strings.ReplaceAll(fn, " ", "")
	m := firqbRe.FindStringSubmatch(fn)
	if m == nil {
		return nil, rstserr.New(rstserr.Badfn, "malformed filespec %q", fn)
	}

	unixProj, unixProg := m[1], m[2]
	rstsProj, rstsProg := m[3], m[4]
	ppnChar := m[5]
	nameStr, extStr, protStr, swStr := m[6], m[7], m[8], m[9]

	var proj, prog string
	switch {
	case unixProj != "":
		proj, prog = unixProj, unixProg
		if prog == "" && (rstsProj != "" || rstsProg != "" || ppnChar != "") {
			return nil, rstserr.New(rstserr.Badfn, "malformed filespec %q", fn)
		}
	case rstsProj != "":
		proj, prog = rstsProj, rstsProg
	case ppnChar != "":
		p := ppnChars[ppnChar[0]]
		proj, prog = strconv.Itoa(p[0]), strconv.Itoa(p[1])
	}

	if proj != "" {
		if proj == "*" {
			f.Proj = intPtr(255)
			f.Wild |= WProj
		} else {
			v, err := strconv.Atoi(proj)
			if err != nil || v < 0 || v > 254 {
				return nil, rstserr.New(rstserr.Badfn, "illegal project number %q", proj)
			}
			f.Proj = intPtr(v)
		}
	}
	if prog != "" {
		if prog == "*" {
			f.Prog = intPtr(255)
			f.Wild |= WProg
		} else {
			v, err := strconv.Atoi(prog)
			if err != nil || v < 0 || v > 254 {
				return nil, rstserr.New(rstserr.Badfn, "illegal programmer number %q", prog)
			}
			f.Prog = intPtr(v)
		}
	}

	if nameStr != "" {
		n := nameStr
		if strings.HasSuffix(n, "*") {
			n = n[:len(n)-1] + "??????"
		}
		n = padTo(n, 6)
		w0, err := ondisk.Rad50(n[0:3])
		if err != nil {
			return nil, err
		}
		w1, err := ondisk.Rad50(n[3:6])
		if err != nil {
			return nil, err
		}
		f.Name = &[2]uint16{w0, w1}
		if strings.ContainsRune(n, '?') {
			f.Wild |= WName
		}
	}
	if extStr != "" {
		e := extStr
		if strings.HasSuffix(e, "*") {
			e = e[:len(e)-1] + "???"
		}
		e = padTo(e, 3)
		w, err := ondisk.Rad50(e)
		if err != nil {
			return nil, err
		}
		f.Ext = &w
		if strings.ContainsRune(e, '?') {
			f.Wild |= WExt
		}
	}
	if protStr != "" {
		v, err := strconv.Atoi(protStr)
		if err != nil {
			return nil, rstserr.New(rstserr.Badfn, "illegal protection code %q", protStr)
		}
		f.Prot = intPtr(v)
	}
	if swStr != "" {
		for _, sm := range switchRe.FindAllStringSubmatch(swStr, -1) {
			name, arg := strings.ToLower(sm[1]), sm[2]
			key := name
			if len(key) > 2 {
				key = key[:2]
			}
			entry, ok := switches[key]
			if !ok {
				return nil, rstserr.New(rstserr.Badsw, "unknown switch %q", name)
			}
			tail, attr := entry[0], entry[1]
			if len(name) > 2 && !strings.HasPrefix(tail, name[2:]) {
				return nil, rstserr.New(rstserr.Badsw, "unknown switch %q", name)
			}
			if attr == "" {
				if arg != "" {
					return nil, rstserr.New(rstserr.Badsw, "/ronly takes no argument")
				}
				if f.Mode == nil {
					f.Mode = intPtr(0)
				}
				*f.Mode |= 8192
				continue
			}
			if arg == "" {
				return nil, rstserr.New(rstserr.Badsw, "switch /%s requires an argument", name)
			}
			v, err := strconv.Atoi(arg)
			if err != nil {
				return nil, rstserr.New(rstserr.Badsw, "switch /%s requires an integer argument", name)
			}
			switch attr {
			case "clusiz":
				f.Clusiz = intPtr(v)
			case "size":
				f.Size = intPtr(v)
			case "mode":
				f.Mode = intPtr(v)
			case "pos":
				f.Pos = intPtr(v)
			case "prot":
				f.Prot = intPtr(v)
			}
		}
	}
	return f, nil
}

func padTo(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}

// ApplyDefaults fills any unset Proj/Prog/Name/Ext fields of f from def,
// carrying over the wildcard flag for any field that was defaulted.
func (f *Firqb) ApplyDefaults(def *Firqb) {
	var defaulted WildFlag
	if f.Proj == nil && def.Proj != nil {
		f.Proj = intPtr(*def.Proj)
		defaulted |= WProj
	}
	if f.Prog == nil && def.Prog != nil {
		f.Prog = intPtr(*def.Prog)
		defaulted |= WProg
	}
	if f.Name == nil && def.Name != nil {
		nm := *def.Name
		f.Name = &nm
		defaulted |= WName
	}
	if f.Ext == nil && def.Ext != nil {
		e := *def.Ext
		f.Ext = &e
		defaulted |= WExt
	}
	f.Wild |= def.Wild & defaulted
}

// Clone returns a deep copy of f.
func (f *Firqb) Clone() *Firqb {
	c := *f
	if f.Proj != nil {
		c.Proj = intPtr(*f.Proj)
	}
	if f.Prog != nil {
		c.Prog = intPtr(*f.Prog)
	}
	if f.Name != nil {
		nm := *f.Name
		c.Name = &nm
	}
	if f.Ext != nil {
		e := *f.Ext
		c.Ext = &e
	}
	if f.Mode != nil {
		c.Mode = intPtr(*f.Mode)
	}
	if f.Pos != nil {
		c.Pos = intPtr(*f.Pos)
	}
	if f.Prot != nil {
		c.Prot = intPtr(*f.Prot)
	}
	if f.Clusiz != nil {
		c.Clusiz = intPtr(*f.Clusiz)
	}
	if f.Size != nil {
		c.Size = intPtr(*f.Size)
	}
	return &c
}

// String renders f back into [proj,prog]name.ext<prot> form, the way
// common.py's Firqb.__str__ does, for diagnostics and logging.
func (f *Firqb) String() string {
	var sb strings.Builder
	if f.Proj != nil || f.Prog != nil {
		proj, prog := "", ""
		if f.Proj != nil {
			if *f.Proj == 255 {
				proj = "*"
			} else {
				proj = strconv.Itoa(*f.Proj)
			}
		}
		if f.Prog != nil {
			if *f.Prog == 255 {
				prog = "*"
			} else {
				prog = strconv.Itoa(*f.Prog)
			}
		}
		sb.WriteString("[" + proj + "," + prog + "]")
	}
	if f.Name != nil || f.Ext != nil {
		var name [2]uint16
		var ext uint16
		if f.Name != nil {
			name = *f.Name
		}
		if f.Ext != nil {
			ext = *f.Ext
		}
		sb.WriteString(strings.ReplaceAll(ondisk.ASCName(name, ext), " ", ""))
	}
	if f.Prot != nil {
		sb.WriteString("<" + strconv.Itoa(*f.Prot) + ">")
	}
	return sb.String()
}

// ParseWithDefaults parses fn and, in the same call, applies deffn's fields
// as defaults for any element fn left unset.
func ParseWithDefaults(fn string, deffn *Firqb) (*Firqb, error) {
	f, err := Parse(fn)
	if err != nil {
		return nil, err
	}
	if deffn != nil {
		f.ApplyDefaults(deffn)
	}
	return f, nil
}
