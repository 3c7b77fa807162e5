// Package ondisk models the RSTS/E on-disk record formats bit- and
// byte-exactly (little-endian, 16-byte directory entries save the label and
// the 512-byte GFD/MFD table blocks), the way
// github.com/diskfs/go-diskfs/filesystem/fat32's directoryEntry models FAT32
// entries: a Go struct with named fields plus FromBytes/Bytes methods, never
// a raw pointer overlay onto the buffer.
package ondisk

import "encoding/binary"

// BlockSize is the fundamental RSTS disk block size in bytes.
const BlockSize = 512

// EntrySize is the size in bytes of every directory entry variant.
const EntrySize = 0o20

// FDCMOffset is the byte offset within a directory block of the Directory
// Cluster Map; no entry may occupy this offset.
const FDCMOffset = 0o760

// Pack status flags (pstat in PackLabel).
const (
	PstatTop = 0o001000 // new files first
	PstatDlw = 0o004000 // maintain date of last write
	PstatRO  = 0o010000 // read-only pack
	PstatNew = 0o020000 // "new" pack (RDS1.1)
	PstatPri = 0o040000 // private/system pack
	PstatMnt = 0o100000 // pack is mounted (dirty)
)

// Pack revision levels.
const (
	RDS0  = 0
	RDS11 = (1 << 8) + 1
	RDS12 = (1 << 8) + 2
)

// RMS file-type bit fields within UFDRMSAttrs1.Typ.
const (
	FaRfm = 0o000007 // record format mask
	RfUdf = 0         // undefined organization
	RfFix = 1         // fixed length records
	RfVar = 2         // variable length records
	RfVfc = 3         // variable with fixed control header
	RfStm = 4         // stream (CR/LF delimited)

	FaOrg = 0o000070 // organization mask
	FoSeq = 0o000
	FoRel = 0o020
	FoIdx = 0o040

	FaRat = 0o017400 // record attribute flags mask
	RaFtn = 0o000400 // fortran carriage control
	RaImp = 0o001000 // implied carriage control
	RaPrn = 0o002000 // print format
	RaSpn = 0o004000 // no-span records
	RaEmb = 0o010000 // embedded
)

// Status bits in UFDNameEntry.Stat / GFDNameEntry.Stat.
const (
	UsOut = 0o001 // out of SAT (historical)
	UsPlc = 0o002 // placed
	UsWrt = 0o004 // write access given out (not on disk)
	UsUpd = 0o010 // open in update mode (not on disk)
	UsNox = 0o020 // no extending allowed (contiguous)
	UsNok = 0o040 // no delete/rename allowed
	UsUfd = 0o100 // entry is MFD-type entry
	UsDel = 0o200 // marked for deletion
)

// Account-attribute blockette type codes.
const (
	AaQuo = 1
	AaPrv = 2
	AaPas = 3
	AaDat = 4
	AaNam = 5
	AaQt2 = 6
)

func le16(b []byte) uint16      { return binary.LittleEndian.Uint16(b) }
func putLE16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }

// EntryLink reads the link word that begins every 16-byte directory entry
// variant, without needing to know which variant it is.
func EntryLink(b []byte) LinkWord { return LinkWord(le16(b[0:2])) }

// RMSLong is a 32-bit value stored PDP-11 endian: two 16-bit halves with
// the high half stored first (word-order reversal relative to a plain
// little-endian uint32).
type RMSLong struct {
	raw uint32 // as stored on disk: high half in low 16 bits, low half in high 16 bits
}

// Value returns the natural 32-bit value.
func (r RMSLong) Value() uint32 {
	return ((r.raw & 0xffff) << 16) | (r.raw >> 16)
}

// SetValue stores v in the PDP-11-endian on-disk form.
func (r *RMSLong) SetValue(v uint32) {
	r.raw = ((v & 0xffff) << 16) | (v >> 16)
}

// RMSLongFromBytes parses a 4-byte little-endian-stored-word-swapped long.
func RMSLongFromBytes(b []byte) RMSLong {
	return RMSLong{raw: binary.LittleEndian.Uint32(b)}
}

// Bytes serializes the long back to its 4-byte on-disk form.
func (r RMSLong) Bytes() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, r.raw)
	return b
}

// PackLabel is the block-0 pack label (packlabel in fldef.py).
type PackLabel struct {
	Ulnk   LinkWord // link to first name entry, RDS0 only
	MDCN   uint16   // starting DCN of MFD, RDS1.1+
	PLvl   uint16   // pack revision level
	PPCS   uint16   // pack cluster size
	PStat  uint16   // pack status/flags
	PckID  [2]uint16
	TapGVN [2]uint16
	BckDat uint16
	BckTim uint16
	MntDat uint16
	MntTim uint16
}

// PackLabelFromBytes parses a PackLabel from the first 28 bytes of block 0.
func PackLabelFromBytes(b []byte) PackLabel {
	return PackLabel{
		Ulnk:   LinkWord(le16(b[0:2])),
		MDCN:   le16(b[4:6]),
		PLvl:   le16(b[6:8]),
		PPCS:   le16(b[8:10]),
		PStat:  le16(b[10:12]),
		PckID:  [2]uint16{le16(b[12:14]), le16(b[14:16])},
		TapGVN: [2]uint16{le16(b[16:18]), le16(b[18:20])},
		BckDat: le16(b[20:22]),
		BckTim: le16(b[22:24]),
		MntDat: le16(b[24:26]),
		MntTim: le16(b[26:28]),
	}
}

// Bytes serializes the PackLabel's defined fields into a BlockSize buffer
// (the remainder is reserved fill, left zero).
func (p PackLabel) Bytes() []byte {
	b := make([]byte, BlockSize)
	putLE16(b[0:2], uint16(p.Ulnk))
	putLE16(b[4:6], p.MDCN)
	putLE16(b[6:8], p.PLvl)
	putLE16(b[8:10], p.PPCS)
	putLE16(b[10:12], p.PStat)
	putLE16(b[12:14], p.PckID[0])
	putLE16(b[14:16], p.PckID[1])
	putLE16(b[16:18], p.TapGVN[0])
	putLE16(b[18:20], p.TapGVN[1])
	putLE16(b[20:22], p.BckDat)
	putLE16(b[22:24], p.BckTim)
	putLE16(b[24:26], p.MntDat)
	putLE16(b[26:28], p.MntTim)
	return b
}

// MFDLabel is the MFD label entry (RDS1.1+), at offset 0 of its first cluster.
type MFDLabel struct {
	Malnk LinkWord // link to pack attributes
	Lppn  [2]byte  // [255,255] for the MFD
	Lid   uint16   // RAD50 "MFD"
}

// MFDLabelFromBytes parses a 16-byte MFDLabel entry.
func MFDLabelFromBytes(b []byte) MFDLabel {
	return MFDLabel{
		Malnk: LinkWord(le16(b[10:12])),
		Lppn:  [2]byte{b[12], b[13]},
		Lid:   le16(b[14:16]),
	}
}

// Bytes serializes the MFDLabel to its 16-byte on-disk form.
func (m MFDLabel) Bytes() []byte {
	b := make([]byte, EntrySize)
	putLE16(b[10:12], uint16(m.Malnk))
	b[12], b[13] = m.Lppn[0], m.Lppn[1]
	putLE16(b[14:16], m.Lid)
	return b
}

// GFDLabel is the GFD label entry. Fields line up with MFDLabel except the
// fill layout differs slightly (fldef.py's gfdlabel has one extra filler
// word before lppn/lid).
type GFDLabel struct {
	Lppn [2]byte
	Lid  uint16
}

// GFDLabelFromBytes parses a 16-byte GFDLabel entry.
func GFDLabelFromBytes(b []byte) GFDLabel {
	return GFDLabel{Lppn: [2]byte{b[12], b[13]}, Lid: le16(b[14:16])}
}

// Bytes serializes the GFDLabel to its 16-byte on-disk form.
func (g GFDLabel) Bytes() []byte {
	b := make([]byte, EntrySize)
	b[12], b[13] = g.Lppn[0], g.Lppn[1]
	putLE16(b[14:16], g.Lid)
	return b
}

// UFDLabel is the UFD label entry at offset 0 of a UFD's first cluster.
type UFDLabel struct {
	Ulnk LinkWord // link to first name entry
	Lppn [2]byte
	Lid  uint16
}

// UFDLabelFromBytes parses a 16-byte UFDLabel entry.
func UFDLabelFromBytes(b []byte) UFDLabel {
	return UFDLabel{
		Ulnk: LinkWord(le16(b[0:2])),
		Lppn: [2]byte{b[12], b[13]},
		Lid:  le16(b[14:16]),
	}
}

// Bytes serializes the UFDLabel to its 16-byte on-disk form.
func (u UFDLabel) Bytes() []byte {
	b := make([]byte, EntrySize)
	putLE16(b[0:2], uint16(u.Ulnk))
	b[12], b[13] = u.Lppn[0], u.Lppn[1]
	putLE16(b[14:16], u.Lid)
	return b
}

// FDCM is the Directory Cluster Map, replicated in the last 16 bytes of
// every directory block (except the GFD/MFD table blocks in block 0).
type FDCM struct {
	UClus byte      // directory cluster size
	UFlag byte      // high bit set for RDS1 GFD/MFD
	UEnt  [7]uint16 // DCNs of the directory's clusters, 0 if unused
}

// FDNew is the fd_new flag bit in FDCM.UFlag.
const FDNew = 0o200

// FDCMFromBytes parses a 16-byte FDCM record.
func FDCMFromBytes(b []byte) FDCM {
	var f FDCM
	f.UClus = b[0]
	f.UFlag = b[1]
	for i := 0; i < 7; i++ {
		f.UEnt[i] = le16(b[2+2*i : 4+2*i])
	}
	return f
}

// Bytes serializes the FDCM to its 16-byte on-disk form.
func (f FDCM) Bytes() []byte {
	b := make([]byte, EntrySize)
	b[0], b[1] = f.UClus, f.UFlag
	for i := 0; i < 7; i++ {
		putLE16(b[2+2*i:4+2*i], f.UEnt[i])
	}
	return b
}

// GFDTable is the 512-byte MFD/GFD table block (child-DCN table in block 1,
// attribute-link table in block 2), indexed by group or user number.
type GFDTable struct {
	Ent [255]uint16
}

// GFDTableFromBytes parses a 512-byte GFDTable block.
func GFDTableFromBytes(b []byte) GFDTable {
	var t GFDTable
	for i := 0; i < 255; i++ {
		t.Ent[i] = le16(b[2*i : 2*i+2])
	}
	return t
}

// Bytes serializes the GFDTable to its 512-byte on-disk form.
func (t GFDTable) Bytes() []byte {
	b := make([]byte, BlockSize)
	for i := 0; i < 255; i++ {
		putLE16(b[2*i:2*i+2], t.Ent[i])
	}
	return b
}

// GFDNameEntry is a GFD name entry, used on RDS0 where GFD-style account
// entries live directly in the MFD ([1,1] UFD) name-entry list.
type GFDNameEntry struct {
	Ulnk  LinkWord
	Uprog byte
	Uproj byte
	Upass [2]uint16
	Ustat byte
	Uprot byte
	Uacnt uint16
	Uaa   LinkWord
	Uar   uint16 // starting DCN of UFD
}

// GFDNameEntryFromBytes parses a 16-byte GFDNameEntry.
func GFDNameEntryFromBytes(b []byte) GFDNameEntry {
	return GFDNameEntry{
		Ulnk:  LinkWord(le16(b[0:2])),
		Uprog: b[2],
		Uproj: b[3],
		Upass: [2]uint16{le16(b[4:6]), le16(b[6:8])},
		Ustat: b[8],
		Uprot: b[9],
		Uacnt: le16(b[10:12]),
		Uaa:   LinkWord(le16(b[12:14])),
		Uar:   le16(b[14:16]),
	}
}

// Bytes serializes the GFDNameEntry to its 16-byte on-disk form.
func (g GFDNameEntry) Bytes() []byte {
	b := make([]byte, EntrySize)
	putLE16(b[0:2], uint16(g.Ulnk))
	b[2], b[3] = g.Uprog, g.Uproj
	putLE16(b[4:6], g.Upass[0])
	putLE16(b[6:8], g.Upass[1])
	b[8], b[9] = g.Ustat, g.Uprot
	putLE16(b[10:12], g.Uacnt)
	putLE16(b[12:14], uint16(g.Uaa))
	putLE16(b[14:16], g.Uar)
	return b
}

// GFDAccountingEntry is a GFD accounting entry (RDS0).
type GFDAccountingEntry struct {
	Ulnk  LinkWord
	Mcpu  uint16
	Mcon  uint16
	Mkct  uint16
	Mdev  uint16
	Mmsb  uint16
	Mdper uint16
	UClus uint16
}

// GFDAccountingEntryFromBytes parses a 16-byte GFDAccountingEntry.
func GFDAccountingEntryFromBytes(b []byte) GFDAccountingEntry {
	return GFDAccountingEntry{
		Ulnk:  LinkWord(le16(b[0:2])),
		Mcpu:  le16(b[2:4]),
		Mcon:  le16(b[4:6]),
		Mkct:  le16(b[6:8]),
		Mdev:  le16(b[8:10]),
		Mmsb:  le16(b[10:12]),
		Mdper: le16(b[12:14]),
		UClus: le16(b[14:16]),
	}
}

// Bytes serializes the GFDAccountingEntry to its 16-byte on-disk form.
func (g GFDAccountingEntry) Bytes() []byte {
	b := make([]byte, EntrySize)
	putLE16(b[0:2], uint16(g.Ulnk))
	putLE16(b[2:4], g.Mcpu)
	putLE16(b[4:6], g.Mcon)
	putLE16(b[6:8], g.Mkct)
	putLE16(b[8:10], g.Mdev)
	putLE16(b[10:12], g.Mmsb)
	putLE16(b[12:14], g.Mdper)
	putLE16(b[14:16], g.UClus)
	return b
}

// UFDNameEntry links the file-name chain within a UFD (or, on RDS0, the
// file+account chain within the [1,1] MFD).
type UFDNameEntry struct {
	Ulnk  LinkWord
	Unam  [3]uint16 // name.ext, RAD-50
	Ustat byte
	Uprot byte
	Uacnt uint16
	Uaa   LinkWord
	Uar   LinkWord
}

// UFDNameEntryFromBytes parses a 16-byte UFDNameEntry.
func UFDNameEntryFromBytes(b []byte) UFDNameEntry {
	return UFDNameEntry{
		Ulnk:  LinkWord(le16(b[0:2])),
		Unam:  [3]uint16{le16(b[2:4]), le16(b[4:6]), le16(b[6:8])},
		Ustat: b[8],
		Uprot: b[9],
		Uacnt: le16(b[10:12]),
		Uaa:   LinkWord(le16(b[12:14])),
		Uar:   LinkWord(le16(b[14:16])),
	}
}

// Bytes serializes the UFDNameEntry to its 16-byte on-disk form.
func (u UFDNameEntry) Bytes() []byte {
	b := make([]byte, EntrySize)
	putLE16(b[0:2], uint16(u.Ulnk))
	putLE16(b[2:4], u.Unam[0])
	putLE16(b[4:6], u.Unam[1])
	putLE16(b[6:8], u.Unam[2])
	b[8], b[9] = u.Ustat, u.Uprot
	putLE16(b[10:12], u.Uacnt)
	putLE16(b[12:14], uint16(u.Uaa))
	putLE16(b[14:16], uint16(u.Uar))
	return b
}

// UFDAccountingEntry carries per-file bookkeeping: last access, creation
// timestamps, run-time-system name (or high-order size bits), cluster size.
type UFDAccountingEntry struct {
	Ulnk  LinkWord
	Udla  uint16
	Usiz  uint16
	Udc   uint16
	Utc   uint16
	Urts  [2]uint16
	UClus uint16
}

// UFDAccountingEntryFromBytes parses a 16-byte UFDAccountingEntry.
func UFDAccountingEntryFromBytes(b []byte) UFDAccountingEntry {
	return UFDAccountingEntry{
		Ulnk:  LinkWord(le16(b[0:2])),
		Udla:  le16(b[2:4]),
		Usiz:  le16(b[4:6]),
		Udc:   le16(b[6:8]),
		Utc:   le16(b[8:10]),
		Urts:  [2]uint16{le16(b[10:12]), le16(b[12:14])},
		UClus: le16(b[14:16]),
	}
}

// Bytes serializes the UFDAccountingEntry to its 16-byte on-disk form.
func (u UFDAccountingEntry) Bytes() []byte {
	b := make([]byte, EntrySize)
	putLE16(b[0:2], uint16(u.Ulnk))
	putLE16(b[2:4], u.Udla)
	putLE16(b[4:6], u.Usiz)
	putLE16(b[6:8], u.Udc)
	putLE16(b[8:10], u.Utc)
	putLE16(b[10:12], u.Urts[0])
	putLE16(b[12:14], u.Urts[1])
	putLE16(b[14:16], u.UClus)
	return b
}

// UFDRetrievalEntry chains up to 7 starting DCNs per entry describing where
// a file's clusters live on disk.
type UFDRetrievalEntry struct {
	Ulnk LinkWord
	UEnt [7]uint16
}

// UFDRetrievalEntryFromBytes parses a 16-byte UFDRetrievalEntry.
func UFDRetrievalEntryFromBytes(b []byte) UFDRetrievalEntry {
	var r UFDRetrievalEntry
	r.Ulnk = LinkWord(le16(b[0:2]))
	for i := 0; i < 7; i++ {
		r.UEnt[i] = le16(b[2+2*i : 4+2*i])
	}
	return r
}

// Bytes serializes the UFDRetrievalEntry to its 16-byte on-disk form.
func (r UFDRetrievalEntry) Bytes() []byte {
	b := make([]byte, EntrySize)
	putLE16(b[0:2], uint16(r.Ulnk))
	for i := 0; i < 7; i++ {
		putLE16(b[2+2*i:4+2*i], r.UEnt[i])
	}
	return b
}

// UFDRMSAttrs1 is the first RMS attributes blockette: file type/organization
// /record-attribute bits, record size, 32-bit size and EOF position.
type UFDRMSAttrs1 struct {
	Ulnk  LinkWord
	FaTyp uint16
	FaRsz uint16
	FaSiz RMSLong
	FaEOF RMSLong
	FaEOFB uint16
}

// UFDRMSAttrs1FromBytes parses a 16-byte UFDRMSAttrs1.
func UFDRMSAttrs1FromBytes(b []byte) UFDRMSAttrs1 {
	return UFDRMSAttrs1{
		Ulnk:   LinkWord(le16(b[0:2])),
		FaTyp:  le16(b[2:4]),
		FaRsz:  le16(b[4:6]),
		FaSiz:  RMSLongFromBytes(b[6:10]),
		FaEOF:  RMSLongFromBytes(b[10:14]),
		FaEOFB: le16(b[14:16]),
	}
}

// Bytes serializes the UFDRMSAttrs1 to its 16-byte on-disk form.
func (u UFDRMSAttrs1) Bytes() []byte {
	b := make([]byte, EntrySize)
	putLE16(b[0:2], uint16(u.Ulnk))
	putLE16(b[2:4], u.FaTyp)
	putLE16(b[4:6], u.FaRsz)
	copy(b[6:10], u.FaSiz.Bytes())
	copy(b[10:14], u.FaEOF.Bytes())
	putLE16(b[14:16], u.FaEOFB)
	return b
}

// UFDRMSAttrs2 is the second (optional) RMS attributes blockette: bucket
// size, header size, max record size, default extension amount.
type UFDRMSAttrs2 struct {
	Ulnk   LinkWord
	FaBkt  byte
	FaHsz  byte
	FaMsz  uint16
	FaExt  uint16
}

// UFDRMSAttrs2FromBytes parses a 16-byte UFDRMSAttrs2.
func UFDRMSAttrs2FromBytes(b []byte) UFDRMSAttrs2 {
	return UFDRMSAttrs2{
		Ulnk:  LinkWord(le16(b[0:2])),
		FaBkt: b[2],
		FaHsz: b[3],
		FaMsz: le16(b[4:6]),
		FaExt: le16(b[6:8]),
	}
}

// Bytes serializes the UFDRMSAttrs2 to its 16-byte on-disk form.
func (u UFDRMSAttrs2) Bytes() []byte {
	b := make([]byte, EntrySize)
	putLE16(b[0:2], uint16(u.Ulnk))
	b[2], b[3] = u.FaBkt, u.FaHsz
	putLE16(b[4:6], u.FaMsz)
	putLE16(b[6:8], u.FaExt)
	return b
}

// Uattr is the generic MFD/GFD attribute blockette header: a link to the
// next attribute, a type byte, and 13 bytes of type-specific data.
type Uattr struct {
	Ulnk  LinkWord
	Uatyp byte
	Uadat [13]byte
}

// UattrFromBytes parses a 16-byte Uattr.
func UattrFromBytes(b []byte) Uattr {
	var u Uattr
	u.Ulnk = LinkWord(le16(b[0:2]))
	u.Uatyp = b[2]
	copy(u.Uadat[:], b[3:16])
	return u
}

// Bytes serializes the Uattr to its 16-byte on-disk form.
func (u Uattr) Bytes() []byte {
	b := make([]byte, EntrySize)
	putLE16(b[0:2], uint16(u.Ulnk))
	b[2] = u.Uatyp
	copy(b[3:16], u.Uadat[:])
	return b
}

// QuotaAttr is the disk-quota attribute blockette (AaQuo).
type QuotaAttr struct {
	Ulnk  LinkWord
	DJB   byte // detached job quota
	LoLog uint16
	LoIn  uint16
	HiIn  byte
	HiLog byte
	CurHi byte
	CurLo uint16
}

// QuotaAttrFromBytes parses a QuotaAttr from a 16-byte blockette.
func QuotaAttrFromBytes(b []byte) QuotaAttr {
	return QuotaAttr{
		Ulnk:  LinkWord(le16(b[0:2])),
		DJB:   b[3],
		LoLog: le16(b[4:6]),
		LoIn:  le16(b[6:8]),
		HiIn:  b[8],
		HiLog: b[9],
		CurHi: b[11],
		CurLo: le16(b[14:16]),
	}
}

// PrivSize is the number of privilege-mask bytes in a PrivilegeAttr.
const PrivSize = 6

// PrivilegeAttr is the privilege-mask attribute blockette (AaPrv).
type PrivilegeAttr struct {
	Ulnk LinkWord
	Priv [PrivSize]byte
}

// PrivilegeAttrFromBytes parses a PrivilegeAttr from a 16-byte blockette.
func PrivilegeAttrFromBytes(b []byte) PrivilegeAttr {
	var p PrivilegeAttr
	p.Ulnk = LinkWord(le16(b[0:2]))
	copy(p.Priv[:], b[4:4+PrivSize])
	return p
}

// DateAttr is the date/time attribute blockette (AaDat).
type DateAttr struct {
	Ulnk LinkWord
	KB   byte
	LDA  uint16
	LTI  uint16
	PDA  uint16
	PTI  uint16
	CDA  uint16
	Exp  uint16
}

// DateAttrFromBytes parses a DateAttr from a 16-byte blockette.
func DateAttrFromBytes(b []byte) DateAttr {
	return DateAttr{
		Ulnk: LinkWord(le16(b[0:2])),
		KB:   b[3],
		LDA:  le16(b[4:6]),
		LTI:  le16(b[6:8]),
		PDA:  le16(b[8:10]),
		PTI:  le16(b[10:12]),
		CDA:  le16(b[12:14]),
		Exp:  le16(b[14:16]),
	}
}

// UserNameAttr is the user-name attribute blockette (AaNam, RDS1.2). The
// name occupies the 13 data bytes as a fixed-width ASCII field.
type UserNameAttr struct {
	Ulnk LinkWord
	Name [13]byte
}

// UserNameAttrFromBytes parses a UserNameAttr from a 16-byte blockette.
func UserNameAttrFromBytes(b []byte) UserNameAttr {
	var u UserNameAttr
	u.Ulnk = LinkWord(le16(b[0:2]))
	copy(u.Name[:], b[3:16])
	return u
}

// Quota2Attr is the second quota/date blockette (AaQt2, RDS1.2).
type Quota2Attr struct {
	Ulnk LinkWord
	Job  byte
	Rib  uint16
	Msg  uint16
	PwF  byte
	NDt  uint16
	NTi  uint16
}

// Quota2AttrFromBytes parses a Quota2Attr from a 16-byte blockette.
func Quota2AttrFromBytes(b []byte) Quota2Attr {
	return Quota2Attr{
		Ulnk: LinkWord(le16(b[0:2])),
		Job:  b[3],
		Rib:  le16(b[4:6]),
		Msg:  le16(b[6:8]),
		PwF:  b[11],
		NDt:  le16(b[12:14]),
		NTi:  le16(b[14:16]),
	}
}
