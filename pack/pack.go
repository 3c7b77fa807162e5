// Package pack is the façade over a mounted RSTS/E pack: opening and
// creating a container, mounting and unmounting its file structure, and
// looking up files and directories by filespec. Grounded on
// original_source/rstsio/pack.py's Pack class, which subclasses Disk and
// composes Dir/Satt; here Pack instead holds a cluster.Cache and narrow
// directory.PackAccessor/satt.PackAccessor views onto itself, the way
// go-diskfs's Disk composes a backend.Storage and a filesystem.FileSystem
// rather than inheriting from either.
package pack

import (
	"io"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rstspack/rstspack/backend"
	"github.com/rstspack/rstspack/backend/file"
	"github.com/rstspack/rstspack/cluster"
	"github.com/rstspack/rstspack/directory"
	"github.com/rstspack/rstspack/disk"
	"github.com/rstspack/rstspack/firqb"
	"github.com/rstspack/rstspack/ondisk"
	"github.com/rstspack/rstspack/rmsfile"
	"github.com/rstspack/rstspack/rstserr"
	"github.com/rstspack/rstspack/satt"
)

// PackLevel is the RSTS/E directory-structure revision level a pack is
// initialized at.
type PackLevel = int

const (
	LevelRDS0  PackLevel = ondisk.RDS0
	LevelRDS11 PackLevel = ondisk.RDS11
	LevelRDS12 PackLevel = ondisk.RDS12
)

// Pack is a mounted or mountable RSTS/E pack: the backing storage, its
// cluster cache, geometry, and (once mounted) its directory and
// allocation-bitmap state.
type Pack struct {
	storage  backend.Storage
	path     string
	cache    *cluster.Cache
	readOnly bool // the backend open mode; read-write mounts require this false

	mounted     bool
	mountedRO   bool
	totalBlocks int64
	usableSize  int64
	dec166      bool
	dcs         int
	pcs         int
	clurat      int

	label Label
	mfd   mfdAccessor
	satt  *satt.Satt

	snapshotCreatedAt time.Time // stamped by the most recent OpenCompressedSnapshot/ImportXZ, zero otherwise

	log *logrus.Entry
}

// mfdAccessor is the level-independent view pack needs onto whichever
// directory type sits at the top of a mounted pack: an RDS0 pack's MFD is
// literally the [1,1] Ufd, an RDS1 pack's is a Gfd.
type mfdAccessor interface {
	FindDirUfds(f *firqb.Firqb) iter.Seq2[*directory.Ufd, error]
}

// rds0Mfd adapts an RDS0 [1,1] Ufd (acting as MFD) to mfdAccessor.
type rds0Mfd struct{ *directory.Ufd }

func (m rds0Mfd) FindDirUfds(f *firqb.Firqb) iter.Seq2[*directory.Ufd, error] {
	return func(yield func(*directory.Ufd, error) bool) {
		for dm, err := range m.FindDir(f) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(dm.Dir, nil) {
				return
			}
		}
	}
}

// rds1Mfd adapts an RDS1 Gfd MFD to mfdAccessor, descending through its
// child GFDs to their UFDs.
type rds1Mfd struct{ *directory.Gfd }

func (m rds1Mfd) FindDirUfds(f *firqb.Firqb) iter.Seq2[*directory.Ufd, error] {
	return func(yield func(*directory.Ufd, error) bool) {
		for g, err := range m.FindChildGfds(f) {
			if err != nil {
				yield(nil, err)
				return
			}
			for u, err := range g.FindChildUfds(f) {
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(u, nil) {
					return
				}
			}
		}
	}
}

// Open opens an existing pack container at path, read-only unless
// readOnly is false, mirroring go-diskfs's diskfs.Open.
func Open(path string, readOnly bool) (*Pack, error) {
	st, backendErr := openBackend(path, readOnly)
	if backendErr != nil {
		return nil, backendErr
	}
	return newPack(st, readOnly, path)
}

// Create makes a new pack container at path of the given size (in blocks,
// or a historical drive name per disk.ParseSize) and opens it read-write,
// mirroring go-diskfs's diskfs.Create. The pack is not yet initialized
// with a file structure; call Initialize for that.
func Create(path string, sizeOrDevice string) (*Pack, error) {
	total, _, _, _, err := disk.ParseSize(sizeOrDevice)
	if err != nil {
		return nil, err
	}
	st, err := createBackend(path, total*ondisk.BlockSize)
	if err != nil {
		return nil, err
	}
	return newPack(st, false, path)
}

func newPack(st backend.Storage, readOnly bool, path string) (*Pack, error) {
	info, err := st.Stat()
	if err != nil {
		return nil, rstserr.New(rstserr.Diskio, "stat %s: %v", path, err)
	}
	totalBlocks := info.Size() / ondisk.BlockSize
	usable, dec166, dcs, err := disk.ResolveGeometry(totalBlocks)
	if err != nil {
		return nil, err
	}
	p := &Pack{
		storage:     st,
		path:        path,
		readOnly:    readOnly,
		totalBlocks: totalBlocks,
		usableSize:  usable,
		dec166:      dec166,
		dcs:         dcs,
		log:         logrus.WithField("pack", path),
	}
	p.cache = cluster.NewCache(st, dcs, cluster.DefaultCacheSize)
	return p, nil
}

// Mount reads the pack label and directory structure into memory. The
// pack is mounted read-only unless ronly is false; mounting read-write a
// pack whose on-disk label carries the read-only flag fails unless
// override is true, matching pack.py's mount().
func (p *Pack) Mount(ronly bool, override bool) error {
	if p.mounted {
		return nil
	}
	if p.readOnly && !ronly {
		return rstserr.New(rstserr.Internal, "attempt to mount read/write on a read-only-opened pack")
	}
	lc, err := p.cache.Get(1, 1)
	if err != nil {
		return err
	}
	lbl := ondisk.PackLabelFromBytes(lc.Data[0:28])
	if int(lbl.PPCS) < p.dcs || !validClusiz(int(lbl.PPCS)) {
		return rstserr.New(rstserr.Corrupt, "illegal pack cluster size %d", lbl.PPCS)
	}
	if lbl.PStat&ondisk.PstatRO != 0 {
		if !ronly && !override {
			return rstserr.New(rstserr.Ropack, "pack label marks this pack read-only")
		}
	}
	p.label = Label{PackLabel: lbl, VolumeUUID: uuid.New()}
	if !ronly {
		if err := file.SetContainerLabel(p.path, p.label.PackID()); err != nil {
			p.log.WithError(err).Debug("could not set container label xattr")
		}
	}
	p.clurat = int(lbl.PPCS) / p.dcs
	if p.clurat < 1 || int(lbl.PPCS)%p.dcs != 0 {
		return rstserr.New(rstserr.Badclu, "pack cluster size %d is not a multiple of device cluster size %d", lbl.PPCS, p.dcs)
	}
	p.pcs = int(lbl.PPCS)

	switch int(lbl.PLvl) {
	case ondisk.RDS0:
		mfd, err := directory.OpenUfd(p, 1, directory.KindMFD)
		if err != nil {
			return err
		}
		p.mfd = rds0Mfd{mfd}
	case ondisk.RDS11, ondisk.RDS12:
		mfd, err := directory.OpenGfd(p, int(lbl.MDCN), directory.KindMFD)
		if err != nil {
			return err
		}
		p.mfd = rds1Mfd{mfd}
	default:
		return rstserr.New(rstserr.Corrupt, "unrecognized pack revision level %#o", lbl.PLvl)
	}

	sattFd, err := p.findSattUFD()
	if err != nil {
		return err
	}
	s, err := satt.Load(p, sattFd.clusiz, sattFd.dcns)
	if err != nil {
		return err
	}
	p.satt = s

	if !ronly {
		p.mounted = true
	}
	p.mountedRO = ronly
	p.log.WithFields(logrus.Fields{
		"pack_id":    p.label.PackID(),
		"session_id": p.label.VolumeUUID,
		"read_only":  ronly,
	}).Info("mounted pack")
	return nil
}

// Umount flushes and discards the in-memory mount state, matching
// pack.py's umount(): a no-op unless the pack was mounted read-write.
func (p *Pack) Umount() error {
	if !p.mounted {
		return nil
	}
	if err := p.cache.FlushAll(); err != nil {
		return err
	}
	p.log.WithField("session_id", p.label.VolumeUUID).Info("unmounted pack")
	p.mounted = false
	p.mfd = nil
	p.satt = nil
	return nil
}

// Initialize validates a pack's label parameters and writes a fresh pack
// label at DCN 1, preparing a freshly created container for a mount that
// will build its directory structure. Only the label's cluster is replaced
// in the cluster cache; other clusters already cached stay cached.
// Grounded on pack.py's initialize(): the source itself stops at
// validating packid/pcs/plevel and writing the label, relying on a
// higher-level tool to lay down the MFD/UFD/satt.sys
// structure afterward; this mirrors that scope rather than inventing a
// from-scratch directory formatter the original doesn't have either.
func (p *Pack) Initialize(packID string, override bool, pcs int, level PackLevel, public bool) error {
	if p.mounted {
		return rstserr.New(rstserr.Internal, "attempt to initialize a mounted pack")
	}
	if err := p.Mount(true, true); err == nil {
		_ = p.Umount()
		if !override {
			return rstserr.New(rstserr.Internal, "attempt to reinitialize a pack without override")
		}
	}
	if pcs < p.dcs || !validClusiz(pcs) {
		return rstserr.New(rstserr.Badclu, "illegal pack cluster size %d", pcs)
	}
	if len(packID) == 0 || len(packID) > 6 {
		return rstserr.New(rstserr.Badfn, "invalid pack label %q", packID)
	}
	id0, err := ondisk.Rad50(packID[:min(3, len(packID))])
	if err != nil {
		return err
	}
	var tail string
	if len(packID) > 3 {
		tail = packID[3:]
	}
	id1, err := ondisk.Rad50(tail)
	if err != nil {
		return err
	}
	switch level {
	case LevelRDS0, LevelRDS11, LevelRDS12:
	default:
		return rstserr.New(rstserr.Internal, "invalid pack revision level %d", level)
	}

	lbl := ondisk.PackLabel{
		PLvl:  uint16(level),
		PPCS:  uint16(pcs),
		PckID: [2]uint16{id0, id1},
	}
	if !public {
		lbl.PStat |= ondisk.PstatPri
	}
	p.pcs = pcs
	p.clurat = pcs / p.dcs

	p.cache.Invalidate(1)
	lc := p.cache.New(1, 1)
	copy(lc.Data, lbl.Bytes())
	lc.MarkDirty()
	if err := p.cache.Flush(1); err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{
		"pack_id": packID,
		"pcs":     pcs,
		"level":   level,
	}).Info("initialized pack label")
	return nil
}

func validClusiz(c int) bool {
	switch c {
	case 1, 2, 4, 8, 16, 32, 64:
		return true
	}
	return false
}

// sattUFD describes where satt.sys lives: its cluster size and the
// sequence of DCNs backing it, read off its retrieval chain the same way
// any other file's extents would be.
type sattUFD struct {
	clusiz int
	dcns   []int
}

// findSattUFD locates [0,1]SATT.SYS (at every revision level) and reads
// its retrieval pointers, without going through rmsfile (satt.sys
// predates the directory/allocation machinery that Filedata depends on).
func (p *Pack) findSattUFD() (*sattUFD, error) {
	f, err := firqb.Parse("SATT.SYS")
	if err != nil {
		return nil, err
	}
	ufd, err := p.findUFDFor(0, 1)
	if err != nil {
		return nil, err
	}
	for m, err := range ufd.FindFiles(f) {
		if err != nil {
			return nil, err
		}
		if m.Entry.Uar.IsNull() {
			return nil, rstserr.New(rstserr.Corrupt, "satt.sys has no retrieval entry")
		}
		var dcns []int
		link := m.Entry.Uar
		for !link.IsNull() {
			data, err := ufd.Map(link)
			if err != nil {
				return nil, err
			}
			re := ondisk.UFDRetrievalEntryFromBytes(data)
			for _, d := range re.UEnt {
				if d != 0 {
					dcns = append(dcns, int(d))
				}
			}
			link = re.Ulnk
		}
		return &sattUFD{clusiz: p.pcs, dcns: dcns}, nil
	}
	return nil, rstserr.New(rstserr.Corrupt, "no satt.sys entry found in [0,1]")
}

// findUFDFor opens the UFD for the given project/programmer pair directly
// (not via a wildcarded Lookup), used for pack-internal bookkeeping files.
func (p *Pack) findUFDFor(proj, prog int) (*directory.Ufd, error) {
	f := &firqb.Firqb{Proj: &proj, Prog: &prog}
	for u, err := range p.mfd.FindDirUfds(f) {
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	return nil, rstserr.New(rstserr.Nosuch, "no such account [%d,%d]", proj, prog)
}

// PCS returns the pack cluster size in blocks.
func (p *Pack) PCS() int { return p.pcs }

// ReadOnly reports whether the pack was mounted read-only, so rmsfile can
// reject write/append opens the way Filedata.open does in rstsfile.py.
func (p *Pack) ReadOnly() bool { return p.readOnly || p.mountedRO }

// DCS returns the device cluster size in blocks.
func (p *Pack) DCS() int { return p.dcs }

// SnapshotCreatedAt returns the created-at timestamp recorded in the header
// of the last snapshot stream restored via OpenCompressedSnapshot or
// ImportXZ. It is the zero Time if no snapshot has been restored into this
// Pack.
func (p *Pack) SnapshotCreatedAt() time.Time { return p.snapshotCreatedAt }

// PackSize returns the pack's usable size in blocks.
func (p *Pack) PackSize() int { return int(p.usableSize) }

// ClusterRatio returns the ratio of pack cluster size to device cluster
// size (always an integer; enforced at Mount).
func (p *Pack) ClusterRatio() int { return p.clurat }

// PCNToDCN converts a pack cluster number to a device cluster number,
// matching pack.py's pcntodcn: pcn*clurat + 1. DCN 0 lies outside the pack
// cluster numbering, so PCN 0, which holds the pack label, is DCN 1.
func (p *Pack) PCNToDCN(pcn int) int {
	return pcn*p.clurat + 1
}

// DCNToPCN converts a device cluster number to a pack cluster number,
// optionally checking that dcn falls on a pack-cluster boundary.
func (p *Pack) DCNToPCN(dcn int, check bool) (int, error) {
	rel := dcn - 1
	pcn := rel / p.clurat
	if check && rel%p.clurat != 0 {
		return 0, rstserr.New(rstserr.Corrupt, "misaligned pack cluster: %d", dcn)
	}
	return pcn, nil
}

// ReadCluster satisfies directory.PackAccessor and satt.PackAccessor.
func (p *Pack) ReadCluster(dcn, clusiz int) (*cluster.Cluster, error) {
	return p.cache.Get(dcn, clusiz)
}

// NewCluster satisfies satt.PackAccessor.
func (p *Pack) NewCluster(dcn, clusiz int) *cluster.Cluster {
	return p.cache.New(dcn, clusiz)
}

// Invalidate satisfies directory.PackAccessor and satt.PackAccessor.
func (p *Pack) Invalidate(dcn int) {
	p.cache.Invalidate(dcn)
}

// GetClu allocates count free clusters of clusiz blocks, satisfying
// directory.PackAccessor; it forwards to the pack's Satt, which must
// already be loaded (true for any mounted pack).
func (p *Pack) GetClu(clusiz, count int, startpos *int) ([]*cluster.Cluster, error) {
	if p.satt == nil {
		return nil, rstserr.New(rstserr.Internal, "GetClu called before the pack's allocation bitmap was loaded")
	}
	p.log.WithFields(logrus.Fields{"clusiz": clusiz, "count": count}).Debug("allocating clusters")
	return p.satt.GetClu(clusiz, count, startpos)
}

// RetClu frees the cluster of size clusiz starting at device cluster dcn.
func (p *Pack) RetClu(dcn, clusiz int) error {
	if p.satt == nil {
		return rstserr.New(rstserr.Internal, "RetClu called before the pack's allocation bitmap was loaded")
	}
	return p.satt.RetClu(dcn, clusiz)
}

// Label returns the pack's decoded label, valid once mounted.
func (p *Pack) Label() Label { return p.label }

// Mounted reports whether the pack is currently mounted read-write.
func (p *Pack) Mounted() bool { return p.mounted }

// findUFD resolves a firqb's [proj,prog] to a UFD, honoring the RDS0 rule
// that every project/programmer pair lives directly off the [1,1] MFD.
func (p *Pack) findUFD(f *firqb.Firqb) (*directory.Ufd, error) {
	for u, err := range p.mfd.FindDirUfds(f) {
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	return nil, rstserr.New(rstserr.Nosuch, "no such account")
}

// FindUFDs iterates the UFDs matching a (possibly wildcarded) project and
// programmer number, mirroring pack.py's findufds: one level of descent on
// RDS0 (straight off the MFD), two on RDS1 (MFD->GFD->UFD). Each hit is
// wrapped as a directory Filedata so callers get the same type FindUFDs
// and Lookup both return.
func (p *Pack) FindUFDs(spec string) iter.Seq2[*rmsfile.Filedata, error] {
	f, err := firqb.Parse(spec)
	if err != nil {
		return func(yield func(*rmsfile.Filedata, error) bool) { yield(nil, err) }
	}
	if f.Proj == nil || f.Prog == nil {
		return func(yield func(*rmsfile.Filedata, error) bool) {
			yield(nil, rstserr.New(rstserr.Badfn, "project and programmer number are required"))
		}
	}
	return func(yield func(*rmsfile.Filedata, error) bool) {
		for u, err := range p.mfd.FindDirUfds(f) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(rmsfile.NewDir(u), nil) {
				return
			}
		}
	}
}

// Lookup resolves a filespec to its Filedata, raising rstserr.Nosuch if
// nothing matches, mirroring pack.py's lookup(). dirOK permits a filespec
// with no file name, which resolves to the first UFD matching its project
// and programmer numbers (an unset number matches any); an MFD or GFD is
// never returned.
func (p *Pack) Lookup(spec string, dirOK bool) (*rmsfile.Filedata, error) {
	f, err := firqb.Parse(spec)
	if err != nil {
		return nil, err
	}
	if f.Wild != 0 {
		return nil, rstserr.New(rstserr.Badfn, "filespec must not be wild")
	}
	nameEmpty := f.Name == nil || *f.Name == [2]uint16{}
	if nameEmpty {
		if !dirOK {
			return nil, rstserr.New(rstserr.Nosuch, "no file name given")
		}
		u, err := p.findUFD(f)
		if err != nil {
			return nil, err
		}
		return rmsfile.NewDir(u), nil
	}
	u, err := p.findUFD(f)
	if err != nil {
		return nil, err
	}
	for m, err := range u.FindFiles(f) {
		if err != nil {
			return nil, err
		}
		return rmsfile.Open(u, m)
	}
	return nil, rstserr.New(rstserr.Nosuch, "no such file")
}

// Open resolves spec to a Filedata and opens it in the given mode,
// mirroring pack.py's open() convenience wrapper around lookup()+Filedata
// .open(). A directory can only be opened for plain binary reading.
func (p *Pack) Open(spec string, mode string, encoding, errors string) (io.ReadWriteSeeker, error) {
	fd, err := p.Lookup(spec, true)
	if err != nil {
		return nil, err
	}
	return fd.Open(mode, encoding, errors)
}

// WriteTo copies the pack's entire container, block for block, to w.
// Grounded on disk.Disk's ReadPartitionContents/WritePartitionContents
// pair (github.com/diskfs/go-diskfs/disk), which stream a whole
// partition's raw bytes to/from an io.Writer/io.Reader; a RSTS/E pack has
// no partition table, so WriteTo/ReadFrom apply that same whole-device
// streaming shape to the entire container instead of one partition. It
// flushes dirty cached clusters first, then reads straight off the backing
// storage rather than through the cluster cache, so an unmounted pack can
// still be duplicated.
func (p *Pack) WriteTo(w io.Writer) (int64, error) {
	if err := p.cache.FlushAll(); err != nil {
		return 0, err
	}
	buf := make([]byte, 1<<20)
	var total int64
	var off int64
	for {
		n, rerr := p.storage.ReadAt(buf, off)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			total += int64(wn)
			off += int64(n)
			if werr != nil {
				return total, werr
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// ReadFrom overwrites the pack's entire container with the bytes read
// from r, the write-side sibling of WriteTo.
func (p *Pack) ReadFrom(r io.Reader) (int64, error) {
	w, err := p.storage.Writable()
	if err != nil {
		return 0, rstserr.New(rstserr.Ropack, "pack is not writable: %v", err)
	}
	buf := make([]byte, 1<<20)
	var total int64
	var off int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := w.WriteAt(buf[:n], off); werr != nil {
				return total, werr
			}
			total += int64(n)
			off += int64(n)
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}
