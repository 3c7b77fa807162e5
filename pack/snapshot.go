package pack

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/pierrec/lz4"
	"github.com/ulikunitz/xz"

	"github.com/rstspack/rstspack/ondisk"
	"github.com/rstspack/rstspack/rstserr"
	"github.com/rstspack/rstspack/util/timestamp"
)

// SnapshotCodec wraps a compression scheme around a snapshot stream, so
// CreateCompressedSnapshot/OpenCompressedSnapshot and ExportXZ/ImportXZ can
// share one framing format across multiple codecs: lz4 for fast streaming
// archival, xz for higher-ratio cold storage.
type SnapshotCodec interface {
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.Reader, error)
}

type lz4Codec struct{}

func (lz4Codec) NewWriter(w io.Writer) (io.WriteCloser, error) { return lz4.NewWriter(w), nil }
func (lz4Codec) NewReader(r io.Reader) (io.Reader, error)      { return lz4.NewReader(r), nil }

type xzCodec struct{}

func (xzCodec) NewWriter(w io.Writer) (io.WriteCloser, error) { return xz.NewWriter(w) }
func (xzCodec) NewReader(r io.Reader) (io.Reader, error)      { return xz.NewReader(r) }

// snapshotMagic identifies an rstspack snapshot stream.
const snapshotMagic = "RSTSNAP1"

// snapshotHeaderSize is magic(8) + pcs(4) + cluster count(4) + created-at
// unix seconds(8).
const snapshotHeaderSize = 24

// writeSnapshot writes every allocated pack cluster through codec as a
// sequence of (pcn, cluster-bytes) records, the shared body of
// CreateCompressedSnapshot and ExportXZ. Only the live portion of the pack
// (per satt.AllocatedPCNs) is captured, which matters for a mostly-empty
// pack on a large drive.
func (p *Pack) writeSnapshot(w io.Writer, codec SnapshotCodec) error {
	if p.satt == nil {
		return rstserr.New(rstserr.Internal, "snapshot requires a mounted pack")
	}
	pcns, err := p.satt.AllocatedPCNs()
	if err != nil {
		return err
	}
	cw, err := codec.NewWriter(w)
	if err != nil {
		return err
	}

	hdr := make([]byte, snapshotHeaderSize)
	copy(hdr, snapshotMagic)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(p.pcs))
	binary.BigEndian.PutUint32(hdr[12:16], uint32(len(pcns)))
	// Stamped via util/timestamp so snapshots taken under SOURCE_DATE_EPOCH
	// (reproducible builds/CI) get a deterministic created-at instead of
	// wall-clock time.
	binary.BigEndian.PutUint64(hdr[16:24], uint64(timestamp.GetTime().Unix()))
	if _, err := cw.Write(hdr); err != nil {
		cw.Close()
		return err
	}

	rec := make([]byte, 4)
	for _, pcn := range pcns {
		dcn := p.PCNToDCN(pcn)
		c, err := p.ReadCluster(dcn, p.pcs)
		if err != nil {
			cw.Close()
			return err
		}
		binary.BigEndian.PutUint32(rec, uint32(pcn))
		if _, err := cw.Write(rec); err != nil {
			cw.Close()
			return err
		}
		if _, err := cw.Write(c.Data); err != nil {
			cw.Close()
			return err
		}
	}
	return cw.Close()
}

// readSnapshot restores every (pcn, cluster-bytes) record from a stream
// produced by writeSnapshot, writing each cluster straight to the pack's
// backing storage. It bypasses the cluster cache since a snapshot is
// typically imported into a freshly created, not-yet-mounted pack.
func (p *Pack) readSnapshot(r io.Reader, codec SnapshotCodec) error {
	cr, err := codec.NewReader(r)
	if err != nil {
		return err
	}
	hdr := make([]byte, snapshotHeaderSize)
	if _, err := io.ReadFull(cr, hdr); err != nil {
		return err
	}
	if string(hdr[:8]) != snapshotMagic {
		return rstserr.New(rstserr.Corrupt, "not an rstspack snapshot stream")
	}
	pcs := int(binary.BigEndian.Uint32(hdr[8:12]))
	count := int(binary.BigEndian.Uint32(hdr[12:16]))
	p.snapshotCreatedAt = time.Unix(int64(binary.BigEndian.Uint64(hdr[16:24])), 0).UTC()

	w, err := p.storage.Writable()
	if err != nil {
		return rstserr.New(rstserr.Ropack, "pack is not writable: %v", err)
	}

	rec := make([]byte, 4)
	buf := make([]byte, pcs*ondisk.BlockSize)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(cr, rec); err != nil {
			return err
		}
		pcn := int(binary.BigEndian.Uint32(rec))
		if _, err := io.ReadFull(cr, buf); err != nil {
			return err
		}
		dcn := p.PCNToDCN(pcn)
		off := int64(dcn) * int64(p.dcs) * ondisk.BlockSize
		if _, err := w.WriteAt(buf, off); err != nil {
			return err
		}
	}
	return nil
}

// CreateCompressedSnapshot writes every allocated cluster of the pack to w
// as an LZ4-framed archival stream. This is an additional convenience
// beyond WriteTo's whole-container copy, not a spec-mandated operation.
func (p *Pack) CreateCompressedSnapshot(w io.Writer) error {
	return p.writeSnapshot(w, lz4Codec{})
}

// OpenCompressedSnapshot restores a pack's allocated clusters from a
// stream written by CreateCompressedSnapshot. The pack's backing storage
// must already exist at full size (e.g. via Create) before calling this.
func (p *Pack) OpenCompressedSnapshot(r io.Reader) error {
	return p.readSnapshot(r, lz4Codec{})
}

// ExportXZ is CreateCompressedSnapshot's higher-ratio sibling, for cold
// archival where restore speed matters less than storage cost.
func (p *Pack) ExportXZ(w io.Writer) error {
	return p.writeSnapshot(w, xzCodec{})
}

// ImportXZ is OpenCompressedSnapshot's xz-codec sibling.
func (p *Pack) ImportXZ(r io.Reader) error {
	return p.readSnapshot(r, xzCodec{})
}
