// Package cluster implements block- and cluster-addressed I/O over a
// backend.Storage, with a write-back cache keyed by device cluster number
// (DCN), grounded on github.com/diskfs/go-diskfs's backend.Storage
// ReadAt/WriteAt idiom and on perkeep's pkg/lru container/list LRU (the
// eviction policy here additionally flushes dirty clusters before
// dropping them, since disk.py's cache is write-back rather than
// write-through).
package cluster

import (
	"fmt"
	"io"

	"github.com/rstspack/rstspack/backend"
	"github.com/rstspack/rstspack/ondisk"
	"github.com/rstspack/rstspack/rstserr"
)

// Cluster is a run of clusiz contiguous blocks (clusiz * ondisk.BlockSize
// bytes, for whatever clusiz it was read or allocated at), addressed by its
// device cluster number.
type Cluster struct {
	DCN   int
	Data  []byte
	dirty bool
}

// Dirty reports whether the cluster has unflushed writes.
func (c *Cluster) Dirty() bool { return c.dirty }

// MarkDirty flags the cluster as modified.
func (c *Cluster) MarkDirty() { c.dirty = true }

// Block returns the n'th block (0-based, within the cluster) as a slice
// aliasing the cluster's backing array.
func (c *Cluster) Block(n int) ([]byte, error) {
	blocksPerCluster := len(c.Data) / ondisk.BlockSize
	if n < 0 || n >= blocksPerCluster {
		return nil, rstserr.New(rstserr.Badblk, "block index %d out of range for cluster with %d blocks", n, blocksPerCluster)
	}
	off := n * ondisk.BlockSize
	return c.Data[off : off+ondisk.BlockSize], nil
}

// Entry returns the 16-byte directory entry at the given block-in-cluster
// and byte-within-block offset.
func (c *Cluster) Entry(blockOff, byteOff int) ([]byte, error) {
	b, err := c.Block(blockOff)
	if err != nil {
		return nil, err
	}
	if byteOff < 0 || byteOff+ondisk.EntrySize > len(b) {
		return nil, rstserr.New(rstserr.Badlnk, "entry offset %#o out of range", byteOff)
	}
	return b[byteOff : byteOff+ondisk.EntrySize], nil
}

func readAtFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == io.EOF {
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		return nil
	}
	return fmt.Errorf("short read at %d: got %d of %d bytes: %w", off, n, len(buf), err)
}

// ReadCluster reads clusiz blocks starting at device cluster number dcn
// directly from storage, bypassing the cache. dcs is the pack's device
// cluster size in blocks: disk.py's _seekdcn seeks to block dcn*self.dcs,
// since a DCN addresses a device cluster, not a raw block.
func ReadCluster(s backend.Storage, dcn, clusiz, dcs int) (*Cluster, error) {
	data := make([]byte, clusiz*ondisk.BlockSize)
	if err := readAtFull(s, data, int64(dcn)*int64(dcs)*ondisk.BlockSize); err != nil {
		return nil, rstserr.New(rstserr.Diskio, "reading cluster %d: %v", dcn, err)
	}
	return &Cluster{DCN: dcn, Data: data}, nil
}

// WriteCluster writes a cluster's data back to storage at its DCN.
func WriteCluster(s backend.Storage, c *Cluster, dcs int) error {
	w, err := s.Writable()
	if err != nil {
		return rstserr.New(rstserr.Ropack, "pack is not writable: %v", err)
	}
	if _, err := w.WriteAt(c.Data, int64(c.DCN)*int64(dcs)*ondisk.BlockSize); err != nil {
		return rstserr.New(rstserr.Diskio, "writing cluster %d: %v", c.DCN, err)
	}
	c.dirty = false
	return nil
}
