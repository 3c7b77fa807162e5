package cluster

import (
	"container/list"
	"sync"

	"github.com/rstspack/rstspack/backend"
	"github.com/rstspack/rstspack/rstserr"
)

// DefaultCacheSize is the default number of clusters the cache holds before
// evicting the least-recently-used entry, mirroring the modest default
// buffer count the source's disk cache used.
const DefaultCacheSize = 64

// Cache is a write-back cluster cache over a backend.Storage, keyed by
// device cluster number (DCN). Unlike disk.py's cache, which is
// constructed for one fixed device cluster size, Get/New take clusiz per
// call: a directory's first cluster is read at size 1 to discover its real
// cluster size, then re-read at that size, and SATT/file clusters vary
// between pack and directory cluster sizes on the same pack. It is a
// fatal Internal error to ask for a DCN already cached at a different
// size — the caller must Invalidate first, matching the source's
// "block cache conflict" check in _readinto.
type Cache struct {
	storage backend.Storage
	dcs     int
	max     int

	mu    sync.Mutex
	ll    *list.List
	index map[int]*list.Element
}

// NewCache builds a Cache over storage, holding up to maxEntries clusters.
// dcs is the pack's device cluster size in blocks, used to translate a DCN
// into a raw block offset (see ReadCluster).
func NewCache(storage backend.Storage, dcs, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	if dcs <= 0 {
		dcs = 1
	}
	return &Cache{
		storage: storage,
		dcs:     dcs,
		max:     maxEntries,
		ll:      list.New(),
		index:   make(map[int]*list.Element),
	}
}

// Get returns the cluster at dcn sized clusiz blocks, reading it from
// storage on a cache miss.
func (c *Cache) Get(dcn, clusiz int) (*Cluster, error) {
	c.mu.Lock()
	if ele, ok := c.index[dcn]; ok {
		cl := ele.Value.(*Cluster)
		c.mu.Unlock()
		if len(cl.Data) != clusiz*512 {
			return nil, rstserr.New(rstserr.Internal, "cache conflict: dcn %d already cached at a different cluster size", dcn)
		}
		c.mu.Lock()
		c.ll.MoveToFront(ele)
		c.mu.Unlock()
		return cl, nil
	}
	c.mu.Unlock()

	cl, err := ReadCluster(c.storage, dcn, clusiz, c.dcs)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.index[dcn]; ok {
		c.ll.MoveToFront(ele)
		return ele.Value.(*Cluster), nil
	}
	ele := c.ll.PushFront(cl)
	c.index[dcn] = ele
	if c.ll.Len() > c.max {
		if err := c.evictOldestLocked(); err != nil {
			return nil, err
		}
	}
	return cl, nil
}

// New registers a freshly allocated, all-zero cluster at dcn in the cache
// without reading it from storage, returning it dirty.
func (c *Cache) New(dcn, clusiz int) *Cluster {
	cl := &Cluster{DCN: dcn, Data: make([]byte, clusiz*512), dirty: true}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.index[dcn]; ok {
		c.ll.Remove(ele)
	}
	ele := c.ll.PushFront(cl)
	c.index[dcn] = ele
	if c.ll.Len() > c.max {
		// A failed write-back leaves the oldest cluster cached, so nothing
		// is lost; the cache stays over its bound until an eviction succeeds.
		_ = c.evictOldestLocked()
	}
	return cl
}

// Invalidate drops dcn from the cache without writing it back, for use
// after a cluster has been freed and its contents are no longer meaningful,
// or before re-reading it at a different cluster size.
func (c *Cache) Invalidate(dcn int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.index[dcn]; ok {
		c.ll.Remove(ele)
		delete(c.index, dcn)
	}
}

// Flush writes dcn back to storage if dirty, but keeps it cached.
func (c *Cache) Flush(dcn int) error {
	c.mu.Lock()
	ele, ok := c.index[dcn]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	cl := ele.Value.(*Cluster)
	if !cl.Dirty() {
		return nil
	}
	return WriteCluster(c.storage, cl, c.dcs)
}

// FlushAll writes every dirty cluster back to storage.
func (c *Cache) FlushAll() error {
	c.mu.Lock()
	dirty := make([]*Cluster, 0, c.ll.Len())
	for ele := c.ll.Front(); ele != nil; ele = ele.Next() {
		cl := ele.Value.(*Cluster)
		if cl.Dirty() {
			dirty = append(dirty, cl)
		}
	}
	c.mu.Unlock()
	for _, cl := range dirty {
		if err := WriteCluster(c.storage, cl, c.dcs); err != nil {
			return err
		}
	}
	return nil
}

// note: must hold c.mu
func (c *Cache) evictOldestLocked() error {
	ele := c.ll.Back()
	if ele == nil {
		return nil
	}
	cl := ele.Value.(*Cluster)
	if cl.Dirty() {
		if err := WriteCluster(c.storage, cl, c.dcs); err != nil {
			return err
		}
	}
	c.ll.Remove(ele)
	delete(c.index, cl.DCN)
	return nil
}
