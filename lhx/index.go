// Package lhx implements the linear-hash index layer: a two-file bucket
// index (a primary file holding buckets 0..N-1 contiguously, and an
// overflow file whose page 0 is the index metadata and whose remaining
// pages are chained overflow buckets) offering point and range scans over
// typed keys without ever rehashing the whole table at once.
package lhx

import (
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arkdb/pagestore/errs"
	"github.com/arkdb/pagestore/kv"
	"github.com/arkdb/pagestore/pf"
	"github.com/arkdb/pagestore/pfconfig"
	"github.com/arkdb/pagestore/rf"
)

func primaryPath(dataDir, name string) string { return filepath.Join(dataDir, name+".pp") }
func overflowPath(dataDir, name string) string { return filepath.Join(dataDir, name+".op") }

// Index is an open linear-hash index: the primary and overflow file
// handles plus a cached in-memory copy of the metadata page, flushed
// explicitly at the end of every mutating operation.
type Index struct {
	name     string
	keyType  kv.Kind
	pageSize int
	primary  *pf.File
	overflow *pf.File
	meta     metadata
	log      *zap.SugaredLogger
}

// Create creates a new linear-hash index named name with the given key
// type and initial bucket count, which must be a power of two.
func Create(dataDir, name string, keyType kv.Kind, initialBuckets uint32, cfg *pfconfig.Config) error {
	if !isPowerOfTwo(initialBuckets) {
		return errs.NewIndexError(nil, errs.CodeInvalidInitialBucketCount, "initial bucket count must be a power of two")
	}
	if err := pf.Create(primaryPath(dataDir, name), cfg.Logger); err != nil {
		return err
	}
	if err := pf.Create(overflowPath(dataDir, name), cfg.Logger); err != nil {
		return err
	}
	ovf, err := pf.Open(overflowPath(dataDir, name), cfg.PageSize, cfg.Logger)
	if err != nil {
		return err
	}
	defer ovf.Close()

	m := metadata{
		primaryPageCount:   initialBuckets,
		bucketCount:        initialBuckets,
		initialBucketCount: initialBuckets,
	}
	buf := make([]byte, cfg.PageSize)
	encodeMetadata(buf, m)
	if _, err := ovf.AppendPage(buf); err != nil {
		return err
	}
	if cfg.Logger != nil {
		cfg.Logger.Infow("index created", "name", name, "initial_buckets", initialBuckets, "key_type", keyType.String())
	}
	return nil
}

// Destroy removes both files backing a linear-hash index.
func Destroy(dataDir, name string) error {
	err1 := pf.Destroy(primaryPath(dataDir, name))
	err2 := pf.Destroy(overflowPath(dataDir, name))
	return multierr.Combine(err1, err2)
}

// Open acquires a handle to an existing index and loads its metadata.
func Open(dataDir, name string, keyType kv.Kind, cfg *pfconfig.Config) (*Index, error) {
	primary, err := pf.Open(primaryPath(dataDir, name), cfg.PageSize, cfg.Logger)
	if err != nil {
		return nil, err
	}
	overflow, err := pf.Open(overflowPath(dataDir, name), cfg.PageSize, cfg.Logger)
	if err != nil {
		primary.Close()
		return nil, err
	}
	buf := make([]byte, cfg.PageSize)
	if err := overflow.ReadPage(0, buf); err != nil {
		primary.Close()
		overflow.Close()
		return nil, err
	}
	idx := &Index{
		name:     name,
		keyType:  keyType,
		pageSize: cfg.PageSize,
		primary:  primary,
		overflow: overflow,
		meta:     decodeMetadata(buf),
		log:      cfg.Logger,
	}
	if idx.log != nil {
		idx.log = idx.log.With("index", name)
	}
	return idx, nil
}

// Close releases both file handles, combining any close errors.
func (x *Index) Close() error {
	return multierr.Combine(x.primary.Close(), x.overflow.Close())
}

// Hash returns the key's hash code as used for bucket addressing.
func (x *Index) Hash(key kv.KeyValue) uint32 { return key.HashCode() }

// NumPrimaryPages reports the metadata's current primary-page count.
func (x *Index) NumPrimaryPages() uint32 { return x.meta.primaryPageCount }

// NumAllPages reports primary pages plus overflow pages ever allocated
// (deleted overflow pages are never physically reclaimed, so they are
// still counted here).
func (x *Index) NumAllPages() uint32 { return x.meta.primaryPageCount + x.meta.overflowPageCount }

func (x *Index) flushMeta() error {
	buf := make([]byte, x.pageSize)
	encodeMetadata(buf, x.meta)
	return x.overflow.WritePage(0, buf)
}

// growToFit appends initialized empty primary pages up to the metadata's
// primary_page_count, making up for an index whose primary file fell
// behind its metadata (the state right after Open, before the first
// mutating or scanning operation).
func (x *Index) growToFit() error {
	count, err := x.primary.PageCount()
	if err != nil {
		return err
	}
	buf := make([]byte, x.pageSize)
	for i := count; i < int64(x.meta.primaryPageCount); i++ {
		encodeDataPage(buf, newDataPage(pagePrimary, x.keyType, uint32(i)))
		if _, err := x.primary.AppendPage(buf); err != nil {
			return err
		}
	}
	return nil
}

// loadChain reads the full bucket chain starting at primary page bucket,
// following overflow next-pointers until next == 0.
func (x *Index) loadChain(bucket uint32) ([]*dataPage, error) {
	buf := make([]byte, x.pageSize)
	if err := x.primary.ReadPage(int64(bucket), buf); err != nil {
		return nil, err
	}
	head, err := decodeDataPage(buf, x.keyType)
	if err != nil {
		return nil, err
	}
	chain := []*dataPage{head}
	next := head.nextPage
	for next != 0 {
		if err := x.overflow.ReadPage(int64(next), buf); err != nil {
			return nil, err
		}
		p, err := decodeDataPage(buf, x.keyType)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
		next = p.nextPage
	}
	return chain, nil
}

// flushChain writes every page in chain back to its owning file: the
// first page to the primary file at its bucket index, the rest to the
// overflow file at their recorded page numbers.
func (x *Index) flushChain(chain []*dataPage) error {
	buf := make([]byte, x.pageSize)
	for i, p := range chain {
		encodeDataPage(buf, p)
		if i == 0 {
			if err := x.primary.WritePage(int64(p.pageNumber), buf); err != nil {
				return err
			}
		} else {
			if err := x.overflow.WritePage(int64(p.pageNumber), buf); err != nil {
				return err
			}
		}
	}
	return nil
}

// appendEntry places e into chain, growing the chain with an overflow
// page if its last page is full. When reuse is non-empty, the next grown
// page reuses a page number popped from its front (used while rebuilding
// a split chain from the original's own overflow pages); otherwise a
// brand-new overflow page is allocated and total_overflow is incremented.
func (x *Index) appendEntry(chain []*dataPage, e entry, reuse *[]uint32) ([]*dataPage, error) {
	last := chain[len(chain)-1]
	if last.hasRoomFor(x.pageSize, e) {
		last.entries = append(last.entries, e)
		return chain, nil
	}

	var pageNo uint32
	if reuse != nil && len(*reuse) > 0 {
		pageNo = (*reuse)[0]
		*reuse = (*reuse)[1:]
	} else {
		count, err := x.overflow.PageCount()
		if err != nil {
			return nil, err
		}
		if count == 0 {
			count = 1 // page 0 is the metadata page; overflow data pages start at 1
		}
		pageNo = uint32(count)
		buf := make([]byte, x.pageSize)
		if _, err := x.overflow.AppendPage(buf); err != nil {
			return nil, err
		}
		x.meta.overflowPageCount++
	}

	next := newDataPage(pageOverflow, x.keyType, pageNo)
	next.entries = append(next.entries, e)
	last.nextPage = pageNo
	chain = append(chain, next)
	return chain, nil
}

func ridEqual(a, b rf.RID) bool { return a.Page == b.Page && a.Slot == b.Slot }
