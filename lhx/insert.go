package lhx

import (
	"github.com/arkdb/pagestore/errs"
	"github.com/arkdb/pagestore/kv"
	"github.com/arkdb/pagestore/rf"
)

// InsertEntry inserts (key, rid). It fails with CodeDuplicateEntry if the
// exact pair already exists anywhere in the target bucket's chain.
func (x *Index) InsertEntry(key kv.KeyValue, rid rf.RID) error {
	if err := x.growToFit(); err != nil {
		return err
	}

	h := x.Hash(key)
	b := calcBucket(x.meta.bucketCount, x.meta.splitPointer, h)
	chain, err := x.loadChain(b)
	if err != nil {
		return err
	}
	for _, p := range chain {
		for _, e := range p.entries {
			if e.key.Equal(key) && ridEqual(e.rid, rid) {
				return errs.NewIndexError(nil, errs.CodeDuplicateEntry, "entry already exists").WithBucket(b)
			}
		}
	}

	e := entry{key: key, rid: rid}
	if idx, ok := x.roomInChain(chain, e); ok {
		chain[idx].entries = append(chain[idx].entries, e)
		if err := x.flushChain(chain); err != nil {
			return err
		}
		x.meta.entryCount++
		return x.flushMeta()
	}

	if err := x.split(); err != nil {
		return err
	}

	// The split may have moved b's keys between b and its split target, so
	// re-address the key under the updated metadata.
	b = calcBucket(x.meta.bucketCount, x.meta.splitPointer, h)
	chain, err = x.loadChain(b)
	if err != nil {
		return err
	}
	if idx, ok := x.roomInChain(chain, e); ok {
		chain[idx].entries = append(chain[idx].entries, e)
	} else {
		chain, err = x.appendEntry(chain, e, nil)
		if err != nil {
			return err
		}
	}
	if err := x.flushChain(chain); err != nil {
		return err
	}
	x.meta.entryCount++
	return x.flushMeta()
}

func (x *Index) roomInChain(chain []*dataPage, e entry) (int, bool) {
	for i, p := range chain {
		if p.hasRoomFor(x.pageSize, e) {
			return i, true
		}
	}
	return 0, false
}

// split performs one controlled split: advances the split pointer (and
// doubles the bucket count if it wraps), appends a fresh primary page for
// the split target, and rebalances the split source's chain between the
// source and target bucket.
func (x *Index) split() error {
	from := x.meta.splitPointer
	to := x.meta.splitPointer + x.meta.bucketCount

	oldChain, err := x.loadChain(from)
	if err != nil {
		return err
	}

	x.meta.splitPointer++
	if x.meta.splitPointer == x.meta.bucketCount {
		x.meta.splitPointer = 0
		x.meta.bucketCount *= 2
	}
	x.meta.primaryPageCount++

	buf := make([]byte, x.pageSize)
	encodeDataPage(buf, newDataPage(pagePrimary, x.keyType, to))
	if _, err := x.primary.AppendPage(buf); err != nil {
		return err
	}

	updatedOld := []*dataPage{newDataPage(pagePrimary, x.keyType, from)}
	newChain := []*dataPage{newDataPage(pagePrimary, x.keyType, to)}

	var reuse []uint32
	for _, p := range oldChain[1:] {
		reuse = append(reuse, p.pageNumber)
	}

	for _, p := range oldChain {
		for _, e := range p.entries {
			nb := calcBucket(x.meta.bucketCount, x.meta.splitPointer, x.Hash(e.key))
			switch nb {
			case from:
				updatedOld, err = x.appendEntry(updatedOld, e, &reuse)
				if err != nil {
					return err
				}
			case to:
				newChain, err = x.appendEntry(newChain, e, nil)
				if err != nil {
					return err
				}
			default:
				return errs.NewIndexError(nil, errs.CodeBadPage, "entry maps to neither split bucket after rebalance").
					WithBucket(nb)
			}
		}
	}
	x.meta.deletedOverflow += uint32(len(reuse))

	if err := x.flushChain(updatedOld); err != nil {
		return err
	}
	if err := x.flushChain(newChain); err != nil {
		return err
	}
	if x.log != nil {
		x.log.Infow("bucket split", "from", from, "to", to, "bucket_count", x.meta.bucketCount)
	}
	return nil
}
