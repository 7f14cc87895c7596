package lhx

import (
	"github.com/arkdb/pagestore/errs"
	"github.com/arkdb/pagestore/kv"
	"github.com/arkdb/pagestore/rf"
)

// DeleteEntry removes the exact (key, rid) pair from its bucket, compacting
// the chain and shrinking the index if the delete leaves trailing buckets
// empty.
func (x *Index) DeleteEntry(key kv.KeyValue, rid rf.RID) error {
	if err := x.growToFit(); err != nil {
		return err
	}

	b := calcBucket(x.meta.bucketCount, x.meta.splitPointer, x.Hash(key))
	chain, err := x.loadChain(b)
	if err != nil {
		return err
	}

	found := false
	for _, p := range chain {
		for i, e := range p.entries {
			if e.key.Equal(key) && ridEqual(e.rid, rid) {
				p.entries = append(p.entries[:i], p.entries[i+1:]...)
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		return errs.NewIndexError(nil, errs.CodeEntryNotFound, "entry not found").WithBucket(b)
	}

	chain, removed := compactChain(chain)
	x.meta.deletedOverflow += uint32(removed)

	if err := x.flushChain(chain); err != nil {
		return err
	}
	x.meta.entryCount--

	if err := x.shrink(); err != nil {
		return err
	}
	return x.flushMeta()
}

// compactChain collapses empty non-terminal pages out of chain: an empty
// primary page absorbs its overflow successor's contents, and any other
// empty page is spliced out of the chain it sits in. It returns the
// surviving chain and the count of pages abandoned in the process.
func compactChain(chain []*dataPage) ([]*dataPage, int) {
	removed := 0
	for {
		changed := false
		if len(chain) > 1 && chain[0].isEmpty() {
			succ := chain[1]
			chain[0].entries = succ.entries
			chain[0].nextPage = succ.nextPage
			chain = append(chain[:1], chain[2:]...)
			removed++
			changed = true
			continue
		}
		for i := 1; i < len(chain)-1; i++ {
			if chain[i].isEmpty() {
				chain[i-1].nextPage = chain[i+1].pageNumber
				chain = append(chain[:i], chain[i+1:]...)
				removed++
				changed = true
				break
			}
		}
		if !changed {
			break
		}
	}
	return chain, removed
}

func chainEmpty(chain []*dataPage) bool {
	for _, p := range chain {
		if !p.isEmpty() {
			return false
		}
	}
	return true
}

// shrink rolls the split pointer backward over trailing, fully empty
// primary buckets, never reducing the bucket count below its initial
// value. It stops at the first trailing bucket (scanning from the highest
// page number down) that still holds an entry.
func (x *Index) shrink() error {
	shrunk := uint32(0)
	for x.meta.primaryPageCount > x.meta.initialBucketCount {
		last := x.meta.primaryPageCount - 1
		chain, err := x.loadChain(last)
		if err != nil {
			return err
		}
		if !chainEmpty(chain) {
			break
		}
		x.meta.primaryPageCount--
		if x.meta.splitPointer == 0 {
			x.meta.bucketCount /= 2
			x.meta.splitPointer = x.meta.bucketCount - 1
		} else {
			x.meta.splitPointer--
		}
		shrunk++
	}
	if shrunk > 0 && x.log != nil {
		x.log.Infow("bucket shrink", "buckets_removed", shrunk, "primary_page_count", x.meta.primaryPageCount)
	}
	return nil
}
