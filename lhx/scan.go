package lhx

import (
	"github.com/arkdb/pagestore/kv"
	"github.com/arkdb/pagestore/rf"
)

// Bound describes one end of a scan range.
type Bound struct {
	Value     kv.KeyValue
	Inclusive bool
}

// Iterator walks matching (key, RID) pairs in bucket, then chain, then
// directory order. It is single-threaded, forward-only and not
// restartable: once Next returns ok=false the iterator is exhausted.
type Iterator struct {
	x    *Index
	low  *Bound
	high *Bound

	buckets  []uint32
	bucketAt int

	chain    []*dataPage
	pageAt   int
	entryAt  int
}

// Scan returns an iterator over entries within [low, high] (either bound
// may be nil for an open end). When low and high name the same value with
// matching inclusivity, only that value's bucket is visited (a point
// scan); otherwise every bucket is walked in order (a range scan).
func (x *Index) Scan(low, high *Bound) (*Iterator, error) {
	if err := x.growToFit(); err != nil {
		return nil, err
	}

	it := &Iterator{x: x, low: low, high: high}
	if low != nil && high != nil && low.Inclusive == high.Inclusive && low.Value.Equal(high.Value) {
		it.buckets = []uint32{calcBucket(x.meta.bucketCount, x.meta.splitPointer, x.Hash(low.Value))}
	} else {
		it.buckets = make([]uint32, x.meta.primaryPageCount)
		for i := range it.buckets {
			it.buckets[i] = uint32(i)
		}
	}
	return it, nil
}

func (b *Bound) satisfiesLow(k kv.KeyValue) bool {
	if b == nil {
		return true
	}
	c := k.Compare(b.Value)
	if b.Inclusive {
		return c >= 0
	}
	return c > 0
}

func (b *Bound) satisfiesHigh(k kv.KeyValue) bool {
	if b == nil {
		return true
	}
	c := k.Compare(b.Value)
	if b.Inclusive {
		return c <= 0
	}
	return c < 0
}

// Next returns the next matching entry, or ok=false when the iterator is
// exhausted.
func (it *Iterator) Next() (kv.KeyValue, rf.RID, bool, error) {
	for {
		if it.chain == nil {
			if it.bucketAt >= len(it.buckets) {
				return kv.KeyValue{}, rf.RID{}, false, nil
			}
			chain, err := it.x.loadChain(it.buckets[it.bucketAt])
			if err != nil {
				return kv.KeyValue{}, rf.RID{}, false, err
			}
			it.chain = chain
			it.pageAt = 0
			it.entryAt = 0
		}

		if it.pageAt >= len(it.chain) {
			it.chain = nil
			it.bucketAt++
			continue
		}
		page := it.chain[it.pageAt]
		if it.entryAt >= len(page.entries) {
			it.pageAt++
			it.entryAt = 0
			continue
		}

		e := page.entries[it.entryAt]
		it.entryAt++
		if !it.low.satisfiesLow(e.key) || !it.high.satisfiesHigh(e.key) {
			continue
		}
		return e.key, e.rid, true, nil
	}
}

// Close releases the iterator's held chain. It never mutates index state.
func (it *Iterator) Close() error {
	it.chain = nil
	return nil
}
