// Package fsd implements the free-space directory: an in-memory index from
// free-byte count to the set of pages holding exactly that much room,
// owned one-per-open record file. It never packs or moves records — it
// only remembers which pages have space and lets rf pick one.
package fsd

import "sort"

// Directory tracks free-byte counts per page for a single open file. It is
// not safe for concurrent use without external synchronization; callers
// above this layer (rf) already serialize access per file handle.
type Directory struct {
	byFree map[int]map[uint32]struct{} // free bytes -> set of pages
	byPage map[uint32]int              // page -> free bytes
}

// New returns an empty directory.
func New() *Directory {
	return &Directory{
		byFree: make(map[int]map[uint32]struct{}),
		byPage: make(map[uint32]int),
	}
}

// Insert records that page has the given number of free bytes. It is the
// caller's responsibility to ensure the page is not already tracked;
// Insert on an already-tracked page is equivalent to Update.
func (d *Directory) Insert(page uint32, free int) {
	if old, ok := d.byPage[page]; ok {
		d.removeFromBucket(old, page)
	}
	d.byPage[page] = free
	d.addToBucket(free, page)
}

// Update moves page from its old free-byte bucket to its new one. oldFree
// must match what was last recorded for page (the caller tracks this,
// typically as the value returned alongside the page from Allocate or
// computed from the page's own header).
func (d *Directory) Update(page uint32, oldFree, newFree int) {
	d.removeFromBucket(oldFree, page)
	delete(d.byPage, page)
	d.byPage[page] = newFree
	d.addToBucket(newFree, page)
}

// Allocate finds the page with the smallest free-byte count that is still
// ≥ size, removes it from the directory, and returns it. It reports false
// if no tracked page has enough room. The scan over bucket keys never
// mutates the map while ranging it — it identifies the candidate bucket
// and page first, then removes both entries after the scan completes.
func (d *Directory) Allocate(size int) (page uint32, free int, ok bool) {
	keys := make([]int, 0, len(d.byFree))
	for k := range d.byFree {
		if k >= size {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return 0, 0, false
	}
	sort.Ints(keys)
	best := keys[0]

	var chosen uint32
	for p := range d.byFree[best] {
		chosen = p
		break
	}

	d.removeFromBucket(best, chosen)
	delete(d.byPage, chosen)
	return chosen, best, true
}

// BufferOnOpen populates the directory from scratch by calling freeBytes
// for every existing page in a file, page numbers 0..pageCount-1. Callers
// (rf.Open) supply freeBytes as a thin wrapper that reads the page and
// computes its free-space figure from the slot directory footer.
func (d *Directory) BufferOnOpen(pageCount int64, freeBytes func(page uint32) (int, error)) error {
	for i := int64(0); i < pageCount; i++ {
		p := uint32(i)
		free, err := freeBytes(p)
		if err != nil {
			return err
		}
		d.Insert(p, free)
	}
	return nil
}

// Clear drops every entry from the directory, as when a file is closed or
// truncated via DeleteAll.
func (d *Directory) Clear() {
	d.byFree = make(map[int]map[uint32]struct{})
	d.byPage = make(map[uint32]int)
}

// Len reports how many pages are currently tracked.
func (d *Directory) Len() int { return len(d.byPage) }

// FreeBytes reports the free-byte count currently recorded for page, and
// whether the page is tracked at all.
func (d *Directory) FreeBytes(page uint32) (int, bool) {
	v, ok := d.byPage[page]
	return v, ok
}

func (d *Directory) addToBucket(free int, page uint32) {
	set, ok := d.byFree[free]
	if !ok {
		set = make(map[uint32]struct{})
		d.byFree[free] = set
	}
	set[page] = struct{}{}
}

func (d *Directory) removeFromBucket(free int, page uint32) {
	set, ok := d.byFree[free]
	if !ok {
		return
	}
	delete(set, page)
	if len(set) == 0 {
		delete(d.byFree, free)
	}
}
