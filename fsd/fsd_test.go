package fsd

import "testing"

func TestAllocateSmallestSufficient(t *testing.T) {
	d := New()
	d.Insert(0, 100)
	d.Insert(1, 500)
	d.Insert(2, 50)
	d.Insert(3, 200)

	page, free, ok := d.Allocate(150)
	if !ok {
		t.Fatalf("expected a page to be found")
	}
	if page != 3 || free != 200 {
		t.Fatalf("expected page 3 with 200 free bytes, got page %d free %d", page, free)
	}
	if _, tracked := d.FreeBytes(3); tracked {
		t.Fatalf("page 3 should have been removed from the directory")
	}
	if d.Len() != 3 {
		t.Fatalf("expected 3 pages remaining, got %d", d.Len())
	}
}

func TestAllocateNoneSufficient(t *testing.T) {
	d := New()
	d.Insert(0, 10)
	d.Insert(1, 20)

	if _, _, ok := d.Allocate(100); ok {
		t.Fatalf("expected no page to be found")
	}
	if d.Len() != 2 {
		t.Fatalf("allocate should not mutate the directory when nothing qualifies")
	}
}

func TestUpdateMovesBetweenBuckets(t *testing.T) {
	d := New()
	d.Insert(5, 300)
	d.Update(5, 300, 50)

	if _, _, ok := d.Allocate(100); ok {
		t.Fatalf("page 5 should no longer qualify for a 100-byte request")
	}
	free, ok := d.FreeBytes(5)
	if !ok || free != 50 {
		t.Fatalf("expected page 5 tracked with 50 free bytes, got %d ok=%v", free, ok)
	}
}

func TestClearDropsAllEntries(t *testing.T) {
	d := New()
	d.Insert(0, 100)
	d.Insert(1, 200)
	d.Clear()
	if d.Len() != 0 {
		t.Fatalf("expected empty directory after Clear, got %d entries", d.Len())
	}
	if _, _, ok := d.Allocate(0); ok {
		t.Fatalf("expected no pages after Clear")
	}
}

func TestBufferOnOpenPopulatesFromPages(t *testing.T) {
	d := New()
	freeBytesByPage := map[uint32]int{0: 10, 1: 4000, 2: 0}
	err := d.BufferOnOpen(3, func(p uint32) (int, error) {
		return freeBytesByPage[p], nil
	})
	if err != nil {
		t.Fatalf("BufferOnOpen: %v", err)
	}
	page, free, ok := d.Allocate(3000)
	if !ok || page != 1 || free != 4000 {
		t.Fatalf("expected page 1 with 4000 free bytes, got page %d free %d ok %v", page, free, ok)
	}
}
