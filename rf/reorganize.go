package rf

import "sort"

// ReorganizePage compacts pageNo: every occupied slot's bytes are moved to
// the front of the page in ascending start-offset order, slot entries are
// rewritten to their new offsets, and the free pointer is reset. Slot
// indices — and therefore every RID into this page — are unchanged;
// deleted, tombstone and forwarding slots keep their existing directory
// entries untouched.
func (f *File) ReorganizePage(pageNo uint32) error {
	pageSize := f.pf.PageSize()
	buf := make([]byte, pageSize)
	if err := f.pf.ReadPage(int64(pageNo), buf); err != nil {
		return err
	}
	oldFree := freeBytes(buf)
	count := getSlotCount(buf)

	type occupiedSlot struct {
		slot   int
		start  int16
		length int16
	}
	var occupied []occupiedSlot
	for i := 0; i < count; i++ {
		start, length := getSlot(buf, i)
		if classifySlot(pageSize, start, length) == slotOccupied {
			occupied = append(occupied, occupiedSlot{i, start, length})
		}
	}
	sort.Slice(occupied, func(a, b int) bool { return occupied[a].start < occupied[b].start })

	newBuf := make([]byte, pageSize)
	copy(newBuf, buf)
	cursor := int16(0)
	for _, o := range occupied {
		copy(newBuf[cursor:int(cursor)+int(o.length)], buf[o.start:int(o.start)+int(o.length)])
		setSlot(newBuf, o.slot, cursor, o.length)
		cursor += o.length
	}
	setFreePtr(newBuf, int(cursor))

	if err := f.pf.WritePage(int64(pageNo), newBuf); err != nil {
		return err
	}
	newFree := freeBytes(newBuf)
	f.fsd.Update(pageNo, oldFree, newFree)
	if f.log != nil {
		f.log.Infow("record file page reorganized", "page", pageNo, "free_before", oldFree, "free_after", newFree)
	}
	return nil
}
