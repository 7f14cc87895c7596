package rf

import "encoding/binary"

// slotState classifies a slot's (start, length) pair.
type slotState int

const (
	slotOccupied slotState = iota
	slotDeleted
	slotForwarding
	slotTombstone
)

const (
	footerBytes = 4 // slot count (2 bytes) + free pointer (2 bytes)
	slotBytes   = 4 // start (2 bytes) + length (2 bytes)
)

func slotBase(pageSize, slot int) int {
	return pageSize - 4 - slotBytes*(slot+1)
}

func getFreePtr(page []byte) int {
	return int(int16(binary.LittleEndian.Uint16(page[len(page)-2:])))
}

func setFreePtr(page []byte, v int) {
	binary.LittleEndian.PutUint16(page[len(page)-2:], uint16(int16(v)))
}

func getSlotCount(page []byte) int {
	return int(int16(binary.LittleEndian.Uint16(page[len(page)-4 : len(page)-2])))
}

func setSlotCount(page []byte, v int) {
	binary.LittleEndian.PutUint16(page[len(page)-4:len(page)-2], uint16(int16(v)))
}

func getSlot(page []byte, slot int) (start, length int16) {
	base := slotBase(len(page), slot)
	length = int16(binary.LittleEndian.Uint16(page[base : base+2]))
	start = int16(binary.LittleEndian.Uint16(page[base+2 : base+4]))
	return start, length
}

func setSlot(page []byte, slot int, start, length int16) {
	base := slotBase(len(page), slot)
	binary.LittleEndian.PutUint16(page[base:base+2], uint16(length))
	binary.LittleEndian.PutUint16(page[base+2:base+4], uint16(start))
}

// classifySlot identifies which of the four slot states (start, length)
// encodes. Tombstone end-markers (both zero) are checked before forwarding
// pointers so that a forwarding slot whose recorded target happens to be
// (0, 0) — page 0, slot 0 — degenerates into (and is read back as) a
// tombstone. RF's Delete discipline never produces that degenerate case in
// practice: a forwarding slot is retired to the literal tombstone encoding
// directly once its target is deleted, rather than left pointing at a
// now-dead target.
func classifySlot(pageSize int, start, length int16) slotState {
	switch {
	case start == 0 && length == 0:
		return slotTombstone
	case start < 0 && length < 0:
		return slotForwarding
	case int(start) == pageSize && length == 0:
		return slotDeleted
	default:
		return slotOccupied
	}
}

// forwardTarget decodes the RID a forwarding slot points to.
func forwardTarget(start, length int16) RID {
	return RID{Page: uint32(-int32(start)), Slot: uint16(-int32(length))}
}

// encodeForward writes the forwarding-pointer encoding for target into the
// given slot's directory entry.
func encodeForward(page []byte, slot int, target RID) {
	setSlot(page, slot, int16(-int32(target.Page)), int16(-int32(target.Slot)))
}

// initCleanPage zeroes the free pointer and slot count and marks slot 0 as
// deleted, reserving its directory word for the page's first record.
func initCleanPage(page []byte) {
	for i := range page {
		page[i] = 0
	}
	setFreePtr(page, 0)
	setSlotCount(page, 1)
	setSlot(page, 0, int16(len(page)), 0) // deleted sentinel: start = PAGE_SIZE, length = 0
}

// directoryBytes is the number of bytes reserved at the top of the page for
// the footer plus n slot directory entries.
func directoryBytes(n int) int {
	return footerBytes + slotBytes*n
}

// slotsPresent is the slot_count the free-space formula should use: the
// existing count if at least one slot is reusable (deleted or tombstone),
// else count+1 to reserve room for the next new slot's directory word.
func slotsPresent(page []byte) int {
	pageSize := len(page)
	count := getSlotCount(page)
	for i := 0; i < count; i++ {
		start, length := getSlot(page, i)
		st := classifySlot(pageSize, start, length)
		if st == slotDeleted || st == slotTombstone {
			return count
		}
	}
	return count + 1
}

// freeBytes computes the page's current free-byte figure, the value fsd
// tracks for this page.
func freeBytes(page []byte) int {
	return len(page) - getFreePtr(page) - directoryBytes(slotsPresent(page))
}

// findReusableSlot returns the index of the first deleted or tombstone
// slot, if any.
func findReusableSlot(page []byte) (int, bool) {
	pageSize := len(page)
	count := getSlotCount(page)
	for i := 0; i < count; i++ {
		start, length := getSlot(page, i)
		st := classifySlot(pageSize, start, length)
		if st == slotDeleted || st == slotTombstone {
			return i, true
		}
	}
	return 0, false
}
