// Package rf implements the record file layer: a slotted-page file built
// on top of pf, offering variable-length typed records addressed by a
// stable RID, with in-place and migratory updates, lazy deletion, and a
// predicate-driven scan.
package rf

import (
	"go.uber.org/zap"

	"github.com/arkdb/pagestore/errs"
	"github.com/arkdb/pagestore/fsd"
	"github.com/arkdb/pagestore/pf"
	"github.com/arkdb/pagestore/pfconfig"
)

// File is an open record file: a paged file plus the free-space directory
// and schema needed to interpret it.
type File struct {
	pf     *pf.File
	fsd    *fsd.Directory
	schema Schema
	log    *zap.SugaredLogger
}

// Create creates a new, empty record file.
func Create(path string, log *zap.SugaredLogger) error {
	return pf.Create(path, log)
}

// Destroy removes a record file from disk.
func Destroy(path string) error {
	return pf.Destroy(path)
}

// Open acquires a handle to an existing record file, buffering its
// free-space directory from the current page contents.
func Open(path string, schema Schema, cfg *pfconfig.Config) (*File, error) {
	pfh, err := pf.Open(path, cfg.PageSize, cfg.Logger)
	if err != nil {
		return nil, err
	}
	count, err := pfh.PageCount()
	if err != nil {
		pfh.Close()
		return nil, err
	}
	dir := fsd.New()
	buf := make([]byte, cfg.PageSize)
	err = dir.BufferOnOpen(count, func(p uint32) (int, error) {
		if err := pfh.ReadPage(int64(p), buf); err != nil {
			return 0, err
		}
		return freeBytes(buf), nil
	})
	if err != nil {
		pfh.Close()
		return nil, err
	}
	f := &File{pf: pfh, fsd: dir, schema: schema, log: cfg.Logger}
	if f.log != nil {
		f.log.Infow("record file opened", "path", path, "pages", count)
	}
	return f, nil
}

// Close releases the file handle and clears the free-space directory.
func (f *File) Close() error {
	f.fsd.Clear()
	return f.pf.Close()
}

// Schema returns the record file's attribute schema.
func (f *File) Schema() Schema { return f.schema }

// PageSize returns the fixed page size this file was opened with.
func (f *File) PageSize() int { return f.pf.PageSize() }

func (f *File) maxRecordSize() int {
	return f.pf.PageSize() - directoryBytes(1)
}

// Insert writes a new record, returning its RID. It fails with
// CodeSizeTooLarge if the encoded record cannot fit on any page.
func (f *File) Insert(rec Record) (RID, error) {
	data := encodeRecord(rec)
	if len(data) > f.maxRecordSize() {
		return RID{}, errs.NewPageError(nil, errs.CodeSizeTooLarge, "record exceeds page capacity")
	}
	return f.insertBytes(data)
}

func (f *File) insertBytes(data []byte) (RID, error) {
	pageSize := f.pf.PageSize()
	size := len(data)

	if pageNo, oldFree, ok := f.fsd.Allocate(size); ok {
		buf := make([]byte, pageSize)
		if err := f.pf.ReadPage(int64(pageNo), buf); err != nil {
			return RID{}, err
		}
		slot := placeRecordAt(buf, data)
		if err := f.pf.WritePage(int64(pageNo), buf); err != nil {
			return RID{}, err
		}
		f.fsd.Update(pageNo, oldFree, freeBytes(buf))
		return RID{Page: pageNo, Slot: uint16(slot)}, nil
	}

	count, err := f.pf.PageCount()
	if err != nil {
		return RID{}, err
	}
	buf := make([]byte, pageSize)
	initCleanPage(buf)
	slot := placeRecordAt(buf, data)
	if _, err := f.pf.AppendPage(buf); err != nil {
		return RID{}, err
	}
	f.fsd.Insert(uint32(count), freeBytes(buf))
	if f.log != nil {
		f.log.Debugw("record file appended page", "page", count)
	}
	return RID{Page: uint32(count), Slot: uint16(slot)}, nil
}

// placeRecordAt writes data at the page's current free pointer, reusing a
// deleted or tombstone slot if one exists, else allocating a new slot, and
// returns the slot index used.
func placeRecordAt(buf []byte, data []byte) int {
	freePtr := getFreePtr(buf)
	copy(buf[freePtr:freePtr+len(data)], data)

	slot, found := findReusableSlot(buf)
	if !found {
		slot = getSlotCount(buf)
		setSlotCount(buf, slot+1)
	}
	setSlot(buf, slot, int16(freePtr), int16(len(data)))
	setFreePtr(buf, freePtr+len(data))
	return slot
}

// Read follows forwarding pointers transparently and decodes the record at
// rid. It fails with CodeRecordNotFound if the slot has been deleted.
func (f *File) Read(rid RID) (Record, error) {
	data, err := f.readBytes(rid)
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(f.schema, data)
}

func (f *File) readBytes(rid RID) ([]byte, error) {
	pageSize := f.pf.PageSize()
	buf := make([]byte, pageSize)
	if err := f.pf.ReadPage(int64(rid.Page), buf); err != nil {
		return nil, err
	}
	count := getSlotCount(buf)
	if int(rid.Slot) >= count {
		return nil, errs.NewPageError(nil, errs.CodeRecordNotFound, "slot out of range").
			WithPage(int64(rid.Page)).WithSlot(int(rid.Slot))
	}
	start, length := getSlot(buf, int(rid.Slot))
	switch classifySlot(pageSize, start, length) {
	case slotDeleted, slotTombstone:
		return nil, errs.NewPageError(nil, errs.CodeRecordNotFound, "record has been deleted").
			WithPage(int64(rid.Page)).WithSlot(int(rid.Slot))
	case slotForwarding:
		return f.readBytes(forwardTarget(start, length))
	default:
		return append([]byte(nil), buf[start:start+length]...), nil
	}
}

// ReadAttribute follows forwards and returns the wire bytes of the named
// attribute only (for varchar, including its length prefix), without
// decoding the whole record.
func (f *File) ReadAttribute(rid RID, name string) ([]byte, error) {
	data, err := f.readBytes(rid)
	if err != nil {
		return nil, err
	}
	off, size, found := attrOffset(f.schema, data, name)
	if !found {
		return nil, errs.NewPageError(nil, errs.CodeAttrNotFound, "attribute not found")
	}
	return append([]byte(nil), data[off:off+size]...), nil
}

// Update rewrites the record at rid in place. A forwarding slot is
// followed to its target; if the update migrates the record again, rid's
// own slot is rewritten to forward directly to the new location, keeping
// forwarding chains exactly one hop, and the now-unreferenced intermediate
// slot is retired as a tombstone end-marker.
func (f *File) Update(rid RID, rec Record) error {
	data := encodeRecord(rec)
	if len(data) >= f.maxRecordSize() {
		return errs.NewPageError(nil, errs.CodeSizeTooLarge, "record exceeds page capacity")
	}
	return f.updateAt(rid, rid, data)
}

func (f *File) updateAt(origin, cur RID, data []byte) error {
	pageSize := f.pf.PageSize()
	buf := make([]byte, pageSize)
	if err := f.pf.ReadPage(int64(cur.Page), buf); err != nil {
		return err
	}
	count := getSlotCount(buf)
	if int(cur.Slot) >= count {
		return errs.NewPageError(nil, errs.CodeRecordNotFound, "slot out of range").
			WithPage(int64(cur.Page)).WithSlot(int(cur.Slot))
	}
	start, length := getSlot(buf, int(cur.Slot))
	switch classifySlot(pageSize, start, length) {
	case slotDeleted, slotTombstone:
		return errs.NewPageError(nil, errs.CodeRecordNotFound, "record has been deleted").
			WithPage(int64(cur.Page)).WithSlot(int(cur.Slot))
	case slotForwarding:
		return f.updateAt(origin, forwardTarget(start, length), data)
	}

	oldLen := int(length)
	newLen := len(data)
	oldFree := freeBytes(buf)

	switch {
	case newLen <= oldLen:
		copy(buf[int(start):int(start)+newLen], data)
		setSlot(buf, int(cur.Slot), start, int16(newLen))
		if err := f.pf.WritePage(int64(cur.Page), buf); err != nil {
			return err
		}
		f.fsd.Update(cur.Page, oldFree, freeBytes(buf))
		return nil

	case newLen <= oldFree:
		freePtr := getFreePtr(buf)
		copy(buf[freePtr:freePtr+newLen], data)
		setSlot(buf, int(cur.Slot), int16(freePtr), int16(newLen))
		setFreePtr(buf, freePtr+newLen)
		if err := f.pf.WritePage(int64(cur.Page), buf); err != nil {
			return err
		}
		f.fsd.Update(cur.Page, oldFree, freeBytes(buf))
		return nil

	default:
		newRID, err := f.insertBytes(data)
		if err != nil {
			return err
		}
		if origin == cur {
			encodeForward(buf, int(cur.Slot), newRID)
		} else {
			setSlot(buf, int(cur.Slot), 0, 0) // tombstone: no longer referenced
		}
		if err := f.pf.WritePage(int64(cur.Page), buf); err != nil {
			return err
		}
		f.fsd.Update(cur.Page, oldFree, freeBytes(buf))
		if origin != cur {
			return f.rewriteForward(origin, newRID)
		}
		return nil
	}
}

// rewriteForward overwrites origin's slot with a forwarding pointer to
// target, used to collapse a would-be two-hop forwarding chain into one.
func (f *File) rewriteForward(origin, target RID) error {
	pageSize := f.pf.PageSize()
	buf := make([]byte, pageSize)
	if err := f.pf.ReadPage(int64(origin.Page), buf); err != nil {
		return err
	}
	oldFree := freeBytes(buf)
	encodeForward(buf, int(origin.Slot), target)
	if err := f.pf.WritePage(int64(origin.Page), buf); err != nil {
		return err
	}
	f.fsd.Update(origin.Page, oldFree, freeBytes(buf))
	return nil
}

// Delete marks rid deleted. A forwarding slot recursively deletes its
// target first, then retires itself as a tombstone end-marker; a directly
// occupied slot is marked with the ordinary deleted sentinel. Bytes are
// not reclaimed until ReorganizePage.
func (f *File) Delete(rid RID) error {
	pageSize := f.pf.PageSize()
	buf := make([]byte, pageSize)
	if err := f.pf.ReadPage(int64(rid.Page), buf); err != nil {
		return err
	}
	count := getSlotCount(buf)
	if int(rid.Slot) >= count {
		return errs.NewPageError(nil, errs.CodeRecordNotFound, "slot out of range").
			WithPage(int64(rid.Page)).WithSlot(int(rid.Slot))
	}
	start, length := getSlot(buf, int(rid.Slot))
	state := classifySlot(pageSize, start, length)
	if state == slotDeleted || state == slotTombstone {
		return errs.NewPageError(nil, errs.CodeRecordNotFound, "record already deleted").
			WithPage(int64(rid.Page)).WithSlot(int(rid.Slot))
	}
	if state == slotForwarding {
		if err := f.Delete(forwardTarget(start, length)); err != nil {
			return err
		}
		if err := f.pf.ReadPage(int64(rid.Page), buf); err != nil {
			return err
		}
	}
	oldFree := freeBytes(buf)
	if state == slotForwarding {
		setSlot(buf, int(rid.Slot), 0, 0)
	} else {
		setSlot(buf, int(rid.Slot), int16(pageSize), 0)
	}
	if err := f.pf.WritePage(int64(rid.Page), buf); err != nil {
		return err
	}
	f.fsd.Update(rid.Page, oldFree, freeBytes(buf))
	return nil
}

// DeleteAll resets every page to empty: free pointer and slot count both
// zero, and republishes a full-page free entry for each page in fsd.
func (f *File) DeleteAll() error {
	pageSize := f.pf.PageSize()
	count, err := f.pf.PageCount()
	if err != nil {
		return err
	}
	buf := make([]byte, pageSize)
	for i := int64(0); i < count; i++ {
		for j := range buf {
			buf[j] = 0
		}
		setFreePtr(buf, 0)
		setSlotCount(buf, 0)
		if err := f.pf.WritePage(i, buf); err != nil {
			return err
		}
	}
	f.fsd.Clear()
	for i := int64(0); i < count; i++ {
		f.fsd.Insert(uint32(i), freeBytes(buf))
	}
	if f.log != nil {
		f.log.Infow("record file cleared", "pages", count)
	}
	return nil
}
