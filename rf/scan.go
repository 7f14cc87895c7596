package rf

import (
	"github.com/arkdb/pagestore/errs"
	"github.com/arkdb/pagestore/kv"
)

// CompOp is a scan predicate's comparison operator.
type CompOp int

const (
	OpEq CompOp = iota
	OpLt
	OpGt
	OpLe
	OpGe
	OpNe
	OpAny
)

// Iterator walks a record file's pages and slots in order, evaluating a
// predicate on one attribute and emitting the projection of another set of
// attributes for each match. It holds its file weakly: closing the
// iterator does not close the file.
type Iterator struct {
	f            *File
	condAttr     string
	op           CompOp
	value        kv.KeyValue
	projectAttrs []string

	pageNo    int64
	pageCount int64
	slotNo    int
	buf       []byte
}

// Scan returns an iterator over records matching condAttr op value,
// emitting the concatenation of each projectAttrs attribute's wire bytes.
// Pass OpAny to match every record regardless of condAttr's value.
func (f *File) Scan(condAttr string, op CompOp, value kv.KeyValue, projectAttrs []string) (*Iterator, error) {
	count, err := f.pf.PageCount()
	if err != nil {
		return nil, err
	}
	return &Iterator{
		f:            f,
		condAttr:     condAttr,
		op:           op,
		value:        value,
		projectAttrs: projectAttrs,
		pageCount:    count,
		buf:          make([]byte, f.pf.PageSize()),
	}, nil
}

// Next advances the iterator. It returns ok == false once every page has
// been walked. Forwarding slots are never emitted directly — each live
// record surfaces exactly once, at the occupied slot its payload currently
// resides in, wherever the scan's sequential page/slot walk reaches it.
func (it *Iterator) Next() (RID, []byte, bool, error) {
	pageSize := len(it.buf)
	for it.pageNo < it.pageCount {
		if it.slotNo == 0 {
			if err := it.f.pf.ReadPage(it.pageNo, it.buf); err != nil {
				return RID{}, nil, false, err
			}
		}
		count := getSlotCount(it.buf)
		for it.slotNo < count {
			slot := it.slotNo
			it.slotNo++

			start, length := getSlot(it.buf, slot)
			if classifySlot(pageSize, start, length) != slotOccupied {
				continue
			}
			data := it.buf[start : int(start)+int(length)]

			if it.op != OpAny {
				idx := it.f.schema.IndexOf(it.condAttr)
				if idx < 0 {
					return RID{}, nil, false, errs.NewPageError(nil, errs.CodeAttrNotFound, "condition attribute not found")
				}
				off, _, found := attrOffset(it.f.schema, data, it.condAttr)
				if !found {
					return RID{}, nil, false, errs.NewPageError(nil, errs.CodeAttrNotFound, "condition attribute not found")
				}
				val, _, err := kv.Decode(it.f.schema.Attrs[idx].Kind, data[off:])
				if err != nil {
					return RID{}, nil, false, err
				}
				if !matches(val.Compare(it.value), it.op) {
					continue
				}
			}

			var out []byte
			for _, name := range it.projectAttrs {
				off, size, found := attrOffset(it.f.schema, data, name)
				if !found {
					return RID{}, nil, false, errs.NewPageError(nil, errs.CodeAttrNotFound, "projected attribute not found")
				}
				out = append(out, data[off:off+size]...)
			}
			rid := RID{Page: uint32(it.pageNo), Slot: uint16(slot)}
			return rid, out, true, nil
		}
		it.pageNo++
		it.slotNo = 0
	}
	return RID{}, nil, false, nil
}

// Close releases the iterator's own scratch buffer. It never touches the
// underlying file.
func (it *Iterator) Close() error {
	it.buf = nil
	return nil
}

func matches(cmp int, op CompOp) bool {
	switch op {
	case OpEq:
		return cmp == 0
	case OpLt:
		return cmp < 0
	case OpGt:
		return cmp > 0
	case OpLe:
		return cmp <= 0
	case OpGe:
		return cmp >= 0
	case OpNe:
		return cmp != 0
	default:
		return false
	}
}
