package lhx

import (
	"encoding/binary"

	"github.com/arkdb/pagestore/errs"
	"github.com/arkdb/pagestore/kv"
	"github.com/arkdb/pagestore/rf"
)

// page type tags stored in a data page's footer.
const (
	pagePrimary  uint32 = 0
	pageOverflow uint32 = 1
)

// footerWords is the fixed six-word footer every primary or overflow data
// page carries: page_type, key_type, page_number, entries_count,
// entries_size, next_page, from the top of the page downward.
const footerWords = 6
const dataFooterBytes = footerWords * 4

// entryRIDBytes is the wire size of an entry's RID half: a 4-byte page
// number and a 4-byte slot number, widened from rf.RID's uint16 slot for a
// uniform 32-bit-word on-disk layout.
const entryRIDBytes = 8

// entry is one (key, RID) pair as held in memory on a loaded data page.
type entry struct {
	key kv.KeyValue
	rid rf.RID
}

func (e entry) wireSize() int { return e.key.WireSize() + entryRIDBytes }

// dataPage is a fully materialized primary or overflow bucket page: header
// fields plus its entries, decoded from and re-encoded to a single
// PAGE_SIZE buffer on load/flush.
type dataPage struct {
	pageType   uint32
	keyType    kv.Kind
	pageNumber uint32
	nextPage   uint32
	entries    []entry
}

func newDataPage(pageType uint32, keyType kv.Kind, pageNumber uint32) *dataPage {
	return &dataPage{pageType: pageType, keyType: keyType, pageNumber: pageNumber}
}

func (p *dataPage) entriesSize() int {
	size := 0
	for _, e := range p.entries {
		size += e.wireSize()
	}
	return size
}

func (p *dataPage) hasRoomFor(pageSize int, e entry) bool {
	return dataFooterBytes+p.entriesSize()+e.wireSize() <= pageSize
}

func (p *dataPage) isEmpty() bool { return len(p.entries) == 0 }

// decodeDataPage reads a data page's footer and entries from buf.
func decodeDataPage(buf []byte, keyType kv.Kind) (*dataPage, error) {
	n := len(buf)
	u := func(words int) uint32 { return binary.LittleEndian.Uint32(buf[n-4*words : n-4*words+4]) }
	pageType := u(1)
	footerKeyType := kv.Kind(u(2))
	pageNumber := u(3)
	entriesCount := u(4)
	entriesSize := u(5)
	nextPage := u(6)

	if int(entriesSize) > n-dataFooterBytes {
		return nil, errs.NewIndexError(nil, errs.CodeBadPage, "entries size exceeds page capacity")
	}

	p := &dataPage{pageType: pageType, keyType: footerKeyType, pageNumber: pageNumber, nextPage: nextPage}
	off := 0
	for i := uint32(0); i < entriesCount; i++ {
		key, consumed, err := kv.Decode(keyType, buf[off:])
		if err != nil {
			return nil, errs.NewIndexError(err, errs.CodeBadPage, "failed to decode entry key")
		}
		off += consumed
		if off+entryRIDBytes > n-dataFooterBytes {
			return nil, errs.NewIndexError(nil, errs.CodeBadPage, "truncated entry RID")
		}
		page := binary.LittleEndian.Uint32(buf[off : off+4])
		slot := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		off += entryRIDBytes
		p.entries = append(p.entries, entry{key: key, rid: rf.RID{Page: page, Slot: uint16(slot)}})
	}
	return p, nil
}

// encodeDataPage serializes p into buf, which must be exactly one page.
func encodeDataPage(buf []byte, p *dataPage) {
	for i := range buf {
		buf[i] = 0
	}
	off := 0
	for _, e := range p.entries {
		kb := e.key.Bytes()
		copy(buf[off:off+len(kb)], kb)
		off += len(kb)
		binary.LittleEndian.PutUint32(buf[off:off+4], e.rid.Page)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(e.rid.Slot))
		off += entryRIDBytes
	}

	n := len(buf)
	put := func(words int, v uint32) { binary.LittleEndian.PutUint32(buf[n-4*words:n-4*words+4], v) }
	put(1, p.pageType)
	put(2, uint32(p.keyType))
	put(3, p.pageNumber)
	put(4, uint32(len(p.entries)))
	put(5, uint32(off))
	put(6, p.nextPage)
}
