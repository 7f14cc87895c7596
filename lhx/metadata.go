package lhx

import "encoding/binary"

// metadata is the linear-hash index's metadata page (LMP): seven 32-bit
// unsigned words held on page 0 of the overflow file.
type metadata struct {
	entryCount         uint32
	primaryPageCount   uint32
	overflowPageCount  uint32
	deletedOverflow    uint32
	bucketCount        uint32 // N
	splitPointer       uint32 // p
	initialBucketCount uint32 // N_initial
}

const metadataWords = 7

func decodeMetadata(buf []byte) metadata {
	u := func(i int) uint32 { return binary.LittleEndian.Uint32(buf[4*i : 4*i+4]) }
	return metadata{
		entryCount:         u(0),
		primaryPageCount:   u(1),
		overflowPageCount:  u(2),
		deletedOverflow:    u(3),
		bucketCount:        u(4),
		splitPointer:       u(5),
		initialBucketCount: u(6),
	}
}

func encodeMetadata(buf []byte, m metadata) {
	for i := range buf {
		buf[i] = 0
	}
	put := func(i int, v uint32) { binary.LittleEndian.PutUint32(buf[4*i:4*i+4], v) }
	put(0, m.entryCount)
	put(1, m.primaryPageCount)
	put(2, m.overflowPageCount)
	put(3, m.deletedOverflow)
	put(4, m.bucketCount)
	put(5, m.splitPointer)
	put(6, m.initialBucketCount)
}

func isPowerOfTwo(n uint32) bool {
	return n > 0 && n&(n-1) == 0
}

// calcBucket implements the standard linear-hashing addressing: h mod N,
// falling back to h mod 2N when that lands before the split pointer.
func calcBucket(n, p, h uint32) uint32 {
	b := h % n
	if b < p {
		b = h % (2 * n)
	}
	return b
}
