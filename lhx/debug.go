package lhx

import (
	"fmt"
	"io"
)

// DebugPrintBucket writes a human-readable dump of one bucket's chain to w:
// one line per page, one line per entry. It is a diagnostic aid only and
// never mutates the index.
func (x *Index) DebugPrintBucket(w io.Writer, bucket uint32) error {
	if err := x.growToFit(); err != nil {
		return err
	}
	chain, err := x.loadChain(bucket)
	if err != nil {
		return err
	}
	for i, p := range chain {
		kind := "primary"
		if i > 0 {
			kind = "overflow"
		}
		fmt.Fprintf(w, "page %d (%s, page_no=%d, next=%d, entries=%d)\n",
			i, kind, p.pageNumber, p.nextPage, len(p.entries))
		for _, e := range p.entries {
			fmt.Fprintf(w, "  %s -> %s\n", e.key.String(), e.rid.String())
		}
	}
	return nil
}
