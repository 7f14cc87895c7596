package rf

import "fmt"

// RID addresses one record by page number and slot index. It is stable
// across Update — a migrated record keeps its original RID, readable via
// the forwarding pointer left behind at the original slot.
type RID struct {
	Page uint32
	Slot uint16
}

func (r RID) String() string {
	return fmt.Sprintf("(%d,%d)", r.Page, r.Slot)
}
