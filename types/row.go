package types

import "fmt"

// Rid is a record identifier: the slot of a tuple inside a heap file.
// Stable for the lifetime of the row; reused after deletion.
type Rid struct {
	PageNo int32
	SlotNo int32
}

func (r Rid) String() string {
	return fmt.Sprintf("(%d,%d)", r.PageNo, r.SlotNo)
}

func (r Rid) Invalid() bool {
	return r.PageNo < 0
}

// InvalidRid is returned where no record identifier applies.
var InvalidRid = Rid{PageNo: -1, SlotNo: -1}

// Iid is an index cursor: a position inside a leaf's key/value arrays.
// It has the same shape as Rid but walks leaf pages, not heap pages.
type Iid struct {
	PageNo int32
	SlotNo int32
}

func (i Iid) String() string {
	return fmt.Sprintf("(%d,%d)", i.PageNo, i.SlotNo)
}
