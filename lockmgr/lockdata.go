package lockmgr

import (
	"fmt"

	"unidb/types"
)

// LockDataKind distinguishes a table-granularity lock from a record-
// granularity one within the same table.
type LockDataKind uint8

const (
	KindTable LockDataKind = iota
	KindRecord
)

// LockDataId identifies one lockable unit: either an entire table (by file
// descriptor / fileID) or a single record within it.
type LockDataId struct {
	TableFD uint32
	Rid     types.Rid
	Kind    LockDataKind
}

func TableLock(tableFD uint32) LockDataId {
	return LockDataId{TableFD: tableFD, Kind: KindTable}
}

func RecordLock(tableFD uint32, rid types.Rid) LockDataId {
	return LockDataId{TableFD: tableFD, Rid: rid, Kind: KindRecord}
}

func (id LockDataId) String() string {
	if id.Kind == KindTable {
		return fmt.Sprintf("table(%d)", id.TableFD)
	}
	return fmt.Sprintf("record(%d,%s)", id.TableFD, id.Rid)
}
