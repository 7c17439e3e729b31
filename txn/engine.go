package txn

import (
	"fmt"
	"path/filepath"
	"sync"

	"unidb/bufferpool"
	"unidb/catalog"
	"unidb/diskmanager"
	"unidb/heap"
	"unidb/index"
	"unidb/lockmgr"
	"unidb/types"
	"unidb/wal"
)

// Engine is the transactional facade over the storage core: it owns the
// catalog, the lock manager, and every open heap/index file for the current
// database, and exposes row-level operations that acquire locks, perform
// the read/write, and append to the calling transaction's write-set.
type Engine struct {
	mu      sync.Mutex
	dm      *diskmanager.DiskManager
	bp      *bufferpool.BufferPool
	cat     *catalog.Manager
	locks   *lockmgr.Manager
	log     *wal.Writer
	heaps   map[uint32]*heap.RecordFile
	indexes map[uint32]*index.IxIndex
}

func NewEngine(dm *diskmanager.DiskManager, bp *bufferpool.BufferPool, cat *catalog.Manager, locks *lockmgr.Manager) *Engine {
	return &Engine{
		dm:      dm,
		bp:      bp,
		cat:     cat,
		locks:   locks,
		heaps:   make(map[uint32]*heap.RecordFile),
		indexes: make(map[uint32]*index.IxIndex),
	}
}

// SetWAL attaches a WAL writer. Every mutating row operation then appends
// an Operation record before touching the heap or index files. A nil or
// never-set writer is a valid no-log configuration, used by tests.
func (e *Engine) SetWAL(w *wal.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = w
}

func (e *Engine) logOp(op *wal.Operation) error {
	e.mu.Lock()
	w := e.log
	e.mu.Unlock()

	if w == nil {
		return nil
	}
	if _, err := w.AppendOperation(op); err != nil {
		return fmt.Errorf("txn: log operation: %w", err)
	}
	return w.Sync()
}

// HeapFileFor exposes the open RecordFile backing table to callers outside
// the package, such as the SQL front end's scan executors, without making
// them reimplement catalog lookup and lazy file opening.
func (e *Engine) HeapFileFor(table string) (*heap.RecordFile, types.TabMeta, error) {
	return e.heapFor(table)
}

// IndexFor exposes the open IxIndex backing im to callers outside the
// package, same rationale as HeapFileFor.
func (e *Engine) IndexFor(im types.IndexMeta) (*index.IxIndex, error) {
	return e.indexFor(im)
}

// LockTableIntentShared acquires an IS lock on table, the granularity a
// sequential scan holds for its duration before taking per-row S locks.
func (e *Engine) LockTableIntentShared(txn *Transaction, table string) error {
	rf, _, err := e.heapFor(table)
	if err != nil {
		return err
	}
	return e.locks.LockTableIS(txn.ID, rf.FileID())
}

// LockRowShared acquires a record-level S lock on rid without reading it,
// for scans that already have the row bytes from a Scanner and only need
// the lock recorded under strict two-phase locking.
func (e *Engine) LockRowShared(txn *Transaction, table string, rid types.Rid) error {
	rf, _, err := e.heapFor(table)
	if err != nil {
		return err
	}
	return e.locks.LockRecordShared(txn.ID, rf.FileID(), rid)
}

// heapFor returns the open RecordFile for table, opening it on first use.
func (e *Engine) heapFor(table string) (*heap.RecordFile, types.TabMeta, error) {
	schema, err := e.cat.GetTableSchema(table)
	if err != nil {
		return nil, types.TabMeta{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if rf, ok := e.heaps[schema.HeapFileID]; ok {
		return rf, schema, nil
	}

	path := filepath.Join(e.cat.DBDir(), table)
	rf, err := heap.Open(e.dm, e.bp, path, schema.HeapFileID, int32(schema.RecordSize))
	if err != nil {
		return nil, types.TabMeta{}, fmt.Errorf("txn: open heap for %q: %w", table, err)
	}
	e.heaps[schema.HeapFileID] = rf
	return rf, schema, nil
}

// indexFor returns the open IxIndex backing im, opening it on first use.
func (e *Engine) indexFor(im types.IndexMeta) (*index.IxIndex, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ix, ok := e.indexes[im.FileID]; ok {
		return ix, nil
	}

	schema, err := e.cat.GetTableSchema(im.Table)
	if err != nil {
		return nil, err
	}
	cols := make([]types.ColMeta, 0, len(im.Columns))
	for _, name := range im.Columns {
		col, err := schema.ColByName(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	path := filepath.Join(e.cat.DBDir(), im.FileName())
	ix, err := index.Open(e.dm, e.bp, path, im.FileID, cols)
	if err != nil {
		return nil, fmt.Errorf("txn: open index %q: %w", im.Name, err)
	}
	e.indexes[im.FileID] = ix
	return ix, nil
}

// indexKey extracts the composite key bytes for im out of a packed row.
func indexKey(row []byte, schema types.TabMeta, im types.IndexMeta) ([]byte, error) {
	key := make([]byte, 0, im.KeyWidth)
	for _, name := range im.Columns {
		col, err := schema.ColByName(name)
		if err != nil {
			return nil, err
		}
		key = append(key, row[col.Offset:col.Offset+col.Len]...)
	}
	return key, nil
}
