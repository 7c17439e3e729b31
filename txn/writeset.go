package txn

import (
	"bytes"
	"fmt"

	"unidb/types"
)

type writeKind uint8

const (
	writeInsert writeKind = iota
	writeDelete
	writeUpdate
)

// writeRecord is one entry in a transaction's write-set: enough to undo the
// operation without re-reading anything from the caller. Before is the row
// image prior to the operation (nil for INSERT); After is the row image the
// operation left in place (nil for DELETE).
type writeRecord struct {
	kind   writeKind
	table  string
	rid    types.Rid
	before []byte
	after  []byte
}

// undo reverses one write-set entry: delete what was inserted, restore what
// was deleted at the same Rid, or roll an update back to its before-image.
// Index entries are recomputed from the recorded row images rather than
// re-read from storage, since strict two-phase locking guarantees no other
// transaction touched this row while it was held.
func (e *Engine) undo(w writeRecord) error {
	rf, schema, err := e.heapFor(w.table)
	if err != nil {
		return err
	}

	switch w.kind {
	case writeInsert:
		if err := rf.Delete(w.rid); err != nil {
			return err
		}
		return e.deleteIndexEntries(schema, w.rid, w.after)

	case writeDelete:
		if err := rf.InsertAt(w.rid, w.before); err != nil {
			return err
		}
		return e.insertIndexEntries(schema, w.rid, w.before)

	case writeUpdate:
		if err := rf.Update(w.rid, w.before); err != nil {
			return err
		}
		for _, im := range schema.Indexes {
			oldKey, err := indexKey(w.before, schema, im)
			if err != nil {
				return err
			}
			newKey, err := indexKey(w.after, schema, im)
			if err != nil {
				return err
			}
			if bytes.Equal(oldKey, newKey) {
				continue
			}
			ix, err := e.indexFor(im)
			if err != nil {
				return err
			}
			if err := ix.Delete(newKey); err != nil {
				return err
			}
			if err := ix.Insert(oldKey, w.rid); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("txn: undo: unknown write kind %d", w.kind)
	}
}

func (e *Engine) insertIndexEntries(schema types.TabMeta, rid types.Rid, row []byte) error {
	for _, im := range schema.Indexes {
		key, err := indexKey(row, schema, im)
		if err != nil {
			return err
		}
		ix, err := e.indexFor(im)
		if err != nil {
			return err
		}
		if err := ix.Insert(key, rid); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) deleteIndexEntries(schema types.TabMeta, rid types.Rid, row []byte) error {
	for _, im := range schema.Indexes {
		key, err := indexKey(row, schema, im)
		if err != nil {
			return err
		}
		ix, err := e.indexFor(im)
		if err != nil {
			return err
		}
		if err := ix.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
