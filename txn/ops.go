package txn

import (
	"fmt"

	"unidb/types"
	"unidb/wal"
)

// GetRow reads one row under a shared lock. The lock is held until commit
// or abort, per strict two-phase locking.
func (e *Engine) GetRow(txn *Transaction, table string, rid types.Rid) ([]byte, error) {
	rf, _, err := e.heapFor(table)
	if err != nil {
		return nil, err
	}
	fileID := rf.FileID()
	if err := e.locks.LockRecordShared(txn.ID, fileID, rid); err != nil {
		return nil, fmt.Errorf("txn: get %s %s: %w", table, rid, err)
	}
	return rf.Get(rid)
}

// InsertRow appends row to table's heap file, populates every declared
// index, and records the insertion in txn's write-set for possible undo.
func (e *Engine) InsertRow(txn *Transaction, table string, row []byte) (types.Rid, error) {
	rf, schema, err := e.heapFor(table)
	if err != nil {
		return types.Rid{}, err
	}
	fileID := rf.FileID()
	if err := e.locks.LockTableIX(txn.ID, fileID); err != nil {
		return types.Rid{}, fmt.Errorf("txn: insert into %s: %w", table, err)
	}
	if err := e.logOp(&wal.Operation{Type: wal.OpInsert, TxnID: txn.ID, Table: table, After: row}); err != nil {
		return types.Rid{}, err
	}

	rid, err := rf.Insert(row)
	if err != nil {
		return types.Rid{}, err
	}
	if err := e.locks.LockRecordExclusive(txn.ID, fileID, rid); err != nil {
		return types.Rid{}, fmt.Errorf("txn: insert into %s: %w", table, err)
	}
	if err := e.insertIndexEntries(schema, rid, row); err != nil {
		return types.Rid{}, err
	}

	txn.writeSet = append(txn.writeSet, writeRecord{kind: writeInsert, table: table, rid: rid, after: row})
	return rid, nil
}

// DeleteRow removes the row at rid from table's heap file and every index,
// recording the before-image so abort can restore it at the same Rid.
func (e *Engine) DeleteRow(txn *Transaction, table string, rid types.Rid) error {
	rf, schema, err := e.heapFor(table)
	if err != nil {
		return err
	}
	fileID := rf.FileID()
	if err := e.locks.LockRecordExclusive(txn.ID, fileID, rid); err != nil {
		return fmt.Errorf("txn: delete from %s: %w", table, err)
	}

	before, err := rf.Get(rid)
	if err != nil {
		return err
	}
	if err := e.logOp(&wal.Operation{Type: wal.OpDelete, TxnID: txn.ID, Table: table, Rid: rid, Before: before}); err != nil {
		return err
	}
	if err := rf.Delete(rid); err != nil {
		return err
	}
	if err := e.deleteIndexEntries(schema, rid, before); err != nil {
		return err
	}

	txn.writeSet = append(txn.writeSet, writeRecord{kind: writeDelete, table: table, rid: rid, before: before})
	return nil
}

// UpdateRow overwrites the row at rid in place and refreshes every index
// whose key changed, recording the before-image for undo.
func (e *Engine) UpdateRow(txn *Transaction, table string, rid types.Rid, newRow []byte) error {
	rf, schema, err := e.heapFor(table)
	if err != nil {
		return err
	}
	fileID := rf.FileID()
	if err := e.locks.LockRecordExclusive(txn.ID, fileID, rid); err != nil {
		return fmt.Errorf("txn: update %s: %w", table, err)
	}

	before, err := rf.Get(rid)
	if err != nil {
		return err
	}
	if err := e.logOp(&wal.Operation{Type: wal.OpUpdate, TxnID: txn.ID, Table: table, Rid: rid, Before: before, After: newRow}); err != nil {
		return err
	}
	if err := rf.Update(rid, newRow); err != nil {
		return err
	}

	for _, im := range schema.Indexes {
		oldKey, err := indexKey(before, schema, im)
		if err != nil {
			return err
		}
		newKey, err := indexKey(newRow, schema, im)
		if err != nil {
			return err
		}
		if string(oldKey) == string(newKey) {
			continue
		}
		ix, err := e.indexFor(im)
		if err != nil {
			return err
		}
		if err := ix.Delete(oldKey); err != nil {
			return err
		}
		if err := ix.Insert(newKey, rid); err != nil {
			return err
		}
	}

	txn.writeSet = append(txn.writeSet, writeRecord{kind: writeUpdate, table: table, rid: rid, before: before, after: newRow})
	return nil
}
