package lockmgr

import "unidb/types"

// Table-granularity locks. Callers scanning a whole table take S or X
// directly; callers about to take record locks first acquire the matching
// intent lock (IS before a shared record lock, IX before an exclusive one).

func (m *Manager) LockTableIS(txnID uint64, tableFD uint32) error {
	return m.Acquire(txnID, TableLock(tableFD), IS)
}

func (m *Manager) LockTableIX(txnID uint64, tableFD uint32) error {
	return m.Acquire(txnID, TableLock(tableFD), IX)
}

func (m *Manager) LockTableS(txnID uint64, tableFD uint32) error {
	return m.Acquire(txnID, TableLock(tableFD), S)
}

func (m *Manager) LockTableSIX(txnID uint64, tableFD uint32) error {
	return m.Acquire(txnID, TableLock(tableFD), SIX)
}

func (m *Manager) LockTableX(txnID uint64, tableFD uint32) error {
	return m.Acquire(txnID, TableLock(tableFD), X)
}

// Record-granularity locks. Both take the matching table-level intent lock
// first, as multi-granularity locking requires.

func (m *Manager) LockRecordShared(txnID uint64, tableFD uint32, rid types.Rid) error {
	if err := m.LockTableIS(txnID, tableFD); err != nil {
		return err
	}
	return m.Acquire(txnID, RecordLock(tableFD, rid), S)
}

func (m *Manager) LockRecordExclusive(txnID uint64, tableFD uint32, rid types.Rid) error {
	if err := m.LockTableIX(txnID, tableFD); err != nil {
		return err
	}
	return m.Acquire(txnID, RecordLock(tableFD, rid), X)
}
