package txn

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"unidb/wal"
)

var debugLog = log.New(log.Writer(), "[txn] ", 0)

// State is a transaction's lifecycle position.
type State uint8

const (
	Active State = iota
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "?"
	}
}

// Transaction tracks one session's write-set for rollback. Lock ownership
// itself lives in the lock manager, keyed by ID.
type Transaction struct {
	ID       uint64
	State    State
	writeSet []writeRecord
}

// Manager issues transaction IDs and owns the set of currently active
// transactions. Abort replays the write-set directly instead of deferring
// to WAL recovery.
type Manager struct {
	mu     sync.Mutex
	nextID uint64
	active map[uint64]*Transaction
	engine *Engine
}

func NewManager(engine *Engine) *Manager {
	return &Manager{
		nextID: 1,
		active: make(map[uint64]*Transaction),
		engine: engine,
	}
}

func (m *Manager) Begin() *Transaction {
	id := atomic.AddUint64(&m.nextID, 1) - 1

	txn := &Transaction{ID: id, State: Active}

	m.mu.Lock()
	m.active[id] = txn
	m.mu.Unlock()
	debugLog.Printf("BEGIN txnID=%d", id)
	return txn
}

// Commit discards the write-set and releases every lock held by txn.
func (m *Manager) Commit(txn *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if txn.State != Active {
		return fmt.Errorf("txn: commit %d: transaction is %s, not active", txn.ID, txn.State)
	}

	if err := m.engine.logOp(&wal.Operation{Type: wal.OpTxnCommit, TxnID: txn.ID}); err != nil {
		return err
	}

	txn.State = Committed
	txn.writeSet = nil
	delete(m.active, txn.ID)
	m.engine.locks.ReleaseAll(txn.ID)
	debugLog.Printf("COMMIT txnID=%d", txn.ID)
	return nil
}

// Abort replays txn's write-set in reverse order, undoing every INSERT,
// DELETE, and UPDATE it performed, then releases every lock it holds.
func (m *Manager) Abort(txn *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if txn.State != Active {
		return fmt.Errorf("txn: abort %d: transaction is %s, not active", txn.ID, txn.State)
	}

	undone := len(txn.writeSet)
	for i := len(txn.writeSet) - 1; i >= 0; i-- {
		if err := m.engine.undo(txn.writeSet[i]); err != nil {
			return fmt.Errorf("txn: abort %d: undo write %d: %w", txn.ID, i, err)
		}
	}

	if err := m.engine.logOp(&wal.Operation{Type: wal.OpTxnAbort, TxnID: txn.ID}); err != nil {
		return err
	}

	txn.State = Aborted
	txn.writeSet = nil
	delete(m.active, txn.ID)
	m.engine.locks.ReleaseAll(txn.ID)
	debugLog.Printf("ABORT txnID=%d undone=%d", txn.ID, undone)
	return nil
}

func (m *Manager) Lookup(id uint64) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.active[id]
	return txn, ok
}
