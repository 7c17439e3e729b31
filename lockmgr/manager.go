package lockmgr

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var debugLog = log.New(log.Writer(), "[lockmgr] ", 0)

// Phase is a transaction's position in the two-phase locking protocol: once
// a transaction releases any lock it moves to Shrinking and may never
// acquire another.
type Phase uint8

const (
	Growing Phase = iota
	Shrinking
)

var (
	ErrLockTimeout          = errors.New("lock acquisition timed out")
	ErrTransactionShrinking = errors.New("transaction is in the shrinking phase and cannot acquire new locks")
)

const DefaultTimeout = 5 * time.Second

type request struct {
	txnID   uint64
	mode    LockMode
	granted bool
}

// queue holds every request against one LockDataId, granted or waiting.
// groupMode is the lattice join of every currently granted request's mode,
// recomputed from scratch after any grant or release — a cache, not an
// incrementally patched running value, so it can never drift.
type queue struct {
	requests  []*request
	groupMode LockMode
	cond      *sync.Cond
}

func (q *queue) recompute() {
	mode := NL
	for _, r := range q.requests {
		if r.granted {
			mode = joinMode(mode, r.mode)
		}
	}
	q.groupMode = mode
}

func (q *queue) findByTxn(txnID uint64) *request {
	for _, r := range q.requests {
		if r.txnID == txnID {
			return r
		}
	}
	return nil
}

func (q *queue) remove(txnID uint64) {
	for i, r := range q.requests {
		if r.txnID == txnID {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			return
		}
	}
}

type txnState struct {
	phase Phase
	held  map[LockDataId]LockMode
}

// Manager is a multi-granularity two-phase lock manager. One Manager
// guards every table and record lock in the engine; callers serialize
// through it via Acquire/Unlock/ReleaseAll.
type Manager struct {
	mu      sync.Mutex
	table   map[LockDataId]*queue
	txns    map[uint64]*txnState
	timeout time.Duration
}

func NewManager() *Manager {
	return &Manager{
		table:   make(map[LockDataId]*queue),
		txns:    make(map[uint64]*txnState),
		timeout: DefaultTimeout,
	}
}

// SetTimeout overrides the default wait-for-lock timeout used to break
// deadlocks. Engine is timeout-based abort, not wound-wait or graph
// detection: a transaction stuck behind a cycle simply times out and the
// caller aborts it, releasing its locks and letting the survivor proceed.
func (m *Manager) SetTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = d
}

func (m *Manager) queueFor(id LockDataId) *queue {
	q, ok := m.table[id]
	if !ok {
		q = &queue{groupMode: NL}
		q.cond = sync.NewCond(&m.mu)
		m.table[id] = q
	}
	return q
}

func (m *Manager) txnFor(txnID uint64) *txnState {
	t, ok := m.txns[txnID]
	if !ok {
		t = &txnState{phase: Growing, held: make(map[LockDataId]LockMode)}
		m.txns[txnID] = t
	}
	return t
}

// Acquire requests mode on id for txnID, blocking until granted, timed out,
// or the transaction is already past its growing phase. Requesting a mode
// already held (or weaker than one already held) is a no-op. Requesting a
// stronger mode than currently held upgrades in place.
func (m *Manager) Acquire(txnID uint64, id LockDataId, mode LockMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := m.txnFor(txnID)
	if txn.phase == Shrinking {
		return ErrTransactionShrinking
	}

	q := m.queueFor(id)

	if held, ok := txn.held[id]; ok {
		if joinMode(held, mode) == held {
			return nil // already hold at least as strong a mode
		}
		return m.upgrade(txn, q, id, txnID, mode)
	}

	req := &request{txnID: txnID, mode: mode}
	q.requests = append(q.requests, req)

	if err := m.waitForGrant(q, req); err != nil {
		q.remove(txnID)
		q.recompute()
		return err
	}

	txn.held[id] = mode
	return nil
}

// upgrade raises an already-held lock to a stronger mode, waiting if the
// stronger mode conflicts with other transactions' grants.
func (m *Manager) upgrade(txn *txnState, q *queue, id LockDataId, txnID uint64, mode LockMode) error {
	req := q.findByTxn(txnID)
	if req == nil {
		return fmt.Errorf("lockmgr: txn %d has no existing request on %s to upgrade", txnID, id)
	}
	req.mode = mode
	req.granted = false
	q.recompute()

	if err := m.waitForGrant(q, req); err != nil {
		// Roll back to the previously held mode rather than dropping the lock
		// entirely — the transaction still legitimately holds it.
		req.mode = txn.held[id]
		req.granted = true
		q.recompute()
		return err
	}

	txn.held[id] = mode
	return nil
}

// waitForGrant blocks on q.cond until req can be granted given every other
// currently granted request, or until the manager's timeout elapses.
// Compatibility is checked against the group mode of every OTHER granted
// request, so a transaction never blocks on its own prior grant.
func (m *Manager) waitForGrant(q *queue, req *request) error {
	deadline := time.Now().Add(m.timeout)
	timer := time.AfterFunc(m.timeout, func() {
		m.mu.Lock()
		q.cond.Broadcast()
		m.mu.Unlock()
	})
	defer timer.Stop()

	blocked := false
	for !m.canGrant(q, req) {
		if !time.Now().Before(deadline) {
			debugLog.Printf("timeout txn=%d mode=%v", req.txnID, req.mode)
			return ErrLockTimeout
		}
		if !blocked {
			debugLog.Printf("blocked txn=%d mode=%v groupMode=%v", req.txnID, req.mode, q.groupMode)
			blocked = true
		}
		q.cond.Wait()
	}

	req.granted = true
	q.recompute()
	q.cond.Broadcast()
	debugLog.Printf("granted txn=%d mode=%v", req.txnID, req.mode)
	return nil
}

// canGrant checks req against the join of every OTHER granted request on q
// — excluding req itself, which matters for in-place upgrades where req is
// temporarily marked ungranted but still present in the queue.
func (m *Manager) canGrant(q *queue, req *request) bool {
	mode := NL
	for _, r := range q.requests {
		if r == req || !r.granted {
			continue
		}
		mode = joinMode(mode, r.mode)
	}
	return compatible(mode, req.mode)
}

// Unlock releases one lock held by txnID and moves it into the shrinking
// phase, per strict two-phase locking: once any lock is released, no new
// lock may be acquired.
func (m *Manager) Unlock(txnID uint64, id LockDataId) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := m.txnFor(txnID)
	txn.phase = Shrinking

	if _, ok := txn.held[id]; !ok {
		return fmt.Errorf("lockmgr: txn %d does not hold %s", txnID, id)
	}
	delete(txn.held, id)

	q, ok := m.table[id]
	if !ok {
		return nil
	}
	q.remove(txnID)
	q.recompute()
	q.cond.Broadcast()
	return nil
}

// ReleaseAll drops every lock held by txnID — called on commit or abort.
func (m *Manager) ReleaseAll(txnID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn, ok := m.txns[txnID]
	if !ok {
		return
	}
	for id := range txn.held {
		if q, ok := m.table[id]; ok {
			q.remove(txnID)
			q.recompute()
			q.cond.Broadcast()
		}
	}
	delete(m.txns, txnID)
}
