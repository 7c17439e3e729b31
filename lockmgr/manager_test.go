package lockmgr

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"unidb/types"
)

func TestSharedLocksAreCompatible(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.LockTableS(1, 10))
	require.NoError(t, m.LockTableS(2, 10))
}

func TestExclusiveBlocksShared(t *testing.T) {
	m := NewManager()
	m.SetTimeout(100 * time.Millisecond)

	require.NoError(t, m.LockTableX(1, 10))

	err := m.LockTableS(2, 10)
	require.ErrorIs(t, err, ErrLockTimeout)
}

func TestUnlockReleasesWaiter(t *testing.T) {
	m := NewManager()
	m.SetTimeout(2 * time.Second)

	require.NoError(t, m.LockTableX(1, 10))

	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		err = m.LockTableS(2, 10)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.Unlock(1, TableLock(10)))
	wg.Wait()
	require.NoError(t, err)
}

func TestUpgradeInPlace(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.LockTableS(1, 10))
	require.NoError(t, m.LockTableX(1, 10)) // upgrade S -> X for the same txn, no other holders
}

func TestShrinkingPhaseRejectsNewLocks(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.LockTableS(1, 10))
	require.NoError(t, m.Unlock(1, TableLock(10)))

	err := m.LockTableS(1, 20)
	require.ErrorIs(t, err, ErrTransactionShrinking)
}

func TestIntentLocksCompatibleAtTableLevel(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.LockRecordExclusive(1, 10, types.Rid{PageNo: 1, SlotNo: 1}))
	// A second txn taking IX on the same table (for a different record) must
	// not block on the first txn's IX.
	require.NoError(t, m.LockTableIX(2, 10))
}

func TestRecordExclusiveLocksConflict(t *testing.T) {
	m := NewManager()
	m.SetTimeout(100 * time.Millisecond)

	rid := types.Rid{PageNo: 1, SlotNo: 1}
	require.NoError(t, m.LockRecordExclusive(1, 10, rid))

	err := m.LockRecordExclusive(2, 10, rid)
	require.ErrorIs(t, err, ErrLockTimeout)
}

func TestReleaseAllDropsEveryLock(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.LockTableIS(1, 10))
	require.NoError(t, m.LockRecordShared(1, 10, types.Rid{PageNo: 1}))

	m.ReleaseAll(1)

	require.NoError(t, m.LockTableX(2, 10))
}
