package heap

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"unidb/bufferpool"
	"unidb/diskmanager"
	"unidb/types"
)

func newTestRecordFile(t *testing.T, recordSize int32) *RecordFile {
	t.Helper()
	dm := diskmanager.NewDiskManager()
	bp := bufferpool.NewBufferPool(8, dm)
	path := filepath.Join(t.TempDir(), "t.heap")
	rf, err := Open(dm, bp, path, 1, recordSize)
	require.NoError(t, err)
	return rf
}

func fixed(s string, n int) []byte {
	buf := make([]byte, n)
	copy(buf, s)
	return buf
}

func TestRecordFileInsertGet(t *testing.T) {
	rf := newTestRecordFile(t, 16)

	rows := []string{"alice", "bob", "carol", "dave"}
	rids := make([]types.Rid, len(rows))
	for i, name := range rows {
		rid, err := rf.Insert(fixed(name, 16))
		require.NoError(t, err)
		rids[i] = rid
	}

	for i, rid := range rids {
		got, err := rf.Get(rid)
		require.NoError(t, err)
		require.Equal(t, fixed(rows[i], 16), got)
	}
}

func TestRecordFileInvalidLength(t *testing.T) {
	rf := newTestRecordFile(t, 16)
	_, err := rf.Insert([]byte("too short"))
	require.ErrorIs(t, err, types.ErrInvalidRecordLen)
}

func TestRecordFileSpansMultiplePages(t *testing.T) {
	// A large fixed record size forces very few records per page, so a
	// modest number of inserts must cross a page boundary.
	rf := newTestRecordFile(t, 2000)

	seen := map[int32]bool{}
	for i := 0; i < 10; i++ {
		rid, err := rf.Insert(fixed("row", 2000))
		require.NoError(t, err)
		seen[rid.PageNo] = true
	}
	require.Greater(t, len(seen), 1, "expected inserts to span more than one page")
	require.Greater(t, rf.NumPages(), int32(1))
}

func TestRecordFileDeleteFreesSlotForReuse(t *testing.T) {
	rf := newTestRecordFile(t, 8)

	rid, err := rf.Insert(fixed("a", 8))
	require.NoError(t, err)

	require.NoError(t, rf.Delete(rid))

	_, err = rf.Get(rid)
	var notFound *types.RecordNotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, rid, notFound.Rid)

	newRid, err := rf.Insert(fixed("b", 8))
	require.NoError(t, err)
	require.Equal(t, rid, newRid, "freed slot should be reused before growing the file")
}

func TestRecordFileInsertAtRestoresSameRid(t *testing.T) {
	rf := newTestRecordFile(t, 8)

	rid, err := rf.Insert(fixed("orig", 8))
	require.NoError(t, err)
	require.NoError(t, rf.Delete(rid))

	require.NoError(t, rf.InsertAt(rid, fixed("undo", 8)))

	got, err := rf.Get(rid)
	require.NoError(t, err)
	require.Equal(t, fixed("undo", 8), got)
}

func TestRecordFileUpdateInPlace(t *testing.T) {
	rf := newTestRecordFile(t, 8)

	rid, err := rf.Insert(fixed("v1", 8))
	require.NoError(t, err)

	require.NoError(t, rf.Update(rid, fixed("v2", 8)))

	got, err := rf.Get(rid)
	require.NoError(t, err)
	require.Equal(t, fixed("v2", 8), got)
}

func TestRecordFilePersistsHeaderAcrossReopen(t *testing.T) {
	dm := diskmanager.NewDiskManager()
	bp := bufferpool.NewBufferPool(8, dm)
	path := filepath.Join(t.TempDir(), "t.heap")

	rf, err := Open(dm, bp, path, 1, 8)
	require.NoError(t, err)
	rid, err := rf.Insert(fixed("persisted", 8))
	require.NoError(t, err)
	require.NoError(t, bp.FlushAllPages())

	dm2 := diskmanager.NewDiskManager()
	bp2 := bufferpool.NewBufferPool(8, dm2)
	rf2, err := Open(dm2, bp2, path, 1, 8)
	require.NoError(t, err)

	got, err := rf2.Get(rid)
	require.NoError(t, err)
	require.Equal(t, fixed("persisted", 8), got)
}
