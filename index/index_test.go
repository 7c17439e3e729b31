package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"unidb/bufferpool"
	"unidb/diskmanager"
	"unidb/types"
)

func newTestIndex(t *testing.T) *IxIndex {
	t.Helper()
	dm := diskmanager.NewDiskManager()
	bp := bufferpool.NewBufferPool(32, dm)
	path := filepath.Join(t.TempDir(), "t.idx")
	cols := []types.ColMeta{{Name: "id", Type: types.ColTypeInt32, Len: 4}}
	ix, err := Open(dm, bp, path, 1, cols)
	require.NoError(t, err)
	return ix
}

func TestIndexInsertGet(t *testing.T) {
	ix := newTestIndex(t)

	for i := int32(0); i < 20; i++ {
		err := ix.Insert(types.EncodeInt32(i), types.Rid{PageNo: i, SlotNo: 0})
		require.NoError(t, err)
	}

	for i := int32(0); i < 20; i++ {
		rid, err := ix.GetValue(types.EncodeInt32(i))
		require.NoError(t, err)
		require.Equal(t, i, rid.PageNo)
	}
}

func TestIndexDuplicateKeyRejected(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Insert(types.EncodeInt32(1), types.Rid{PageNo: 1}))
	err := ix.Insert(types.EncodeInt32(1), types.Rid{PageNo: 2})
	require.ErrorIs(t, err, types.ErrDuplicateKey)
}

func TestIndexMissingKey(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Insert(types.EncodeInt32(1), types.Rid{PageNo: 1}))
	_, err := ix.GetValue(types.EncodeInt32(99))
	require.ErrorIs(t, err, types.ErrIndexEntryNotFound)
}

func TestIndexSplitsAcrossManyInserts(t *testing.T) {
	ix := newTestIndex(t)
	const n = 500

	for i := int32(0); i < n; i++ {
		require.NoError(t, ix.Insert(types.EncodeInt32(i), types.Rid{PageNo: i}))
	}
	require.NotEqual(t, nodeLeaf, func() nodeType {
		root, _, err := ix.fetchNode(ix.root)
		require.NoError(t, err)
		defer ix.bp.UnpinPage(root.pageID, false)
		return root.typ
	}(), "root should have split into an internal node by now")

	for i := int32(0); i < n; i++ {
		rid, err := ix.GetValue(types.EncodeInt32(i))
		require.NoError(t, err)
		require.Equal(t, i, rid.PageNo)
	}
}

func TestIndexRangeScanInOrder(t *testing.T) {
	ix := newTestIndex(t)
	const n = 200
	for i := int32(0); i < n; i++ {
		require.NoError(t, ix.Insert(types.EncodeInt32(i), types.Rid{PageNo: i}))
	}

	start, err := ix.LowerBound(types.EncodeInt32(0))
	require.NoError(t, err)

	cur := ix.NewCursor(start)
	count := 0
	var prev int32 = -1
	for {
		key, rid, ok, err := cur.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		v := int32(uint32(key[0]) | uint32(key[1])<<8 | uint32(key[2])<<16 | uint32(key[3])<<24)
		require.Greater(t, v, prev)
		prev = v
		require.Equal(t, v, rid.PageNo)
		count++
	}
	require.Equal(t, n, count)
}

func TestIndexDeleteThenReinsert(t *testing.T) {
	ix := newTestIndex(t)
	const n = 300
	for i := int32(0); i < n; i++ {
		require.NoError(t, ix.Insert(types.EncodeInt32(i), types.Rid{PageNo: i}))
	}

	for i := int32(0); i < n; i += 2 {
		require.NoError(t, ix.Delete(types.EncodeInt32(i)))
	}

	for i := int32(0); i < n; i++ {
		rid, err := ix.GetValue(types.EncodeInt32(i))
		if i%2 == 0 {
			require.ErrorIs(t, err, types.ErrIndexEntryNotFound)
		} else {
			require.NoError(t, err)
			require.Equal(t, i, rid.PageNo)
		}
	}

	for i := int32(0); i < n; i += 2 {
		require.NoError(t, ix.Insert(types.EncodeInt32(i), types.Rid{PageNo: i}))
	}
	for i := int32(0); i < n; i++ {
		rid, err := ix.GetValue(types.EncodeInt32(i))
		require.NoError(t, err)
		require.Equal(t, i, rid.PageNo)
	}
}

func TestIndexDeleteAllCollapsesToEmptyLeafRoot(t *testing.T) {
	ix := newTestIndex(t)
	const n = 100
	for i := int32(0); i < n; i++ {
		require.NoError(t, ix.Insert(types.EncodeInt32(i), types.Rid{PageNo: i}))
	}
	for i := int32(0); i < n; i++ {
		require.NoError(t, ix.Delete(types.EncodeInt32(i)))
	}

	root, _, err := ix.fetchNode(ix.root)
	require.NoError(t, err)
	defer ix.bp.UnpinPage(root.pageID, false)
	require.True(t, root.isLeaf())
	require.Equal(t, 0, root.numKeys())
}
