package txn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"unidb/bufferpool"
	"unidb/catalog"
	"unidb/diskmanager"
	"unidb/lockmgr"
	"unidb/types"
)

func newTestEngine(t *testing.T) (*Engine, *Manager, *catalog.Manager) {
	t.Helper()

	dm := diskmanager.NewDiskManager()
	bp := bufferpool.NewBufferPool(64, dm)
	cat := catalog.NewManager(t.TempDir())
	require.NoError(t, cat.CreateDatabase("testdb"))

	locks := lockmgr.NewManager()
	engine := NewEngine(dm, bp, cat, locks)
	mgr := NewManager(engine)
	return engine, mgr, cat
}

func widgetSchema() types.TabMeta {
	return types.TabMeta{
		Name: "widgets",
		Cols: []types.ColMeta{
			{Table: "widgets", Name: "id", Type: types.ColTypeInt32, Len: 4},
			{Table: "widgets", Name: "label", Type: types.ColTypeString, Len: 12},
		},
	}
}

func packRow(id int32, label string) []byte {
	row := make([]byte, 16)
	copy(row[0:4], types.EncodeInt32(id))
	copy(row[4:16], types.EncodeString(label, 12))
	return row
}

func TestInsertCommitPersistsRow(t *testing.T) {
	engine, mgr, cat := newTestEngine(t)
	_, err := cat.RegisterTable(widgetSchema())
	require.NoError(t, err)

	txn := mgr.Begin()
	rid, err := engine.InsertRow(txn, "widgets", packRow(1, "alpha"))
	require.NoError(t, err)
	require.NoError(t, mgr.Commit(txn))

	txn2 := mgr.Begin()
	row, err := engine.GetRow(txn2, "widgets", rid)
	require.NoError(t, err)
	require.Equal(t, packRow(1, "alpha"), row)
	require.NoError(t, mgr.Commit(txn2))
}

func TestInsertAbortRemovesRow(t *testing.T) {
	engine, mgr, cat := newTestEngine(t)
	_, err := cat.RegisterTable(widgetSchema())
	require.NoError(t, err)

	txn := mgr.Begin()
	rid, err := engine.InsertRow(txn, "widgets", packRow(2, "beta"))
	require.NoError(t, err)
	require.NoError(t, mgr.Abort(txn))

	txn2 := mgr.Begin()
	_, err = engine.GetRow(txn2, "widgets", rid)
	require.Error(t, err)
}

func TestDeleteAbortRestoresRowAtSameRid(t *testing.T) {
	engine, mgr, cat := newTestEngine(t)
	_, err := cat.RegisterTable(widgetSchema())
	require.NoError(t, err)

	setup := mgr.Begin()
	rid, err := engine.InsertRow(setup, "widgets", packRow(3, "gamma"))
	require.NoError(t, err)
	require.NoError(t, mgr.Commit(setup))

	txn := mgr.Begin()
	require.NoError(t, engine.DeleteRow(txn, "widgets", rid))
	require.NoError(t, mgr.Abort(txn))

	txn2 := mgr.Begin()
	row, err := engine.GetRow(txn2, "widgets", rid)
	require.NoError(t, err)
	require.Equal(t, packRow(3, "gamma"), row)
	require.NoError(t, mgr.Commit(txn2))
}

func TestUpdateAbortRestoresBeforeImageAndIndex(t *testing.T) {
	engine, mgr, cat := newTestEngine(t)
	_, err := cat.RegisterTable(widgetSchema())
	require.NoError(t, err)
	_, err = cat.CreateIndex("widgets", "widgets_by_id", []string{"id"})
	require.NoError(t, err)

	setup := mgr.Begin()
	rid, err := engine.InsertRow(setup, "widgets", packRow(4, "delta"))
	require.NoError(t, err)
	require.NoError(t, mgr.Commit(setup))

	txn := mgr.Begin()
	require.NoError(t, engine.UpdateRow(txn, "widgets", rid, packRow(40, "delta-prime")))
	require.NoError(t, mgr.Abort(txn))

	txn2 := mgr.Begin()
	row, err := engine.GetRow(txn2, "widgets", rid)
	require.NoError(t, err)
	require.Equal(t, packRow(4, "delta"), row)
	require.NoError(t, mgr.Commit(txn2))

	schema, err := cat.GetTableSchema("widgets")
	require.NoError(t, err)
	im, err := cat.GetIndexMeta("widgets", "widgets_by_id")
	require.NoError(t, err)
	ix, err := engine.indexFor(im)
	require.NoError(t, err)

	oldKey, err := indexKey(packRow(4, "delta"), schema, im)
	require.NoError(t, err)
	gotRid, err := ix.GetValue(oldKey)
	require.NoError(t, err)
	require.Equal(t, rid, gotRid)

	newKey, err := indexKey(packRow(40, "delta-prime"), schema, im)
	require.NoError(t, err)
	_, err = ix.GetValue(newKey)
	require.Error(t, err)
}

func TestDeleteRowAcrossTransactionsIsMutuallyExclusive(t *testing.T) {
	engine, mgr, cat := newTestEngine(t)
	_, err := cat.RegisterTable(widgetSchema())
	require.NoError(t, err)
	engine.locks.SetTimeout(50_000_000) // 50ms, avoid a slow test

	setup := mgr.Begin()
	rid, err := engine.InsertRow(setup, "widgets", packRow(5, "epsilon"))
	require.NoError(t, err)
	require.NoError(t, mgr.Commit(setup))

	txn1 := mgr.Begin()
	require.NoError(t, engine.DeleteRow(txn1, "widgets", rid))

	txn2 := mgr.Begin()
	err = engine.DeleteRow(txn2, "widgets", rid)
	require.Error(t, err)

	require.NoError(t, mgr.Abort(txn2))
	require.NoError(t, mgr.Commit(txn1))
}
