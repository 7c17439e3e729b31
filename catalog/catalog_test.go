package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"unidb/types"
)

func newTestCatalog(t *testing.T) *Manager {
	t.Helper()
	cm := NewManager(t.TempDir())
	require.NoError(t, cm.CreateDatabase("testdb"))
	return cm
}

func sampleSchema(name string) types.TabMeta {
	return types.TabMeta{
		Name: name,
		Cols: []types.ColMeta{
			{Table: name, Name: "id", Type: types.ColTypeInt32, Len: 4},
			{Table: name, Name: "label", Type: types.ColTypeString, Len: 16},
		},
	}
}

func TestRegisterTablePersistsLayout(t *testing.T) {
	cm := newTestCatalog(t)

	schema, err := cm.RegisterTable(sampleSchema("widgets"))
	require.NoError(t, err)
	require.Equal(t, 20, schema.RecordSize)
	require.Equal(t, 0, schema.Cols[0].Offset)
	require.Equal(t, 4, schema.Cols[1].Offset)
	require.NotZero(t, schema.HeapFileID)

	fileID, err := cm.GetHeapFileID("widgets")
	require.NoError(t, err)
	require.Equal(t, schema.HeapFileID, fileID)
}

func TestRegisterDuplicateTableFails(t *testing.T) {
	cm := newTestCatalog(t)
	_, err := cm.RegisterTable(sampleSchema("widgets"))
	require.NoError(t, err)

	_, err = cm.RegisterTable(sampleSchema("widgets"))
	require.ErrorIs(t, err, types.ErrTableExists)
}

func TestCreateIndexAllocatesFileAndPersistsSchema(t *testing.T) {
	cm := newTestCatalog(t)
	_, err := cm.RegisterTable(sampleSchema("widgets"))
	require.NoError(t, err)

	im, err := cm.CreateIndex("widgets", "widgets_by_id", []string{"id"})
	require.NoError(t, err)
	require.Equal(t, 4, im.KeyWidth)
	require.NotZero(t, im.FileID)

	got, err := cm.GetIndexMeta("widgets", "widgets_by_id")
	require.NoError(t, err)
	require.Equal(t, im, got)

	fileID, err := cm.GetIndexFileID("widgets", "widgets_by_id")
	require.NoError(t, err)
	require.Equal(t, im.FileID, fileID)
}

func TestDropTableRemovesSchema(t *testing.T) {
	cm := newTestCatalog(t)
	_, err := cm.RegisterTable(sampleSchema("widgets"))
	require.NoError(t, err)

	require.NoError(t, cm.DropTable("widgets"))
	_, err = cm.GetTableSchema("widgets")
	require.ErrorIs(t, err, types.ErrTableMissing)
}

func TestReopenDatabaseReloadsSchemasAndMapping(t *testing.T) {
	root := t.TempDir()
	cm := NewManager(root)
	require.NoError(t, cm.CreateDatabase("testdb"))
	schema, err := cm.RegisterTable(sampleSchema("widgets"))
	require.NoError(t, err)
	_, err = cm.CreateIndex("widgets", "widgets_by_id", []string{"id"})
	require.NoError(t, err)

	fresh := NewManager(root)
	require.NoError(t, fresh.OpenDatabase("testdb"))

	got, err := fresh.GetTableSchema("widgets")
	require.NoError(t, err)
	require.Equal(t, schema.RecordSize, got.RecordSize)
	require.Len(t, got.Indexes, 1)

	fileID, err := fresh.GetIndexFileID("widgets", "widgets_by_id")
	require.NoError(t, err)
	require.NotZero(t, fileID)
}

func TestOpenMissingDatabaseFails(t *testing.T) {
	cm := NewManager(t.TempDir())
	err := cm.OpenDatabase("nope")
	require.ErrorIs(t, err, types.ErrDatabaseMissing)
}
