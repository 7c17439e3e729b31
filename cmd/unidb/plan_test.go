package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"unidb/catalog"
	"unidb/types"
)

func newTestCatalogWithStudents(t *testing.T) *catalog.Manager {
	t.Helper()
	cm := catalog.NewManager(t.TempDir())
	require.NoError(t, cm.CreateDatabase("testdb"))

	_, err := cm.RegisterTable(types.TabMeta{
		Name: "students",
		Cols: []types.ColMeta{
			{Table: "students", Name: "id", Type: types.ColTypeInt32, Len: 4},
			{Table: "students", Name: "name", Type: types.ColTypeString, Len: 16},
			{Table: "students", Name: "gpa", Type: types.ColTypeFloat32, Len: 4},
		},
	})
	require.NoError(t, err)
	return cm
}

func TestPlanInsertEncodesEveryColumn(t *testing.T) {
	cm := newTestCatalogWithStudents(t)

	stmt, err := newParser(`INSERT INTO students VALUES (7, 'ada', 3.9)`).Parse()
	require.NoError(t, err)

	p, err := buildPlan(stmt, cm)
	require.NoError(t, err)

	dp, ok := p.(dmlPlan)
	require.True(t, ok)
	require.Equal(t, dmlInsert, dp.kind)
	require.Equal(t, int32(7), types.DecodeInt32(dp.row[0:4]))
	require.Equal(t, "ada", types.DecodeString(dp.row[4:20]))
	require.Equal(t, float32(3.9), types.DecodeFloat32(dp.row[20:24]))
}

func TestPlanInsertRejectsWrongArity(t *testing.T) {
	cm := newTestCatalogWithStudents(t)

	stmt, err := newParser(`INSERT INTO students VALUES (7, 'ada')`).Parse()
	require.NoError(t, err)

	_, err = buildPlan(stmt, cm)
	require.Error(t, err)
}

func TestPlanSelectBindsEqualityForIndexScan(t *testing.T) {
	cm := newTestCatalogWithStudents(t)

	stmt, err := newParser("SELECT * FROM students WHERE id = 7").Parse()
	require.NoError(t, err)

	p, err := buildPlan(stmt, cm)
	require.NoError(t, err)

	dp := p.(dmlPlan)
	cond, ok := dp.where.equalityOn()
	require.True(t, ok)
	require.Equal(t, "id", cond.col.Name)
	require.Equal(t, int32(7), types.DecodeInt32(cond.key))
}

func TestBoundWhereMatchesAndedConditions(t *testing.T) {
	cm := newTestCatalogWithStudents(t)

	stmt, err := newParser("SELECT * FROM students WHERE id = 7 AND gpa >= 3.5").Parse()
	require.NoError(t, err)
	p, err := buildPlan(stmt, cm)
	require.NoError(t, err)
	dp := p.(dmlPlan)

	_, ok := dp.where.equalityOn()
	require.False(t, ok, "a two-condition WHERE is not a pure equality lookup")

	schema, err := cm.GetTableSchema("students")
	require.NoError(t, err)

	row := make([]byte, schema.RecordSize)
	copy(row[0:4], types.EncodeInt32(7))
	copy(row[4:20], types.EncodeString("ada", 16))
	copy(row[20:24], types.EncodeFloat32(3.9))
	require.True(t, dp.where.matches(row))

	copy(row[20:24], types.EncodeFloat32(2.0))
	require.False(t, dp.where.matches(row))
}

func TestPlanUpdateAndDeleteBindWhere(t *testing.T) {
	cm := newTestCatalogWithStudents(t)

	stmt, err := newParser("UPDATE students SET gpa = 4.0 WHERE id = 7").Parse()
	require.NoError(t, err)
	p, err := buildPlan(stmt, cm)
	require.NoError(t, err)
	up := p.(dmlPlan)
	require.Equal(t, dmlUpdate, up.kind)
	require.Contains(t, up.assignments, "gpa")

	stmt, err = newParser("DELETE FROM students WHERE id = 7").Parse()
	require.NoError(t, err)
	p, err = buildPlan(stmt, cm)
	require.NoError(t, err)
	del := p.(dmlPlan)
	require.Equal(t, dmlDelete, del.kind)
}

func TestPlanDropTableAndIndex(t *testing.T) {
	cm := newTestCatalogWithStudents(t)

	stmt, err := newParser("DROP TABLE students").Parse()
	require.NoError(t, err)
	p, err := buildPlan(stmt, cm)
	require.NoError(t, err)
	ddl := p.(ddlPlan)
	require.Equal(t, ddlDropTable, ddl.kind)
	require.Equal(t, "students", ddl.index.table)

	stmt, err = newParser("DROP INDEX by_id ON students").Parse()
	require.NoError(t, err)
	p, err = buildPlan(stmt, cm)
	require.NoError(t, err)
	ddl = p.(ddlPlan)
	require.Equal(t, ddlDropIndex, ddl.kind)
	require.Equal(t, "students", ddl.index.table)
	require.Equal(t, "by_id", ddl.index.name)
}
