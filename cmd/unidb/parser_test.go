package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := newParser("CREATE TABLE students (id INT32, name STRING(32), gpa FLOAT32)").Parse()
	require.NoError(t, err)

	ct, ok := stmt.(createTableStmt)
	require.True(t, ok)
	require.Equal(t, "students", ct.table)
	require.Len(t, ct.columns, 3)
	require.Equal(t, columnDef{name: "id", typ: "INT32"}, ct.columns[0])
	require.Equal(t, columnDef{name: "name", typ: "STRING", len: 32}, ct.columns[1])
}

func TestParseInsert(t *testing.T) {
	stmt, err := newParser(`INSERT INTO students VALUES (1, 'ada', 3.9)`).Parse()
	require.NoError(t, err)

	is, ok := stmt.(insertStmt)
	require.True(t, ok)
	require.Equal(t, "students", is.table)
	require.Len(t, is.values, 3)
	require.Equal(t, literal{kind: tokString, value: "ada"}, is.values[1])
}

func TestParseSelectWithAndedWhere(t *testing.T) {
	stmt, err := newParser("SELECT * FROM students WHERE id = 1 AND gpa >= 3.0").Parse()
	require.NoError(t, err)

	sel, ok := stmt.(selectStmt)
	require.True(t, ok)
	require.Equal(t, "students", sel.table)
	require.NotNil(t, sel.where)
	require.Len(t, sel.where.conds, 2)
	require.Equal(t, tokEqual, sel.where.conds[0].op)
	require.Equal(t, tokGreaterEq, sel.where.conds[1].op)
}

func TestParseDropTableAndIndex(t *testing.T) {
	stmt, err := newParser("DROP TABLE students").Parse()
	require.NoError(t, err)
	require.Equal(t, dropTableStmt{table: "students"}, stmt)

	stmt, err = newParser("DROP INDEX by_id ON students").Parse()
	require.NoError(t, err)
	require.Equal(t, dropIndexStmt{table: "students", name: "by_id"}, stmt)
}

func TestParseUpdateWithWhere(t *testing.T) {
	stmt, err := newParser("UPDATE students SET gpa = 4.0 WHERE id = 1").Parse()
	require.NoError(t, err)

	up, ok := stmt.(updateStmt)
	require.True(t, ok)
	require.Equal(t, "students", up.table)
	require.Len(t, up.assignments, 1)
	require.Equal(t, "gpa", up.assignments[0].col)
	require.NotNil(t, up.where)
}

func TestParseDescAdvancesPastTableName(t *testing.T) {
	stmt, err := newParser("DESC students").Parse()
	require.NoError(t, err)
	require.Equal(t, descStmt{table: "students"}, stmt)
}

func TestParseRejectsMissingComparisonOperator(t *testing.T) {
	_, err := newParser("SELECT * FROM students WHERE id 1").Parse()
	require.Error(t, err)
}
