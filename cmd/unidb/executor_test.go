package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"unidb/bufferpool"
	"unidb/catalog"
	"unidb/diskmanager"
	"unidb/lockmgr"
	"unidb/txn"
)

func newTestRuntime(t *testing.T) *runtime {
	t.Helper()

	dm := diskmanager.NewDiskManager()
	bp := bufferpool.NewBufferPool(64, dm)
	cat := catalog.NewManager(t.TempDir())
	require.NoError(t, cat.CreateDatabase("testdb"))

	locks := lockmgr.NewManager()
	locks.SetTimeout(50 * time.Millisecond)
	engine := txn.NewEngine(dm, bp, cat, locks)
	return &runtime{cat: cat, engine: engine, txns: txn.NewManager(engine)}
}

func run(t *testing.T, rt *runtime, h *txnHandle, sql string) execResult {
	t.Helper()
	stmt, err := newParser(sql).Parse()
	require.NoError(t, err)
	p, err := buildPlan(stmt, rt.cat)
	require.NoError(t, err)
	res, err := execute(rt, h, p)
	require.NoError(t, err)
	return res
}

func TestCreateInsertAndSelectRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	h := &txnHandle{t: rt.txns.Begin()}

	run(t, rt, h, "CREATE TABLE students (id INT32, name STRING(16), gpa FLOAT32)")
	run(t, rt, h, `INSERT INTO students VALUES (1, 'ada', 3.9)`)
	run(t, rt, h, `INSERT INTO students VALUES (2, 'grace', 4.0)`)

	res := run(t, rt, h, "SELECT * FROM students WHERE id = 2")
	require.Len(t, res.rows, 1)
	require.Equal(t, []string{"2", "grace", "4"}, res.rows[0])

	require.NoError(t, rt.txns.Commit(h.t))
}

func TestIndexScanServesEqualityLookup(t *testing.T) {
	rt := newTestRuntime(t)
	h := &txnHandle{t: rt.txns.Begin()}

	run(t, rt, h, "CREATE TABLE students (id INT32, name STRING(16))")
	run(t, rt, h, "CREATE INDEX by_id ON students (id)")
	run(t, rt, h, `INSERT INTO students VALUES (1, 'ada')`)
	run(t, rt, h, `INSERT INTO students VALUES (2, 'grace')`)

	schema, err := rt.cat.GetTableSchema("students")
	require.NoError(t, err)
	p, err := buildPlan(selectStmt{table: "students", where: &whereClause{conds: []condition{
		{col: "id", op: tokEqual, value: literal{kind: tokInt, value: "2"}},
	}}}, rt.cat)
	require.NoError(t, err)

	scan, err := scanFor(rt, h, "students", p.(dmlPlan).where)
	require.NoError(t, err)
	_, ok := scan.(*indexScan)
	require.True(t, ok, "equality lookup on an indexed column should use an index scan")

	rid, row, ok, err := scan.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "grace", formatRow(row, schema)[1])
	require.NotZero(t, rid.PageNo)

	require.NoError(t, rt.txns.Commit(h.t))
}

func TestUpdateAndDeleteAffectMatchedRowsOnly(t *testing.T) {
	rt := newTestRuntime(t)
	h := &txnHandle{t: rt.txns.Begin()}

	run(t, rt, h, "CREATE TABLE students (id INT32, gpa FLOAT32)")
	run(t, rt, h, "INSERT INTO students VALUES (1, 3.0)")
	run(t, rt, h, "INSERT INTO students VALUES (2, 3.0)")

	res := run(t, rt, h, "UPDATE students SET gpa = 4.0 WHERE id = 1")
	require.Equal(t, "1 row(s) updated", res.status)

	res = run(t, rt, h, "SELECT * FROM students WHERE id = 1")
	require.Equal(t, "4", res.rows[0][1])

	res = run(t, rt, h, "SELECT * FROM students WHERE id = 2")
	require.Equal(t, "3", res.rows[0][1])

	res = run(t, rt, h, "DELETE FROM students WHERE id = 1")
	require.Equal(t, "1 row(s) deleted", res.status)

	res = run(t, rt, h, "SELECT * FROM students")
	require.Len(t, res.rows, 1)

	require.NoError(t, rt.txns.Commit(h.t))
}

func TestExplicitTransactionAbortsOnLockTimeout(t *testing.T) {
	rt := newTestRuntime(t)

	setup := &txnHandle{t: rt.txns.Begin()}
	run(t, rt, setup, "CREATE TABLE students (id INT32, gpa FLOAT32)")
	run(t, rt, setup, "INSERT INTO students VALUES (1, 3.0)")
	require.NoError(t, rt.txns.Commit(setup.t))

	holder := &txnHandle{t: rt.txns.Begin()}
	run(t, rt, holder, "UPDATE students SET gpa = 3.5 WHERE id = 1")

	blocked := &txnHandle{t: rt.txns.Begin()}
	stmt, err := newParser("UPDATE students SET gpa = 4.0 WHERE id = 1").Parse()
	require.NoError(t, err)
	p, err := buildPlan(stmt, rt.cat)
	require.NoError(t, err)

	_, err = rt.withStatementTxn(blocked, func(h *txnHandle) (execResult, error) {
		return execute(rt, h, p)
	})
	require.Error(t, err)
	require.ErrorIs(t, err, lockmgr.ErrLockTimeout)

	_, stillActive := rt.txns.Lookup(blocked.t.ID)
	require.False(t, stillActive, "a statement error on an explicit transaction must abort it, not leave it active")

	require.ErrorContains(t, rt.txns.Commit(blocked.t), "not active")

	require.NoError(t, rt.txns.Commit(holder.t))
}

func TestDropTableRemovesItFromShowTables(t *testing.T) {
	rt := newTestRuntime(t)
	h := &txnHandle{t: rt.txns.Begin()}

	run(t, rt, h, "CREATE TABLE students (id INT32)")
	run(t, rt, h, "DROP TABLE students")

	res, err := execShowTables(rt)
	require.NoError(t, err)
	require.Empty(t, res.rows)

	require.NoError(t, rt.txns.Commit(h.t))
}
