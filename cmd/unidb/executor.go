package main

import (
	"fmt"

	"unidb/heap"
	"unidb/types"
)

// rowExecutor is a lazy finite stream of (Rid, row) pairs — the volcano
// iterator shape: Open before the first Next, Close once done. SeqScan and
// IndexScan are the two leaf implementations; Projection would wrap either
// to narrow columns, but every statement here selects whole rows.
type rowExecutor interface {
	Open() error
	Next() (types.Rid, []byte, bool, error)
	Close() error
}

// seqScan walks every occupied slot of a heap file in page-then-slot order,
// applying the optional WHERE filter on the way out. Used whenever no index
// covers the WHERE clause, or there is no WHERE clause at all.
type seqScan struct {
	rt     *runtime
	txn    *txnHandle
	table  string
	filter *boundWhere
	scan   *heap.Scanner
}

func newSeqScan(rt *runtime, txn *txnHandle, table string, filter *boundWhere) (*seqScan, error) {
	rf, _, err := rt.engine.HeapFileFor(table)
	if err != nil {
		return nil, err
	}
	if err := rt.engine.LockTableIntentShared(txn.t, table); err != nil {
		return nil, err
	}
	return &seqScan{rt: rt, txn: txn, table: table, filter: filter, scan: rf.Scan()}, nil
}

func (s *seqScan) Open() error  { return nil }
func (s *seqScan) Close() error { return nil }

func (s *seqScan) Next() (types.Rid, []byte, bool, error) {
	for {
		rid, row, ok, err := s.scan.Next()
		if err != nil || !ok {
			return rid, row, ok, err
		}
		if !s.filter.matches(row) {
			continue
		}
		if err := s.rt.engine.LockRowShared(s.txn.t, s.table, rid); err != nil {
			return types.Rid{}, nil, false, err
		}
		return rid, row, true, nil
	}
}

// indexScan returns the single row matching an equality lookup against a
// covering index, instead of walking the whole heap file.
type indexScan struct {
	rt    *runtime
	txn   *txnHandle
	table string
	where boundCondition
	done  bool
}

func (s *indexScan) Open() error  { return nil }
func (s *indexScan) Close() error { return nil }

func (s *indexScan) Next() (types.Rid, []byte, bool, error) {
	if s.done {
		return types.Rid{}, nil, false, nil
	}
	s.done = true

	schema, err := s.rt.cat.GetTableSchema(s.table)
	if err != nil {
		return types.Rid{}, nil, false, err
	}
	im, err := schema.IndexByColumns([]string{s.where.col.Name})
	if err != nil {
		return types.Rid{}, nil, false, err
	}
	ix, err := s.rt.engine.IndexFor(im)
	if err != nil {
		return types.Rid{}, nil, false, err
	}
	rid, err := ix.GetValue(s.where.key)
	if err != nil {
		if err == types.ErrIndexEntryNotFound {
			return types.Rid{}, nil, false, nil
		}
		return types.Rid{}, nil, false, err
	}
	row, err := s.rt.engine.GetRow(s.txn.t, s.table, rid)
	if err != nil {
		return types.Rid{}, nil, false, err
	}
	return rid, row, true, nil
}

// scanFor picks an indexScan when the WHERE clause is a single equality test
// on a column covered by an index, and falls back to a filtered seqScan
// otherwise (ranges, AND, no WHERE, or an uncovered column).
func scanFor(rt *runtime, txn *txnHandle, table string, where *boundWhere) (rowExecutor, error) {
	if eq, ok := where.equalityOn(); ok {
		schema, err := rt.cat.GetTableSchema(table)
		if err != nil {
			return nil, err
		}
		if _, err := schema.IndexByColumns([]string{eq.col.Name}); err == nil {
			return &indexScan{rt: rt, txn: txn, table: table, where: eq}, nil
		}
	}
	return newSeqScan(rt, txn, table, where)
}

// execResult is what Execute returns for the REPL to render: either tabular
// rows (SELECT, DESC, SHOW TABLES) or a plain status line.
type execResult struct {
	columns []string
	rows    [][]string
	status  string
}

func execute(rt *runtime, txn *txnHandle, p plan) (execResult, error) {
	switch v := p.(type) {
	case ddlPlan:
		return execDDL(rt, v)
	case dmlPlan:
		return execDML(rt, txn, v)
	case helpPlan:
		return execResult{status: helpText}, nil
	case showTablesPlan:
		return execShowTables(rt)
	case descTablePlan:
		return execDescTable(v), nil
	case beginPlan, commitPlan, abortPlan:
		return execResult{}, fmt.Errorf("transaction control must be handled by the REPL loop")
	default:
		return execResult{}, fmt.Errorf("no executor for plan type %T", p)
	}
}

func execDDL(rt *runtime, p ddlPlan) (execResult, error) {
	switch p.kind {
	case ddlCreateTable:
		schema, err := rt.cat.RegisterTable(p.schema)
		if err != nil {
			return execResult{}, err
		}
		return execResult{status: fmt.Sprintf("table %q created (record size %d)", schema.Name, schema.RecordSize)}, nil
	case ddlCreateIndex:
		im, err := rt.cat.CreateIndex(p.index.table, p.index.name, p.index.columns)
		if err != nil {
			return execResult{}, err
		}
		return execResult{status: fmt.Sprintf("index %q created on %q", im.Name, im.Table)}, nil
	case ddlDropTable:
		if err := rt.cat.DropTable(p.index.table); err != nil {
			return execResult{}, err
		}
		return execResult{status: fmt.Sprintf("table %q dropped", p.index.table)}, nil
	case ddlDropIndex:
		if err := rt.cat.DropIndex(p.index.table, p.index.name); err != nil {
			return execResult{}, err
		}
		return execResult{status: fmt.Sprintf("index %q dropped", p.index.name)}, nil
	default:
		return execResult{}, fmt.Errorf("unknown DDL plan kind %d", p.kind)
	}
}

func execDML(rt *runtime, txn *txnHandle, p dmlPlan) (execResult, error) {
	switch p.kind {
	case dmlInsert:
		if err := logAndInsert(rt, txn, p); err != nil {
			return execResult{}, err
		}
		return execResult{status: "1 row inserted"}, nil

	case dmlSelect:
		return execSelect(rt, txn, p)

	case dmlUpdate:
		return execUpdate(rt, txn, p)

	case dmlDelete:
		return execDelete(rt, txn, p)

	default:
		return execResult{}, fmt.Errorf("unknown DML plan kind %d", p.kind)
	}
}

func logAndInsert(rt *runtime, txn *txnHandle, p dmlPlan) error {
	_, err := rt.engine.InsertRow(txn.t, p.table, p.row)
	return err
}

func execSelect(rt *runtime, txn *txnHandle, p dmlPlan) (execResult, error) {
	scan, err := scanFor(rt, txn, p.table, p.where)
	if err != nil {
		return execResult{}, err
	}
	defer scan.Close()
	if err := scan.Open(); err != nil {
		return execResult{}, err
	}

	cols := make([]string, len(p.schema.Cols))
	for i, c := range p.schema.Cols {
		cols[i] = c.Name
	}

	var rows [][]string
	for {
		_, row, ok, err := scan.Next()
		if err != nil {
			return execResult{}, err
		}
		if !ok {
			break
		}
		rows = append(rows, formatRow(row, p.schema))
	}
	return execResult{columns: cols, rows: rows, status: fmt.Sprintf("%d row(s)", len(rows))}, nil
}

func execUpdate(rt *runtime, txn *txnHandle, p dmlPlan) (execResult, error) {
	scan, err := scanFor(rt, txn, p.table, p.where)
	if err != nil {
		return execResult{}, err
	}
	defer scan.Close()
	if err := scan.Open(); err != nil {
		return execResult{}, err
	}

	var matched []types.Rid
	var images [][]byte
	for {
		rid, row, ok, err := scan.Next()
		if err != nil {
			return execResult{}, err
		}
		if !ok {
			break
		}
		matched = append(matched, rid)
		images = append(images, append([]byte(nil), row...))
	}

	count := 0
	for i, rid := range matched {
		newRow := append([]byte(nil), images[i]...)
		for _, col := range p.schema.Cols {
			if encoded, ok := p.assignments[col.Name]; ok {
				copy(newRow[col.Offset:col.Offset+col.Len], encoded)
			}
		}
		if err := rt.engine.UpdateRow(txn.t, p.table, rid, newRow); err != nil {
			return execResult{}, err
		}
		count++
	}
	return execResult{status: fmt.Sprintf("%d row(s) updated", count)}, nil
}

func execDelete(rt *runtime, txn *txnHandle, p dmlPlan) (execResult, error) {
	scan, err := scanFor(rt, txn, p.table, p.where)
	if err != nil {
		return execResult{}, err
	}
	defer scan.Close()
	if err := scan.Open(); err != nil {
		return execResult{}, err
	}

	var matched []types.Rid
	for {
		rid, _, ok, err := scan.Next()
		if err != nil {
			return execResult{}, err
		}
		if !ok {
			break
		}
		matched = append(matched, rid)
	}

	for _, rid := range matched {
		if err := rt.engine.DeleteRow(txn.t, p.table, rid); err != nil {
			return execResult{}, err
		}
	}
	return execResult{status: fmt.Sprintf("%d row(s) deleted", len(matched))}, nil
}

// formatRow decodes a packed row into one display string per column, in
// schema order.
func formatRow(row []byte, schema types.TabMeta) []string {
	out := make([]string, len(schema.Cols))
	for i, col := range schema.Cols {
		field := row[col.Offset : col.Offset+col.Len]
		switch col.Type {
		case types.ColTypeInt32:
			out[i] = fmt.Sprintf("%d", types.DecodeInt32(field))
		case types.ColTypeFloat32:
			out[i] = fmt.Sprintf("%g", types.DecodeFloat32(field))
		default:
			out[i] = types.DecodeString(field)
		}
	}
	return out
}

func execShowTables(rt *runtime) (execResult, error) {
	names := rt.cat.ListTables()
	rows := make([][]string, len(names))
	for i, n := range names {
		rows[i] = []string{n}
	}
	return execResult{columns: []string{"table"}, rows: rows}, nil
}

func execDescTable(p descTablePlan) execResult {
	rows := make([][]string, len(p.schema.Cols))
	for i, c := range p.schema.Cols {
		rows[i] = []string{c.Name, c.Type.String(), fmt.Sprintf("%d", c.Len)}
	}
	return execResult{columns: []string{"column", "type", "len"}, rows: rows}
}

const helpText = `commands: CREATE TABLE, CREATE INDEX, INSERT, SELECT, UPDATE, DELETE,
BEGIN, COMMIT, ABORT, SHOW TABLES, DESC <table>, HELP`
