package main

import (
	"fmt"
	"strconv"

	"unidb/catalog"
	"unidb/types"
)

// plan is the sealed result of binding a parsed statement against the live
// catalog: literals are resolved to typed, fixed-width bytes and table/
// column references are checked to exist before anything touches storage.
type plan interface{ isPlan() }

type ddlPlan struct {
	kind   ddlKind
	schema types.TabMeta
	index  indexSpec
}

type ddlKind int

const (
	ddlCreateTable ddlKind = iota
	ddlCreateIndex
	ddlDropTable
	ddlDropIndex
)

type indexSpec struct {
	table   string
	name    string
	columns []string
}

type dmlKind int

const (
	dmlInsert dmlKind = iota
	dmlSelect
	dmlUpdate
	dmlDelete
)

type dmlPlan struct {
	kind        dmlKind
	table       string
	schema      types.TabMeta
	row         []byte            // INSERT
	assignments map[string][]byte // UPDATE: column name -> encoded value
	where       *boundWhere
}

// boundCondition is a condition whose column has been resolved against the
// schema and whose literal has been encoded to the column's fixed-width
// wire format.
type boundCondition struct {
	col types.ColMeta
	op  tokenKind
	key []byte
}

// boundWhere is a conjunction of boundCondition, as bound against one
// table's schema.
type boundWhere struct {
	conds []boundCondition
}

// equalityOn returns the single bound condition testing col for equality,
// if the WHERE clause is exactly that one condition — the shape an index
// lookup can serve. Anything else (no WHERE, ranges, AND, OR-equivalents)
// falls back to a full scan.
func (w *boundWhere) equalityOn() (boundCondition, bool) {
	if w == nil || len(w.conds) != 1 || w.conds[0].op != tokEqual {
		return boundCondition{}, false
	}
	return w.conds[0], true
}

// matches reports whether row satisfies every condition in w.
func (w *boundWhere) matches(row []byte) bool {
	if w == nil {
		return true
	}
	for _, c := range w.conds {
		field := row[c.col.Offset : c.col.Offset+c.col.Len]
		cmp := types.CompareField(field, c.key, c.col.Type, c.col.Len)
		var ok bool
		switch c.op {
		case tokEqual:
			ok = cmp == 0
		case tokNotEqual:
			ok = cmp != 0
		case tokLess:
			ok = cmp < 0
		case tokLessEq:
			ok = cmp <= 0
		case tokGreater:
			ok = cmp > 0
		case tokGreaterEq:
			ok = cmp >= 0
		}
		if !ok {
			return false
		}
	}
	return true
}

type helpPlan struct{}
type showTablesPlan struct{}
type descTablePlan struct{ schema types.TabMeta }
type beginPlan struct{}
type commitPlan struct{}
type abortPlan struct{}

func (ddlPlan) isPlan()        {}
func (dmlPlan) isPlan()        {}
func (helpPlan) isPlan()       {}
func (showTablesPlan) isPlan() {}
func (descTablePlan) isPlan()  {}
func (beginPlan) isPlan()      {}
func (commitPlan) isPlan()     {}
func (abortPlan) isPlan()      {}

// buildPlan binds a parsed statement against cat, resolving types and
// encoding literals. It never touches the heap or index files themselves —
// that is the executor's job.
func buildPlan(stmt statement, cat *catalog.Manager) (plan, error) {
	switch s := stmt.(type) {
	case createTableStmt:
		return planCreateTable(s)
	case createIndexStmt:
		return ddlPlan{kind: ddlCreateIndex, index: indexSpec{table: s.table, name: s.name, columns: s.columns}}, nil
	case dropTableStmt:
		return ddlPlan{kind: ddlDropTable, index: indexSpec{table: s.table}}, nil
	case dropIndexStmt:
		return ddlPlan{kind: ddlDropIndex, index: indexSpec{table: s.table, name: s.name}}, nil
	case insertStmt:
		return planInsert(s, cat)
	case selectStmt:
		return planSelect(s, cat)
	case updateStmt:
		return planUpdate(s, cat)
	case deleteStmt:
		return planDelete(s, cat)
	case beginStmt:
		return beginPlan{}, nil
	case commitStmt:
		return commitPlan{}, nil
	case abortStmt:
		return abortPlan{}, nil
	case showTablesStmt:
		return showTablesPlan{}, nil
	case descStmt:
		schema, err := cat.GetTableSchema(s.table)
		if err != nil {
			return nil, err
		}
		return descTablePlan{schema: schema}, nil
	case helpStmt:
		return helpPlan{}, nil
	default:
		return nil, fmt.Errorf("unbound statement type %T", stmt)
	}
}

func planCreateTable(s createTableStmt) (plan, error) {
	schema := types.TabMeta{Name: s.table}
	for _, c := range s.columns {
		col, err := bindColumnDef(s.table, c)
		if err != nil {
			return nil, err
		}
		schema.Cols = append(schema.Cols, col)
	}
	return ddlPlan{kind: ddlCreateTable, schema: schema}, nil
}

func bindColumnDef(table string, c columnDef) (types.ColMeta, error) {
	switch c.typ {
	case "INT32", "INT":
		return types.ColMeta{Table: table, Name: c.name, Type: types.ColTypeInt32, Len: 4}, nil
	case "FLOAT32", "FLOAT":
		return types.ColMeta{Table: table, Name: c.name, Type: types.ColTypeFloat32, Len: 4}, nil
	case "STRING":
		if c.len <= 0 {
			return types.ColMeta{}, fmt.Errorf("STRING column %q needs a length, e.g. STRING(32)", c.name)
		}
		return types.ColMeta{Table: table, Name: c.name, Type: types.ColTypeString, Len: c.len}, nil
	default:
		return types.ColMeta{}, fmt.Errorf("unknown column type %q for %q", c.typ, c.name)
	}
}

func encodeLiteral(lit literal, col types.ColMeta) ([]byte, error) {
	switch col.Type {
	case types.ColTypeInt32:
		n, err := strconv.ParseInt(lit.value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("column %q expects INT32: %w", col.Name, err)
		}
		return types.EncodeInt32(int32(n)), nil
	case types.ColTypeFloat32:
		f, err := strconv.ParseFloat(lit.value, 32)
		if err != nil {
			return nil, fmt.Errorf("column %q expects FLOAT32: %w", col.Name, err)
		}
		return types.EncodeFloat32(float32(f)), nil
	case types.ColTypeString:
		if len(lit.value) > col.Len {
			return nil, fmt.Errorf("value %q too long for %s(%d)", lit.value, col.Name, col.Len)
		}
		return types.EncodeString(lit.value, col.Len), nil
	default:
		return nil, fmt.Errorf("column %q has unknown type", col.Name)
	}
}

func planInsert(s insertStmt, cat *catalog.Manager) (plan, error) {
	schema, err := cat.GetTableSchema(s.table)
	if err != nil {
		return nil, err
	}
	if len(s.values) != len(schema.Cols) {
		return nil, fmt.Errorf("table %q has %d columns, got %d values", s.table, len(schema.Cols), len(s.values))
	}

	row := make([]byte, schema.RecordSize)
	for i, col := range schema.Cols {
		encoded, err := encodeLiteral(s.values[i], col)
		if err != nil {
			return nil, err
		}
		copy(row[col.Offset:col.Offset+col.Len], encoded)
	}
	return dmlPlan{kind: dmlInsert, table: s.table, schema: schema, row: row}, nil
}

func bindWhere(w *whereClause, schema types.TabMeta) (*boundWhere, error) {
	if w == nil {
		return nil, nil
	}
	bound := &boundWhere{conds: make([]boundCondition, 0, len(w.conds))}
	for _, c := range w.conds {
		col, err := schema.ColByName(c.col)
		if err != nil {
			return nil, err
		}
		key, err := encodeLiteral(c.value, col)
		if err != nil {
			return nil, err
		}
		bound.conds = append(bound.conds, boundCondition{col: col, op: c.op, key: key})
	}
	return bound, nil
}

func planSelect(s selectStmt, cat *catalog.Manager) (plan, error) {
	schema, err := cat.GetTableSchema(s.table)
	if err != nil {
		return nil, err
	}
	where, err := bindWhere(s.where, schema)
	if err != nil {
		return nil, err
	}
	return dmlPlan{kind: dmlSelect, table: s.table, schema: schema, where: where}, nil
}

func planUpdate(s updateStmt, cat *catalog.Manager) (plan, error) {
	schema, err := cat.GetTableSchema(s.table)
	if err != nil {
		return nil, err
	}
	where, err := bindWhere(s.where, schema)
	if err != nil {
		return nil, err
	}

	assignments := make(map[string][]byte, len(s.assignments))
	for _, a := range s.assignments {
		col, err := schema.ColByName(a.col)
		if err != nil {
			return nil, err
		}
		encoded, err := encodeLiteral(a.val, col)
		if err != nil {
			return nil, err
		}
		assignments[a.col] = encoded
	}
	return dmlPlan{kind: dmlUpdate, table: s.table, schema: schema, assignments: assignments, where: where}, nil
}

func planDelete(s deleteStmt, cat *catalog.Manager) (plan, error) {
	schema, err := cat.GetTableSchema(s.table)
	if err != nil {
		return nil, err
	}
	where, err := bindWhere(s.where, schema)
	if err != nil {
		return nil, err
	}
	return dmlPlan{kind: dmlDelete, table: s.table, schema: schema, where: where}, nil
}
