package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parser is a small recursive-descent parser over one statement's worth of
// tokens. Errors are returned, not panicked — a malformed line should fail
// the REPL's current statement, not crash the process.
type parser struct {
	lex  *lexer
	cur  token
	peek token
	err  error
}

func newParser(input string) *parser {
	p := &parser{lex: newLexer(input)}
	p.advance()
	p.advance()
	return p
}

func (p *parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.next()
}

func (p *parser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf(format, args...)
	}
}

func (p *parser) expect(kind tokenKind, what string) bool {
	if p.cur.kind != kind {
		p.fail("expected %s, got %q", what, p.cur.value)
		return false
	}
	return true
}

// Parse parses one statement from the start of the input and returns it;
// tokens after that statement are not checked.
func (p *parser) Parse() (statement, error) {
	var stmt statement

	switch p.cur.kind {
	case tokCreate:
		stmt = p.parseCreate()
	case tokDrop:
		stmt = p.parseDrop()
	case tokInsert:
		stmt = p.parseInsert()
	case tokSelect:
		stmt = p.parseSelect()
	case tokUpdate:
		stmt = p.parseUpdate()
	case tokDelete:
		stmt = p.parseDelete()
	case tokBegin:
		stmt = beginStmt{}
	case tokCommit:
		stmt = commitStmt{}
	case tokAbort, tokRollback:
		stmt = abortStmt{}
	case tokShow:
		p.advance()
		if !p.expect(tokTables, "TABLES") {
			return nil, p.err
		}
		stmt = showTablesStmt{}
	case tokDesc:
		p.advance()
		name := p.cur.value
		p.advance()
		stmt = descStmt{table: name}
	case tokHelp:
		stmt = helpStmt{}
	default:
		return nil, fmt.Errorf("unrecognized statement starting at %q", p.cur.value)
	}

	if p.err != nil {
		return nil, p.err
	}
	return stmt, nil
}

func (p *parser) parseCreate() statement {
	p.advance()
	switch p.cur.kind {
	case tokTable:
		return p.parseCreateTable()
	case tokIndex:
		return p.parseCreateIndex()
	default:
		p.fail("expected TABLE or INDEX after CREATE, got %q", p.cur.value)
		return nil
	}
}

func (p *parser) parseDrop() statement {
	p.advance()
	switch p.cur.kind {
	case tokTable:
		p.advance()
		table := p.cur.value
		p.advance()
		return dropTableStmt{table: table}
	case tokIndex:
		p.advance()
		name := p.cur.value
		p.advance()
		if !p.expect(tokOn, "ON") {
			return nil
		}
		p.advance()
		table := p.cur.value
		p.advance()
		return dropIndexStmt{table: table, name: name}
	default:
		p.fail("expected TABLE or INDEX after DROP, got %q", p.cur.value)
		return nil
	}
}

func (p *parser) parseCreateTable() createTableStmt {
	p.advance()
	table := p.cur.value
	p.advance()
	if !p.expect(tokOpenParen, "(") {
		return createTableStmt{}
	}
	p.advance()

	var cols []columnDef
	for p.cur.kind != tokCloseParen && p.cur.kind != tokEnd {
		name := p.cur.value
		p.advance()
		typ := strings.ToUpper(p.cur.value)
		p.advance()

		length := 0
		if p.cur.kind == tokOpenParen {
			p.advance()
			n, err := strconv.Atoi(p.cur.value)
			if err != nil {
				p.fail("bad column length %q", p.cur.value)
				return createTableStmt{}
			}
			length = n
			p.advance()
			if !p.expect(tokCloseParen, ")") {
				return createTableStmt{}
			}
			p.advance()
		}

		cols = append(cols, columnDef{name: name, typ: typ, len: length})
		if p.cur.kind == tokComma {
			p.advance()
		}
	}
	p.advance() // consume )
	return createTableStmt{table: table, columns: cols}
}

func (p *parser) parseCreateIndex() createIndexStmt {
	p.advance()
	name := p.cur.value
	p.advance()
	if !p.expect(tokOn, "ON") {
		return createIndexStmt{}
	}
	p.advance()
	table := p.cur.value
	p.advance()

	if !p.expect(tokOpenParen, "(") {
		return createIndexStmt{}
	}
	p.advance()
	var cols []string
	for p.cur.kind == tokIdent {
		cols = append(cols, p.cur.value)
		p.advance()
		if p.cur.kind == tokComma {
			p.advance()
		}
	}
	if !p.expect(tokCloseParen, ")") {
		return createIndexStmt{}
	}
	p.advance()
	return createIndexStmt{name: name, table: table, columns: cols}
}

func (p *parser) parseInsert() insertStmt {
	p.advance()
	if !p.expect(tokInto, "INTO") {
		return insertStmt{}
	}
	p.advance()
	table := p.cur.value
	p.advance()

	if !p.expect(tokValues, "VALUES") {
		return insertStmt{}
	}
	p.advance()
	if !p.expect(tokOpenParen, "(") {
		return insertStmt{}
	}
	p.advance()

	var values []literal
	for p.cur.kind != tokCloseParen && p.cur.kind != tokEnd {
		switch p.cur.kind {
		case tokInt, tokFloat, tokString:
			values = append(values, literal{kind: p.cur.kind, value: p.cur.value})
			p.advance()
		case tokComma:
			p.advance()
		default:
			p.fail("unexpected token %q in VALUES list", p.cur.value)
			return insertStmt{}
		}
	}
	p.advance() // consume )
	return insertStmt{table: table, values: values}
}

func (p *parser) parseSelect() selectStmt {
	p.advance()
	if p.cur.kind == tokAsterisk {
		p.advance()
	} else {
		for p.cur.kind == tokIdent {
			p.advance()
			if p.cur.kind == tokComma {
				p.advance()
			}
		}
	}

	if !p.expect(tokFrom, "FROM") {
		return selectStmt{}
	}
	p.advance()
	table := p.cur.value
	p.advance()

	where := p.parseOptionalWhere()
	return selectStmt{table: table, where: where}
}

func (p *parser) isComparisonOp(kind tokenKind) bool {
	switch kind {
	case tokEqual, tokNotEqual, tokLess, tokLessEq, tokGreater, tokGreaterEq:
		return true
	default:
		return false
	}
}

func (p *parser) parseCondition() condition {
	col := p.cur.value
	p.advance()
	if !p.isComparisonOp(p.cur.kind) {
		p.fail("expected a comparison operator after %q, got %q", col, p.cur.value)
		return condition{}
	}
	op := p.cur.kind
	p.advance()
	val := literal{kind: p.cur.kind, value: p.cur.value}
	p.advance()
	return condition{col: col, op: op, value: val}
}

func (p *parser) parseOptionalWhere() *whereClause {
	if p.cur.kind != tokWhere {
		return nil
	}
	p.advance()

	conds := []condition{p.parseCondition()}
	for p.cur.kind == tokAnd {
		p.advance()
		conds = append(conds, p.parseCondition())
	}
	return &whereClause{conds: conds}
}

func (p *parser) parseUpdate() updateStmt {
	p.advance()
	table := p.cur.value
	p.advance()
	if !p.expect(tokSet, "SET") {
		return updateStmt{}
	}
	p.advance()

	var assignments []assignment
	for p.cur.kind == tokIdent {
		col := p.cur.value
		p.advance()
		if !p.expect(tokEqual, "=") {
			return updateStmt{}
		}
		p.advance()
		val := literal{kind: p.cur.kind, value: p.cur.value}
		p.advance()
		assignments = append(assignments, assignment{col: col, val: val})
		if p.cur.kind == tokComma {
			p.advance()
		} else {
			break
		}
	}

	where := p.parseOptionalWhere()
	return updateStmt{table: table, assignments: assignments, where: where}
}

func (p *parser) parseDelete() deleteStmt {
	p.advance()
	if !p.expect(tokFrom, "FROM") {
		return deleteStmt{}
	}
	p.advance()
	table := p.cur.value
	p.advance()

	where := p.parseOptionalWhere()
	return deleteStmt{table: table, where: where}
}
