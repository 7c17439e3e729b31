package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"unidb/bufferpool"
	"unidb/catalog"
	"unidb/diskmanager"
	"unidb/lockmgr"
	"unidb/txn"
	"unidb/types"
	"unidb/wal"
)

// runtime is the composition root's bundle of everything a statement needs
// to execute: the catalog for schema lookups, the transactional engine for
// row access, and the transaction manager for BEGIN/COMMIT/ABORT.
type runtime struct {
	cat    *catalog.Manager
	engine *txn.Engine
	txns   *txn.Manager
}

// txnHandle wraps the transaction a statement runs under. autoBegin marks a
// transaction the REPL opened implicitly for one statement and will commit
// or abort itself once that statement finishes, as opposed to one the user
// opened explicitly with BEGIN and must close themselves.
type txnHandle struct {
	t         *txn.Transaction
	autoBegin bool
}

func newRuntime(cfg config) (*runtime, error) {
	dm := diskmanager.NewDiskManager()
	bp := bufferpool.NewBufferPool(cfg.bufferPoolCap, dm)
	cat := catalog.NewManager(cfg.dbRoot)

	if err := cat.OpenDatabase(cfg.database); err != nil {
		if !errors.Is(err, types.ErrDatabaseMissing) {
			return nil, err
		}
		if err := cat.CreateDatabase(cfg.database); err != nil {
			return nil, err
		}
	}

	locks := lockmgr.NewManager()
	locks.SetTimeout(cfg.lockTimeout)

	walDir := filepath.Join(cfg.dbRoot, cfg.database, "wal")
	walWriter, err := wal.OpenWriter(walDir)
	if err != nil {
		return nil, err
	}
	bp.SetWALManager(walWriter)

	engine := txn.NewEngine(dm, bp, cat, locks)
	engine.SetWAL(walWriter)

	return &runtime{cat: cat, engine: engine, txns: txn.NewManager(engine)}, nil
}

// withStatementTxn runs fn under an explicit transaction if one is open, or
// under an implicit one-statement transaction otherwise. Either way, a
// statement error aborts the transaction — per the abort-on-violation policy,
// a failure (2PL violation, lock timeout, storage error) is signaled by the
// transaction's ABORTED state, not just a returned error, so it never sits
// ACTIVE waiting for a COMMIT that would discard the failure. An implicit
// transaction also commits on success, so autocommit DML never leaves a
// dangling active transaction behind.
func (rt *runtime) withStatementTxn(open *txnHandle, fn func(*txnHandle) (execResult, error)) (execResult, error) {
	h := open
	if h == nil {
		h = &txnHandle{t: rt.txns.Begin(), autoBegin: true}
	}

	res, err := fn(h)
	if err != nil {
		if abortErr := rt.txns.Abort(h.t); abortErr != nil {
			return res, fmt.Errorf("%w (and abort failed: %v)", err, abortErr)
		}
		return res, err
	}

	if h.autoBegin {
		if err := rt.txns.Commit(h.t); err != nil {
			return res, err
		}
	}
	return res, nil
}

func main() {
	cfg := parseFlags()

	rt, err := newRuntime(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "unidb:", err)
		os.Exit(1)
	}

	var open *txnHandle

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("db> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") {
			break
		}

		stmt, err := newParser(line).Parse()
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}

		switch stmt.(type) {
		case beginStmt:
			if open != nil {
				fmt.Println("a transaction is already open")
				continue
			}
			open = &txnHandle{t: rt.txns.Begin()}
			fmt.Printf("transaction %d started\n", open.t.ID)
			continue
		case commitStmt:
			if open == nil {
				fmt.Println("no transaction is open")
				continue
			}
			if err := rt.txns.Commit(open.t); err != nil {
				fmt.Println("error:", err)
			} else {
				fmt.Printf("transaction %d committed\n", open.t.ID)
			}
			open = nil
			continue
		case abortStmt:
			if open == nil {
				fmt.Println("no transaction is open")
				continue
			}
			if err := rt.txns.Abort(open.t); err != nil {
				fmt.Println("error:", err)
			} else {
				fmt.Printf("transaction %d aborted\n", open.t.ID)
			}
			open = nil
			continue
		}

		p, err := buildPlan(stmt, rt.cat)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}

		res, err := rt.withStatementTxn(open, func(h *txnHandle) (execResult, error) {
			return execute(rt, h, p)
		})
		if err != nil {
			fmt.Println("error:", err)
			if open != nil {
				fmt.Printf("transaction %d aborted\n", open.t.ID)
				open = nil
			}
			continue
		}
		printResult(res)
	}
}

// printResult renders tabular results as left-anchored "| col | col |" rows
// with a separator line, and plain results as their status line.
func printResult(res execResult) {
	if res.columns != nil {
		printTable(res.columns, res.rows)
	}
	if res.status != "" {
		fmt.Println(res.status)
	}
}

func printTable(columns []string, rows [][]string) {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, v := range row {
			if len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
	}

	sep := separatorLine(widths)
	fmt.Println(sep)
	fmt.Println(formatLine(columns, widths))
	fmt.Println(sep)
	for _, row := range rows {
		fmt.Println(formatLine(row, widths))
	}
	fmt.Println(sep)
}

func formatLine(cells []string, widths []int) string {
	var b strings.Builder
	b.WriteByte('|')
	for i, c := range cells {
		fmt.Fprintf(&b, " %-*s |", widths[i], c)
	}
	return b.String()
}

func separatorLine(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	return b.String()
}
