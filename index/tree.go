package index

import (
	"fmt"
	"sync"

	"unidb/bufferpool"
	"unidb/diskmanager"
	"unidb/page"
	"unidb/types"
)

// IxIndex is a B+-tree secondary index over one or more columns of a table.
// Keys are composite-encoded fixed-width byte strings compared with
// types.CompareKey; values are heap Rids. Duplicate keys are rejected —
// every index built here backs a unique or primary-key constraint.
type IxIndex struct {
	fileID  uint32
	keyCols []types.ColMeta
	order   int32 // max keys per node
	minSize int32 // ceil(order/2), floor for a non-root node

	dm *diskmanager.DiskManager
	bp *bufferpool.BufferPool

	mu   sync.Mutex // serializes structural changes (splits/merges); a coarse tree-level latch
	root int64       // global page ID of the root
}

func keyWidth(cols []types.ColMeta) int {
	w := 0
	for _, c := range cols {
		w += c.Len
	}
	return w
}

// computeOrder picks the largest number of keys a node can hold: each key
// entry costs 2+keyWidth bytes, each child/value slot costs 8 bytes.
func computeOrder(width int) int32 {
	available := page.PageSize - nodeBodyOffset
	perKey := 2 + width + 8
	order := int32(available / perKey)
	if order < 4 {
		order = 4 // degenerate but keeps the tree usable for pathological widths
	}
	return order
}

// Open opens (or creates) a B+-tree index file for the given key columns.
func Open(dm *diskmanager.DiskManager, bp *bufferpool.BufferPool, filePath string, fileID uint32, keyCols []types.ColMeta) (*IxIndex, error) {
	gotID, err := dm.OpenFileWithID(filePath, fileID)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", filePath, err)
	}
	fd, err := dm.GetFileDescriptor(gotID)
	if err != nil {
		return nil, err
	}

	width := keyWidth(keyCols)
	order := computeOrder(width)

	ix := &IxIndex{
		fileID:  gotID,
		keyCols: keyCols,
		order:   order,
		minSize: (order + 1) / 2,
		dm:      dm,
		bp:      bp,
	}

	if fd.NextPageID == 0 {
		root, err := ix.newNode(nodeLeaf, -1)
		if err != nil {
			return nil, err
		}
		root.prevLeaf, root.nextLeaf = -1, -1
		if err := ix.writeNode(root); err != nil {
			return nil, err
		}
		ix.root = root.pageID
		if err := dm.WriteRootID(gotID, ix.root); err != nil {
			return nil, err
		}
		ix.bp.UnpinPage(root.pageID, true)
		return ix, nil
	}

	for p := int64(0); p < fd.NextPageID; p++ {
		if err := dm.RegisterPage(gotID, p); err != nil {
			return nil, fmt.Errorf("index: register page %d: %w", p, err)
		}
	}
	root, err := dm.ReadRootID(gotID)
	if err != nil {
		return nil, fmt.Errorf("index: read root: %w", err)
	}
	ix.root = root
	return ix, nil
}

func (ix *IxIndex) cmp(a, b []byte) int {
	return types.CompareKey(a, b, ix.keyCols)
}

func (ix *IxIndex) fetchNode(pageID int64) (*node, *page.Page, error) {
	pg, err := ix.bp.FetchPage(pageID)
	if err != nil {
		return nil, nil, fmt.Errorf("index: fetch page %d: %w", pageID, err)
	}
	pg.RLock()
	n, err := decodeNode(pg.Data, ix.fileID)
	pg.RUnlock()
	if err != nil {
		ix.bp.UnpinPage(pageID, false)
		return nil, nil, err
	}
	return n, pg, nil
}

// writeNode re-encodes n into its already-resident, pinned page. Callers
// always hold the page (via fetchNode or newNode) before mutating a node.
func (ix *IxIndex) writeNode(n *node) error {
	pg := ix.bp.GetPage(n.pageID)
	if pg == nil {
		return fmt.Errorf("index: page %d not resident for write", n.pageID)
	}
	pg.Lock()
	err := encodeNode(n, ix.fileID, pg.Data)
	pg.Unlock()
	if err != nil {
		return err
	}
	return ix.bp.MarkDirty(n.pageID)
}

func (ix *IxIndex) newNode(typ nodeType, parent int64) (*node, error) {
	pg, err := ix.bp.NewPage(ix.fileID, types.PageTypeIndexNode)
	if err != nil {
		return nil, fmt.Errorf("index: allocate node page: %w", err)
	}
	n := &node{
		pageID:   pg.ID,
		typ:      typ,
		parent:   parent,
		prevLeaf: -1,
		nextLeaf: -1,
	}
	pg.Lock()
	_ = encodeNode(n, ix.fileID, pg.Data)
	pg.Unlock()
	return n, nil
}
