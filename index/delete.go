package index

import (
	"fmt"

	"unidb/types"
)

// Delete removes key. Returns types.ErrIndexEntryNotFound if absent.
func (ix *IxIndex) Delete(key []byte) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	leaf, err := ix.findLeaf(key)
	if err != nil {
		return err
	}

	idx, found := ix.leafSlot(leaf, key)
	if !found {
		ix.bp.UnpinPage(leaf.pageID, false)
		return types.ErrIndexEntryNotFound
	}

	leaf.keys = append(leaf.keys[:idx], leaf.keys[idx+1:]...)
	leaf.values = append(leaf.values[:idx], leaf.values[idx+1:]...)
	if err := ix.writeNode(leaf); err != nil {
		ix.bp.UnpinPage(leaf.pageID, false)
		return err
	}

	if idx == 0 && leaf.numKeys() > 0 {
		if err := ix.updateMinKeyPath(leaf); err != nil {
			ix.bp.UnpinPage(leaf.pageID, false)
			return err
		}
	}

	return ix.handleUnderflow(leaf)
}

// handleUnderflow takes ownership of n's pin (unpinned exactly once on every
// path) and rebalances upward as far as necessary.
func (ix *IxIndex) handleUnderflow(n *node) error {
	if n.pageID == ix.root {
		if !n.isLeaf() && n.numKeys() == 1 {
			return ix.collapseRoot(n)
		}
		ix.bp.UnpinPage(n.pageID, false)
		return nil
	}

	if !n.underflows(ix.minSize) {
		ix.bp.UnpinPage(n.pageID, false)
		return nil
	}

	parent, _, err := ix.fetchNode(n.parent)
	if err != nil {
		ix.bp.UnpinPage(n.pageID, false)
		return err
	}
	idx := indexOfChild(parent, n.pageID)
	if idx < 0 {
		ix.bp.UnpinPage(parent.pageID, false)
		ix.bp.UnpinPage(n.pageID, false)
		return fmt.Errorf("index: child %d not found in parent %d", n.pageID, parent.pageID)
	}

	// Prefer the left sibling, matching the original's
	// fetch_node(parent->get_rid(index+(index?-1:1))): only a left-most child
	// (idx == 0) falls back to its right sibling.
	if idx > 0 {
		leftSib, _, err := ix.fetchNode(parent.children[idx-1])
		if err != nil {
			ix.bp.UnpinPage(parent.pageID, false)
			ix.bp.UnpinPage(n.pageID, false)
			return err
		}

		if int32(leftSib.numKeys()) > ix.minSize {
			err := ix.borrowFromLeft(n, leftSib)
			ix.bp.UnpinPage(leftSib.pageID, false)
			ix.bp.UnpinPage(parent.pageID, false)
			ix.bp.UnpinPage(n.pageID, false)
			return err
		}

		if err := ix.coalesce(leftSib, n, parent, idx-1); err != nil {
			ix.bp.UnpinPage(leftSib.pageID, false)
			ix.bp.UnpinPage(parent.pageID, false)
			ix.bp.UnpinPage(n.pageID, false)
			return err
		}
		ix.bp.UnpinPage(leftSib.pageID, false)
		ix.bp.UnpinPage(n.pageID, false)
		if err := ix.freePage(n.pageID); err != nil {
			ix.bp.UnpinPage(parent.pageID, false)
			return err
		}
		return ix.handleUnderflow(parent)
	}

	// idx == 0: a non-root node always has at least one sibling, and the
	// left-most child has none to its left, so its right sibling must exist.
	rightSib, _, err := ix.fetchNode(parent.children[idx+1])
	if err != nil {
		ix.bp.UnpinPage(parent.pageID, false)
		ix.bp.UnpinPage(n.pageID, false)
		return err
	}

	if int32(rightSib.numKeys()) > ix.minSize {
		err := ix.borrowFromRight(n, rightSib)
		ix.bp.UnpinPage(rightSib.pageID, false)
		ix.bp.UnpinPage(parent.pageID, false)
		ix.bp.UnpinPage(n.pageID, false)
		return err
	}

	if err := ix.coalesce(n, rightSib, parent, idx); err != nil {
		ix.bp.UnpinPage(rightSib.pageID, false)
		ix.bp.UnpinPage(parent.pageID, false)
		ix.bp.UnpinPage(n.pageID, false)
		return err
	}
	ix.bp.UnpinPage(rightSib.pageID, false)
	if err := ix.freePage(rightSib.pageID); err != nil {
		ix.bp.UnpinPage(n.pageID, false)
		return err
	}
	ix.bp.UnpinPage(n.pageID, false)
	return ix.handleUnderflow(parent)
}

// collapseRoot handles the case where the root is an internal node with a
// single remaining child: that child becomes the new root.
func (ix *IxIndex) collapseRoot(n *node) error {
	childID := n.children[0]
	child, _, err := ix.fetchNode(childID)
	if err != nil {
		ix.bp.UnpinPage(n.pageID, false)
		return err
	}
	child.parent = -1
	if err := ix.writeNode(child); err != nil {
		ix.bp.UnpinPage(child.pageID, false)
		ix.bp.UnpinPage(n.pageID, false)
		return err
	}
	ix.bp.UnpinPage(child.pageID, false)

	ix.root = childID
	if err := ix.dm.WriteRootID(ix.fileID, ix.root); err != nil {
		ix.bp.UnpinPage(n.pageID, false)
		return err
	}
	ix.bp.UnpinPage(n.pageID, false)
	return ix.freePage(n.pageID)
}

// borrowFromRight moves rightSib's first element onto the end of n.
func (ix *IxIndex) borrowFromRight(n, rightSib *node) error {
	if n.isLeaf() {
		n.keys = append(n.keys, rightSib.keys[0])
		n.values = append(n.values, rightSib.values[0])
		rightSib.keys = rightSib.keys[1:]
		rightSib.values = rightSib.values[1:]
	} else {
		movedChild := rightSib.children[0]
		n.keys = append(n.keys, rightSib.keys[0])
		n.children = append(n.children, movedChild)
		rightSib.keys = rightSib.keys[1:]
		rightSib.children = rightSib.children[1:]

		child, _, err := ix.fetchNode(movedChild)
		if err != nil {
			return err
		}
		child.parent = n.pageID
		if err := ix.writeNode(child); err != nil {
			ix.bp.UnpinPage(child.pageID, false)
			return err
		}
		ix.bp.UnpinPage(child.pageID, false)
	}

	if err := ix.writeNode(n); err != nil {
		return err
	}
	if err := ix.writeNode(rightSib); err != nil {
		return err
	}
	if err := ix.updateMinKeyPath(n); err != nil {
		return err
	}
	return ix.updateMinKeyPath(rightSib)
}

// borrowFromLeft moves leftSib's last element onto the front of n.
func (ix *IxIndex) borrowFromLeft(n, leftSib *node) error {
	last := leftSib.numKeys() - 1

	if n.isLeaf() {
		n.keys = append([][]byte{leftSib.keys[last]}, n.keys...)
		n.values = append([]types.Rid{leftSib.values[last]}, n.values...)
		leftSib.keys = leftSib.keys[:last]
		leftSib.values = leftSib.values[:last]
	} else {
		movedChild := leftSib.children[last]
		n.keys = append([][]byte{leftSib.keys[last]}, n.keys...)
		n.children = append([]int64{movedChild}, n.children...)
		leftSib.keys = leftSib.keys[:last]
		leftSib.children = leftSib.children[:last]

		child, _, err := ix.fetchNode(movedChild)
		if err != nil {
			return err
		}
		child.parent = n.pageID
		if err := ix.writeNode(child); err != nil {
			ix.bp.UnpinPage(child.pageID, false)
			return err
		}
		ix.bp.UnpinPage(child.pageID, false)
	}

	if err := ix.writeNode(n); err != nil {
		return err
	}
	if err := ix.writeNode(leftSib); err != nil {
		return err
	}
	return ix.updateMinKeyPath(n)
}

// coalesce merges right's contents into left and removes right's slot from
// parent. left survives; right's page is freed by the caller once it is no
// longer pinned.
func (ix *IxIndex) coalesce(left, right, parent *node, leftIdx int) error {
	if left.isLeaf() {
		left.keys = append(left.keys, right.keys...)
		left.values = append(left.values, right.values...)
		left.nextLeaf = right.nextLeaf
		if right.nextLeaf != -1 {
			following, _, err := ix.fetchNode(right.nextLeaf)
			if err != nil {
				return err
			}
			following.prevLeaf = left.pageID
			if err := ix.writeNode(following); err != nil {
				ix.bp.UnpinPage(following.pageID, false)
				return err
			}
			ix.bp.UnpinPage(following.pageID, false)
		}
	} else {
		left.keys = append(left.keys, right.keys...)
		left.children = append(left.children, right.children...)
		for _, c := range right.children {
			child, _, err := ix.fetchNode(c)
			if err != nil {
				return err
			}
			child.parent = left.pageID
			if err := ix.writeNode(child); err != nil {
				ix.bp.UnpinPage(child.pageID, false)
				return err
			}
			ix.bp.UnpinPage(child.pageID, false)
		}
	}

	if err := ix.writeNode(left); err != nil {
		return err
	}

	parent.keys = append(parent.keys[:leftIdx+1], parent.keys[leftIdx+2:]...)
	parent.children = append(parent.children[:leftIdx+1], parent.children[leftIdx+2:]...)
	return ix.writeNode(parent)
}

// freePage evicts a merged-away node's page from the buffer pool. The page
// itself is not returned to any free list — index files don't reclaim
// interior pages, matching the compact tree sizes this engine targets.
func (ix *IxIndex) freePage(pageID int64) error {
	return ix.bp.DeletePage(pageID)
}
