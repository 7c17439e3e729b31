package index

import (
	"sort"

	"unidb/types"
)

// internalChildIndex returns the index of the child to descend into for
// key: the rightmost i such that keys[i] <= key (clamped to 0). Because
// keys[0] is a genuine lower bound rather than a skipped placeholder, this
// never needs the usual off-by-one correction internal_lookup implementations
// tend to special-case.
func (ix *IxIndex) internalChildIndex(n *node, key []byte) int {
	// first index where keys[i] > key
	idx := sort.Search(len(n.keys), func(i int) bool {
		return ix.cmp(n.keys[i], key) > 0
	})
	if idx == 0 {
		return 0
	}
	return idx - 1
}

// leafSlot returns (index, found) for key within a leaf's keys array: the
// first index where keys[i] >= key, and whether keys[index] == key.
func (ix *IxIndex) leafSlot(n *node, key []byte) (int, bool) {
	idx := sort.Search(len(n.keys), func(i int) bool {
		return ix.cmp(n.keys[i], key) >= 0
	})
	found := idx < len(n.keys) && ix.cmp(n.keys[idx], key) == 0
	return idx, found
}

// findLeaf descends from the root to the leaf that would contain key,
// returning it pinned. Caller must unpin.
func (ix *IxIndex) findLeaf(key []byte) (*node, error) {
	pageID := ix.root
	for {
		n, _, err := ix.fetchNode(pageID)
		if err != nil {
			return nil, err
		}
		if n.isLeaf() {
			return n, nil
		}
		next := n.children[ix.internalChildIndex(n, key)]
		ix.bp.UnpinPage(pageID, false)
		pageID = next
	}
}

// GetValue returns the Rid stored under key, or types.ErrIndexEntryNotFound.
func (ix *IxIndex) GetValue(key []byte) (types.Rid, error) {
	leaf, err := ix.findLeaf(key)
	if err != nil {
		return types.InvalidRid, err
	}
	defer ix.bp.UnpinPage(leaf.pageID, false)

	idx, found := ix.leafSlot(leaf, key)
	if !found {
		return types.InvalidRid, types.ErrIndexEntryNotFound
	}
	return leaf.values[idx], nil
}

// LowerBound returns a cursor to the first entry with key >= target.
func (ix *IxIndex) LowerBound(target []byte) (types.Iid, error) {
	leaf, err := ix.findLeaf(target)
	if err != nil {
		return types.Iid{}, err
	}
	idx, _ := ix.leafSlot(leaf, target)
	iid := types.Iid{PageNo: int32(ix.dm.GetLocalPageID(leaf.pageID)), SlotNo: int32(idx)}
	ix.bp.UnpinPage(leaf.pageID, false)
	return ix.normalize(iid)
}

// UpperBound returns a cursor to the first entry with key > target.
func (ix *IxIndex) UpperBound(target []byte) (types.Iid, error) {
	leaf, err := ix.findLeaf(target)
	if err != nil {
		return types.Iid{}, err
	}
	idx := sort.Search(len(leaf.keys), func(i int) bool {
		return ix.cmp(leaf.keys[i], target) > 0
	})
	iid := types.Iid{PageNo: int32(ix.dm.GetLocalPageID(leaf.pageID)), SlotNo: int32(idx)}
	ix.bp.UnpinPage(leaf.pageID, false)
	return ix.normalize(iid)
}

// normalize advances an off-the-end cursor to the first slot of the next
// leaf, so a plain != comparison against an end-of-range cursor works.
func (ix *IxIndex) normalize(iid types.Iid) (types.Iid, error) {
	gid, _ := ix.dm.GetGlobalPageID(ix.fileID, int64(iid.PageNo))
	n, _, err := ix.fetchNode(gid)
	if err != nil {
		return iid, err
	}
	defer ix.bp.UnpinPage(gid, false)

	if int(iid.SlotNo) < n.numKeys() || n.nextLeaf == -1 {
		return iid, nil
	}
	return types.Iid{PageNo: int32(ix.dm.GetLocalPageID(n.nextLeaf)), SlotNo: 0}, nil
}
