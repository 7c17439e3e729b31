package index

import "unidb/types"

/*
Node shapes, by design left-anchored rather than the usual right-anchored
B+-tree convention: an internal node's keys[i] is the minimum key reachable
under children[i] for every i, including i==0 — so len(keys) == len(children)
always, and the leftmost slot is a real separator rather than an unused
placeholder. Leaves are doubly linked (prevLeaf/nextLeaf) for bidirectional
range scans.

	internal: keys[i] = min key under children[i], for i in [0, n)
	leaf:     keys[i] paired with values[i], for i in [0, n)
*/

type nodeType uint8

const (
	nodeInternal nodeType = iota
	nodeLeaf
)

type node struct {
	pageID int64 // global page ID
	typ    nodeType
	keys   [][]byte

	children []int64     // internal only, len == len(keys)
	values   []types.Rid // leaf only, len == len(keys)

	parent   int64 // -1 if root
	prevLeaf int64 // leaf only, -1 if none
	nextLeaf int64 // leaf only, -1 if none
}

func (n *node) isLeaf() bool { return n.typ == nodeLeaf }
func (n *node) numKeys() int { return len(n.keys) }

func (n *node) isFull(order int32) bool {
	return int32(n.numKeys()) >= order
}

func (n *node) underflows(minSize int32) bool {
	return int32(n.numKeys()) < minSize
}
