package index

import "unidb/types"

// Cursor walks leaf entries in ascending key order starting from an Iid
// produced by LowerBound/UpperBound, following the leaf chain across page
// boundaries as needed.
type Cursor struct {
	ix  *IxIndex
	cur types.Iid
	end bool
}

func (ix *IxIndex) NewCursor(start types.Iid) *Cursor {
	return &Cursor{ix: ix, cur: start}
}

// Next returns the next key/value pair and advances the cursor. ok is false
// once the leaf chain is exhausted.
func (c *Cursor) Next() (key []byte, rid types.Rid, ok bool, err error) {
	if c.end {
		return nil, types.InvalidRid, false, nil
	}

	gid, _ := c.ix.dm.GetGlobalPageID(c.ix.fileID, int64(c.cur.PageNo))
	n, _, err := c.ix.fetchNode(gid)
	if err != nil {
		return nil, types.InvalidRid, false, err
	}
	defer c.ix.bp.UnpinPage(gid, false)

	if int(c.cur.SlotNo) >= n.numKeys() {
		if n.nextLeaf == -1 {
			c.end = true
			return nil, types.InvalidRid, false, nil
		}
		c.cur = types.Iid{PageNo: int32(c.ix.dm.GetLocalPageID(n.nextLeaf)), SlotNo: 0}
		return c.Next()
	}

	key = n.keys[c.cur.SlotNo]
	rid = n.values[c.cur.SlotNo]
	c.cur.SlotNo++
	return key, rid, true, nil
}
