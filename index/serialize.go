package index

import (
	"encoding/binary"
	"fmt"

	"unidb/page"
	"unidb/types"
)

/*
Node page layout (fixed PageSize bytes):

	[0:8)   LSN (owned by the buffer pool, see page.PageLSNOffset); not written here
	[8:9)   reserved — overwritten by the disk manager's page-type stamp
	[9:10)  isLeaf (1 = leaf, 0 = internal)
	[10:12) numKeys, int16
	[12:20) local parent page ID, -1 if root
	[20:28) local prevLeaf page ID, leaf-only, -1 if none/internal
	[28:36) local nextLeaf page ID, leaf-only, -1 if none/internal
	[36:40) local page ID, uint32

	body, starting at offset 40:
	  numKeys x [ uint16 keyLen | key bytes ]
	  internal: numKeys x [ int64 local child page ID ]
	  leaf:     numKeys x [ int32 rid.PageNo | int32 rid.SlotNo ]
*/

const nodeBodyOffset = 40

func encodeNode(n *node, fileID uint32, buf []byte) error {
	if len(buf) != page.PageSize {
		return fmt.Errorf("index: page buffer must be %d bytes", page.PageSize)
	}

	local := func(global int64) int64 {
		if global < 0 {
			return -1
		}
		return global & 0xFFFFFFFF
	}

	binary.LittleEndian.PutUint32(buf[36:], uint32(local(n.pageID)))
	if n.isLeaf() {
		buf[9] = 1
	} else {
		buf[9] = 0
	}
	binary.LittleEndian.PutUint16(buf[10:], uint16(n.numKeys()))
	binary.LittleEndian.PutUint64(buf[12:], uint64(local(n.parent)))
	binary.LittleEndian.PutUint64(buf[20:], uint64(local(n.prevLeaf)))
	binary.LittleEndian.PutUint64(buf[28:], uint64(local(n.nextLeaf)))

	off := nodeBodyOffset
	for _, k := range n.keys {
		if off+2+len(k) > page.PageSize {
			return fmt.Errorf("index: page overflow writing keys")
		}
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(k)))
		off += 2
		copy(buf[off:], k)
		off += len(k)
	}

	if n.isLeaf() {
		for _, v := range n.values {
			if off+8 > page.PageSize {
				return fmt.Errorf("index: page overflow writing values")
			}
			binary.LittleEndian.PutUint32(buf[off:], uint32(v.PageNo))
			binary.LittleEndian.PutUint32(buf[off+4:], uint32(v.SlotNo))
			off += 8
		}
	} else {
		for _, c := range n.children {
			if off+8 > page.PageSize {
				return fmt.Errorf("index: page overflow writing children")
			}
			binary.LittleEndian.PutUint64(buf[off:], uint64(local(c)))
			off += 8
		}
	}

	return nil
}

func decodeNode(buf []byte, fileID uint32) (*node, error) {
	if len(buf) != page.PageSize {
		return nil, fmt.Errorf("index: page buffer must be %d bytes", page.PageSize)
	}

	global := func(l int64) int64 {
		if l < 0 {
			return -1
		}
		return int64(fileID)<<32 | (l & 0xFFFFFFFF)
	}

	n := &node{}
	localPageID := int64(binary.LittleEndian.Uint32(buf[36:]))
	n.pageID = global(localPageID)

	if buf[9] == 1 {
		n.typ = nodeLeaf
	} else {
		n.typ = nodeInternal
	}

	numKeys := int(binary.LittleEndian.Uint16(buf[10:]))
	n.parent = global(int64(binary.LittleEndian.Uint64(buf[12:])))
	n.prevLeaf = global(int64(binary.LittleEndian.Uint64(buf[20:])))
	n.nextLeaf = global(int64(binary.LittleEndian.Uint64(buf[28:])))

	off := nodeBodyOffset
	n.keys = make([][]byte, 0, numKeys)
	for i := 0; i < numKeys; i++ {
		if off+2 > page.PageSize {
			return nil, fmt.Errorf("index: page overflow reading key %d length", i)
		}
		klen := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		if off+klen > page.PageSize {
			return nil, fmt.Errorf("index: page overflow reading key %d", i)
		}
		key := make([]byte, klen)
		copy(key, buf[off:off+klen])
		off += klen
		n.keys = append(n.keys, key)
	}

	if n.isLeaf() {
		n.values = make([]types.Rid, 0, numKeys)
		for i := 0; i < numKeys; i++ {
			pageNo := int32(binary.LittleEndian.Uint32(buf[off:]))
			slotNo := int32(binary.LittleEndian.Uint32(buf[off+4:]))
			off += 8
			n.values = append(n.values, types.Rid{PageNo: pageNo, SlotNo: slotNo})
		}
	} else {
		n.children = make([]int64, 0, numKeys)
		for i := 0; i < numKeys; i++ {
			local := int64(binary.LittleEndian.Uint64(buf[off:]))
			off += 8
			n.children = append(n.children, global(local))
		}
	}

	return n, nil
}
