package wal

import (
	"encoding/binary"
	"hash/crc32"
)

func (r *record) encode() []byte {
	buf := make([]byte, recordHeaderSize+len(r.data))
	binary.BigEndian.PutUint64(buf[0:8], r.lsn)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(r.data)))
	binary.BigEndian.PutUint32(buf[12:16], r.crc)
	copy(buf[16:], r.data)
	return buf
}

func computeCRC(lsn uint64, data []byte) uint32 {
	h := crc32.NewIEEE()
	var lsnBytes [8]byte
	binary.BigEndian.PutUint64(lsnBytes[:], lsn)
	h.Write(lsnBytes[:])
	h.Write(data)
	return h.Sum32()
}
