package heap

import "encoding/binary"

// FileHeader is persisted at page 0 of every heap file (see
// diskmanager.WriteMetadata/ReadMetadata). It never changes size once
// written, so RecordSize and RecordsPerPage are fixed for the lifetime of
// the file — a table's row layout cannot grow a heap file's record width in
// place, matching the catalog's "recompute layout, new file" story for
// schema changes.
type FileHeader struct {
	RecordSize     int32
	RecordsPerPage int32
	NumPages       int32
	FirstFreePage  int32
}

func (h FileHeader) encode() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], uint32(h.RecordSize))
	binary.LittleEndian.PutUint32(buf[4:], uint32(h.RecordsPerPage))
	binary.LittleEndian.PutUint32(buf[8:], uint32(h.NumPages))
	binary.LittleEndian.PutUint32(buf[12:], uint32(h.FirstFreePage))
	return buf
}

func decodeFileHeader(buf []byte) FileHeader {
	return FileHeader{
		RecordSize:     int32(binary.LittleEndian.Uint32(buf[0:])),
		RecordsPerPage: int32(binary.LittleEndian.Uint32(buf[4:])),
		NumPages:       int32(binary.LittleEndian.Uint32(buf[8:])),
		FirstFreePage:  int32(binary.LittleEndian.Uint32(buf[12:])),
	}
}
