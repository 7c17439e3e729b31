package heap

import (
	"unidb/types"
)

// Scanner walks every occupied slot of a heap file in page-then-slot order.
// Page 0 is the file's metadata page, so data pages are local pages
// [1, NumPages].
type Scanner struct {
	rf     *RecordFile
	pageNo int32
	slotNo int32
}

// Scan returns a fresh Scanner positioned before the first record.
func (rf *RecordFile) Scan() *Scanner {
	return &Scanner{rf: rf, pageNo: 1}
}

// Next returns the next occupied (Rid, record) pair, or ok=false once the
// file is exhausted.
func (s *Scanner) Next() (types.Rid, []byte, bool, error) {
	for s.pageNo <= s.rf.header.NumPages {
		pg, err := s.rf.fetch(s.pageNo)
		if err != nil {
			return types.Rid{}, nil, false, err
		}

		pg.RLock()
		for s.slotNo < s.rf.header.RecordsPerPage {
			slot := s.slotNo
			s.slotNo++
			if !bitIsSet(pg, slot) {
				continue
			}
			data := readSlot(pg, s.rf.header.RecordsPerPage, s.rf.header.RecordSize, slot)
			pg.RUnlock()
			s.rf.bp.UnpinPage(pg.ID, false)
			return types.Rid{PageNo: s.pageNo, SlotNo: slot}, data, true, nil
		}
		pg.RUnlock()
		s.rf.bp.UnpinPage(pg.ID, false)

		s.pageNo++
		s.slotNo = 0
	}
	return types.Rid{}, nil, false, nil
}
