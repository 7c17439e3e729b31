package heap

import (
	"fmt"
	"sync"

	"unidb/bufferpool"
	"unidb/diskmanager"
	"unidb/page"
	"unidb/types"
)

// RecordFile is a heap file: an unordered, append-mostly collection of
// fixed-width records addressed by Rid. Pages carry a next_free_page link
// and an occupancy bitmap; the file header tracks the head of that free
// list so inserts can find room without scanning the whole file.
type RecordFile struct {
	fileID uint32
	dm     *diskmanager.DiskManager
	bp     *bufferpool.BufferPool

	mu     sync.Mutex // guards header below; page contents guarded by page locks
	header FileHeader
}

// Open opens (or creates, if filePath does not yet exist) a heap file
// identified by fileID with fixed record width recordSize.
func Open(dm *diskmanager.DiskManager, bp *bufferpool.BufferPool, filePath string, fileID uint32, recordSize int32) (*RecordFile, error) {
	gotID, err := dm.OpenFileWithID(filePath, fileID)
	if err != nil {
		return nil, fmt.Errorf("heap: open %s: %w", filePath, err)
	}

	fd, err := dm.GetFileDescriptor(gotID)
	if err != nil {
		return nil, err
	}

	rf := &RecordFile{fileID: gotID, dm: dm, bp: bp}

	if fd.NextPageID == 0 {
		recordsPerPage, err := computeRecordsPerPage(recordSize)
		if err != nil {
			return nil, err
		}
		if _, err := dm.AllocatePage(gotID, types.PageTypeMetadata); err != nil {
			return nil, fmt.Errorf("heap: reserve header page: %w", err)
		}
		rf.header = FileHeader{
			RecordSize:     recordSize,
			RecordsPerPage: recordsPerPage,
			NumPages:       0,
			FirstFreePage:  noFreePage,
		}
		if err := dm.WriteMetadata(gotID, rf.header.encode()); err != nil {
			return nil, fmt.Errorf("heap: write header: %w", err)
		}
		return rf, nil
	}

	for p := int64(0); p < fd.NextPageID; p++ {
		if err := dm.RegisterPage(gotID, p); err != nil {
			return nil, fmt.Errorf("heap: register page %d: %w", p, err)
		}
	}
	buf, err := dm.ReadMetadata(gotID)
	if err != nil {
		return nil, fmt.Errorf("heap: read header: %w", err)
	}
	rf.header = decodeFileHeader(buf)
	return rf, nil
}

func (rf *RecordFile) FileID() uint32    { return rf.fileID }
func (rf *RecordFile) RecordSize() int32 { return rf.header.RecordSize }
func (rf *RecordFile) NumPages() int32   { return rf.header.NumPages }

func (rf *RecordFile) persistHeader() error {
	return rf.dm.WriteMetadata(rf.fileID, rf.header.encode())
}

func (rf *RecordFile) globalID(localPageNo int32) int64 {
	gid, _ := rf.dm.GetGlobalPageID(rf.fileID, int64(localPageNo))
	return gid
}

func (rf *RecordFile) fetch(localPageNo int32) (*page.Page, error) {
	pg, err := rf.bp.FetchPage(rf.globalID(localPageNo))
	if err != nil {
		return nil, &types.PageNotExistError{PageNo: localPageNo}
	}
	return pg, nil
}

// newDataPage allocates and initializes a fresh heap page, appending it as
// the new head of the free list.
func (rf *RecordFile) newDataPage() (*page.Page, int32, error) {
	pg, err := rf.bp.NewPage(rf.fileID, types.PageTypeHeapData)
	if err != nil {
		return nil, 0, fmt.Errorf("heap: allocate page: %w", err)
	}
	localPageNo := int32(rf.dm.GetLocalPageID(pg.ID))

	pg.Lock()
	initHeapPage(pg)
	setNextFreePage(pg, rf.header.FirstFreePage)
	pg.Unlock()

	rf.header.NumPages++
	rf.header.FirstFreePage = localPageNo
	if err := rf.persistHeader(); err != nil {
		return nil, 0, err
	}
	return pg, localPageNo, nil
}

// Get reads the record stored at rid.
func (rf *RecordFile) Get(rid types.Rid) ([]byte, error) {
	pg, err := rf.fetch(rid.PageNo)
	if err != nil {
		return nil, err
	}
	defer rf.bp.UnpinPage(pg.ID, false)

	pg.RLock()
	defer pg.RUnlock()

	if rid.SlotNo < 0 || rid.SlotNo >= rf.header.RecordsPerPage || !bitIsSet(pg, rid.SlotNo) {
		return nil, &types.RecordNotFoundError{Rid: rid}
	}
	return readSlot(pg, rf.header.RecordsPerPage, rf.header.RecordSize, rid.SlotNo), nil
}

// Insert appends data as a new record, following the free list: fetch the
// head page, scan its bitmap for a clear bit; if the head page has none
// (can happen after Insert stamps a rid whose page was already the free
// list's head but has since filled through direct InsertAt calls), advance
// to next_free_page and try again, same as walking a singly linked free
// list. When the list is empty, allocate a fresh page.
func (rf *RecordFile) Insert(data []byte) (types.Rid, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if int32(len(data)) != rf.header.RecordSize {
		return types.InvalidRid, types.ErrInvalidRecordLen
	}

	var pg *page.Page
	var localPageNo int32
	var err error

	if rf.header.FirstFreePage == noFreePage {
		pg, localPageNo, err = rf.newDataPage()
		if err != nil {
			return types.InvalidRid, err
		}
	} else {
		localPageNo = rf.header.FirstFreePage
		pg, err = rf.fetch(localPageNo)
		if err != nil {
			return types.InvalidRid, err
		}
	}

	slot := int32(-1)
	for {
		pg.Lock()
		slot = firstClearBit(pg, rf.header.RecordsPerPage)
		if slot != -1 {
			break
		}
		next := getNextFreePage(pg)
		pg.Unlock()
		rf.bp.UnpinPage(pg.ID, false)

		rf.header.FirstFreePage = next
		if err := rf.persistHeader(); err != nil {
			return types.InvalidRid, err
		}
		if next == noFreePage {
			pg, localPageNo, err = rf.newDataPage()
			if err != nil {
				return types.InvalidRid, err
			}
			continue
		}
		localPageNo = next
		pg, err = rf.fetch(localPageNo)
		if err != nil {
			return types.InvalidRid, err
		}
	}

	bitSet(pg, slot)
	writeSlot(pg, rf.header.RecordsPerPage, rf.header.RecordSize, slot, data)
	setNumRecords(pg, getNumRecords(pg)+1)
	full := getNumRecords(pg) == rf.header.RecordsPerPage
	var nextFree int32
	if full {
		nextFree = getNextFreePage(pg)
	}
	pg.Unlock()
	rf.bp.UnpinPage(pg.ID, true)

	if full {
		rf.header.FirstFreePage = nextFree
		if err := rf.persistHeader(); err != nil {
			return types.InvalidRid, err
		}
	}

	return types.Rid{PageNo: localPageNo, SlotNo: slot}, nil
}

// InsertAt writes data at the exact rid, used by transaction rollback to
// undo a prior Delete without disturbing any index entries that still point
// at that rid. The page must already exist; the slot must currently be
// free. Free-list bookkeeping is best-effort: if this happens to fill the
// current free-list head, the head is advanced, matching Insert; otherwise
// the free list is left as-is, since the slot being reoccupied does not
// remove any other page's free capacity.
func (rf *RecordFile) InsertAt(rid types.Rid, data []byte) error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if int32(len(data)) != rf.header.RecordSize {
		return types.ErrInvalidRecordLen
	}
	if rid.PageNo < 1 || rid.PageNo > rf.header.NumPages {
		return &types.PageNotExistError{PageNo: rid.PageNo}
	}

	pg, err := rf.fetch(rid.PageNo)
	if err != nil {
		return err
	}
	defer rf.bp.UnpinPage(pg.ID, true)

	pg.Lock()
	defer pg.Unlock()

	if rid.SlotNo < 0 || rid.SlotNo >= rf.header.RecordsPerPage {
		return fmt.Errorf("heap: slot %d out of range", rid.SlotNo)
	}
	if bitIsSet(pg, rid.SlotNo) {
		return fmt.Errorf("heap: slot %s already occupied", rid)
	}

	bitSet(pg, rid.SlotNo)
	writeSlot(pg, rf.header.RecordsPerPage, rf.header.RecordSize, rid.SlotNo, data)
	setNumRecords(pg, getNumRecords(pg)+1)

	if getNumRecords(pg) == rf.header.RecordsPerPage && rf.header.FirstFreePage == rid.PageNo {
		next := getNextFreePage(pg)
		rf.header.FirstFreePage = next
		if err := rf.persistHeader(); err != nil {
			return err
		}
	}
	return nil
}

// Delete clears the slot at rid. The page is threaded back onto the head of
// the free list if it was previously full (i.e. absent from the list).
func (rf *RecordFile) Delete(rid types.Rid) error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rid.PageNo < 1 || rid.PageNo > rf.header.NumPages {
		return &types.PageNotExistError{PageNo: rid.PageNo}
	}
	pg, err := rf.fetch(rid.PageNo)
	if err != nil {
		return err
	}
	defer rf.bp.UnpinPage(pg.ID, true)

	pg.Lock()
	defer pg.Unlock()

	if rid.SlotNo < 0 || rid.SlotNo >= rf.header.RecordsPerPage || !bitIsSet(pg, rid.SlotNo) {
		return &types.RecordNotFoundError{Rid: rid}
	}

	wasFull := getNumRecords(pg) == rf.header.RecordsPerPage
	bitClear(pg, rid.SlotNo)
	setNumRecords(pg, getNumRecords(pg)-1)

	if wasFull {
		setNextFreePage(pg, rf.header.FirstFreePage)
		rf.header.FirstFreePage = rid.PageNo
		if err := rf.persistHeader(); err != nil {
			return err
		}
	}
	return nil
}

// Update overwrites the record at rid in place. Record width never changes,
// so this never needs to move the row or touch the free list.
func (rf *RecordFile) Update(rid types.Rid, data []byte) error {
	if int32(len(data)) != rf.header.RecordSize {
		return types.ErrInvalidRecordLen
	}
	pg, err := rf.fetch(rid.PageNo)
	if err != nil {
		return err
	}
	defer rf.bp.UnpinPage(pg.ID, true)

	pg.Lock()
	defer pg.Unlock()

	if rid.SlotNo < 0 || rid.SlotNo >= rf.header.RecordsPerPage || !bitIsSet(pg, rid.SlotNo) {
		return &types.RecordNotFoundError{Rid: rid}
	}
	writeSlot(pg, rf.header.RecordsPerPage, rf.header.RecordSize, rid.SlotNo, data)
	return nil
}
