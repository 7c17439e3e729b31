package bufferpool

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/dgraph-io/ristretto/v2"

	"unidb/diskmanager"
	"unidb/page"
	"unidb/types"
)

/*
BufferPool implements LRU-based caching over fixed-size pages. It owns the
disk manager for loading pages on a miss and flushing dirty pages back out,
and a WAL-flushed-LSN watermark (set via SetWALManager) that gates both
flush and eviction of dirty pages: a page cannot be written to disk until
the WAL has durably recorded everything up to its LSN.

Pages are identified by global page ID.
*/

// NewBufferPool creates a buffer pool with the given capacity backed by
// diskManager. A small ristretto cache backs cold re-fetches of recently
// evicted clean pages.
func NewBufferPool(capacity int, diskManager *diskmanager.DiskManager) *BufferPool {
	cold, err := ristretto.NewCache(&ristretto.Config[int64, []byte]{
		NumCounters: int64(capacity) * 10,
		MaxCost:     int64(capacity) * int64(page.PageSize),
		BufferItems: 64,
	})
	if err != nil {
		// ristretto only fails on invalid config; capacity is always > 0 here.
		cold = nil
	}

	return &BufferPool{
		pages:       make(map[int64]*page.Page, capacity),
		capacity:    capacity,
		diskManager: diskManager,
		accessOrder: make([]int64, 0, capacity),
		cold:        cold,
	}
}

func (bp *BufferPool) SetWALManager(wal WALFlushedLSNGetter) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.walManager = wal
}

// FetchPage retrieves a page from the buffer pool, loading from the cold
// cache or disk if necessary. Returns the page pinned.
func (bp *BufferPool) FetchPage(pageID int64) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if pg, exists := bp.pages[pageID]; exists {
		bp.updateAccessOrder(pageID)
		pg.Lock()
		pg.PinCount++
		pg.Unlock()
		return pg, nil
	}

	if bp.diskManager == nil {
		return nil, fmt.Errorf("disk manager not set")
	}

	var pg *page.Page
	if bp.cold != nil {
		if cached, ok := bp.cold.Get(pageID); ok {
			pg = diskmanager.NewPage(pageID, uint32(pageID>>32), types.PageType(cached[8]))
			copy(pg.Data, cached)
			if len(pg.Data) >= 8 {
				pg.LSN = binary.LittleEndian.Uint64(pg.Data[page.PageLSNOffset:])
			}
			bp.cold.Del(pageID)
		}
	}

	if pg == nil {
		var err error
		pg, err = bp.diskManager.ReadPage(pageID)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d from disk: %w", pageID, err)
		}
		if len(pg.Data) >= 8 {
			pg.LSN = binary.LittleEndian.Uint64(pg.Data[page.PageLSNOffset:])
		}
	} else {
		debugLog.Printf("cold-cache hit pageID=%d", pageID)
	}

	if err := bp.addPage(pg); err != nil {
		return nil, fmt.Errorf("failed to add page to buffer pool: %w", err)
	}

	pg.Lock()
	pg.PinCount++
	pg.Unlock()

	return pg, nil
}

// NewPage asks the disk manager for the next available page ID for the given
// file, constructs a blank in-memory frame, marks it dirty, and pins it for
// the caller.
func (bp *BufferPool) NewPage(fileID uint32, pageType types.PageType) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.diskManager == nil {
		return nil, fmt.Errorf("disk manager not set")
	}

	pageID, err := bp.diskManager.AllocatePage(fileID, pageType)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate page: %w", err)
	}

	pg := diskmanager.NewPage(pageID, fileID, pageType)
	pg.IsDirty = true

	pg.Lock()
	pg.PinCount++
	pg.Unlock()

	if err := bp.addPage(pg); err != nil {
		pg.Lock()
		pg.PinCount--
		pg.Unlock()
		return nil, fmt.Errorf("failed to add new page to buffer pool: %w", err)
	}

	return pg, nil
}

// UnpinPage decrements the pin count for a page, optionally marking it dirty.
func (bp *BufferPool) UnpinPage(pageID int64, isDirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, exists := bp.pages[pageID]
	if !exists {
		return fmt.Errorf("page %d not in buffer pool", pageID)
	}

	pg.Lock()
	defer pg.Unlock()

	if pg.PinCount > 0 {
		pg.PinCount--
	}
	if isDirty {
		pg.IsDirty = true
	}
	return nil
}

// FlushPage writes a specific page to disk if dirty and covered by the WAL.
func (bp *BufferPool) FlushPage(pageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, exists := bp.pages[pageID]
	if !exists {
		return fmt.Errorf("page %d not in buffer pool", pageID)
	}

	pg.Lock()
	defer pg.Unlock()

	if !pg.IsDirty {
		return nil
	}

	if bp.walManager != nil {
		if pg.LSN > bp.walManager.GetFlushedLSN() {
			return fmt.Errorf("cannot flush page %d: pageLSN=%d not yet covered by WAL flushedLSN=%d",
				pageID, pg.LSN, bp.walManager.GetFlushedLSN())
		}
	}

	if err := bp.diskManager.WritePage(pg); err != nil {
		return fmt.Errorf("failed to flush page %d: %w", pageID, err)
	}
	pg.IsDirty = false
	return nil
}

// FlushAllPages writes every dirty, WAL-covered page to disk.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.diskManager == nil {
		return fmt.Errorf("disk manager not set")
	}

	for pageID, pg := range bp.pages {
		pg.Lock()
		if pg.IsDirty {
			if bp.walManager != nil && pg.LSN > bp.walManager.GetFlushedLSN() {
				pg.Unlock()
				continue
			}
			if err := bp.diskManager.WritePage(pg); err != nil {
				pg.Unlock()
				return fmt.Errorf("failed to flush page %d: %w", pageID, err)
			}
			pg.IsDirty = false
		}
		pg.Unlock()
	}
	return nil
}

// addPage adds a page to the pool, evicting if at capacity. Caller holds bp.mu.
func (bp *BufferPool) addPage(pg *page.Page) error {
	if _, exists := bp.pages[pg.ID]; exists {
		bp.updateAccessOrder(pg.ID)
		return nil
	}

	if len(bp.pages) >= bp.capacity {
		if err := bp.evictLRU(); err != nil {
			return fmt.Errorf("failed to evict page: %w", err)
		}
	}

	bp.pages[pg.ID] = pg
	bp.updateAccessOrder(pg.ID)
	return nil
}

// evictLRU evicts the least-recently-used unpinned page, preferring to
// stash a clean victim's bytes in the cold cache instead of discarding them
// outright. Caller holds bp.mu.
func (bp *BufferPool) evictLRU() error {
	for i := 0; i < len(bp.accessOrder); i++ {
		pageID := bp.accessOrder[i]
		pg, exists := bp.pages[pageID]
		if !exists {
			bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
			i--
			continue
		}

		pg.Lock()
		pinned := pg.PinCount > 0
		dirty := pg.IsDirty
		if pinned {
			pg.Unlock()
			continue
		}

		if dirty {
			if bp.walManager != nil && pg.LSN > bp.walManager.GetFlushedLSN() {
				pg.Unlock()
				continue // not yet durable in the WAL — can't evict
			}
			if err := bp.diskManager.WritePage(pg); err != nil {
				pg.Unlock()
				return fmt.Errorf("failed to write page %d during eviction: %w", pageID, err)
			}
			pg.IsDirty = false
		} else if bp.cold != nil {
			cached := make([]byte, len(pg.Data))
			copy(cached, pg.Data)
			bp.cold.Set(pageID, cached, int64(len(cached)))
		}
		pg.Unlock()

		delete(bp.pages, pageID)
		bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
		debugLog.Printf("evicted pageID=%d dirty=%v", pageID, dirty)
		return nil
	}

	return fmt.Errorf("all pages are pinned, cannot evict")
}

func (bp *BufferPool) updateAccessOrder(pageID int64) {
	for i, id := range bp.accessOrder {
		if id == pageID {
			bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
			break
		}
	}
	bp.accessOrder = append(bp.accessOrder, pageID)
}

// DeletePage removes an unpinned page from the pool without flushing it —
// used when a heap or index page is freed and its bytes no longer matter.
func (bp *BufferPool) DeletePage(pageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, exists := bp.pages[pageID]
	if !exists {
		return nil
	}

	pg.Lock()
	if pg.PinCount > 0 {
		pg.Unlock()
		return fmt.Errorf("cannot delete pinned page %d", pageID)
	}
	pg.Unlock()

	delete(bp.pages, pageID)
	for i, id := range bp.accessOrder {
		if id == pageID {
			bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
			break
		}
	}
	return nil
}

var debugLog = log.New(log.Writer(), "[bufferpool] ", 0)
