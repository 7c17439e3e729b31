package bufferpool

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"unidb/page"
)

// GetStats returns a point-in-time snapshot of pool occupancy.
func (bp *BufferPool) GetStats() BufferPoolStats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	stats := BufferPoolStats{
		TotalPages: len(bp.pages),
		Capacity:   bp.capacity,
	}
	for _, pg := range bp.pages {
		pg.RLock()
		if pg.PinCount > 0 {
			stats.PinnedPages++
		}
		if pg.IsDirty {
			stats.DirtyPages++
		}
		pg.RUnlock()
	}
	if bp.cold != nil {
		m := bp.cold.Metrics
		if m != nil {
			stats.ColdHits = m.Hits()
			stats.ColdMisses = m.Misses()
		}
	}
	return stats
}

// String renders stats in human-readable byte counts.
func (s BufferPoolStats) String() string {
	resident := humanize.Bytes(uint64(s.TotalPages) * page.PageSize)
	capacity := humanize.Bytes(uint64(s.Capacity) * page.PageSize)
	return fmt.Sprintf("pages=%d/%d (%s/%s) pinned=%d dirty=%d cold_hits=%d cold_misses=%d",
		s.TotalPages, s.Capacity, resident, capacity, s.PinnedPages, s.DirtyPages, s.ColdHits, s.ColdMisses)
}

// Reset flushes dirty pages and clears the pool — used by tests.
func (bp *BufferPool) Reset() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, pg := range bp.pages {
		pg.Lock()
		if pg.IsDirty && bp.diskManager != nil {
			if err := bp.diskManager.WritePage(pg); err != nil {
				pg.Unlock()
				return fmt.Errorf("failed to flush page during reset: %w", err)
			}
		}
		pg.Unlock()
	}

	bp.pages = make(map[int64]*page.Page, bp.capacity)
	bp.accessOrder = make([]int64, 0, bp.capacity)
	return nil
}

func (bp *BufferPool) Size() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.pages)
}

func (bp *BufferPool) Capacity() int { return bp.capacity }

// GetPage returns a page already resident in the pool without touching
// disk, or nil if it isn't cached.
func (bp *BufferPool) GetPage(pageID int64) *page.Page {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.pages[pageID]
}

// MarkDirty marks a resident page as modified.
func (bp *BufferPool) MarkDirty(pageID int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, exists := bp.pages[pageID]
	if !exists {
		return fmt.Errorf("page %d not in buffer pool", pageID)
	}
	pg.Lock()
	pg.IsDirty = true
	pg.Unlock()
	return nil
}
