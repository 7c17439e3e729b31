package bufferpool

import (
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"unidb/diskmanager"
	"unidb/page"
)

// BufferPool manages cached pages in memory with LRU eviction. Works for
// both heap file pages and B+-tree index pages alike — both are fixed-size
// frames identified by a global page ID.
type BufferPool struct {
	pages       map[int64]*page.Page
	capacity    int
	diskManager *diskmanager.DiskManager
	walManager  WALFlushedLSNGetter
	accessOrder []int64 // LRU tracking: most recently used at the end

	// cold is a second-chance cache of recently-evicted CLEAN pages' bytes.
	// A page that gets evicted and re-fetched shortly after (a common
	// pattern during index descents that briefly overflow capacity) is
	// served from here instead of round-tripping to disk. Dirty pages are
	// never placed here — they are always flushed and re-read through the
	// disk manager so the checksum/WAL-gating invariants stay simple.
	cold *ristretto.Cache[int64, []byte]

	mu sync.Mutex
}

// BufferPoolStats reports point-in-time occupancy of the pool.
type BufferPoolStats struct {
	TotalPages  int
	PinnedPages int
	DirtyPages  int
	Capacity    int
	ColdHits    uint64
	ColdMisses  uint64
}

// WALFlushedLSNGetter is the small interface the buffer pool needs from the
// write-ahead log: the highest LSN that has been durably fsynced. A dirty
// page whose LSN exceeds this watermark may not be flushed or evicted —
// "WAL before data", the standard no-force discipline.
type WALFlushedLSNGetter interface {
	GetFlushedLSN() uint64
}
