package page

import (
	"sync"

	"unidb/types"
)

// PageSize and PageLSNOffset re-export the engine-wide constant so callers
// in this package don't have to import unidb/types for one value.
const (
	PageSize      = types.PageSize
	PageLSNOffset = 0 // first 8 bytes of every page = LSN
)

// Page is the in-memory frame for one fixed-size page, shared by heap files
// and index files. The byte layout of Data is owned by whichever access
// package (heap or index) stamped it; this struct only carries the fields
// the buffer pool itself needs to manage pinning, dirtiness, and eviction.
type Page struct {
	ID       int64
	FileID   uint32
	Data     []byte
	IsDirty  bool
	PinCount int32
	PageType types.PageType
	LSN      uint64 // in-memory, kept in sync with the on-disk LSN field by the owning layer
	mu       sync.RWMutex
}

func (p *Page) Lock()    { p.mu.Lock() }
func (p *Page) Unlock()  { p.mu.Unlock() }
func (p *Page) RLock()   { p.mu.RLock() }
func (p *Page) RUnlock() { p.mu.RUnlock() }
