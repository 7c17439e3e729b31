package catalog

import (
	"path/filepath"
	"sync"

	"unidb/types"
)

// FileMapping records the on-disk file IDs backing one table: its heap file
// plus one index file per declared composite index, keyed by index name.
type FileMapping struct {
	HeapFileID uint32            `json:"heap_file_id"`
	IndexFiles map[string]uint32 `json:"index_files"`
}

// Manager owns one open database directory: its table schemas and the
// table-to-file-ID mapping, both persisted as JSON under dbRoot/<db>/.
type Manager struct {
	mu         sync.RWMutex
	dbRoot     string
	currentDB  string
	nextFileID uint32
	schemas    map[string]types.TabMeta
	files      map[string]FileMapping
}

func NewManager(dbRoot string) *Manager {
	return &Manager{
		dbRoot:     dbRoot,
		nextFileID: 1,
		schemas:    make(map[string]types.TabMeta),
		files:      make(map[string]FileMapping),
	}
}

func (cm *Manager) CurrentDatabase() string { return cm.currentDB }

// DBDir returns the filesystem directory backing the currently open
// database, where heap and index files live alongside tables/ and
// metadata/.
func (cm *Manager) DBDir() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return filepath.Join(cm.dbRoot, cm.currentDB)
}
