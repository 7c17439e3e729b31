package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"unidb/types"
)

// CreateDatabase makes a fresh <dbRoot>/<name>/{tables,metadata} directory
// tree and switches to it. It is an error to create a database that already
// exists on disk.
func (cm *Manager) CreateDatabase(name string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	root := filepath.Join(cm.dbRoot, name)
	if _, err := os.Stat(root); err == nil {
		return fmt.Errorf("catalog: create database %q: %w", name, types.ErrDatabaseExists)
	}

	for _, sub := range []string{"tables", "metadata"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return fmt.Errorf("catalog: create database %q: %w", name, err)
		}
	}

	cm.currentDB = name
	cm.nextFileID = 1
	cm.schemas = make(map[string]types.TabMeta)
	cm.files = make(map[string]FileMapping)
	return cm.persistNextFileID()
}

// OpenDatabase switches to an existing database directory and loads its
// table schemas and file mapping into memory.
func (cm *Manager) OpenDatabase(name string) error {
	cm.mu.Lock()
	root := filepath.Join(cm.dbRoot, name)
	if _, err := os.Stat(root); err != nil {
		cm.mu.Unlock()
		return fmt.Errorf("catalog: open database %q: %w", name, types.ErrDatabaseMissing)
	}
	cm.currentDB = name
	cm.mu.Unlock()

	if err := cm.loadFileMapping(); err != nil {
		return err
	}
	return cm.LoadAllTableSchemas()
}

// DropDatabase deletes an entire database directory from disk. If it is the
// currently open database, the manager reverts to having none open.
func (cm *Manager) DropDatabase(name string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	root := filepath.Join(cm.dbRoot, name)
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("catalog: drop database %q: %w", name, err)
	}
	if cm.currentDB == name {
		cm.currentDB = ""
		cm.schemas = make(map[string]types.TabMeta)
		cm.files = make(map[string]FileMapping)
	}
	return nil
}

func (cm *Manager) requireDatabase() error {
	if cm.currentDB == "" {
		return fmt.Errorf("catalog: no database selected")
	}
	return nil
}

func (cm *Manager) tablesDir() string {
	return filepath.Join(cm.dbRoot, cm.currentDB, "tables")
}

func (cm *Manager) metadataDir() string {
	return filepath.Join(cm.dbRoot, cm.currentDB, "metadata")
}
