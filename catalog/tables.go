package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"unidb/types"
)

// RegisterTable computes the table's packed-tuple layout, allocates its heap
// file ID, and persists both the schema and the file mapping. schema.Indexes
// is expected empty; indexes are added afterward via CreateIndex.
func (cm *Manager) RegisterTable(schema types.TabMeta) (types.TabMeta, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := cm.requireDatabase(); err != nil {
		return types.TabMeta{}, err
	}
	if _, exists := cm.schemas[schema.Name]; exists {
		return types.TabMeta{}, fmt.Errorf("catalog: register table %q: %w", schema.Name, types.ErrTableExists)
	}

	schema.ComputeLayout()
	schema.HeapFileID = cm.nextFileID
	cm.nextFileID++

	cm.schemas[schema.Name] = schema
	cm.files[schema.Name] = FileMapping{
		HeapFileID: schema.HeapFileID,
		IndexFiles: make(map[string]uint32),
	}

	if err := cm.persistSchema(schema); err != nil {
		return types.TabMeta{}, err
	}
	if err := cm.persistFileMapping(); err != nil {
		return types.TabMeta{}, err
	}
	if err := cm.persistNextFileID(); err != nil {
		return types.TabMeta{}, err
	}
	return schema, nil
}

// DropTable removes a table's schema file and file mapping entry. The
// caller is responsible for removing the underlying heap/index files.
func (cm *Manager) DropTable(name string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := cm.requireDatabase(); err != nil {
		return err
	}
	if _, exists := cm.schemas[name]; !exists {
		return fmt.Errorf("catalog: drop table %q: %w", name, types.ErrTableMissing)
	}

	delete(cm.schemas, name)
	delete(cm.files, name)

	schemaPath := filepath.Join(cm.tablesDir(), name+"_schema.json")
	if err := os.Remove(schemaPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("catalog: drop table %q: %w", name, err)
	}
	return cm.persistFileMapping()
}

// CreateIndex declares a new composite index over cols, allocates its file
// ID, and persists the updated schema and mapping.
func (cm *Manager) CreateIndex(table string, indexName string, cols []string) (types.IndexMeta, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	schema, exists := cm.schemas[table]
	if !exists {
		return types.IndexMeta{}, fmt.Errorf("catalog: create index on %q: %w", table, types.ErrTableMissing)
	}
	for _, im := range schema.Indexes {
		if im.Name == indexName {
			return types.IndexMeta{}, fmt.Errorf("catalog: create index %q: %w", indexName, types.ErrIndexExists)
		}
	}

	width := 0
	for _, colName := range cols {
		col, err := schema.ColByName(colName)
		if err != nil {
			return types.IndexMeta{}, fmt.Errorf("catalog: create index %q: %w", indexName, err)
		}
		width += col.Len
	}

	im := types.IndexMeta{
		Name:     indexName,
		Table:    table,
		Columns:  cols,
		KeyWidth: width,
		FileID:   cm.nextFileID,
	}
	cm.nextFileID++

	schema.Indexes = append(schema.Indexes, im)
	cm.schemas[table] = schema

	mapping := cm.files[table]
	if mapping.IndexFiles == nil {
		mapping.IndexFiles = make(map[string]uint32)
	}
	mapping.IndexFiles[indexName] = im.FileID
	cm.files[table] = mapping

	if err := cm.persistSchema(schema); err != nil {
		return types.IndexMeta{}, err
	}
	if err := cm.persistFileMapping(); err != nil {
		return types.IndexMeta{}, err
	}
	if err := cm.persistNextFileID(); err != nil {
		return types.IndexMeta{}, err
	}
	return im, nil
}

// DropIndex removes a composite index's declaration from the schema and its
// entry from the file mapping. The caller removes the underlying index file.
func (cm *Manager) DropIndex(table, indexName string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	schema, exists := cm.schemas[table]
	if !exists {
		return fmt.Errorf("catalog: drop index on %q: %w", table, types.ErrTableMissing)
	}

	kept := make([]types.IndexMeta, 0, len(schema.Indexes))
	found := false
	for _, im := range schema.Indexes {
		if im.Name == indexName {
			found = true
			continue
		}
		kept = append(kept, im)
	}
	if !found {
		return fmt.Errorf("catalog: drop index %q: %w", indexName, types.ErrIndexMissing)
	}
	schema.Indexes = kept
	cm.schemas[table] = schema

	if mapping, ok := cm.files[table]; ok {
		delete(mapping.IndexFiles, indexName)
		cm.files[table] = mapping
	}

	if err := cm.persistSchema(schema); err != nil {
		return err
	}
	return cm.persistFileMapping()
}

func (cm *Manager) GetTableSchema(name string) (types.TabMeta, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	schema, exists := cm.schemas[name]
	if !exists {
		return types.TabMeta{}, fmt.Errorf("catalog: %w: %q", types.ErrTableMissing, name)
	}
	return schema, nil
}

func (cm *Manager) GetIndexMeta(table, indexName string) (types.IndexMeta, error) {
	schema, err := cm.GetTableSchema(table)
	if err != nil {
		return types.IndexMeta{}, err
	}
	for _, im := range schema.Indexes {
		if im.Name == indexName {
			return im, nil
		}
	}
	return types.IndexMeta{}, fmt.Errorf("catalog: %w: %q on %q", types.ErrIndexMissing, indexName, table)
}

func (cm *Manager) GetHeapFileID(table string) (uint32, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	mapping, exists := cm.files[table]
	if !exists {
		return 0, fmt.Errorf("catalog: %w: %q", types.ErrTableMissing, table)
	}
	return mapping.HeapFileID, nil
}

func (cm *Manager) GetIndexFileID(table, indexName string) (uint32, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	mapping, exists := cm.files[table]
	if !exists {
		return 0, fmt.Errorf("catalog: %w: %q", types.ErrTableMissing, table)
	}
	fileID, exists := mapping.IndexFiles[indexName]
	if !exists {
		return 0, fmt.Errorf("catalog: %w: %q on %q", types.ErrIndexMissing, indexName, table)
	}
	return fileID, nil
}

func (cm *Manager) ListTables() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	names := make([]string, 0, len(cm.schemas))
	for name := range cm.schemas {
		names = append(names, name)
	}
	return names
}

func (cm *Manager) persistSchema(schema types.TabMeta) error {
	if err := os.MkdirAll(cm.tablesDir(), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(cm.tablesDir(), schema.Name+"_schema.json")
	return os.WriteFile(path, data, 0644)
}

func (cm *Manager) persistFileMapping() error {
	if err := os.MkdirAll(cm.metadataDir(), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cm.files, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cm.metadataDir(), "table_file_mapping.json"), data, 0644)
}

func (cm *Manager) persistNextFileID() error {
	if err := os.MkdirAll(cm.metadataDir(), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cm.nextFileID, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cm.metadataDir(), "next_file_id.json"), data, 0644)
}

func (cm *Manager) loadFileMapping() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.files = make(map[string]FileMapping)
	data, err := os.ReadFile(filepath.Join(cm.metadataDir(), "table_file_mapping.json"))
	if err != nil {
		if os.IsNotExist(err) {
			cm.nextFileID = 1
			return nil
		}
		return fmt.Errorf("catalog: load file mapping: %w", err)
	}
	if err := json.Unmarshal(data, &cm.files); err != nil {
		return fmt.Errorf("catalog: load file mapping: %w", err)
	}

	counterData, err := os.ReadFile(filepath.Join(cm.metadataDir(), "next_file_id.json"))
	if err == nil {
		var counter uint32
		if json.Unmarshal(counterData, &counter) == nil {
			cm.nextFileID = counter
		}
	}
	return nil
}

// LoadAllTableSchemas re-reads every *_schema.json file under the current
// database's tables directory into memory, discarding any cached schemas.
func (cm *Manager) LoadAllTableSchemas() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := cm.requireDatabase(); err != nil {
		return err
	}
	cm.schemas = make(map[string]types.TabMeta)

	entries, err := os.ReadDir(cm.tablesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("catalog: load table schemas: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "_schema.json") {
			continue
		}
		path := filepath.Join(cm.tablesDir(), entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("catalog: load table schemas: %w", err)
		}
		var schema types.TabMeta
		if err := json.Unmarshal(data, &schema); err != nil {
			return fmt.Errorf("catalog: load table schemas: invalid schema in %s: %w", path, err)
		}
		cm.schemas[schema.Name] = schema
	}
	return nil
}
